package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rentwave/rentwave/internal/config"
	"github.com/rentwave/rentwave/internal/logging"
	"github.com/rentwave/rentwave/internal/mockapi"
	"github.com/rentwave/rentwave/internal/server"
	"golang.org/x/sync/errgroup"
)

var Version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := logging.New(os.Stdout, cfg.Environment, cfg.LogLevel).With(slog.String("service", "mockapi"))

	seed, err := mockapi.SeedAccount()
	if err != nil {
		return err
	}

	store := mockapi.NewStore(seed)
	defer store.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.MockAccountsFile != "" {
		if err := mockapi.WatchAccounts(ctx, cfg.MockAccountsFile, store, logger); err != nil {
			return fmt.Errorf("loading accounts file: %w", err)
		}

		logger.Info("watching accounts file", slog.String("path", cfg.MockAccountsFile))
	}

	api := mockapi.NewServer(store, mockapi.Options{
		Mode:            mockapi.TokenMode(cfg.MockTokenMode),
		AccessTokenTTL:  cfg.MockAccessTokenTTL,
		RefreshTokenTTL: cfg.MockRefreshTokenTTL,
		Secure:          cfg.IsProduction(),
		Logger:          logger,
	})

	srv := &http.Server{
		Addr:              cfg.MockListenAddr,
		Handler:           server.NewMux(server.MuxConfig{API: api, Logger: logger}),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger.Info("starting mock backend",
		slog.String("version", Version),
		slog.String("listen", cfg.MockListenAddr),
		slog.String("token_mode", cfg.MockTokenMode),
		slog.Bool("secure_cookies", cfg.IsProduction()),
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("mock backend error: %w", err)
		}

		return nil
	})

	// Shutdown when context is cancelled.
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down mock backend")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
