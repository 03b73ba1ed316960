// Package server provides HTTP server construction for the mock backend.
package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rentwave/rentwave/internal/mockapi"
)

// MuxConfig holds dependencies for building the HTTP router.
type MuxConfig struct {
	API    *mockapi.Server
	Logger *slog.Logger
}

// NewMux builds the router with the auth endpoints and the Bearer
// protected profile endpoints. Mutating profile requests also pass the
// XSRF double-submit check.
func NewMux(cfg MuxConfig) *mux.Router {
	r := mux.NewRouter()
	r.Use(accessLog(cfg.Logger))

	a := r.PathPrefix("/auth/").
		Methods(http.MethodPost).
		Subrouter()
	a.HandleFunc("/login", cfg.API.HandleLogin)
	a.HandleFunc("/tokens", cfg.API.HandleTokens)
	a.HandleFunc("/logout", cfg.API.HandleLogout)
	a.HandleFunc("/signup", cfg.API.HandleSignup)

	u := r.PathPrefix("/users/").Subrouter()
	u.Use(
		mockapi.RequireAccessToken(cfg.API.Store(), cfg.Logger),
		mockapi.RequireXSRF(cfg.API.Store(), cfg.Logger),
	)
	u.HandleFunc("/me", cfg.API.HandleMe).Methods(http.MethodGet)
	u.HandleFunc("/me", cfg.API.HandleUpdateMe).Methods(http.MethodPatch)

	return r
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func accessLog(logger *slog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			logger.Debug("request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rec.status),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}
