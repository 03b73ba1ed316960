package mockapi

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDebounce coalesces the burst of events an editor produces when it
// saves a file.
const reloadDebounce = 500 * time.Millisecond

// WatchAccounts loads the accounts file into store and reloads it whenever
// it changes, until ctx is done. The parent directory is watched rather
// than the file so atomic rename-on-save is picked up. A file that fails
// to parse on reload is logged and the previous accounts stay in place.
func WatchAccounts(ctx context.Context, path string, store *Store, logger *slog.Logger) error {
	if err := reloadAccounts(path, store); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating accounts watcher: %w", err)
	}

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return fmt.Errorf("watching %s: %w", filepath.Dir(path), err)
	}

	reload := make(chan struct{}, 1)

	go scheduleReload(ctx, reload, func() {
		if err := reloadAccounts(path, store); err != nil {
			logger.Warn("accounts reload failed", slog.String("path", path), slog.String("error", err.Error()))
			return
		}

		logger.Info("accounts reloaded", slog.String("path", path))
	})

	go handleWatcher(ctx, watcher, filepath.Clean(path), reload, logger)

	return nil
}

func reloadAccounts(path string, store *Store) error {
	accounts, err := LoadAccountsFile(path)
	if err != nil {
		return err
	}

	store.ReplaceFileAccounts(accounts)

	return nil
}

func handleWatcher(ctx context.Context, watcher *fsnotify.Watcher, path string, reload chan<- struct{}, logger *slog.Logger) {
	defer watcher.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}

			if filepath.Clean(event.Name) != path {
				continue
			}

			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				select {
				case reload <- struct{}{}:
				default:
				}
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}

			logger.Warn("accounts watcher error", slog.String("error", err.Error()))
		}
	}
}

func scheduleReload(ctx context.Context, reload <-chan struct{}, callback func()) {
	var (
		timer *time.Timer
		fire  <-chan time.Time
	)

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}

			return
		case <-reload:
			if timer != nil {
				timer.Reset(reloadDebounce)
			} else {
				timer = time.NewTimer(reloadDebounce)
				fire = timer.C
			}
		case <-fire:
			fire = nil
			timer = nil

			callback()
		}
	}
}
