package server

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce collapses bursts of writes into a single reload.
const DefaultDebounce = 100 * time.Millisecond

// Watch calls reload whenever the file at path is written or replaced,
// until ctx is canceled. The parent directory is watched so that editors
// that save by renaming are noticed too. A failed reload is logged and the
// previous run stays published.
func Watch(ctx context.Context, logger *zap.Logger, path string, debounce time.Duration, reload func(context.Context) error) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	target, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("error creating watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("error adding directory to watcher: %w", err)
	}

	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				timer.Reset(debounce)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error("watch error", zap.Error(err))
		case <-timer.C:
			logger.Info("input changed, reloading", zap.String("path", target))
			if err := reload(ctx); err != nil {
				logger.Error("reload failed", zap.String("path", target), zap.Error(err))
			}
		}
	}
}
