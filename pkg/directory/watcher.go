package directory

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/pagegate/pagegate/pkg/logging"
)

// debounce window for editors that write the users file in several steps
const reloadDelay = 250 * time.Millisecond

// Watch reloads the directory whenever the users file changes on disk, until
// the context is cancelled. The parent directory is watched rather than the
// file itself so atomic rename-style saves are observed.
func (s *Store) Watch(ctx context.Context, logger *logging.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	dir := filepath.Dir(s.path)
	if dir == "" {
		dir = "."
	}
	if err := watcher.Add(dir); err != nil {
		return err
	}

	target := filepath.Clean(s.path)
	var pending *time.Timer
	reloads := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			if pending != nil {
				pending.Stop()
			}
			pending = time.AfterFunc(reloadDelay, func() {
				select {
				case reloads <- struct{}{}:
				default:
				}
			})
		case <-reloads:
			if err := s.Reload(); err != nil {
				logger.Error(logging.CategoryDirectory, "reload_failed", err.Error(), nil)
				continue
			}
			logger.Info(logging.CategoryDirectory, "reloaded", "users file reloaded", map[string]any{"users": s.Len()})
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn(logging.CategoryDirectory, "watch_error", err.Error(), nil)
		}
	}
}
