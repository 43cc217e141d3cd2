package secrets

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// ErrWatcherFailed indicates the filesystem watcher failed to initialize.
var ErrWatcherFailed = errors.New("failed to initialize allowlist watcher")

// Watch reloads the allowlist whenever its file is written, created,
// renamed or removed, until ctx is cancelled. The parent directory is
// watched so editors that replace the file are handled. A disabled
// redactor or an empty allowlist path watches nothing.
func (r *Redactor) Watch(ctx context.Context) error {
	if !r.Enabled() || r.path == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWatcherFailed, err)
	}
	target := filepath.Clean(r.path)
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("%w: watching %s: %v", ErrWatcherFailed, filepath.Dir(target), err)
	}

	go r.watchLoop(ctx, watcher, target)
	return nil
}

func (r *Redactor) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, target string) {
	defer watcher.Close()

	const reloadOps = fsnotify.Write | fsnotify.Create | fsnotify.Rename | fsnotify.Remove
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target || event.Op&reloadOps == 0 {
				continue
			}
			if err := r.Reload(); err != nil {
				r.logger.Warn("allowlist reload failed; keeping previous rules",
					zap.String("path", target), zap.Error(err))
				continue
			}
			r.logger.Info("allowlist reloaded", zap.String("path", target))

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			r.logger.Warn("allowlist watcher error", zap.Error(err))
		}
	}
}
