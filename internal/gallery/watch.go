package gallery

import (
	"context"
	"fmt"
	"time"

	"sphere-cms/internal/logger"

	"github.com/fsnotify/fsnotify"
)

// watchDebounce collapses bursts of file events into one refresh.
const watchDebounce = 200 * time.Millisecond

// invalidator is implemented by buckets that cache listings.
type invalidator interface {
	Invalidate()
}

// Watch refreshes the gallery whenever files are added to, removed from or
// renamed in dir. It blocks until ctx is done.
func (g *Gallery) Watch(ctx context.Context, dir string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	logger.Info("Gallery", fmt.Sprintf("Watching %s", dir))

	// Armed by the first relevant event.
	timer := time.NewTimer(watchDebounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				timer.Reset(watchDebounce)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Gallery", fmt.Sprintf("watcher: %v", err))
		case <-timer.C:
			if inv, ok := g.bucket.(invalidator); ok {
				inv.Invalidate()
			}
			if _, err := g.Refresh(ctx); err != nil && ctx.Err() == nil {
				logger.Warn("Gallery", err.Error())
			}
		}
	}
}
