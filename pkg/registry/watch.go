package registry

import (
	"context"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/melosso/portway/internal/logger"
)

// Watch starts an fsnotify watch over the descriptor tree and triggers a
// debounced Reload whenever files change. Rapid successive writes (an
// editor saving several descriptors at once, or a git checkout touching
// many files) collapse into a single reload after debounce elapses with no
// further events. Watch blocks until ctx is cancelled.
func (r *Registry) Watch(ctx context.Context, debounce time.Duration) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := addRecursive(watcher, r.root); err != nil {
		return err
	}

	if debounce <= 0 {
		debounce = 250 * time.Millisecond
	}
	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}
	pending := false

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if event.Op&fsnotify.Create != 0 {
				_ = watcher.Add(event.Name) // best-effort, covers newly created subdirectories
			}
			pending = true
			timer.Reset(debounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("descriptor watch error", "error", err)
		case <-timer.C:
			if !pending {
				continue
			}
			pending = false
			if err := r.Reload(); err != nil {
				logger.Error("descriptor reload failed", "error", err)
			}
		}
	}
}

func addRecursive(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
}
