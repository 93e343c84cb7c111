package refstore

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// WatchSeed reloads and re-applies the seed file whenever it changes on disk,
// until ctx is canceled. Reload failures are logged and skipped; the catalog
// keeps its previous contents.
func WatchSeed(ctx context.Context, store *Store, path string, logger *slog.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	// Watch the directory, not the file: editors and configmap mounts replace
	// the file, which drops a direct file watch.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return err
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(path) {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				seed, err := LoadSeed(path)
				if err != nil {
					logger.Error("seed reload failed", "path", path, "error", err)
					continue
				}
				if err := store.ApplySeed(ctx, seed); err != nil {
					logger.Error("seed apply failed", "path", path, "error", err)
					continue
				}
				logger.Info("reference catalog seed reloaded", "path", path)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Error("seed watcher error", "error", err)
			}
		}
	}()

	return nil
}
