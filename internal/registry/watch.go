package registry

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/rileyhilliard/fleetwatch/internal/errors"
	"github.com/rileyhilliard/fleetwatch/internal/logger"
)

// Watch reloads the registry each time the file at path is written or
// replaced, until ctx is done. The parent directory is watched because
// server.json is replaced by rename, which drops a watch on the file itself.
// A failed reload is logged and the previous state stays in effect.
func (r *Registry) Watch(ctx context.Context, path string, log logger.Logger) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrRegistry,
			"Cannot watch "+filepath.Base(path),
			"Use 'fleetwatch reload-remote' after editing it")
	}
	defer w.Close()

	target := filepath.Clean(path)
	if err := w.Add(filepath.Dir(target)); err != nil {
		return errors.WrapWithCode(err, errors.ErrRegistry,
			"Cannot watch "+filepath.Dir(target),
			"Use 'fleetwatch reload-remote' after editing "+filepath.Base(path))
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := r.Reload(); err != nil {
				log.Warn("registry reload after %s failed: %v", ev.Op, err)
				continue
			}
			log.Debug("registry reloaded from %s", target)

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn("watching %s: %v", target, err)
		}
	}
}
