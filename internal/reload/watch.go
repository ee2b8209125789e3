package reload

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads whenever the file at path changes until ctx is cancelled.
// The parent directory is watched so editors that replace the file through
// a rename are still noticed. Bursts of events are debounced.
func (r *Reloader) Watch(ctx context.Context, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("reload: watch path: %w", err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	dir := filepath.Dir(abs)
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("reload: watch %s: %w", dir, err)
	}

	r.logger.Info("watcher: started", slog.String("path", abs))

	var timer *time.Timer
	var timerCh <-chan time.Time

	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(r.debounce)
			timerCh = timer.C
		} else {
			timer.Reset(r.debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			r.logger.Info("watcher: stopped")
			return nil

		case <-timerCh:
			// Reload logs failures itself and keeps the previous snapshot.
			_, _ = r.Reload(ctx, false)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			r.logger.Debug("watcher: change", slog.String("op", ev.Op.String()))
			schedule()

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			r.logger.Warn("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}
