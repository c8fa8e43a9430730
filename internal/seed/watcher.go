package seed

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the watcher waits for a burst of writes to
// settle before reapplying.
const DefaultDebounce = 100 * time.Millisecond

// Watcher reapplies a seed file whenever it changes on disk.
type Watcher struct {
	Path     string
	Set      SetFunc
	Debounce time.Duration
	Logger   *slog.Logger

	// OnApply, when set, receives the outcome of every reload.
	OnApply func(*Report, error)
}

// Run watches until ctx is done. The parent directory is watched so that
// editors which replace the file by rename are still seen.
func (w *Watcher) Run(ctx context.Context) error {
	path, err := filepath.Abs(w.Path)
	if err != nil {
		return err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()
	if err := fw.Add(filepath.Dir(path)); err != nil {
		return err
	}

	logger := w.Logger
	if logger == nil {
		logger = slog.Default()
	}
	delay := w.Debounce
	if delay <= 0 {
		delay = DefaultDebounce
	}

	reload := make(chan struct{}, 1)
	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(delay, func() {
				select {
				case reload <- struct{}{}:
				default:
				}
			})

		case <-reload:
			rep, err := ApplyFile(ctx, path, w.Set)
			switch {
			case err != nil:
				logger.Warn("seed reload failed", "path", path, "error", err)
			default:
				logger.Info("seed reloaded", "path", path,
					"applied", len(rep.Applied), "conflicts", len(rep.Conflicts))
				for _, c := range rep.Conflicts {
					logger.Warn("seed entry rejected", "entry", c.Entry.String(), "reason", c.Message)
				}
			}
			if w.OnApply != nil {
				w.OnApply(rep, err)
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			logger.Warn("seed watcher error", "path", path, "error", err)
		}
	}
}
