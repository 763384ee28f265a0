package assets

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
)

// Event kinds reported by Watch.
const (
	EventCreated = "created"
	EventUpdated = "updated"
	EventRemoved = "removed"
)

// EventCallback is called for every asset file change Watch observes.
type EventCallback func(kind string, name string)

const reconcileDelay = 200 * time.Millisecond

// Watch starts an fsnotify watcher on the asset directory and reports
// changes to asset files until ctx is cancelled. Temporary files and names
// outside the asset patterns are ignored.
//
// fsnotify reports a rename on the old name only, so renames schedule a
// debounced reconciliation against a directory listing.
func Watch(ctx context.Context, dir *Dir, logger *slog.Logger, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(dir.Root()); err != nil {
		return err
	}

	known := make(map[string]struct{})
	if names, err := dir.List(""); err == nil {
		for _, n := range names {
			known[n] = struct{}{}
		}
	}

	emit := func(kind, name string) {
		logger.Debug("assets watcher: "+kind, slog.String("name", name))
		if cb != nil {
			cb(kind, name)
		}
	}

	logger.Info("assets watcher: started", slog.String("root", dir.Root()), slog.Int("files", len(known)))

	var reconcileTimer *time.Timer
	var reconcileCh <-chan time.Time

	scheduleReconcile := func() {
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(reconcileDelay)
			reconcileCh = reconcileTimer.C
		} else {
			reconcileTimer.Reset(reconcileDelay)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reconcileTimer != nil {
				reconcileTimer.Stop()
			}
			logger.Info("assets watcher: stopped")
			return nil

		case <-reconcileCh:
			reconcile(dir, known, logger, emit)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			name := filepath.Base(ev.Name)
			if !isAsset(name) {
				// The atomic writer renames a temp file into place; the
				// Create for the final name may not arrive on every platform.
				if ev.Op&fsnotify.Rename != 0 {
					scheduleReconcile()
				}
				continue
			}

			switch {
			case ev.Op&fsnotify.Create != 0:
				known[name] = struct{}{}
				emit(EventCreated, name)
			case ev.Op&fsnotify.Write != 0:
				if _, seen := known[name]; !seen {
					known[name] = struct{}{}
					emit(EventCreated, name)
					continue
				}
				emit(EventUpdated, name)
			case ev.Op&fsnotify.Remove != 0:
				if _, seen := known[name]; seen {
					delete(known, name)
					emit(EventRemoved, name)
				}
			case ev.Op&fsnotify.Rename != 0:
				if _, seen := known[name]; seen {
					delete(known, name)
					emit(EventRemoved, name)
				}
				scheduleReconcile()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("assets watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// reconcile diffs the known set against the directory and emits the
// difference.
func reconcile(dir *Dir, known map[string]struct{}, logger *slog.Logger, emit func(kind, name string)) {
	names, err := dir.List("")
	if err != nil {
		logger.Warn("assets reconcile: list failed", slog.String("error", err.Error()))
		return
	}

	disk := make(map[string]struct{}, len(names))
	for _, n := range names {
		disk[n] = struct{}{}
		if _, ok := known[n]; !ok {
			known[n] = struct{}{}
			emit(EventCreated, n)
		}
	}
	for n := range known {
		if _, ok := disk[n]; !ok {
			delete(known, n)
			emit(EventRemoved, n)
		}
	}
}

func isAsset(name string) bool {
	if !ValidName(name) {
		return false
	}
	ok, _ := doublestar.Match(AllPattern, name)
	return ok
}
