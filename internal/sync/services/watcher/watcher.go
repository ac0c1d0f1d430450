// Package watcher re-runs a reconcile pass whenever the local blocklist
// file changes, debouncing editor write bursts.
package watcher

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	logpkg "github.com/haukened/blocksync/internal/sync/common/log"
)

// ApplyFunc runs one reconcile pass.
type ApplyFunc func(ctx context.Context) error

// Watcher monitors one file and triggers an apply per settled change.
type Watcher struct {
	path     string
	debounce time.Duration
	logger   logpkg.Logger
}

// Options defines configuration parameters for the watcher.
type Options struct {
	Path     string
	Debounce time.Duration
	Logger   logpkg.Logger
}

// New creates a watcher for the given source file. Default debounce is
// two seconds.
func New(opts Options) (*Watcher, error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("watch path is required")
	}
	if opts.Debounce <= 0 {
		opts.Debounce = 2 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = logpkg.GetLogger()
	}
	return &Watcher{path: opts.Path, debounce: opts.Debounce, logger: opts.Logger}, nil
}

// Run blocks, invoking apply after each settled change to the file,
// until ctx is cancelled. The parent directory is watched rather than
// the file itself: editors and feed jobs typically replace the file,
// which would otherwise drop the watch.
func (w *Watcher) Run(ctx context.Context, apply ApplyFunc) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()

	dir := filepath.Dir(w.path)
	if err := fw.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	w.logger.Info(map[string]any{"path": w.path, "debounce": w.debounce.String()}, "watch_started")

	target := filepath.Clean(w.path)
	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-fw.Events:
			if !ok {
				return fmt.Errorf("watch channel closed")
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			w.logger.Debug(map[string]any{"op": ev.Op.String()}, "source_changed")
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return fmt.Errorf("watch channel closed")
			}
			w.logger.Warn(map[string]any{"error": err.Error()}, "watch_error")

		case <-timerC:
			timer = nil
			timerC = nil
			w.logger.Info(map[string]any{"path": w.path}, "source_settled_applying")
			if err := apply(ctx); err != nil {
				// a failed pass is reported and the watch continues; the
				// next change retries
				w.logger.Error(map[string]any{"error": err.Error()}, "apply_failed")
			}
		}
	}
}
