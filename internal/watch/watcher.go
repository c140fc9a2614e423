// Package watch reruns a job whenever a file settles after being rewritten.
//
// Build tools usually replace a jar by writing a temp file and renaming it
// over the old one, so the watcher follows the parent directory and filters
// events by name.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce is how long a file must stay quiet before the job runs.
const DefaultDebounce = 500 * time.Millisecond

// Job is the work run after each settled change. Its error is logged and
// counted; watching continues.
type Job func(ctx context.Context) error

// Stats tracks watcher activity.
type Stats struct {
	Events    int
	Runs      int
	Errors    int
	LastEvent time.Time
	LastOp    string
}

// Watcher follows a single file.
type Watcher struct {
	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	path     string
	debounce time.Duration
	logger   *zap.Logger
	pending  time.Time // zero when nothing is waiting
	stats    Stats
}

// New creates a Watcher for path. A non-positive debounce uses DefaultDebounce.
func New(path string, debounce time.Duration, logger *zap.Logger) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}
	return &Watcher{
		watcher:  fw,
		path:     abs,
		debounce: debounce,
		logger:   logger,
	}, nil
}

// Run blocks until ctx is done, calling job once per settled change. The
// underlying watcher is closed on return.
func (w *Watcher) Run(ctx context.Context, job Job) error {
	defer w.watcher.Close()

	tick := max(w.debounce/5, 10*time.Millisecond)
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	w.logger.Info("Watching input", zap.String("path", w.path), zap.Duration("debounce", w.debounce))
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("Watcher error", zap.Error(err))
			w.mu.Lock()
			w.stats.Errors++
			w.mu.Unlock()

		case <-ticker.C:
			if w.settled() {
				w.runJob(ctx, job)
			}
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != w.path {
		return
	}
	var op string
	switch {
	case event.Op&fsnotify.Create != 0:
		op = "create"
	case event.Op&fsnotify.Write != 0:
		op = "modify"
	default:
		// Removal is followed by a create when the file is replaced.
		return
	}
	w.logger.Debug("Input changed", zap.String("op", op))

	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending = time.Now()
	w.stats.Events++
	w.stats.LastEvent = w.pending
	w.stats.LastOp = op
}

// settled reports whether a pending change has been quiet for the debounce
// window, clearing it if so.
func (w *Watcher) settled() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.pending.IsZero() || time.Since(w.pending) < w.debounce {
		return false
	}
	w.pending = time.Time{}
	return true
}

func (w *Watcher) runJob(ctx context.Context, job Job) {
	err := job(ctx)
	w.mu.Lock()
	w.stats.Runs++
	if err != nil {
		w.stats.Errors++
	}
	w.mu.Unlock()
	if err != nil {
		w.logger.Error("Rerun failed", zap.Error(err))
	}
}

// Stats returns a snapshot of the watcher's counters.
func (w *Watcher) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}
