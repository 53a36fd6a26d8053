package core

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce coalesces bursts of file events into one re-run.
const DefaultDebounce = 1 * time.Second

// Watcher re-runs a callback when any of a set of files is written or recreated.
type Watcher struct {
	paths    []string
	debounce time.Duration
	ui       UICallback
	logger   *slog.Logger
}

// NewWatcher creates a watcher for paths. Parent directories are watched too so
// that editors which replace files atomically still trigger a re-run.
func NewWatcher(paths []string, ui UICallback, logger *slog.Logger) *Watcher {
	if ui == nil {
		ui = &SilentUICallback{}
	}
	if logger == nil {
		logger = DiscardLogger()
	}
	abs := make([]string, 0, len(paths))
	for _, p := range paths {
		if a, err := filepath.Abs(p); err == nil {
			p = a
		}
		abs = append(abs, filepath.Clean(p))
	}
	return &Watcher{paths: abs, debounce: DefaultDebounce, ui: ui, logger: logger}
}

// WithDebounce overrides the debounce delay.
func (w *Watcher) WithDebounce(d time.Duration) *Watcher {
	w.debounce = d
	return w
}

// Watch blocks until ctx is done, calling onChange after each debounced change.
// onChange never runs concurrently with itself.
func (w *Watcher) Watch(ctx context.Context, onChange func(ctx context.Context, changed string) error) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	watched := make(map[string]bool, len(w.paths))
	dirs := map[string]bool{}
	for _, p := range w.paths {
		watched[p] = true
		dirs[filepath.Dir(p)] = true
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch directory %s: %w", dir, err)
		}
	}

	w.logger.Info("watching for changes", "paths", w.paths)

	var (
		mu            sync.Mutex
		running       sync.Mutex
		debounceTimer *time.Timer
		pending       string
	)
	defer func() {
		mu.Lock()
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
		mu.Unlock()
	}()

	fire := func() {
		mu.Lock()
		changed := pending
		mu.Unlock()

		running.Lock()
		defer running.Unlock()
		if ctx.Err() != nil {
			return
		}

		if _, err := os.Stat(changed); err != nil {
			w.ui.ShowWarning("File Not Found", fmt.Sprintf("%s was deleted or is inaccessible", changed))
			return
		}
		w.logger.Info("detected change", "file", filepath.Base(changed))
		if err := onChange(ctx, changed); err != nil {
			w.ui.ShowError("Re-run Failed", err.Error())
			return
		}
		w.ui.ShowSuccess(fmt.Sprintf("Re-run completed after change to %s", filepath.Base(changed)))
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			name := filepath.Clean(event.Name)
			if !watched[name] {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			mu.Lock()
			pending = name
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(w.debounce, fire)
			mu.Unlock()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "error", err)
		}
	}
}
