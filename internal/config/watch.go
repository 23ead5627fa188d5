package config

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ReloadFunc is called with the freshly-loaded Gateway after gateway.json
// changes on disk.
type ReloadFunc func(*Gateway)

// Watcher hot-reloads gateway.json via fsnotify, mirroring nexus's
// skills.Manager file-watch pattern: watch the parent directory (editors
// often replace-by-rename rather than write-in-place), debounce bursts of
// events, then re-load and invoke onReload.
type Watcher struct {
	path      string
	onReload  ReloadFunc
	logger    *slog.Logger
	debounce  time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewWatcher creates a Watcher for path. Call Start to begin watching.
func NewWatcher(path string, onReload ReloadFunc, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{path: path, onReload: onReload, logger: logger.With("component", "config-watcher"), debounce: 250 * time.Millisecond}
}

// Start begins watching until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	dir := filepath.Dir(w.path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return err
	}

	watchCtx, cancel := context.WithCancel(ctx)
	w.mu.Lock()
	w.cancel = cancel
	w.mu.Unlock()

	go w.loop(watchCtx, watcher)
	return nil
}

// Stop ends the watch.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		w.cancel()
	}
}

func (w *Watcher) loop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer watcher.Close()

	var timer *time.Timer
	reload := func() {
		g, err := Load(w.path)
		if err != nil {
			w.logger.Warn("config reload failed", "error", err)
			return
		}
		w.onReload(g)
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, reload)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watcher error", "error", err)
		}
	}
}
