package watcher

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"modeswitch/pkg/logging"
)

const (
	// DefaultDebounce is the quiet period after the last event for a file
	// before its change is reported.
	DefaultDebounce = 500 * time.Millisecond

	// DefaultPollInterval is used when fsnotify is not available.
	DefaultPollInterval = 5 * time.Second
)

// Config holds configuration for a Watcher.
type Config struct {
	// Files are the absolute paths to watch.
	Files []string

	Debounce     time.Duration
	PollInterval time.Duration

	// OnChange is called with the path of a changed file.
	OnChange func(path string)
}

// Watcher monitors files for changes.
type Watcher struct {
	mu      sync.Mutex
	config  Config
	files   map[string]bool
	running bool
	stopCh  chan struct{}

	fsWatcher *fsnotify.Watcher

	// lastSeen tracks modification times for polling.
	lastSeen map[string]time.Time

	timersMu sync.Mutex
	timers   map[string]*time.Timer
}

// New creates a Watcher. It does not start watching.
func New(config Config) (*Watcher, error) {
	if len(config.Files) == 0 {
		return nil, errors.New("watcher requires at least one file")
	}
	if config.Debounce <= 0 {
		config.Debounce = DefaultDebounce
	}
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultPollInterval
	}

	files := make(map[string]bool, len(config.Files))
	for _, f := range config.Files {
		files[filepath.Clean(f)] = true
	}

	return &Watcher{
		config:   config,
		files:    files,
		lastSeen: make(map[string]time.Time),
		timers:   make(map[string]*time.Timer),
	}, nil
}

// Start begins watching. Starting a running watcher is a no-op.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}
	w.stopCh = make(chan struct{})
	w.running = true

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		logging.Warn("Watcher", "fsnotify not available, falling back to polling: %v", err)
		go w.poll(w.stopCh)
		return nil
	}

	for _, dir := range w.dirs() {
		if err := fsw.Add(dir); err != nil {
			logging.Warn("Watcher", "Cannot watch %s, falling back to polling: %v", dir, err)
			fsw.Close()
			go w.poll(w.stopCh)
			return nil
		}
	}

	w.fsWatcher = fsw
	go w.processEvents(w.stopCh, fsw.Events, fsw.Errors)

	logging.Info("Watcher", "Watching %d file(s) in %v", len(w.files), w.dirs())
	return nil
}

// Stop ends watching and cancels pending notifications.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return nil
	}
	w.running = false
	close(w.stopCh)

	w.timersMu.Lock()
	for path, t := range w.timers {
		t.Stop()
		delete(w.timers, path)
	}
	w.timersMu.Unlock()

	if w.fsWatcher != nil {
		if err := w.fsWatcher.Close(); err != nil {
			logging.Warn("Watcher", "Error closing fsnotify watcher: %v", err)
		}
		w.fsWatcher = nil
	}

	logging.Debug("Watcher", "Stopped")
	return nil
}

// IsRunning reports whether the watcher is active.
func (w *Watcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// dirs returns the existing parent directories of the watched files.
func (w *Watcher) dirs() []string {
	seen := make(map[string]bool)
	var out []string
	for f := range w.files {
		dir := filepath.Dir(f)
		if seen[dir] {
			continue
		}
		seen[dir] = true
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			out = append(out, dir)
		}
	}
	return out
}

// The channels are passed in so Stop can clear fsWatcher without racing.
func (w *Watcher) processEvents(stopCh <-chan struct{}, events <-chan fsnotify.Event, errs <-chan error) {
	for {
		select {
		case <-stopCh:
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-errs:
			if !ok {
				return
			}
			logging.Error("Watcher", err, "fsnotify error")
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	path := filepath.Clean(event.Name)
	if !w.files[path] {
		return
	}
	// Atomic replacement shows up as Create of the final name.
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}
	logging.Debug("Watcher", "%s: %s", event.Op, path)
	w.notifyDebounced(path)
}

func (w *Watcher) notifyDebounced(path string) {
	w.timersMu.Lock()
	defer w.timersMu.Unlock()

	if t, ok := w.timers[path]; ok {
		t.Stop()
	}
	w.timers[path] = time.AfterFunc(w.config.Debounce, func() {
		w.timersMu.Lock()
		delete(w.timers, path)
		w.timersMu.Unlock()

		w.mu.Lock()
		running := w.running
		callback := w.config.OnChange
		w.mu.Unlock()

		if running && callback != nil {
			callback(path)
		}
	})
}

func (w *Watcher) poll(stopCh <-chan struct{}) {
	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	w.checkForChanges()
	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			for _, path := range w.checkForChanges() {
				w.notifyDebounced(path)
			}
		}
	}
}

// checkForChanges records modification times and returns the files whose
// time moved since the previous check. Only the poll goroutine calls it.
func (w *Watcher) checkForChanges() []string {
	var changed []string
	for path := range w.files {
		var mod time.Time
		if info, err := os.Stat(path); err == nil {
			mod = info.ModTime()
		}
		if last, ok := w.lastSeen[path]; ok && !mod.Equal(last) {
			changed = append(changed, path)
		}
		w.lastSeen[path] = mod
	}
	return changed
}
