// Package serverflags implements spec.md §4.6 step 6 and §6's server-flags
// directory: a small directory whose contents gate process behavior purely
// by file presence. Today that's just $flags/drain, which forces the
// health check to fail from startup — an operator drops the file in before
// a maintenance window and removes it afterward, no RPC or config reload
// needed.
package serverflags

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DrainFlagName is the file whose presence in the flags directory forces
// the health check to report unhealthy.
const DrainFlagName = "drain"

// CheckDrain reports whether $dir/drain currently exists.
func CheckDrain(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, DrainFlagName))
	return err == nil
}

// Watcher watches a flags directory and calls onChange(draining) whenever
// the drain flag's presence changes, debounced the way the teacher's
// FileWatcher/Debouncer pair debounces policy file reloads.
type Watcher struct {
	dir      string
	debounce time.Duration
	onChange func(draining bool)

	fsw *fsnotify.Watcher

	mu      sync.Mutex
	timer   *time.Timer
	last    bool
	stopCh  chan struct{}
	doneCh  chan struct{}
	started bool
}

// New creates a Watcher over dir. It does not start watching until Start is
// called.
func New(dir string, debounce time.Duration, onChange func(draining bool)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("serverflags: create fsnotify watcher: %w", err)
	}
	return &Watcher{
		dir:      dir,
		debounce: debounce,
		onChange: onChange,
		fsw:      fsw,
		last:     CheckDrain(dir),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Start adds the flags directory to the watch set and begins processing
// events on a background goroutine.
func (w *Watcher) Start() error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return nil
	}
	w.started = true
	w.mu.Unlock()

	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("serverflags: create flags dir: %w", err)
	}
	if err := w.fsw.Add(w.dir); err != nil {
		return fmt.Errorf("serverflags: watch flags dir: %w", err)
	}

	go w.run()
	return nil
}

// Stop stops watching and releases the underlying fsnotify watcher.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return nil
	}
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()

	return w.fsw.Close()
}

func (w *Watcher) run() {
	defer close(w.doneCh)

	for {
		select {
		case <-w.stopCh:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != DrainFlagName {
				continue
			}
			w.scheduleCheck()
		case _, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
		}
	}
}

func (w *Watcher) scheduleCheck() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.checkAndNotify)
}

func (w *Watcher) checkAndNotify() {
	current := CheckDrain(w.dir)

	w.mu.Lock()
	changed := current != w.last
	w.last = current
	w.mu.Unlock()

	if changed && w.onChange != nil {
		w.onChange(current)
	}
}
