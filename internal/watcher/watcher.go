// Package watcher detects modifications made to the database file by other
// processes and reports them as a single debounced external-change signal.
//
// The database component marks a window around its own commits so the
// watcher can tell self-originated writes from truly external ones; only
// the latter are reported. Detection is best-effort: it rides on the
// platform's filesystem notification primitive via fsnotify.
package watcher

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/avickers/tempo/internal/debug"
)

// State is the watcher lifecycle state.
type State int32

const (
	StateIdle State = iota
	StateWatching
	StateSuppressing
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateWatching:
		return "watching"
	case StateSuppressing:
		return "suppressing"
	case StateStopped:
		return "stopped"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// ErrStopped is returned when starting a watcher that was already stopped.
// Stopped is terminal.
var ErrStopped = errors.New("watcher stopped")

// DefaultDebounce collapses rapid successive external writes into one
// notification. Tunable via the watch-debounce-ms setting.
const DefaultDebounce = 500 * time.Millisecond

// Watcher observes one database file. The onChange callback runs on the
// watcher's own goroutine once per debounced burst of external writes;
// redelivery onto the consumer's thread is handled by whoever wires the
// callback, not by subscribers.
type Watcher struct {
	path     string
	debounce time.Duration
	onChange func()

	state atomic.Int32

	mu            sync.Mutex
	selfWrite     time.Time
	suppressTimer *time.Timer

	fsw      *fsnotify.Watcher
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New prepares a watcher for the database file at path. The watcher is Idle
// until Start.
func New(path string, debounce time.Duration, onChange func()) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		path:     filepath.Clean(path),
		debounce: debounce,
		onChange: onChange,
		done:     make(chan struct{}),
	}
}

// Start begins observation of the file's directory. A failure to start the
// filesystem primitive moves the watcher to Stopped and returns the error;
// callers treat that as a degraded condition, not a fatal one.
func (w *Watcher) Start() error {
	if w.State() == StateStopped {
		return ErrStopped
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		w.state.Store(int32(StateStopped))
		return fmt.Errorf("starting file watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(w.path)); err != nil {
		_ = fsw.Close()
		w.state.Store(int32(StateStopped))
		return fmt.Errorf("watching %s: %w", filepath.Dir(w.path), err)
	}

	w.fsw = fsw
	w.state.Store(int32(StateWatching))
	w.wg.Add(1)
	go w.loop()
	return nil
}

// State returns the current lifecycle state.
func (w *Watcher) State() State {
	return State(w.state.Load())
}

// MarkSelfWrite opens a suppression window: file events arriving within it
// are attributed to this process's own commit and dropped. The database
// layer calls this around every committed write.
func (w *Watcher) MarkSelfWrite() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.selfWrite = time.Now()
	w.state.CompareAndSwap(int32(StateWatching), int32(StateSuppressing))

	window := w.suppressWindow()
	if w.suppressTimer != nil {
		w.suppressTimer.Stop()
	}
	w.suppressTimer = time.AfterFunc(window, func() {
		w.state.CompareAndSwap(int32(StateSuppressing), int32(StateWatching))
	})
}

// Stop ends observation and releases the OS watch handle. Safe to call
// more than once; the watcher cannot be restarted afterwards.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		w.state.Store(int32(StateStopped))
		close(w.done)
		w.mu.Lock()
		if w.suppressTimer != nil {
			w.suppressTimer.Stop()
		}
		w.mu.Unlock()
		if w.fsw != nil {
			_ = w.fsw.Close()
		}
		w.wg.Wait()
	})
}

// suppressWindow is how long after a self-write marker events stay
// attributed to this process. Twice the debounce covers the burst of
// journal/WAL events a single commit produces.
func (w *Watcher) suppressWindow() time.Duration {
	return 2 * w.debounce
}

func (w *Watcher) suppressed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.selfWrite.IsZero() {
		return false
	}
	since := time.Since(w.selfWrite)
	return since >= 0 && since < w.suppressWindow()
}

// matches reports whether an event path refers to the database file or one
// of SQLite's sidecar files.
func (w *Watcher) matches(name string) bool {
	base := filepath.Base(w.path)
	got := filepath.Base(filepath.Clean(name))
	switch got {
	case base, base + "-wal", base + "-shm", base + "-journal":
		return true
	}
	return false
}

func (w *Watcher) loop() {
	defer w.wg.Done()

	var debounceTimer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-w.done:
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !w.matches(ev.Name) {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if w.suppressed() {
				debug.Logf("watcher: suppressing self-originated event %s", ev)
				continue
			}
			if debounceTimer == nil {
				debounceTimer = time.NewTimer(w.debounce)
				fire = debounceTimer.C
			} else {
				if !debounceTimer.Stop() {
					select {
					case <-debounceTimer.C:
					default:
					}
				}
				debounceTimer.Reset(w.debounce)
			}

		case <-fire:
			debounceTimer = nil
			fire = nil
			if w.State() == StateStopped {
				return
			}
			debug.Logf("watcher: external change on %s", w.path)
			w.onChange()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			debug.Logf("watcher: fsnotify error: %v", err)
		}
	}
}
