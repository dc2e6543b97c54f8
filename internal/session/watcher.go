package session

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
)

// WatcherState is the idle watcher's lifecycle stage.
type WatcherState int32

const (
	// Disarmed: not started, stopped, or already fired.
	Disarmed WatcherState = iota
	// Armed: counting down to the idle deadline.
	Armed
	// Firing: the timeout callback is running.
	Firing
)

// Watcher enforces the inactivity timeout for an authenticated session.
// A single timer counts down the idle duration; any activity signal rearms
// it; firing invokes the callback exactly once. Stop tears the watcher down
// so no timer or goroutine outlives the session.
type Watcher struct {
	idle      time.Duration
	clock     clockwork.Clock
	onTimeout func()

	state    atomic.Int32
	activity chan struct{}
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewWatcher constructs an idle watcher. A nil clock falls back to the real
// clock; a non-positive idle duration falls back to the default.
func NewWatcher(idle time.Duration, clock clockwork.Clock, onTimeout func()) *Watcher {
	if idle <= 0 {
		idle = DefaultIdleTimeout
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Watcher{
		idle:      idle,
		clock:     clock,
		onTimeout: onTimeout,
		activity:  make(chan struct{}, 1),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start arms the watcher. It may be started once.
func (w *Watcher) Start() {
	if !w.state.CompareAndSwap(int32(Disarmed), int32(Armed)) {
		return
	}
	go w.run()
}

// Activity rearms the countdown. Safe to call from any goroutine; signals
// arriving while one is already pending coalesce.
func (w *Watcher) Activity() {
	select {
	case w.activity <- struct{}{}:
	default:
	}
}

// Stop disarms the watcher and releases its timer and goroutine. Idempotent,
// and safe to call from within the timeout callback.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() { close(w.stop) })
}

// State reports the current lifecycle stage.
func (w *Watcher) State() WatcherState {
	return WatcherState(w.state.Load())
}

// Done is closed when the watcher goroutine has fully exited.
func (w *Watcher) Done() <-chan struct{} { return w.done }

func (w *Watcher) run() {
	defer close(w.done)
	timer := w.clock.NewTimer(w.idle)
	defer timer.Stop()

	for {
		select {
		case <-timer.Chan():
			w.state.Store(int32(Firing))
			if w.onTimeout != nil {
				w.onTimeout()
			}
			w.state.Store(int32(Disarmed))
			return
		case <-w.activity:
			if !timer.Stop() {
				select {
				case <-timer.Chan():
				default:
				}
			}
			timer.Reset(w.idle)
		case <-w.stop:
			w.state.Store(int32(Disarmed))
			return
		}
	}
}
