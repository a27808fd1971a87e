package countdown

import (
	"fmt"
	"sync"
	"time"
)

// State enumerates the timer lifecycle: Idle → Running → {Stopped, Expired}.
// Stopped is resumable; Expired is terminal.
type State string

const (
	StateIdle    State = "IDLE"
	StateRunning State = "RUNNING"
	StateStopped State = "STOPPED"
	StateExpired State = "EXPIRED"
)

// Timer counts down an exam's allotted duration in whole seconds and
// invokes a completion callback exactly once on reaching zero. There is
// exactly one active ticker per timer: Start while Running is a no-op.
type Timer struct {
	mu        sync.Mutex
	initial   int
	remaining int
	state     State
	interval  time.Duration
	onExpire  func()
	fired     bool
	stopCh    chan struct{}
}

// Option tweaks timer construction.
type Option func(*Timer)

// WithInterval overrides the 1-second tick, for tests.
func WithInterval(d time.Duration) Option {
	return func(t *Timer) { t.interval = d }
}

// New creates an idle timer for minutes*60 seconds. onExpire may be nil.
func New(minutes int, onExpire func(), opts ...Option) *Timer {
	t := &Timer{
		initial:   minutes * 60,
		remaining: minutes * 60,
		state:     StateIdle,
		interval:  time.Second,
		onExpire:  onExpire,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start begins (or resumes) ticking. It is a no-op while already
// Running, after expiry, and when no time remains.
func (t *Timer) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state == StateRunning || t.state == StateExpired || t.remaining <= 0 {
		return
	}

	t.state = StateRunning
	t.stopCh = make(chan struct{})
	go t.run(t.stopCh)
}

// Stop cancels the pending tick and preserves the remaining time, so a
// later Start resumes where it left off. No-op unless Running.
func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != StateRunning {
		return
	}
	t.state = StateStopped
	close(t.stopCh)
	t.stopCh = nil
}

func (t *Timer) run(stop <-chan struct{}) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if expired, cb := t.tick(stop); expired {
				if cb != nil {
					cb()
				}
				return
			}
		}
	}
}

// tick decrements once. It returns the callback to invoke when the
// countdown just reached zero, guaranteeing the callback fires at most
// once even if Stop races the final tick.
func (t *Timer) tick(stop <-chan struct{}) (bool, func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	// A Stop that won the race invalidated this ticker.
	select {
	case <-stop:
		return true, nil
	default:
	}

	if t.state != StateRunning {
		return true, nil
	}

	t.remaining--
	if t.remaining > 0 {
		return false, nil
	}

	t.remaining = 0
	t.state = StateExpired
	if t.fired {
		return true, nil
	}
	t.fired = true
	return true, t.onExpire
}

// State returns the current lifecycle state.
func (t *Timer) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Remaining returns the seconds left on the clock.
func (t *Timer) Remaining() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remaining
}

// Progress returns elapsed time as a percentage in [0,100].
// A zero-duration timer reports 0 rather than dividing by zero.
func (t *Timer) Progress() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.initial == 0 {
		return 0
	}
	p := float64(t.initial-t.remaining) / float64(t.initial) * 100
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// Display renders the remaining time as zero-padded MM:SS.
func (t *Timer) Display() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return fmt.Sprintf("%02d:%02d", t.remaining/60, t.remaining%60)
}
