package integrity

import "sync"

// Signal names the browser-level events the client reports while a
// session is live. The set is fixed; unknown signals are ignored.
type Signal string

const (
	SignalContextMenu Signal = "contextmenu"
	SignalCopy        Signal = "copy"
	SignalCut         Signal = "cut"
	SignalPaste       Signal = "paste"
	SignalTabHidden   Signal = "visibility_hidden"
	SignalDevtools    Signal = "devtools_shortcut"
	SignalPrint       Signal = "print_shortcut"
)

// Kind classifies a counted violation.
type Kind string

const (
	KindClipboard Kind = "clipboard_attempt"
	KindTabSwitch Kind = "tab_switch"
	KindDevtools  Kind = "devtools_attempt"
	KindPrint     Kind = "print_attempt"
)

// kindOf maps signals to violation kinds. The context menu is absent:
// it is suppressed client-side but never counted.
var kindOf = map[Signal]Kind{
	SignalCopy:      KindClipboard,
	SignalCut:       KindClipboard,
	SignalPaste:     KindClipboard,
	SignalTabHidden: KindTabSwitch,
	SignalDevtools:  KindDevtools,
	SignalPrint:     KindPrint,
}

// Monitor counts integrity violations for one session. The counter is
// monotonically non-decreasing until ResetViolations. Reports are only
// honored while armed; arming and disarming are idempotent.
type Monitor struct {
	mu          sync.Mutex
	armed       bool
	count       int
	onViolation func(Kind, int)
}

// New creates a disarmed monitor. onViolation may be nil; when set it is
// invoked synchronously with the kind and the new count for every
// counted signal.
func New(onViolation func(Kind, int)) *Monitor {
	return &Monitor{onViolation: onViolation}
}

// Arm starts honoring reports. Arming twice has no extra effect.
func (m *Monitor) Arm() {
	m.mu.Lock()
	m.armed = true
	m.mu.Unlock()
}

// Disarm stops honoring reports. The count is preserved.
func (m *Monitor) Disarm() {
	m.mu.Lock()
	m.armed = false
	m.mu.Unlock()
}

// Armed reports whether the monitor currently honors signals.
func (m *Monitor) Armed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.armed
}

// Report feeds one signal through the monitor. It returns the violation
// kind and true when the signal was counted; suppressed-only signals
// (context menu), unknown signals, and reports while disarmed return
// false without touching the counter.
func (m *Monitor) Report(sig Signal) (Kind, bool) {
	m.mu.Lock()
	if !m.armed {
		m.mu.Unlock()
		return "", false
	}
	kind, counted := kindOf[sig]
	if !counted {
		m.mu.Unlock()
		return "", false
	}
	m.count++
	n := m.count
	cb := m.onViolation
	m.mu.Unlock()

	// Callback runs outside the lock so it may read Count() freely.
	if cb != nil {
		cb(kind, n)
	}
	return kind, true
}

// Count returns the violations recorded so far.
func (m *Monitor) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.count
}

// ResetViolations zeroes the counter. Only the session orchestrator
// calls this, when a new attempt begins.
func (m *Monitor) ResetViolations() {
	m.mu.Lock()
	m.count = 0
	m.mu.Unlock()
}
