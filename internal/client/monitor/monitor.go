// Package monitor tracks operator inactivity on the client side and logs the
// operator out before the server-side session window closes.
package monitor

import (
	"context"
	"sync"
	"time"
)

// State is the position of the monitor in its lifecycle.
type State int

const (
	// Active means recent activity was observed.
	Active State = iota
	// Warning means the session expires soon unless activity is observed.
	Warning
	// Extended is passed through when activity arrives during Warning.
	Extended
	// Expired is terminal: the session was closed.
	Expired
)

func (s State) String() string {
	switch s {
	case Active:
		return "active"
	case Warning:
		return "warning"
	case Extended:
		return "extended"
	case Expired:
		return "expired"
	default:
		return "unknown"
	}
}

// Callbacks are invoked by the monitor. Every field is optional.
type Callbacks struct {
	// Countdown is called on every tick spent in Warning with the time left.
	Countdown func(remaining time.Duration)
	// Extended is called when activity ends a Warning.
	Extended func()
	// Logout closes the server session. Its error is ignored.
	Logout func(ctx context.Context) error
	// Expired is called after Logout, to return the operator to the login prompt.
	Expired func()
}

// Monitor is the Active, Warning, Extended, Expired state machine.
type Monitor struct {
	timeout  time.Duration
	warning  time.Duration
	interval time.Duration
	now      func() time.Time
	cb       Callbacks

	mu           sync.Mutex
	state        State
	lastActivity time.Time
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) { m.now = now }
}

// WithInterval changes how often Run evaluates the clock.
func WithInterval(d time.Duration) Option {
	return func(m *Monitor) { m.interval = d }
}

// New creates a monitor in the Active state. warning is clamped to
// [0, timeout).
func New(timeout, warning time.Duration, cb Callbacks, opts ...Option) *Monitor {
	if warning < 0 || warning >= timeout {
		warning = 0
	}
	m := &Monitor{
		timeout:  timeout,
		warning:  warning,
		interval: time.Second,
		now:      time.Now,
		cb:       cb,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.lastActivity = m.now()
	return m
}

// State returns the current state.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Touch records operator activity. It has no effect once Expired.
func (m *Monitor) Touch() {
	m.mu.Lock()
	if m.state == Expired {
		m.mu.Unlock()
		return
	}
	m.lastActivity = m.now()
	wasWarning := m.state == Warning
	if wasWarning {
		m.state = Extended
	}
	m.mu.Unlock()

	if wasWarning && m.cb.Extended != nil {
		m.cb.Extended()
	}

	m.mu.Lock()
	if m.state == Extended {
		m.state = Active
	}
	m.mu.Unlock()
}

// Tick evaluates the clock once and returns the resulting state.
func (m *Monitor) Tick(ctx context.Context) State {
	m.mu.Lock()
	if m.state == Expired {
		m.mu.Unlock()
		return Expired
	}
	elapsed := m.now().Sub(m.lastActivity)
	switch {
	case elapsed >= m.timeout:
		m.state = Expired
	case elapsed >= m.timeout-m.warning && m.warning > 0:
		m.state = Warning
	default:
		m.state = Active
	}
	state := m.state
	m.mu.Unlock()

	switch state {
	case Warning:
		if m.cb.Countdown != nil {
			m.cb.Countdown(m.timeout - elapsed)
		}
	case Expired:
		m.expire(ctx)
	}
	return state
}

func (m *Monitor) expire(ctx context.Context) {
	if m.cb.Logout != nil {
		_ = m.cb.Logout(ctx)
	}
	if m.cb.Expired != nil {
		m.cb.Expired()
	}
}

// Run ticks until the monitor expires or ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) State {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return m.State()
		case <-ticker.C:
			if m.Tick(ctx) == Expired {
				return Expired
			}
		}
	}
}
