package limiter

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Defaults for the login limiter.
const (
	DefaultWindow      = 15 * time.Minute
	DefaultMaxAttempts = 15
)

// Memory is an in-memory sliding-window limiter keyed by identifier.
// Timestamps outside the window are pruned lazily on each check, so idle
// entries cost nothing until touched again.
type Memory struct {
	mu       sync.Mutex
	attempts map[string][]time.Time
	window   time.Duration
	max      int
	clock    clockwork.Clock
}

var _ Limiter = (*Memory)(nil)

// NewMemory constructs a sliding-window limiter. A nil clock falls back to
// the real clock.
func NewMemory(window time.Duration, max int, clock clockwork.Clock) *Memory {
	if window <= 0 {
		window = DefaultWindow
	}
	if max <= 0 {
		max = DefaultMaxAttempts
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Memory{
		attempts: make(map[string][]time.Time),
		window:   window,
		max:      max,
		clock:    clock,
	}
}

// Allow prunes stale attempts, then either denies with the remaining cooldown
// or records the attempt and reports the remaining budget.
func (m *Memory) Allow(identifier string) Decision {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	recent := m.attempts[identifier][:0:0]
	for _, t := range m.attempts[identifier] {
		if now.Sub(t) < m.window {
			recent = append(recent, t)
		}
	}

	if len(recent) >= m.max {
		// Cooldown runs from the oldest attempt still inside the window.
		oldest := recent[0]
		for _, t := range recent[1:] {
			if t.Before(oldest) {
				oldest = t
			}
		}
		m.attempts[identifier] = recent
		return Decision{RetryAfter: m.window - now.Sub(oldest)}
	}

	recent = append(recent, now)
	m.attempts[identifier] = recent
	return Decision{Allowed: true, AttemptsLeft: m.max - len(recent)}
}

// Reset clears the ledger for the identifier outright.
func (m *Memory) Reset(identifier string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.attempts, identifier)
}
