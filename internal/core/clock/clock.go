// Package clock provides the authoritative server clock. Server time is a
// duration since the clock's epoch, so cooldown deadlines and effect expiry
// are exact integer comparisons.
package clock

import (
	"sync"
	"time"
)

// Clock reports the current server time.
type Clock interface {
	Now() time.Duration
}

// Monotonic measures server time from the moment it was created.
type Monotonic struct {
	start time.Time
}

func NewMonotonic() *Monotonic {
	return &Monotonic{start: time.Now()}
}

func (m *Monotonic) Now() time.Duration {
	return time.Since(m.start)
}

// Manual is a clock advanced explicitly. Used by tests and replay tools.
type Manual struct {
	mu  sync.Mutex
	now time.Duration
}

func NewManual(at time.Duration) *Manual {
	return &Manual{now: at}
}

func (m *Manual) Now() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Set moves the clock to t. Moving backwards is ignored.
func (m *Manual) Set(t time.Duration) {
	m.mu.Lock()
	if t > m.now {
		m.now = t
	}
	m.mu.Unlock()
}

func (m *Manual) Advance(d time.Duration) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d > 0 {
		m.now += d
	}
	return m.now
}

// Seconds converts a float second count into a server-time duration.
func Seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
