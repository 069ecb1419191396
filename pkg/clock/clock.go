package clock

import (
	"sync"
	"time"
)

// Clock is the time source for anything that schedules work (job retries,
// stale-job detection, default recorded-at dates).
type Clock interface {
	Now() time.Time
}

type realClock struct{}

// New returns a clock backed by time.Now
func New() Clock {
	return realClock{}
}

func (realClock) Now() time.Time {
	return time.Now()
}

// ManagedClock is a hand-driven clock for tests
type ManagedClock struct {
	mu        sync.Mutex
	startTime time.Time
	offset    time.Duration
}

// NewManaged returns a ManagedClock frozen at startTime
func NewManaged(startTime time.Time) *ManagedClock {
	return &ManagedClock{startTime: startTime}
}

// Now returns the current managed time
func (c *ManagedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.startTime.Add(c.offset)
}

// WarpForward moves time forward by offset and returns the new time
func (c *ManagedClock) WarpForward(offset time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.offset += offset
	return c.startTime.Add(c.offset)
}

// OrReal returns c, or a real clock when c is nil.
func OrReal(c Clock) Clock {
	if c == nil {
		return New()
	}
	return c
}
