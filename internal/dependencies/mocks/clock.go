package mocks

import (
	"sort"
	"time"

	"github.com/mcoot/duelsync-go/internal/dependencies/clock"
)

// MockClock is a mock implementation of Clock for testing.
// Timers only fire from Advance, synchronously and in deadline order.
type MockClock struct {
	CurrentTime time.Time

	timers []*mockTimer
	seq    int
}

// Ensure MockClock implements Clock
var _ clock.Clock = (*MockClock)(nil)

type mockTimer struct {
	at      time.Time
	seq     int
	f       func()
	stopped bool
	fired   bool
}

// Stop cancels the timer
func (t *mockTimer) Stop() bool {
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// NewMockClock creates a MockClock set to the given time
func NewMockClock(t time.Time) *MockClock {
	return &MockClock{CurrentTime: t}
}

// Now returns the mocked current time
func (c *MockClock) Now() time.Time {
	return c.CurrentTime
}

// AfterFunc registers f to run once the clock has been advanced past d
func (c *MockClock) AfterFunc(d time.Duration, f func()) clock.Timer {
	if d < 0 {
		d = 0
	}
	c.seq++
	t := &mockTimer{at: c.CurrentTime.Add(d), seq: c.seq, f: f}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves the clock forward by the given duration, firing every timer that falls due.
// Timers scheduled by fired callbacks also fire if they are due before the target time.
func (c *MockClock) Advance(d time.Duration) {
	target := c.CurrentTime.Add(d)
	for {
		next := c.nextDue(target)
		if next == nil {
			break
		}
		if next.at.After(c.CurrentTime) {
			c.CurrentTime = next.at
		}
		next.fired = true
		next.f()
	}
	if target.After(c.CurrentTime) {
		c.CurrentTime = target
	}
	c.compact()
}

// Set sets the clock to the given time without firing timers
func (c *MockClock) Set(t time.Time) {
	c.CurrentTime = t
}

// PendingTimers returns the number of timers that have neither fired nor been stopped
func (c *MockClock) PendingTimers() int {
	count := 0
	for _, t := range c.timers {
		if !t.fired && !t.stopped {
			count++
		}
	}
	return count
}

func (c *MockClock) nextDue(target time.Time) *mockTimer {
	var due []*mockTimer
	for _, t := range c.timers {
		if !t.fired && !t.stopped && !t.at.After(target) {
			due = append(due, t)
		}
	}
	if len(due) == 0 {
		return nil
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].at.Equal(due[j].at) {
			return due[i].seq < due[j].seq
		}
		return due[i].at.Before(due[j].at)
	})
	return due[0]
}

func (c *MockClock) compact() {
	live := c.timers[:0]
	for _, t := range c.timers {
		if !t.fired && !t.stopped {
			live = append(live, t)
		}
	}
	c.timers = live
}
