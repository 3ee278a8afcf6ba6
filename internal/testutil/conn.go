package testutil

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mcoot/duelsync-go/internal/protocol"
)

// ErrFakeConnClosed is returned by FakeConn.Send after Close
var ErrFakeConnClosed = errors.New("fake connection closed")

// FakeConn is an in-memory connection that records every frame sent to it
type FakeConn struct {
	mu     sync.Mutex
	frames [][]byte
	closed bool
}

// NewFakeConn creates an open FakeConn
func NewFakeConn() *FakeConn {
	return &FakeConn{}
}

// Send records data
func (c *FakeConn) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrFakeConnClosed
	}
	c.frames = append(c.frames, append([]byte(nil), data...))
	return nil
}

// Close marks the connection closed
func (c *FakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// IsOpen reports whether Close has not been called
func (c *FakeConn) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed
}

// Frames returns a copy of every frame sent so far
func (c *FakeConn) Frames() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.frames...)
}

// Reset forgets recorded frames
func (c *FakeConn) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = nil
}

// Events decodes every frame sent so far
func (c *FakeConn) Events(t testing.TB) []protocol.ServerEvent {
	t.Helper()
	var events []protocol.ServerEvent
	for _, f := range c.Frames() {
		ev, err := protocol.DecodeServerEvent(f)
		require.NoError(t, err, "frame %s", f)
		events = append(events, ev)
	}
	return events
}

// LastEvent decodes the most recent frame, failing the test if none was sent
func (c *FakeConn) LastEvent(t testing.TB) protocol.ServerEvent {
	t.Helper()
	events := c.Events(t)
	require.NotEmpty(t, events, "no frames sent")
	return events[len(events)-1]
}

// EventsOfType returns the decoded frames whose concrete type is T
func EventsOfType[T protocol.ServerEvent](t testing.TB, c *FakeConn) []T {
	t.Helper()
	var out []T
	for _, ev := range c.Events(t) {
		if typed, ok := ev.(T); ok {
			out = append(out, typed)
		}
	}
	return out
}
