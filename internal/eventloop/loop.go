// Package eventloop runs every state-mutating operation of the server as a discrete turn on a
// single goroutine. Network read pumps and timers never touch session state directly; they post
// turns here. Only one turn runs at a time, so session state needs no locks.
package eventloop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
)

// DefaultQueueSize is the turn buffer used when New is given a non-positive size
const DefaultQueueSize = 1024

// ErrStopped is returned when a turn is posted to a loop that has stopped
var ErrStopped = errors.New("event loop stopped")

// Executor accepts turns for execution
type Executor interface {
	// Do schedules fn as a turn. It returns false if the turn will never run.
	Do(fn func()) bool
}

// Loop is a single-goroutine turn executor
type Loop struct {
	turns    chan func()
	done     chan struct{}
	stopOnce sync.Once
	logger   *slog.Logger

	turnCount  atomic.Uint64
	panicCount atomic.Uint64
}

// Ensure Loop implements Executor
var _ Executor = (*Loop)(nil)

// New creates a Loop. Call Run to start processing turns.
func New(logger *slog.Logger, queueSize int) *Loop {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Loop{
		turns:  make(chan func(), queueSize),
		done:   make(chan struct{}),
		logger: logger.With(slog.String("component", "eventloop")),
	}
}

// Run processes turns until ctx is cancelled. Turns still queued at that point are dropped.
func (l *Loop) Run(ctx context.Context) {
	l.logger.Info("event loop started")
	defer l.stop()
	for {
		select {
		case <-ctx.Done():
			l.logger.Info("event loop stopped",
				slog.Uint64("turns", l.turnCount.Load()),
				slog.Uint64("panics", l.panicCount.Load()))
			return
		case fn := <-l.turns:
			l.runTurn(fn)
		}
	}
}

// Do posts fn as a turn. It blocks while the queue is full and returns false once the loop has stopped.
// Do must not be called from inside a turn when the queue may be full.
func (l *Loop) Do(fn func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}
	select {
	case l.turns <- fn:
		return true
	case <-l.done:
		return false
	}
}

// Call posts fn as a turn and waits for it to finish
func (l *Loop) Call(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	if !l.Do(func() {
		defer close(finished)
		fn()
	}) {
		return ErrStopped
	}
	select {
	case <-finished:
		return nil
	case <-l.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed once the loop has stopped
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Turns returns the number of turns executed so far
func (l *Loop) Turns() uint64 {
	return l.turnCount.Load()
}

// Panics returns the number of turns that panicked
func (l *Loop) Panics() uint64 {
	return l.panicCount.Load()
}

func (l *Loop) stop() {
	l.stopOnce.Do(func() {
		close(l.done)
	})
}

// runTurn executes one turn. A panicking turn signals a broken invariant: it is logged with its
// stack and abandons only that turn.
func (l *Loop) runTurn(fn func()) {
	defer func() {
		if err := recover(); err != nil {
			l.panicCount.Add(1)
			l.logger.Error("invariant violation in turn",
				slog.String("error", fmt.Sprint(err)),
				slog.String("stack", string(debug.Stack())),
			)
		}
	}()
	l.turnCount.Add(1)
	fn()
}

// Inline runs turns immediately on the calling goroutine. It is meant for tests and for
// code that already runs inside a turn.
type Inline struct{}

// Do runs fn immediately
func (Inline) Do(fn func()) bool {
	fn()
	return true
}
