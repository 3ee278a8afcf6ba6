// Package tick drives a session's fixed-rate simulation passes.
package tick

import (
	"log/slog"
	"time"

	"github.com/mcoot/duelsync-go/internal/dependencies/clock"
	"github.com/mcoot/duelsync-go/internal/eventloop"
)

// DefaultRate is the nominal number of passes per second
const DefaultRate = 60

// PeriodForRate converts a rate in passes per second into a period.
// Non-positive rates fall back to DefaultRate.
func PeriodForRate(rate int) time.Duration {
	if rate <= 0 {
		rate = DefaultRate
	}
	return time.Second / time.Duration(rate)
}

// Runner is a self-rescheduling timer that runs one pass per period.
// Every pass runs as a turn on the executor; Runner itself must only be used from turns.
type Runner struct {
	clock  clock.Clock
	exec   eventloop.Executor
	period time.Duration
	pass   func()
	after  func()
	logger *slog.Logger

	running     bool
	timer       clock.Timer
	generation  uint64
	ticks       uint64
	lastUpdated time.Time
}

// NewRunner creates a stopped Runner that calls pass once per period
func NewRunner(clk clock.Clock, exec eventloop.Executor, period time.Duration, pass func(), logger *slog.Logger) *Runner {
	if period <= 0 {
		period = PeriodForRate(DefaultRate)
	}
	return &Runner{
		clock:  clk,
		exec:   exec,
		period: period,
		pass:   pass,
		logger: logger,
	}
}

// AfterPass registers fn to run after every pass, once the tick counter has advanced
func (r *Runner) AfterPass(fn func()) {
	r.after = fn
}

// Start schedules the first pass one period from now. It returns false if the runner is already running.
func (r *Runner) Start() bool {
	if r.running {
		return false
	}
	r.running = true
	r.generation++
	r.lastUpdated = r.clock.Now()
	r.schedule(r.period)
	r.logger.Debug("tick runner started", slog.Duration("period", r.period))
	return true
}

// Stop cancels any pending pass. A pass already queued on the executor becomes a no-op.
func (r *Runner) Stop() {
	if !r.running {
		return
	}
	r.running = false
	r.generation++
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	r.logger.Debug("tick runner stopped", slog.Uint64("ticks", r.ticks))
}

// Running reports whether passes are being scheduled
func (r *Runner) Running() bool {
	return r.running
}

// Ticks returns the number of completed passes
func (r *Runner) Ticks() uint64 {
	return r.ticks
}

// LastUpdated returns the time the most recent pass finished, or the start time if none has run
func (r *Runner) LastUpdated() time.Time {
	return r.lastUpdated
}

// Period returns the nominal pass period
func (r *Runner) Period() time.Duration {
	return r.period
}

func (r *Runner) schedule(delay time.Duration) {
	gen := r.generation
	r.timer = r.clock.AfterFunc(delay, func() {
		r.exec.Do(func() { r.fire(gen) })
	})
}

// fire runs one pass and schedules the next after whatever remains of the period.
// An overrunning pass is followed immediately; passes are never skipped or batched.
func (r *Runner) fire(gen uint64) {
	if !r.running || gen != r.generation {
		return
	}
	started := r.clock.Now()
	r.pass()
	r.ticks++
	r.lastUpdated = r.clock.Now()
	if r.after != nil {
		r.after()
	}

	if !r.running || gen != r.generation {
		// the pass itself stopped the runner
		return
	}

	elapsed := r.lastUpdated.Sub(started)
	delay := r.period - elapsed
	if delay < 0 {
		r.logger.Warn("tick pass overran period",
			slog.Duration("elapsed", elapsed),
			slog.Duration("period", r.period))
		delay = 0
	}
	r.schedule(delay)
}
