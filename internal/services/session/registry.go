package session

import (
	"log/slog"
	"sort"
	"time"

	"github.com/mcoot/duelsync-go/internal/dependencies/clock"
	"github.com/mcoot/duelsync-go/internal/dependencies/random"
	"github.com/mcoot/duelsync-go/internal/ecs"
	"github.com/mcoot/duelsync-go/internal/eventloop"
	"github.com/mcoot/duelsync-go/internal/model"
	"github.com/mcoot/duelsync-go/internal/services/broadcast"
	"github.com/mcoot/duelsync-go/internal/services/tick"
)

// EvictionPolicy decides which sessions a sweep removes
type EvictionPolicy interface {
	ShouldEvict(s *Session, now time.Time) bool
}

// NeverEvict keeps every session for the life of the process
type NeverEvict struct{}

// ShouldEvict always returns false
func (NeverEvict) ShouldEvict(*Session, time.Time) bool {
	return false
}

// IdleTimeout evicts sessions with no open connection and no activity for Timeout
type IdleTimeout struct {
	Timeout time.Duration
}

// ShouldEvict reports whether s has been abandoned for at least Timeout
func (p IdleTimeout) ShouldEvict(s *Session, now time.Time) bool {
	if s.Broadcaster.OpenCount() > 0 {
		return false
	}
	return now.Sub(s.UpdatedAt) >= p.Timeout
}

// Config controls sessions created by a Registry
type Config struct {
	TickPeriod time.Duration
	Policy     EvictionPolicy
	// ProgressEvery is the number of passes between progress notices. Zero disables them.
	ProgressEvery uint64
}

// Registry maps session ids to live sessions. It is owned by a single event loop.
type Registry struct {
	sessions map[model.SessionID]*Session
	clock    clock.Clock
	random   random.Random
	exec     eventloop.Executor
	config   Config
	onEvict  func(*Session)
	onTicks  func(*Session)
	logger   *slog.Logger
}

// NewRegistry creates an empty Registry
func NewRegistry(clk clock.Clock, rnd random.Random, exec eventloop.Executor, cfg Config, logger *slog.Logger) *Registry {
	if cfg.Policy == nil {
		cfg.Policy = NeverEvict{}
	}
	if cfg.TickPeriod <= 0 {
		cfg.TickPeriod = tick.PeriodForRate(tick.DefaultRate)
	}
	return &Registry{
		sessions: make(map[model.SessionID]*Session),
		clock:    clk,
		random:   rnd,
		exec:     exec,
		config:   cfg,
		logger:   logger.With(slog.String("component", "session_registry")),
	}
}

// OnEvict registers fn to be called with every session removed from the registry
func (r *Registry) OnEvict(fn func(*Session)) {
	r.onEvict = fn
}

// OnProgress registers fn to be called with a running session every ProgressEvery passes
func (r *Registry) OnProgress(fn func(*Session)) {
	r.onTicks = fn
}

// Create makes a new session with a unique id, empty slots and status AWAITING_PLAYERS
func (r *Registry) Create() *Session {
	id := r.newSessionID()
	now := r.clock.Now()
	logger := r.logger.With(slog.String("session_id", string(id)))

	store := ecs.NewStore()
	s := &Session{
		ID:          id,
		Status:      model.StatusAwaitingPlayers,
		Store:       store,
		Broadcaster: broadcast.New(store, logger),
		CreatedAt:   now,
		UpdatedAt:   now,
		random:      r.random,
		logger:      logger,
	}
	s.Runner = tick.NewRunner(r.clock, r.exec, r.config.TickPeriod, s.pass, logger)
	if every := r.config.ProgressEvery; every > 0 {
		s.Runner.AfterPass(func() {
			if r.onTicks != nil && s.Runner.Ticks()%every == 0 {
				r.onTicks(s)
			}
		})
	}

	r.sessions[id] = s
	logger.Info("session created")
	return s
}

func (r *Registry) newSessionID() model.SessionID {
	for {
		id := model.SessionID(r.random.UUID())
		if _, exists := r.sessions[id]; !exists {
			return id
		}
		r.logger.Warn("session id collision, regenerating", slog.String("session_id", string(id)))
	}
}

// Lookup returns the session with the given id. Ids are compared exactly.
func (r *Registry) Lookup(id model.SessionID) (*Session, bool) {
	s, ok := r.sessions[id]
	return s, ok
}

// Remove stops and forgets a session, then calls the eviction hook. It returns false if the id is unknown.
func (r *Registry) Remove(id model.SessionID) bool {
	s, ok := r.sessions[id]
	if !ok {
		return false
	}
	s.Stop()
	delete(r.sessions, id)
	s.logger.Info("session removed", slog.Uint64("ticks", s.Runner.Ticks()))
	if r.onEvict != nil {
		r.onEvict(s)
	}
	return true
}

// Sweep removes every session the eviction policy selects, returning their ids
func (r *Registry) Sweep(now time.Time) []model.SessionID {
	var evicted []model.SessionID
	for _, s := range r.Sessions() {
		if r.config.Policy.ShouldEvict(s, now) {
			r.Remove(s.ID)
			evicted = append(evicted, s.ID)
		}
	}
	if len(evicted) > 0 {
		r.logger.Info("evicted idle sessions", slog.Int("count", len(evicted)))
	}
	return evicted
}

// Len returns the number of live sessions
func (r *Registry) Len() int {
	return len(r.sessions)
}

// Sessions returns every live session ordered by creation time, then id
func (r *Registry) Sessions() []*Session {
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Shutdown stops every session's tick runner
func (r *Registry) Shutdown() {
	for _, s := range r.sessions {
		s.Stop()
	}
}
