// Package session holds live sessions: their status, entity store, connection slots and tick runner.
// All methods must be called from event loop turns.
package session

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/mcoot/duelsync-go/internal/component"
	"github.com/mcoot/duelsync-go/internal/dependencies/random"
	"github.com/mcoot/duelsync-go/internal/ecs"
	"github.com/mcoot/duelsync-go/internal/model"
	"github.com/mcoot/duelsync-go/internal/services/broadcast"
	"github.com/mcoot/duelsync-go/internal/services/movement"
	"github.com/mcoot/duelsync-go/internal/services/tick"
)

// SpawnPositions is where each player's entity starts
var SpawnPositions = map[model.PlayerNumber]component.Position{
	model.PlayerOne: {X: -5, Z: 0},
	model.PlayerTwo: {X: 5, Z: 0},
}

// Session is one two-player match
type Session struct {
	ID          model.SessionID
	Status      model.SessionStatus
	Store       *ecs.Store
	Broadcaster *broadcast.Broadcaster
	Runner      *tick.Runner
	CreatedAt   time.Time
	UpdatedAt   time.Time

	random random.Random
	logger *slog.Logger
}

// Player is a read-only view of one player entity
type Player struct {
	Entity   ecs.Entity
	Number   model.PlayerNumber
	ID       model.PlayerID
	Position component.Position
}

// pass is one tick: integrate movement, then push positions to both slots
func (s *Session) pass() {
	movement.Step(s.Store)
	s.Broadcaster.Sync()
}

// Logger returns the session-scoped logger
func (s *Session) Logger() *slog.Logger {
	return s.logger
}

// Touch records activity at now
func (s *Session) Touch(now time.Time) {
	s.UpdatedAt = now
}

// SpawnPlayer creates the entity for player n with a fresh player id.
// It panics if player n already has an entity.
func (s *Session) SpawnPlayer(n model.PlayerNumber) Player {
	if !n.Valid() {
		panic(fmt.Sprintf("session %s: %v: %d", s.ID, model.ErrInvalidPlayerNumber, n))
	}
	if _, ok := s.PlayerEntity(n); ok {
		panic(fmt.Sprintf("session %s: player %d already spawned", s.ID, n))
	}

	id := s.newPlayerID()
	pos := SpawnPositions[n]
	e := s.Store.Spawn(
		ecs.With(pos),
		ecs.With(component.Velocity{}),
		ecs.With(component.PlayerAssignment{PlayerNumber: n, PlayerID: id}),
	)
	s.logger.Info("player spawned", slog.Int("player_number", int(n)), slog.String("player_id", string(id)))
	return Player{Entity: e, Number: n, ID: id, Position: pos}
}

func (s *Session) newPlayerID() model.PlayerID {
	for {
		id := model.PlayerID(s.random.UUID())
		if _, ok := s.FindPlayer(id); !ok {
			return id
		}
	}
}

// Players returns every player entity in ascending player number order
func (s *Session) Players() []Player {
	var players []Player
	ecs.Each2(s.Store, func(e ecs.Entity, pos *component.Position, pa *component.PlayerAssignment) {
		players = append(players, Player{Entity: e, Number: pa.PlayerNumber, ID: pa.PlayerID, Position: *pos})
	})
	sort.SliceStable(players, func(i, j int) bool {
		return players[i].Number < players[j].Number
	})
	return players
}

// PlayerEntity returns the entity assigned to player n
func (s *Session) PlayerEntity(n model.PlayerNumber) (ecs.Entity, bool) {
	for _, e := range s.Store.Query(ecs.TypeOf[component.PlayerAssignment]()) {
		if ecs.MustGet[component.PlayerAssignment](s.Store, e).PlayerNumber == n {
			return e, true
		}
	}
	return 0, false
}

// FindPlayer returns the player with the given id. Ids are compared exactly.
func (s *Session) FindPlayer(id model.PlayerID) (Player, bool) {
	for _, p := range s.Players() {
		if p.ID == id {
			return p, true
		}
	}
	return Player{}, false
}

// Recompute derives status from the runner and the slots, returning true if it changed
func (s *Session) Recompute() bool {
	var next model.SessionStatus
	switch {
	case s.Runner.Running():
		next = model.StatusPlaying
	case s.Broadcaster.AllOpen():
		next = model.StatusAwaitingStart
	default:
		next = model.StatusAwaitingPlayers
	}
	changed := next != s.Status
	if changed {
		s.logger.Info("session status changed",
			slog.String("from", string(s.Status)),
			slog.String("to", string(next)))
	}
	s.Status = next
	return changed
}

// Start begins ticking. Both slots must hold open connections. Starting a running session is a no-op.
func (s *Session) Start() error {
	if s.Runner.Running() {
		return nil
	}
	if !s.Broadcaster.AllOpen() {
		return fmt.Errorf("start session %s: %w", s.ID, model.ErrPlayersNotConnected)
	}
	s.Runner.Start()
	s.Recompute()
	return nil
}

// Stop halts ticking without changing status
func (s *Session) Stop() {
	s.Runner.Stop()
}

// Record summarises the session for the directory
func (s *Session) Record() model.SessionRecord {
	players := s.Players()
	rec := model.SessionRecord{
		ID:        s.ID,
		Status:    s.Status,
		Players:   make([]model.PlayerRecord, 0, len(players)),
		Ticks:     s.Runner.Ticks(),
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
	for _, p := range players {
		rec.Players = append(rec.Players, model.PlayerRecord{
			PlayerID:     p.ID,
			PlayerNumber: p.Number,
			Connected:    s.Broadcaster.IsOpen(p.Number),
		})
	}
	return rec
}
