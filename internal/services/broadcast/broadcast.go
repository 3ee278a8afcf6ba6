// Package broadcast maps a session's store and connection slots onto outbound frames.
package broadcast

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/mcoot/duelsync-go/internal/component"
	"github.com/mcoot/duelsync-go/internal/ecs"
	"github.com/mcoot/duelsync-go/internal/model"
	"github.com/mcoot/duelsync-go/internal/protocol"
)

// Conn is an outbound connection handle. Send must not block.
type Conn interface {
	Send(data []byte) error
	Close() error
	IsOpen() bool
}

// Broadcaster owns a session's two connection slots
type Broadcaster struct {
	store  *ecs.Store
	slots  [len(model.PlayerNumbers)]Conn
	logger *slog.Logger
}

// New creates a Broadcaster over store with both slots empty
func New(store *ecs.Store, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		store:  store,
		logger: logger,
	}
}

func slotIndex(n model.PlayerNumber) int {
	if !n.Valid() {
		panic(fmt.Sprintf("broadcast: %v: %d", model.ErrInvalidPlayerNumber, n))
	}
	return n.Index()
}

// UpdateConnection puts conn in slot n, replacing whatever was there.
// The previous connection is not closed.
func (b *Broadcaster) UpdateConnection(n model.PlayerNumber, conn Conn) {
	b.slots[slotIndex(n)] = conn
}

// ClearConnection empties slot n if it still holds conn. It returns false if the slot had
// already been given to another connection.
func (b *Broadcaster) ClearConnection(n model.PlayerNumber, conn Conn) bool {
	i := slotIndex(n)
	if b.slots[i] != conn {
		return false
	}
	b.slots[i] = nil
	return true
}

// Connection returns the connection in slot n, or nil
func (b *Broadcaster) Connection(n model.PlayerNumber) Conn {
	return b.slots[slotIndex(n)]
}

// IsOpen reports whether slot n holds an open connection
func (b *Broadcaster) IsOpen(n model.PlayerNumber) bool {
	c := b.slots[slotIndex(n)]
	return c != nil && c.IsOpen()
}

// OpenCount returns the number of slots holding an open connection
func (b *Broadcaster) OpenCount() int {
	count := 0
	for _, n := range model.PlayerNumbers {
		if b.IsOpen(n) {
			count++
		}
	}
	return count
}

// AllOpen reports whether every slot holds an open connection
func (b *Broadcaster) AllOpen() bool {
	return b.OpenCount() == len(model.PlayerNumbers)
}

// Snapshot builds the current positions frame: players in ascending player number order,
// then every damage-bearing position in creation order.
func (b *Broadcaster) Snapshot() protocol.PositionsUpdate {
	type placed struct {
		number model.PlayerNumber
		pos    protocol.PlayerPosition
	}
	var players []placed
	ecs.Each2(b.store, func(_ ecs.Entity, pos *component.Position, pa *component.PlayerAssignment) {
		players = append(players, placed{
			number: pa.PlayerNumber,
			pos:    protocol.PlayerPosition{X: pos.X, Z: pos.Z, PlayerID: pa.PlayerID},
		})
	})
	sort.SliceStable(players, func(i, j int) bool {
		return players[i].number < players[j].number
	})

	update := protocol.PositionsUpdate{
		PlayerPositions: make([]protocol.PlayerPosition, 0, len(players)),
		DamagePositions: []protocol.Vec2{},
	}
	for _, p := range players {
		update.PlayerPositions = append(update.PlayerPositions, p.pos)
	}
	ecs.Each2(b.store, func(_ ecs.Entity, pos *component.Position, _ *component.Damage) {
		update.DamagePositions = append(update.DamagePositions, protocol.Vec2{X: pos.X, Z: pos.Z})
	})
	return update
}

// Sync sends the current positions to every open slot. Empty and closed slots are skipped.
func (b *Broadcaster) Sync() {
	b.broadcast(protocol.MustEncode(b.Snapshot()), nil)
}

// SendStatus sends a status update to every open slot except the one holding except
func (b *Broadcaster) SendStatus(id model.SessionID, status model.SessionStatus, except Conn) {
	b.broadcast(protocol.MustEncode(protocol.GameStatusUpdate{SessionID: id, Status: status}), except)
}

// Send delivers ev to a single connection, typically as a reply
func (b *Broadcaster) Send(conn Conn, ev protocol.ServerEvent) {
	Send(conn, ev, b.logger)
}

func (b *Broadcaster) broadcast(data []byte, except Conn) {
	for i, c := range b.slots {
		if c == nil || c == except || !c.IsOpen() {
			continue
		}
		if err := c.Send(data); err != nil {
			b.logger.Debug("dropping frame for slot",
				slog.Int("player_number", i+1),
				slog.String("error", err.Error()))
		}
	}
}

// Send encodes ev and delivers it to conn, logging rather than returning delivery failures
func Send(conn Conn, ev protocol.ServerEvent, logger *slog.Logger) {
	if conn == nil || !conn.IsOpen() {
		return
	}
	if err := conn.Send(protocol.MustEncode(ev)); err != nil {
		logger.Debug("failed to send frame",
			slog.String("type", ev.Tag()),
			slog.String("error", err.Error()))
	}
}
