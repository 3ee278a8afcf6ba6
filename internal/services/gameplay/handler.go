// Package gameplay handles inbound client events against the session registry.
//
// Every handler follows the same order: look up the session, check preconditions, mutate,
// reply to the sender, then notify the other connection if the session status changed.
// Recoverable failures become failure replies; nothing is returned to the transport.
package gameplay

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/mcoot/duelsync-go/internal/component"
	"github.com/mcoot/duelsync-go/internal/dependencies/clock"
	"github.com/mcoot/duelsync-go/internal/ecs"
	"github.com/mcoot/duelsync-go/internal/model"
	"github.com/mcoot/duelsync-go/internal/protocol"
	"github.com/mcoot/duelsync-go/internal/services/broadcast"
	"github.com/mcoot/duelsync-go/internal/services/session"
)

// DefaultMaxSpeed caps the magnitude of a client-supplied velocity, in position units per tick
const DefaultMaxSpeed = 0.5

// Publisher receives a summary of every session whenever it changes
type Publisher interface {
	Publish(rec model.SessionRecord)
	Forget(id model.SessionID)
}

// NopPublisher discards records
type NopPublisher struct{}

// Publish discards rec
func (NopPublisher) Publish(model.SessionRecord) {}

// Forget does nothing
func (NopPublisher) Forget(model.SessionID) {}

// Config controls the handler
type Config struct {
	// MaxSpeed caps velocity magnitude. Zero or negative disables the cap.
	MaxSpeed float64
}

// binding is the slot a connection currently speaks for
type binding struct {
	session *session.Session
	number  model.PlayerNumber
}

// Handler dispatches client events. It must only be called from event loop turns.
type Handler struct {
	registry  *session.Registry
	clock     clock.Clock
	publisher Publisher
	config    Config
	bindings  map[broadcast.Conn]binding
	logger    *slog.Logger
}

// NewHandler creates a Handler over registry and registers itself for eviction and progress notices
func NewHandler(registry *session.Registry, clk clock.Clock, publisher Publisher, cfg Config, logger *slog.Logger) *Handler {
	if publisher == nil {
		publisher = NopPublisher{}
	}
	h := &Handler{
		registry:  registry,
		clock:     clk,
		publisher: publisher,
		config:    cfg,
		bindings:  make(map[broadcast.Conn]binding),
		logger:    logger.With(slog.String("component", "gameplay")),
	}
	registry.OnEvict(h.evicted)
	registry.OnProgress(h.progressed)
	return h
}

// HandleText decodes and dispatches one text frame. Frames that fail to decode are logged and dropped.
func (h *Handler) HandleText(conn broadcast.Conn, data []byte) {
	ev, err := protocol.DecodeClientEvent(data)
	if err != nil {
		h.logger.Warn("dropping invalid frame", slog.String("error", err.Error()))
		return
	}
	h.logger.Debug("client event", slog.String("type", ev.Tag()))
	h.Dispatch(conn, ev)
}

// HandleBinary drops a binary frame
func (h *Handler) HandleBinary(conn broadcast.Conn, data []byte) {
	h.logger.Warn("dropping frame",
		slog.String("error", model.ErrBinaryFrame.Error()),
		slog.Int("bytes", len(data)))
}

// Dispatch handles an already decoded event from conn
func (h *Handler) Dispatch(conn broadcast.Conn, ev protocol.ClientEvent) {
	ev.Accept(&request{h: h, conn: conn})
}

// HandleDisconnect releases conn's slot, if it still holds one, and tells the other player
func (h *Handler) HandleDisconnect(conn broadcast.Conn) {
	h.release(conn)
}

// Bound reports the session and player number conn speaks for
func (h *Handler) Bound(conn broadcast.Conn) (model.SessionID, model.PlayerNumber, bool) {
	b, ok := h.bindings[conn]
	if !ok {
		return "", 0, false
	}
	return b.session.ID, b.number, true
}

// request handles one event from one connection
type request struct {
	h    *Handler
	conn broadcast.Conn
}

// Ensure request handles every client event
var _ protocol.ClientEventVisitor = (*request)(nil)

func (r *request) VisitCreateNewSession(protocol.CreateNewSession) {
	h := r.h
	h.release(r.conn)

	sess := h.registry.Create()
	p := sess.SpawnPlayer(model.PlayerOne)
	h.bind(r.conn, sess, model.PlayerOne)
	sess.Recompute()

	r.reply(protocol.CreateNewSessionResponse{Result: protocol.Success(sess.ID, joined(sess, p.ID))})
	h.publish(sess)
}

func (r *request) VisitJoinSession(ev protocol.JoinSession) {
	h := r.h
	sess, err := h.lookup(ev.ID)
	if err != nil {
		r.reply(protocol.JoinSessionResponse{Result: protocol.Failure[protocol.SessionJoined](ev.ID, err)})
		return
	}
	if b, bound := h.bindings[r.conn]; bound && b.session == sess {
		r.reply(protocol.JoinSessionResponse{Result: protocol.Failure[protocol.SessionJoined](ev.ID, model.ErrAlreadyInSession)})
		return
	}
	if _, taken := sess.PlayerEntity(model.PlayerTwo); taken {
		r.reply(protocol.JoinSessionResponse{Result: protocol.Failure[protocol.SessionJoined](ev.ID, model.ErrSessionFull)})
		return
	}

	h.release(r.conn)
	p := sess.SpawnPlayer(model.PlayerTwo)
	h.bind(r.conn, sess, model.PlayerTwo)
	changed := sess.Recompute()

	r.reply(protocol.JoinSessionResponse{Result: protocol.Success(sess.ID, joined(sess, p.ID))})
	if changed {
		sess.Broadcaster.SendStatus(sess.ID, sess.Status, r.conn)
	}
	h.publish(sess)
}

func (r *request) VisitRejoinExistingSession(ev protocol.RejoinExistingSession) {
	h := r.h
	sess, err := h.lookup(ev.ID)
	if err != nil {
		r.reply(protocol.RejoinExistingSessionResponse{Result: protocol.Failure[protocol.SessionJoined](ev.ID, err)})
		return
	}
	p, ok := sess.FindPlayer(ev.PlayerID)
	if !ok {
		r.reply(protocol.RejoinExistingSessionResponse{Result: protocol.Failure[protocol.SessionJoined](ev.ID, model.ErrUnknownPlayer)})
		return
	}

	if b, bound := h.bindings[r.conn]; !bound || b.session != sess || b.number != p.Number {
		h.release(r.conn)
	}
	if prev := sess.Broadcaster.Connection(p.Number); prev != nil && prev != r.conn {
		// the stale handle no longer speaks for this slot
		delete(h.bindings, prev)
	}
	h.bind(r.conn, sess, p.Number)
	sess.Recompute()

	r.reply(protocol.RejoinExistingSessionResponse{Result: protocol.Success(sess.ID, joined(sess, p.ID))})
	sess.Broadcaster.SendStatus(sess.ID, sess.Status, r.conn)
	h.publish(sess)
}

func (r *request) VisitStartSessionGame(ev protocol.StartSessionGame) {
	h := r.h
	sess, err := h.lookup(ev.ID)
	if err != nil {
		r.reply(protocol.StartSessionGameResponse{Result: protocol.Failure[protocol.SessionStarted](ev.ID, err)})
		return
	}

	wasRunning := sess.Runner.Running()
	if err := sess.Start(); err != nil {
		r.reply(protocol.StartSessionGameResponse{Result: protocol.Failure[protocol.SessionStarted](ev.ID, err)})
		return
	}

	r.reply(protocol.StartSessionGameResponse{Result: protocol.Success(sess.ID, protocol.SessionStarted{
		ID:     sess.ID,
		Status: sess.Status,
	})})
	if !wasRunning {
		sess.Broadcaster.SendStatus(sess.ID, sess.Status, r.conn)
		h.publish(sess)
	}
}

func (r *request) VisitPlayerUpdate(ev protocol.PlayerUpdate) {
	h := r.h
	sess, err := h.lookup(ev.ID)
	if err != nil {
		h.logger.Warn("closing connection after update for unknown session",
			slog.String("session_id", string(ev.ID)))
		h.release(r.conn)
		_ = r.conn.Close()
		return
	}

	b, ok := h.bindings[r.conn]
	if !ok || b.session != sess {
		h.logger.Warn("dropping update",
			slog.String("session_id", string(ev.ID)),
			slog.String("error", model.ErrNotInSession.Error()))
		return
	}

	e, ok := sess.PlayerEntity(b.number)
	if !ok {
		panic(fmt.Sprintf("session %s: bound player %d has no entity", sess.ID, b.number))
	}
	*ecs.MustGet[component.Velocity](sess.Store, e) = ClampVelocity(ev.Vel, h.config.MaxSpeed)
	sess.Touch(h.clock.Now())
}

func (r *request) reply(ev protocol.ServerEvent) {
	broadcast.Send(r.conn, ev, r.h.logger)
}

func (h *Handler) lookup(id model.SessionID) (*session.Session, error) {
	sess, ok := h.registry.Lookup(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", model.ErrSessionNotFound, id)
	}
	return sess, nil
}

// bind points conn at slot n of sess. The slot is overwritten unconditionally.
func (h *Handler) bind(conn broadcast.Conn, sess *session.Session, n model.PlayerNumber) {
	sess.Broadcaster.UpdateConnection(n, conn)
	h.bindings[conn] = binding{session: sess, number: n}
}

// release detaches conn from whatever slot it holds. If it still occupied that slot, the
// session status is recomputed and the other player notified of any change.
func (h *Handler) release(conn broadcast.Conn) {
	b, ok := h.bindings[conn]
	if !ok {
		return
	}
	delete(h.bindings, conn)

	sess := b.session
	if !sess.Broadcaster.ClearConnection(b.number, conn) {
		return
	}
	if sess.Recompute() {
		sess.Broadcaster.SendStatus(sess.ID, sess.Status, nil)
	}
	sess.Logger().Info("player disconnected", slog.Int("player_number", int(b.number)))
	h.publish(sess)
}

func (h *Handler) evicted(sess *session.Session) {
	for conn, b := range h.bindings {
		if b.session == sess {
			delete(h.bindings, conn)
		}
	}
	h.publisher.Forget(sess.ID)
}

// progressed republishes a running session so its tick count stays current. It is not
// player activity, so UpdatedAt is left alone.
func (h *Handler) progressed(sess *session.Session) {
	h.publisher.Publish(sess.Record())
}

func (h *Handler) publish(sess *session.Session) {
	sess.Touch(h.clock.Now())
	h.publisher.Publish(sess.Record())
}

// joined builds the reply for a connection that now speaks for player id
func joined(sess *session.Session, id model.PlayerID) protocol.SessionJoined {
	players := sess.Players()
	states := make([]protocol.PlayerState, 0, len(players))
	for _, p := range players {
		states = append(states, protocol.PlayerState{
			Pos:              protocol.Vec2{X: p.Position.X, Z: p.Position.Z},
			PlayerID:         p.ID,
			PlayerAssignment: p.Number,
		})
	}
	return protocol.SessionJoined{
		ID:                  sess.ID,
		MyPlayerID:          id,
		Status:              sess.Status,
		InitialPlayersState: states,
	}
}

// ClampVelocity converts a client vector into a velocity no faster than maxSpeed.
// Non-finite components zero the whole vector.
func ClampVelocity(v protocol.Vec2, maxSpeed float64) component.Velocity {
	if !finite(v.X) || !finite(v.Z) {
		return component.Velocity{}
	}
	vel := component.Velocity{X: v.X, Z: v.Z}
	if maxSpeed <= 0 {
		return vel
	}
	if mag := math.Hypot(vel.X, vel.Z); mag > maxSpeed {
		scale := maxSpeed / mag
		vel.X *= scale
		vel.Z *= scale
	}
	return vel
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
