package protocol

import (
	"github.com/mcoot/duelsync-go/internal/model"
)

// ClientEvent is one of the events a client may send.
// The set is closed: only types in this package implement it.
type ClientEvent interface {
	Event
	Accept(v ClientEventVisitor)
	clientEvent()
}

// ClientEventVisitor handles every client event. Adding an event type adds a method here,
// so every handler fails to compile until it handles the new event.
type ClientEventVisitor interface {
	VisitCreateNewSession(ev CreateNewSession)
	VisitJoinSession(ev JoinSession)
	VisitRejoinExistingSession(ev RejoinExistingSession)
	VisitStartSessionGame(ev StartSessionGame)
	VisitPlayerUpdate(ev PlayerUpdate)
}

// CreateNewSession asks the server to create a session with the sender as player 1
type CreateNewSession struct{}

// JoinSession asks to join an existing session as player 2
type JoinSession struct {
	ID model.SessionID `json:"id"`
}

// RejoinExistingSession reattaches a new connection to an existing player
type RejoinExistingSession struct {
	ID       model.SessionID `json:"id"`
	PlayerID model.PlayerID  `json:"playerId"`
}

// StartSessionGame asks the server to start the session's tick loop
type StartSessionGame struct {
	ID model.SessionID `json:"id"`
}

// PlayerUpdate carries the sender's desired velocity
type PlayerUpdate struct {
	ID  model.SessionID `json:"id"`
	Vel Vec2            `json:"vel"`
}

func (CreateNewSession) Tag() string      { return TagCreateNewSession }
func (JoinSession) Tag() string           { return TagJoinSession }
func (RejoinExistingSession) Tag() string { return TagRejoinExistingSession }
func (StartSessionGame) Tag() string      { return TagStartSessionGame }
func (PlayerUpdate) Tag() string          { return TagPlayerUpdate }

func (ev CreateNewSession) Accept(v ClientEventVisitor)      { v.VisitCreateNewSession(ev) }
func (ev JoinSession) Accept(v ClientEventVisitor)           { v.VisitJoinSession(ev) }
func (ev RejoinExistingSession) Accept(v ClientEventVisitor) { v.VisitRejoinExistingSession(ev) }
func (ev StartSessionGame) Accept(v ClientEventVisitor)      { v.VisitStartSessionGame(ev) }
func (ev PlayerUpdate) Accept(v ClientEventVisitor)          { v.VisitPlayerUpdate(ev) }

func (CreateNewSession) clientEvent()      {}
func (JoinSession) clientEvent()           {}
func (RejoinExistingSession) clientEvent() {}
func (StartSessionGame) clientEvent()      {}
func (PlayerUpdate) clientEvent()          {}
