package protocol

import (
	"github.com/mcoot/duelsync-go/internal/model"
)

// ServerEvent is one of the events the server sends
type ServerEvent interface {
	Event
	serverEvent()
}

// Result is the body of every request/response pair: either data or a failure message.
// ID is the session the request named, so failures can be matched to their request.
type Result[T any] struct {
	ID             model.SessionID `json:"id"`
	IsSuccess      bool            `json:"isSuccess"`
	Data           *T              `json:"data,omitempty"`
	FailureMessage string          `json:"failureMessage,omitempty"`
}

// Success wraps data in a successful Result for session id
func Success[T any](id model.SessionID, data T) Result[T] {
	return Result[T]{ID: id, IsSuccess: true, Data: &data}
}

// Failure builds a failed Result for session id from err
func Failure[T any](id model.SessionID, err error) Result[T] {
	return Result[T]{ID: id, IsSuccess: false, FailureMessage: err.Error()}
}

// PlayerState is one entry of a session's initial player list
type PlayerState struct {
	Pos              Vec2               `json:"pos"`
	PlayerID         model.PlayerID     `json:"playerId"`
	PlayerAssignment model.PlayerNumber `json:"playerAssignment"`
}

// SessionJoined is returned to a connection that has been bound to a player
type SessionJoined struct {
	ID                  model.SessionID     `json:"id"`
	MyPlayerID          model.PlayerID      `json:"myPlayerId"`
	Status              model.SessionStatus `json:"multiplayerSessionStatus"`
	InitialPlayersState []PlayerState       `json:"initialPlayersState"`
}

// SessionStarted is returned to the connection that started a session
type SessionStarted struct {
	ID     model.SessionID     `json:"id"`
	Status model.SessionStatus `json:"multiplayerSessionStatus"`
}

// CreateNewSessionResponse answers CREATE_NEW_SESSION
type CreateNewSessionResponse struct {
	Result[SessionJoined]
}

// JoinSessionResponse answers JOIN_SESSION
type JoinSessionResponse struct {
	Result[SessionJoined]
}

// RejoinExistingSessionResponse answers REJOIN_EXISTING_SESSION
type RejoinExistingSessionResponse struct {
	Result[SessionJoined]
}

// StartSessionGameResponse answers START_SESSION_GAME
type StartSessionGameResponse struct {
	Result[SessionStarted]
}

// PlayerPosition is one player's position in a POSITIONS_UPDATE
type PlayerPosition struct {
	X        float64        `json:"x"`
	Z        float64        `json:"z"`
	PlayerID model.PlayerID `json:"playerId"`
}

// PositionsUpdate is sent to every open connection on each tick.
// PlayerPositions is ordered by player number.
type PositionsUpdate struct {
	PlayerPositions []PlayerPosition `json:"playerPositions"`
	DamagePositions []Vec2           `json:"damagePositions"`
}

// GameStatusUpdate tells the other connections in a session that its status changed
type GameStatusUpdate struct {
	SessionID model.SessionID     `json:"sessionId"`
	Status    model.SessionStatus `json:"multiplayerSessionStatus"`
}

func (CreateNewSessionResponse) Tag() string      { return TagCreateNewSessionResponse }
func (JoinSessionResponse) Tag() string           { return TagJoinSessionResponse }
func (RejoinExistingSessionResponse) Tag() string { return TagRejoinExistingSessionResponse }
func (StartSessionGameResponse) Tag() string      { return TagStartSessionGameResponse }
func (PositionsUpdate) Tag() string               { return TagPositionsUpdate }
func (GameStatusUpdate) Tag() string              { return TagGameStatusUpdate }

func (CreateNewSessionResponse) serverEvent()      {}
func (JoinSessionResponse) serverEvent()           {}
func (RejoinExistingSessionResponse) serverEvent() {}
func (StartSessionGameResponse) serverEvent()      {}
func (PositionsUpdate) serverEvent()               {}
func (GameStatusUpdate) serverEvent()              {}
