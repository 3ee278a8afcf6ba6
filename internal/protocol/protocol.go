// Package protocol defines the JSON wire format exchanged over a session connection.
//
// Every text frame carries one Envelope: {"type": TAG, "payload": {...}}. Client and server events
// are closed sets; decoding rejects any tag outside the set, so handlers only ever see known events.
package protocol

import (
	"encoding/json"
)

// Client → server tags
const (
	TagCreateNewSession      = "CREATE_NEW_SESSION"
	TagJoinSession           = "JOIN_SESSION"
	TagRejoinExistingSession = "REJOIN_EXISTING_SESSION"
	TagStartSessionGame      = "START_SESSION_GAME"
	TagPlayerUpdate          = "PLAYER_UPDATE"
)

// Server → client tags
const (
	TagCreateNewSessionResponse      = "CREATE_NEW_SESSION_RESPONSE"
	TagJoinSessionResponse           = "JOIN_SESSION_RESPONSE"
	TagRejoinExistingSessionResponse = "REJOIN_EXISTING_SESSION_RESPONSE"
	TagStartSessionGameResponse      = "START_SESSION_GAME_RESPONSE"
	TagPositionsUpdate               = "POSITIONS_UPDATE"
	TagGameStatusUpdate              = "GAME_STATUS_UPDATE"
)

// Envelope is the outer frame of every message
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Event is anything that can be framed in an Envelope
type Event interface {
	Tag() string
}

// Vec2 is a point or vector on the ground plane
type Vec2 struct {
	X float64 `json:"x"`
	Z float64 `json:"z"`
}
