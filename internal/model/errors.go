package model

import "errors"

// Common errors used across the application
var (
	// Session errors
	ErrSessionNotFound     = errors.New("session not found")
	ErrSessionFull         = errors.New("session is full")
	ErrAlreadyInSession    = errors.New("connection already holds a slot in this session")
	ErrPlayersNotConnected = errors.New("both players must be connected to start")
	ErrUnknownPlayer       = errors.New("player is not part of this session")
	ErrNotInSession        = errors.New("connection is not bound to this session")
	ErrInvalidPlayerNumber = errors.New("invalid player number")

	// Protocol errors
	ErrBinaryFrame      = errors.New("binary frames are not supported")
	ErrMalformedFrame   = errors.New("malformed frame")
	ErrUnknownEventType = errors.New("unknown event type")
	ErrMissingSessionID = errors.New("missing session id")
	ErrMissingPlayerID  = errors.New("missing player id")
)
