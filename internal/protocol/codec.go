package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/mcoot/duelsync-go/internal/model"
)

// Encode frames ev in an Envelope
func Encode(ev Event) ([]byte, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", ev.Tag(), err)
	}
	return json.Marshal(Envelope{Type: ev.Tag(), Payload: payload})
}

// MustEncode is Encode for events built entirely from server-controlled values.
// It panics if encoding fails.
func MustEncode(ev Event) []byte {
	data, err := Encode(ev)
	if err != nil {
		panic(err)
	}
	return data
}

// DecodeEnvelope parses the outer frame without interpreting the payload
func DecodeEnvelope(data []byte) (Envelope, error) {
	if len(data) == 0 {
		return Envelope{}, fmt.Errorf("%w: empty frame", model.ErrMalformedFrame)
	}
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", model.ErrMalformedFrame, err)
	}
	if env.Type == "" {
		return Envelope{}, fmt.Errorf("%w: missing type", model.ErrMalformedFrame)
	}
	return env, nil
}

// DecodePayload unmarshals an envelope's payload into T
func DecodePayload[T any](env Envelope) (T, error) {
	var out T
	if len(env.Payload) == 0 || string(env.Payload) == "null" {
		return out, fmt.Errorf("%w: empty payload for %s", model.ErrMalformedFrame, env.Type)
	}
	if err := json.Unmarshal(env.Payload, &out); err != nil {
		return out, fmt.Errorf("%w: %s payload: %v", model.ErrMalformedFrame, env.Type, err)
	}
	return out, nil
}

// playerUpdatePayload keeps vel optional at the JSON level so a missing vector can be rejected
type playerUpdatePayload struct {
	ID  model.SessionID `json:"id"`
	Vel *Vec2           `json:"vel"`
}

// DecodeClientEvent parses one text frame from a client. Unknown tags, malformed JSON and
// payloads missing required fields are rejected.
func DecodeClientEvent(data []byte) (ClientEvent, error) {
	env, err := DecodeEnvelope(data)
	if err != nil {
		return nil, err
	}

	switch env.Type {
	case TagCreateNewSession:
		return CreateNewSession{}, nil

	case TagJoinSession:
		ev, err := DecodePayload[JoinSession](env)
		if err != nil {
			return nil, err
		}
		if ev.ID == "" {
			return nil, fmt.Errorf("%s: %w", env.Type, model.ErrMissingSessionID)
		}
		return ev, nil

	case TagRejoinExistingSession:
		ev, err := DecodePayload[RejoinExistingSession](env)
		if err != nil {
			return nil, err
		}
		if ev.ID == "" {
			return nil, fmt.Errorf("%s: %w", env.Type, model.ErrMissingSessionID)
		}
		if ev.PlayerID == "" {
			return nil, fmt.Errorf("%s: %w", env.Type, model.ErrMissingPlayerID)
		}
		return ev, nil

	case TagStartSessionGame:
		ev, err := DecodePayload[StartSessionGame](env)
		if err != nil {
			return nil, err
		}
		if ev.ID == "" {
			return nil, fmt.Errorf("%s: %w", env.Type, model.ErrMissingSessionID)
		}
		return ev, nil

	case TagPlayerUpdate:
		p, err := DecodePayload[playerUpdatePayload](env)
		if err != nil {
			return nil, err
		}
		if p.ID == "" {
			return nil, fmt.Errorf("%s: %w", env.Type, model.ErrMissingSessionID)
		}
		if p.Vel == nil {
			return nil, fmt.Errorf("%w: %s missing vel", model.ErrMalformedFrame, env.Type)
		}
		return PlayerUpdate{ID: p.ID, Vel: *p.Vel}, nil

	default:
		return nil, fmt.Errorf("%w: %q", model.ErrUnknownEventType, env.Type)
	}
}

// DecodeServerEvent parses one text frame sent by the server
func DecodeServerEvent(data []byte) (ServerEvent, error) {
	env, err := DecodeEnvelope(data)
	if err != nil {
		return nil, err
	}

	switch env.Type {
	case TagCreateNewSessionResponse:
		return DecodePayload[CreateNewSessionResponse](env)
	case TagJoinSessionResponse:
		return DecodePayload[JoinSessionResponse](env)
	case TagRejoinExistingSessionResponse:
		return DecodePayload[RejoinExistingSessionResponse](env)
	case TagStartSessionGameResponse:
		return DecodePayload[StartSessionGameResponse](env)
	case TagPositionsUpdate:
		return DecodePayload[PositionsUpdate](env)
	case TagGameStatusUpdate:
		return DecodePayload[GameStatusUpdate](env)
	default:
		return nil, fmt.Errorf("%w: %q", model.ErrUnknownEventType, env.Type)
	}
}
