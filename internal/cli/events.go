package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mcoot/duelsync-go/internal/protocol"
)

// Frame is one decoded server event with its raw payload
type Frame struct {
	Time    time.Time
	Event   protocol.ServerEvent
	Payload json.RawMessage
}

// StreamEvent is the JSON-lines form of a Frame
type StreamEvent struct {
	Time    time.Time       `json:"time"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// SessionConn is a websocket connection speaking the session protocol
type SessionConn struct {
	conn *websocket.Conn
}

// DialSession opens a websocket to the server's session endpoint
func DialSession(ctx context.Context, url string) (*SessionConn, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("connection failed: HTTP %d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("connection failed: %w", err)
	}
	return &SessionConn{conn: conn}, nil
}

// Send writes one client event
func (s *SessionConn) Send(ev protocol.ClientEvent) error {
	data, err := protocol.Encode(ev)
	if err != nil {
		return err
	}
	if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("send %s: %w", ev.Tag(), err)
	}
	return nil
}

// Next blocks until the server sends a frame
func (s *SessionConn) Next() (Frame, error) {
	for {
		messageType, data, err := s.conn.ReadMessage()
		if err != nil {
			return Frame{}, err
		}
		if messageType != websocket.TextMessage {
			continue
		}

		env, err := protocol.DecodeEnvelope(data)
		if err != nil {
			return Frame{}, fmt.Errorf("bad frame from server: %w", err)
		}
		ev, err := protocol.DecodeServerEvent(data)
		if err != nil {
			return Frame{}, fmt.Errorf("bad frame from server: %w", err)
		}
		return Frame{Time: time.Now(), Event: ev, Payload: env.Payload}, nil
	}
}

// Close sends a close frame and closes the connection
func (s *SessionConn) Close() error {
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return s.conn.Close()
}
