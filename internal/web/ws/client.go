package ws

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong from the peer
	pongWait = 60 * time.Second

	// Time between pings; must be less than pongWait
	pingPeriod = 25 * time.Second

	// Largest inbound frame accepted
	maxMessageSize = 64 * 1024

	// Buffer size for outgoing messages
	defaultSendBufferSize = 256
)

var (
	// ErrClientClosed is returned when sending to a closed client
	ErrClientClosed = errors.New("client closed")

	// ErrSendBufferFull is returned when a client is not draining its frames fast enough
	ErrSendBufferFull = errors.New("client send buffer full")
)

// Client is one websocket connection. Send never blocks; frames are written by the client's
// write pump.
type Client struct {
	id     uint64
	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}
	open   atomic.Bool
	once   sync.Once
	logger *slog.Logger
}

func newClient(id uint64, conn *websocket.Conn, bufferSize int, logger *slog.Logger) *Client {
	c := &Client{
		id:     id,
		conn:   conn,
		send:   make(chan []byte, bufferSize),
		done:   make(chan struct{}),
		logger: logger,
	}
	c.open.Store(true)
	return c
}

// ID returns the server-assigned connection number
func (c *Client) ID() uint64 {
	return c.id
}

// Send queues a text frame
func (c *Client) Send(data []byte) error {
	if !c.open.Load() {
		return ErrClientClosed
	}
	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return ErrClientClosed
	default:
		c.logger.Warn("ws message dropped - client buffer full")
		return ErrSendBufferFull
	}
}

// Close stops the client. Queued frames are flushed, then a close frame is sent.
func (c *Client) Close() error {
	c.once.Do(func() {
		c.open.Store(false)
		close(c.done)
	})
	return nil
}

// IsOpen reports whether Close has not been called and the peer has not gone away
func (c *Client) IsOpen() bool {
	return c.open.Load()
}

// writePump is the only goroutine that writes to the connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			if err := c.write(websocket.TextMessage, message); err != nil {
				c.logger.Debug("ws write failed", slog.String("error", err.Error()))
				_ = c.Close()
				return
			}

		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				_ = c.Close()
				return
			}

		case <-c.done:
			c.flush()
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}

// flush writes whatever is still queued
func (c *Client) flush() {
	for {
		select {
		case message := <-c.send:
			if err := c.write(websocket.TextMessage, message); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (c *Client) write(messageType int, data []byte) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(messageType, data)
}
