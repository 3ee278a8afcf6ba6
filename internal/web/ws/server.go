// Package ws carries session traffic over websockets. Read pumps hand every inbound frame to an
// executor as a turn; nothing here touches session state.
package ws

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mcoot/duelsync-go/internal/eventloop"
	"github.com/mcoot/duelsync-go/internal/services/broadcast"
)

// Handler receives frames and disconnects. Calls arrive as executor turns.
type Handler interface {
	HandleText(conn broadcast.Conn, data []byte)
	HandleBinary(conn broadcast.Conn, data []byte)
	HandleDisconnect(conn broadcast.Conn)
}

// Config controls the websocket server
type Config struct {
	// AllowedOrigins lists Origin hosts accepted besides the request's own host. "*" accepts any.
	AllowedOrigins []string
	SendBufferSize int
}

// Server upgrades HTTP requests and runs one Client per connection
type Server struct {
	upgrader websocket.Upgrader
	exec     eventloop.Executor
	handler  Handler
	config   Config
	logger   *slog.Logger

	nextID  atomic.Uint64
	mu      sync.Mutex
	clients map[*Client]struct{}
}

// NewServer creates a Server that posts frames to exec for handler
func NewServer(exec eventloop.Executor, handler Handler, cfg Config, logger *slog.Logger) *Server {
	if cfg.SendBufferSize <= 0 {
		cfg.SendBufferSize = defaultSendBufferSize
	}
	s := &Server{
		exec:    exec,
		handler: handler,
		config:  cfg,
		logger:  logger.With(slog.String("component", "ws")),
		clients: make(map[*Client]struct{}),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// ServeHTTP upgrades the request and blocks reading frames until the connection ends
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an HTTP error
		s.logger.Warn("ws upgrade failed", slog.String("error", err.Error()))
		return
	}

	id := s.nextID.Add(1)
	client := newClient(id, conn, s.config.SendBufferSize, s.logger.With(slog.Uint64("client_id", id)))
	s.register(client)

	go client.writePump()
	s.readPump(client)
}

func (s *Server) readPump(c *Client) {
	connectedAt := time.Now()
	defer func() {
		_ = c.Close()
		s.unregister(c)
		s.exec.Do(func() { s.handler.HandleDisconnect(c) })
		c.logger.Info("ws client disconnected",
			slog.Duration("connection_duration", time.Since(connectedAt)))
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Debug("ws read failed", slog.String("error", err.Error()))
			}
			return
		}

		var posted bool
		switch messageType {
		case websocket.TextMessage:
			posted = s.exec.Do(func() { s.handler.HandleText(c, data) })
		case websocket.BinaryMessage:
			posted = s.exec.Do(func() { s.handler.HandleBinary(c, data) })
		default:
			posted = true
		}
		if !posted {
			return
		}
	}
}

func (s *Server) register(c *Client) {
	s.mu.Lock()
	s.clients[c] = struct{}{}
	count := len(s.clients)
	s.mu.Unlock()
	c.logger.Info("ws client connected", slog.Int("total_clients", count))
}

func (s *Server) unregister(c *Client) {
	s.mu.Lock()
	delete(s.clients, c)
	s.mu.Unlock()
}

// ClientCount returns the number of connected clients
func (s *Server) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Shutdown closes every connected client
func (s *Server) Shutdown() {
	s.mu.Lock()
	clients := make([]*Client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	for _, c := range clients {
		_ = c.Close()
	}
	s.logger.Info("ws server stopped", slog.Int("disconnected_clients", len(clients)))
}

// checkOrigin accepts requests without an Origin, same-host origins, and configured hosts
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if strings.EqualFold(u.Host, r.Host) {
		return true
	}
	for _, allowed := range s.config.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, u.Host) {
			return true
		}
	}
	s.logger.Warn("ws origin rejected", slog.String("origin", origin))
	return false
}
