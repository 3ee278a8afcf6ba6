package factory

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/suite"

	"github.com/mcoot/duelsync-go/internal/api/response"
	"github.com/mcoot/duelsync-go/internal/model"
	"github.com/mcoot/duelsync-go/internal/protocol"
)

type IntegrationSuite struct {
	suite.Suite
	app    *TestApp
	server *httptest.Server
	ctx    context.Context
	cancel context.CancelFunc
}

func TestIntegrationSuite(t *testing.T) {
	suite.Run(t, new(IntegrationSuite))
}

func (s *IntegrationSuite) SetupTest() {
	s.start(Config{MaxSpeed: 0.5})
}

func (s *IntegrationSuite) start(cfg Config) {
	s.ctx, s.cancel = context.WithTimeout(context.Background(), 10*time.Second)
	s.app = NewTestApp(cfg)
	s.server = httptest.NewServer(s.app.Router)
}

func (s *IntegrationSuite) TearDownTest() {
	s.server.Close()
	s.NoError(s.app.Shutdown(s.ctx))
	s.cancel()
}

func (s *IntegrationSuite) dial() *websocket.Conn {
	url := "ws" + strings.TrimPrefix(s.server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	s.Require().NoError(err)
	s.T().Cleanup(func() { _ = conn.Close() })
	return conn
}

func (s *IntegrationSuite) send(conn *websocket.Conn, ev protocol.ClientEvent) {
	s.Require().NoError(conn.WriteMessage(websocket.TextMessage, protocol.MustEncode(ev)))
}

func (s *IntegrationSuite) read(conn *websocket.Conn) protocol.ServerEvent {
	s.Require().NoError(conn.SetReadDeadline(time.Now().Add(2 * time.Second)))
	_, data, err := conn.ReadMessage()
	s.Require().NoError(err)
	ev, err := protocol.DecodeServerEvent(data)
	s.Require().NoError(err)
	return ev
}

func readAs[T protocol.ServerEvent](s *IntegrationSuite, conn *websocket.Conn) T {
	ev := s.read(conn)
	typed, ok := ev.(T)
	s.Require().True(ok, "unexpected %s", ev.Tag())
	return typed
}

func (s *IntegrationSuite) get(path string, out any) int {
	resp, err := http.Get(s.server.URL + path)
	s.Require().NoError(err)
	defer resp.Body.Close()
	if out != nil && resp.StatusCode == http.StatusOK {
		s.Require().NoError(json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

// createAndJoin returns player 1's and player 2's connections and the session id
func (s *IntegrationSuite) createAndJoin() (*websocket.Conn, *websocket.Conn, model.SessionID) {
	a := s.dial()
	s.send(a, protocol.CreateNewSession{})
	created := readAs[protocol.CreateNewSessionResponse](s, a)
	s.Require().True(created.IsSuccess)
	id := created.Data.ID
	s.Equal(model.StatusAwaitingPlayers, created.Data.Status)

	b := s.dial()
	s.send(b, protocol.JoinSession{ID: id})
	joined := readAs[protocol.JoinSessionResponse](s, b)
	s.Require().True(joined.IsSuccess)
	s.Equal(model.StatusAwaitingStart, joined.Data.Status)
	s.Len(joined.Data.InitialPlayersState, 2)

	status := readAs[protocol.GameStatusUpdate](s, a)
	s.Equal(id, status.SessionID)
	s.Equal(model.StatusAwaitingStart, status.Status)
	return a, b, id
}

func (s *IntegrationSuite) TestCreateJoinStartStreamsPositions() {
	a, b, id := s.createAndJoin()

	s.send(a, protocol.PlayerUpdate{ID: id, Vel: protocol.Vec2{X: 0.25, Z: 0}})
	s.send(a, protocol.StartSessionGame{ID: id})
	started := readAs[protocol.StartSessionGameResponse](s, a)
	s.Require().True(started.IsSuccess)
	s.Equal(model.StatusPlaying, started.Data.Status)

	status := readAs[protocol.GameStatusUpdate](s, b)
	s.Equal(model.StatusPlaying, status.Status)

	s.Require().NoError(s.app.Advance(s.ctx, TestTickPeriod))

	for _, conn := range []*websocket.Conn{a, b} {
		update := readAs[protocol.PositionsUpdate](s, conn)
		s.Require().Len(update.PlayerPositions, 2)
		s.InDelta(-4.75, update.PlayerPositions[0].X, 1e-9)
		s.InDelta(5.0, update.PlayerPositions[1].X, 1e-9)
		s.NotEqual(update.PlayerPositions[0].PlayerID, update.PlayerPositions[1].PlayerID)
		s.Empty(update.DamagePositions)
	}

	s.Require().NoError(s.app.Advance(s.ctx, TestTickPeriod))
	update := readAs[protocol.PositionsUpdate](s, b)
	s.InDelta(-4.5, update.PlayerPositions[0].X, 1e-9)
}

func (s *IntegrationSuite) TestVelocityIsClamped() {
	a, b, id := s.createAndJoin()

	s.send(b, protocol.PlayerUpdate{ID: id, Vel: protocol.Vec2{X: -30, Z: 0}})
	s.send(b, protocol.StartSessionGame{ID: id})
	s.Require().True(readAs[protocol.StartSessionGameResponse](s, b).IsSuccess)
	readAs[protocol.GameStatusUpdate](s, a)

	s.Require().NoError(s.app.Advance(s.ctx, TestTickPeriod))
	update := readAs[protocol.PositionsUpdate](s, a)
	s.InDelta(4.5, update.PlayerPositions[1].X, 1e-9)
}

func (s *IntegrationSuite) TestStartWithOnePlayerFails() {
	a := s.dial()
	s.send(a, protocol.CreateNewSession{})
	created := readAs[protocol.CreateNewSessionResponse](s, a)

	s.send(a, protocol.StartSessionGame{ID: created.Data.ID})
	resp := readAs[protocol.StartSessionGameResponse](s, a)
	s.False(resp.IsSuccess)
	s.Contains(resp.FailureMessage, model.ErrPlayersNotConnected.Error())
}

func (s *IntegrationSuite) TestJoinUnknownSession() {
	a := s.dial()
	s.send(a, protocol.JoinSession{ID: "no-such-session"})
	resp := readAs[protocol.JoinSessionResponse](s, a)
	s.False(resp.IsSuccess)
	s.Contains(resp.FailureMessage, model.ErrSessionNotFound.Error())
}

func (s *IntegrationSuite) TestRejoinAfterDisconnect() {
	a, b, id := s.createAndJoin()
	s.send(a, protocol.StartSessionGame{ID: id})
	s.Require().True(readAs[protocol.StartSessionGameResponse](s, a).IsSuccess)
	readAs[protocol.GameStatusUpdate](s, b)

	var playerTwo model.PlayerID
	s.Require().NoError(s.app.Loop.Call(s.ctx, func() {
		if sess, ok := s.app.Registry.Lookup(id); ok {
			playerTwo = sess.Players()[1].ID
		}
	}))
	s.Require().NotEmpty(playerTwo)

	_ = b.Close()
	s.Eventually(func() bool {
		var open int
		_ = s.app.Loop.Call(s.ctx, func() {
			if sess, ok := s.app.Registry.Lookup(id); ok {
				open = sess.Broadcaster.OpenCount()
			}
		})
		return open == 1
	}, 2*time.Second, 10*time.Millisecond)

	c := s.dial()
	s.send(c, protocol.RejoinExistingSession{ID: id, PlayerID: playerTwo})
	rejoined := readAs[protocol.RejoinExistingSessionResponse](s, c)
	s.Require().True(rejoined.IsSuccess)
	s.Equal(playerTwo, rejoined.Data.MyPlayerID)
	s.Equal(model.StatusPlaying, rejoined.Data.Status)
}

func (s *IntegrationSuite) TestSessionDirectoryAPI() {
	_, _, id := s.createAndJoin()
	s.Require().NoError(s.app.Settle(s.ctx))
	s.Require().NoError(s.app.Directory.Flush(s.ctx))

	var list response.SessionList
	s.Equal(http.StatusOK, s.get("/api/v1/sessions", &list))
	s.Require().Len(list.Sessions, 1)
	s.Equal(string(id), list.Sessions[0].ID)
	s.Equal(string(model.StatusAwaitingStart), list.Sessions[0].Status)
	s.Len(list.Sessions[0].Players, 2)

	var one response.Session
	s.Equal(http.StatusOK, s.get("/api/v1/sessions/"+string(id), &one))
	s.Equal(string(id), one.ID)

	s.Equal(http.StatusNotFound, s.get("/api/v1/sessions/missing", nil))

	var health response.Health
	s.Equal(http.StatusOK, s.get("/api/v1/health", &health))
	s.Equal(response.HealthOK, health.Status)
}

func (s *IntegrationSuite) TestDirectoryTracksTicksWhilePlaying() {
	a, b, id := s.createAndJoin()
	s.send(a, protocol.StartSessionGame{ID: id})
	s.Require().True(readAs[protocol.StartSessionGameResponse](s, a).IsSuccess)
	readAs[protocol.GameStatusUpdate](s, b)

	// each pass schedules the next from its own turn, so step one period at a time
	passes := int(time.Second / TestTickPeriod)
	for i := 0; i < passes; i++ {
		s.Require().NoError(s.app.Advance(s.ctx, TestTickPeriod))
	}
	s.Require().NoError(s.app.Directory.Flush(s.ctx))

	var one response.Session
	s.Require().Equal(http.StatusOK, s.get("/api/v1/sessions/"+string(id), &one))
	s.Equal(string(model.StatusPlaying), one.Status)
	s.Equal(uint64(passes), one.Ticks)
}

func (s *IntegrationSuite) TestIdleSessionsAreSwept() {
	s.TearDownTest()
	s.start(Config{IdleTimeout: time.Minute, SweepInterval: 10 * time.Second})

	a := s.dial()
	s.send(a, protocol.CreateNewSession{})
	id := readAs[protocol.CreateNewSessionResponse](s, a).Data.ID
	_ = a.Close()

	s.Eventually(func() bool {
		var open int
		_ = s.app.Loop.Call(s.ctx, func() {
			if sess, ok := s.app.Registry.Lookup(id); ok {
				open = sess.Broadcaster.OpenCount()
			}
		})
		return open == 0
	}, 2*time.Second, 10*time.Millisecond)

	s.Require().NoError(s.app.Advance(s.ctx, 2*time.Minute))

	var remaining int
	s.Require().NoError(s.app.Loop.Call(s.ctx, func() { remaining = s.app.Registry.Len() }))
	s.Zero(remaining)

	s.Require().NoError(s.app.Directory.Flush(s.ctx))
	s.Equal(http.StatusNotFound, s.get("/api/v1/sessions/"+string(id), nil))
}

func (s *IntegrationSuite) TestShutdownClosesConnections() {
	a, _, _ := s.createAndJoin()

	s.app.WebSocket.Shutdown()

	s.Require().NoError(a.SetReadDeadline(time.Now().Add(2 * time.Second)))
	_, _, err := a.ReadMessage()
	s.True(websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}
