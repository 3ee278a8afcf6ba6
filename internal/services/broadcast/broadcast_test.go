package broadcast

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/duelsync-go/internal/component"
	"github.com/mcoot/duelsync-go/internal/ecs"
	"github.com/mcoot/duelsync-go/internal/model"
	"github.com/mcoot/duelsync-go/internal/protocol"
	"github.com/mcoot/duelsync-go/internal/testutil"
)

type BroadcasterTestSuite struct {
	suite.Suite
	store *ecs.Store
	b     *Broadcaster
	c1    *testutil.FakeConn
	c2    *testutil.FakeConn
}

func TestBroadcasterTestSuite(t *testing.T) {
	suite.Run(t, new(BroadcasterTestSuite))
}

func (s *BroadcasterTestSuite) SetupTest() {
	s.store = ecs.NewStore()
	s.b = New(s.store, testutil.NopLogger())
	s.c1 = testutil.NewFakeConn()
	s.c2 = testutil.NewFakeConn()
}

func (s *BroadcasterTestSuite) spawnPlayer(n model.PlayerNumber, id model.PlayerID, x, z float64) ecs.Entity {
	return s.store.Spawn(
		ecs.With(component.Position{X: x, Z: z}),
		ecs.With(component.Velocity{}),
		ecs.With(component.PlayerAssignment{PlayerNumber: n, PlayerID: id}),
	)
}

func (s *BroadcasterTestSuite) TestSyncOrdersPlayersByNumber() {
	// player 2 spawned first
	s.spawnPlayer(model.PlayerTwo, "p2", 5, 0)
	s.spawnPlayer(model.PlayerOne, "p1", -5, 0)
	s.b.UpdateConnection(model.PlayerOne, s.c1)

	s.b.Sync()

	updates := testutil.EventsOfType[protocol.PositionsUpdate](s.T(), s.c1)
	s.Require().Len(updates, 1)
	s.Equal([]protocol.PlayerPosition{
		{X: -5, Z: 0, PlayerID: "p1"},
		{X: 5, Z: 0, PlayerID: "p2"},
	}, updates[0].PlayerPositions)
	s.Empty(updates[0].DamagePositions)
}

func (s *BroadcasterTestSuite) TestSyncReportsDamagePositions() {
	s.spawnPlayer(model.PlayerOne, "p1", 0, 0)
	s.store.Spawn(ecs.With(component.Position{X: 3, Z: 4}), ecs.With(component.Damage{Amount: 1}))
	s.store.Spawn(ecs.With(component.Position{X: 9, Z: 9}))

	update := s.b.Snapshot()

	s.Len(update.PlayerPositions, 1)
	s.Equal([]protocol.Vec2{{X: 3, Z: 4}}, update.DamagePositions)
}

func (s *BroadcasterTestSuite) TestSyncSkipsEmptyAndClosedSlots() {
	s.spawnPlayer(model.PlayerOne, "p1", 0, 0)
	s.b.UpdateConnection(model.PlayerOne, s.c1)
	s.c1.Close()

	s.NotPanics(s.b.Sync)
	s.Empty(s.c1.Frames())
}

func (s *BroadcasterTestSuite) TestSyncSendsToBothOpenSlots() {
	s.spawnPlayer(model.PlayerOne, "p1", 0, 0)
	s.spawnPlayer(model.PlayerTwo, "p2", 1, 1)
	s.b.UpdateConnection(model.PlayerOne, s.c1)
	s.b.UpdateConnection(model.PlayerTwo, s.c2)

	s.b.Sync()

	s.Len(s.c1.Frames(), 1)
	s.Equal(s.c1.Frames(), s.c2.Frames())
}

func (s *BroadcasterTestSuite) TestUpdateConnectionReplacesWithoutClosing() {
	s.b.UpdateConnection(model.PlayerOne, s.c1)
	s.b.UpdateConnection(model.PlayerOne, s.c2)

	s.Same(s.c2, s.b.Connection(model.PlayerOne))
	s.True(s.c1.IsOpen())
}

func (s *BroadcasterTestSuite) TestClearConnectionOnlyClearsMatchingHandle() {
	s.b.UpdateConnection(model.PlayerOne, s.c1)
	s.b.UpdateConnection(model.PlayerOne, s.c2)

	s.False(s.b.ClearConnection(model.PlayerOne, s.c1))
	s.True(s.b.IsOpen(model.PlayerOne))

	s.True(s.b.ClearConnection(model.PlayerOne, s.c2))
	s.Nil(s.b.Connection(model.PlayerOne))
	s.False(s.b.IsOpen(model.PlayerOne))
}

func (s *BroadcasterTestSuite) TestOpenCount() {
	s.Equal(0, s.b.OpenCount())
	s.b.UpdateConnection(model.PlayerOne, s.c1)
	s.Equal(1, s.b.OpenCount())
	s.False(s.b.AllOpen())

	s.b.UpdateConnection(model.PlayerTwo, s.c2)
	s.True(s.b.AllOpen())

	s.c2.Close()
	s.False(s.b.AllOpen())
	s.Equal(1, s.b.OpenCount())
}

func (s *BroadcasterTestSuite) TestSendStatusSkipsTrigger() {
	s.b.UpdateConnection(model.PlayerOne, s.c1)
	s.b.UpdateConnection(model.PlayerTwo, s.c2)

	s.b.SendStatus("s1", model.StatusAwaitingStart, s.c2)

	s.Empty(s.c2.Frames())
	s.Equal(protocol.GameStatusUpdate{SessionID: "s1", Status: model.StatusAwaitingStart}, s.c1.LastEvent(s.T()))
}

func (s *BroadcasterTestSuite) TestInvalidSlotPanics() {
	s.Panics(func() { s.b.UpdateConnection(3, s.c1) })
	s.Panics(func() { s.b.IsOpen(0) })
}

func (s *BroadcasterTestSuite) TestSendIgnoresClosedConnection() {
	s.c1.Close()
	Send(s.c1, protocol.GameStatusUpdate{}, testutil.NopLogger())
	Send(nil, protocol.GameStatusUpdate{}, testutil.NopLogger())
	s.Empty(s.c1.Frames())
}
