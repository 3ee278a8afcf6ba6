package protocol

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/duelsync-go/internal/model"
)

func TestDecodeClientEvent(t *testing.T) {
	tests := []struct {
		name  string
		frame string
		want  ClientEvent
	}{
		{
			name:  "create without payload",
			frame: `{"type":"CREATE_NEW_SESSION"}`,
			want:  CreateNewSession{},
		},
		{
			name:  "create with empty payload",
			frame: `{"type":"CREATE_NEW_SESSION","payload":{}}`,
			want:  CreateNewSession{},
		},
		{
			name:  "join",
			frame: `{"type":"JOIN_SESSION","payload":{"id":"abc"}}`,
			want:  JoinSession{ID: "abc"},
		},
		{
			name:  "rejoin",
			frame: `{"type":"REJOIN_EXISTING_SESSION","payload":{"id":"abc","playerId":"p1"}}`,
			want:  RejoinExistingSession{ID: "abc", PlayerID: "p1"},
		},
		{
			name:  "start",
			frame: `{"type":"START_SESSION_GAME","payload":{"id":"abc"}}`,
			want:  StartSessionGame{ID: "abc"},
		},
		{
			name:  "player update",
			frame: `{"type":"PLAYER_UPDATE","payload":{"id":"abc","vel":{"x":0.5,"z":-1}}}`,
			want:  PlayerUpdate{ID: "abc", Vel: Vec2{X: 0.5, Z: -1}},
		},
		{
			name:  "ids keep their case",
			frame: `{"type":"JOIN_SESSION","payload":{"id":"AbC-Def"}}`,
			want:  JoinSession{ID: "AbC-Def"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeClientEvent([]byte(tt.frame))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeClientEventRejects(t *testing.T) {
	tests := []struct {
		name    string
		frame   string
		wantErr error
	}{
		{"empty frame", ``, model.ErrMalformedFrame},
		{"not json", `hello`, model.ErrMalformedFrame},
		{"json array", `[1,2]`, model.ErrMalformedFrame},
		{"missing type", `{"payload":{"id":"abc"}}`, model.ErrMalformedFrame},
		{"unknown type", `{"type":"EXPLODE","payload":{}}`, model.ErrUnknownEventType},
		{"server tag from client", `{"type":"POSITIONS_UPDATE","payload":{}}`, model.ErrUnknownEventType},
		{"lowercase tag", `{"type":"join_session","payload":{"id":"abc"}}`, model.ErrUnknownEventType},
		{"join without payload", `{"type":"JOIN_SESSION"}`, model.ErrMalformedFrame},
		{"join with null payload", `{"type":"JOIN_SESSION","payload":null}`, model.ErrMalformedFrame},
		{"join with wrong id type", `{"type":"JOIN_SESSION","payload":{"id":42}}`, model.ErrMalformedFrame},
		{"join without id", `{"type":"JOIN_SESSION","payload":{}}`, model.ErrMissingSessionID},
		{"rejoin without player", `{"type":"REJOIN_EXISTING_SESSION","payload":{"id":"abc"}}`, model.ErrMissingPlayerID},
		{"start without id", `{"type":"START_SESSION_GAME","payload":{}}`, model.ErrMissingSessionID},
		{"update without vel", `{"type":"PLAYER_UPDATE","payload":{"id":"abc"}}`, model.ErrMalformedFrame},
		{"update with string vel", `{"type":"PLAYER_UPDATE","payload":{"id":"abc","vel":{"x":"fast","z":0}}}`, model.ErrMalformedFrame},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := DecodeClientEvent([]byte(tt.frame))
			assert.Nil(t, ev)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v, want %v", err, tt.wantErr)
		})
	}
}

func TestEncodeEnvelopeShape(t *testing.T) {
	data, err := Encode(GameStatusUpdate{SessionID: "s1", Status: model.StatusPlaying})
	require.NoError(t, err)

	assert.JSONEq(t,
		`{"type":"GAME_STATUS_UPDATE","payload":{"sessionId":"s1","multiplayerSessionStatus":"PLAYING"}}`,
		string(data))
}

func TestEncodeSuccessResult(t *testing.T) {
	ev := JoinSessionResponse{Success("s1", SessionJoined{
		ID:         "s1",
		MyPlayerID: "p2",
		Status:     model.StatusAwaitingStart,
		InitialPlayersState: []PlayerState{
			{Pos: Vec2{X: -5}, PlayerID: "p1", PlayerAssignment: model.PlayerOne},
			{Pos: Vec2{X: 5}, PlayerID: "p2", PlayerAssignment: model.PlayerTwo},
		},
	})}

	assert.JSONEq(t, `{
		"type": "JOIN_SESSION_RESPONSE",
		"payload": {
			"id": "s1",
			"isSuccess": true,
			"data": {
				"id": "s1",
				"myPlayerId": "p2",
				"multiplayerSessionStatus": "AWAITING_START",
				"initialPlayersState": [
					{"pos": {"x": -5, "z": 0}, "playerId": "p1", "playerAssignment": 1},
					{"pos": {"x": 5, "z": 0}, "playerId": "p2", "playerAssignment": 2}
				]
			}
		}
	}`, string(MustEncode(ev)))
}

func TestEncodeFailureResult(t *testing.T) {
	ev := StartSessionGameResponse{Failure[SessionStarted]("s1", model.ErrPlayersNotConnected)}

	assert.JSONEq(t,
		`{"type":"START_SESSION_GAME_RESPONSE","payload":{"id":"s1","isSuccess":false,"failureMessage":"both players must be connected to start"}}`,
		string(MustEncode(ev)))
}

func TestEncodeEmptyPositionsAsArrays(t *testing.T) {
	ev := PositionsUpdate{PlayerPositions: []PlayerPosition{}, DamagePositions: []Vec2{}}

	assert.JSONEq(t,
		`{"type":"POSITIONS_UPDATE","payload":{"playerPositions":[],"damagePositions":[]}}`,
		string(MustEncode(ev)))
}

func TestClientEventsRoundTripThroughEncode(t *testing.T) {
	events := []ClientEvent{
		JoinSession{ID: "s1"},
		RejoinExistingSession{ID: "s1", PlayerID: "p1"},
		StartSessionGame{ID: "s1"},
		PlayerUpdate{ID: "s1", Vel: Vec2{X: 1, Z: -1}},
	}
	for _, ev := range events {
		got, err := DecodeClientEvent(MustEncode(ev))
		require.NoError(t, err, ev.Tag())
		assert.Equal(t, ev, got)
	}
}

func TestDecodeServerEvent(t *testing.T) {
	data := MustEncode(CreateNewSessionResponse{Success("s1", SessionJoined{ID: "s1", MyPlayerID: "p1"})})

	ev, err := DecodeServerEvent(data)
	require.NoError(t, err)

	resp, ok := ev.(CreateNewSessionResponse)
	require.True(t, ok)
	assert.True(t, resp.IsSuccess)
	require.NotNil(t, resp.Data)
	assert.Equal(t, model.SessionID("s1"), resp.Data.ID)
	assert.Equal(t, model.PlayerID("p1"), resp.Data.MyPlayerID)
}

func TestDecodeServerEventUnknownTag(t *testing.T) {
	_, err := DecodeServerEvent([]byte(`{"type":"JOIN_SESSION","payload":{"id":"x"}}`))
	assert.ErrorIs(t, err, model.ErrUnknownEventType)
}

type recordingVisitor struct {
	visited []string
}

func (v *recordingVisitor) VisitCreateNewSession(CreateNewSession) {
	v.visited = append(v.visited, TagCreateNewSession)
}
func (v *recordingVisitor) VisitJoinSession(JoinSession) {
	v.visited = append(v.visited, TagJoinSession)
}
func (v *recordingVisitor) VisitRejoinExistingSession(RejoinExistingSession) {
	v.visited = append(v.visited, TagRejoinExistingSession)
}
func (v *recordingVisitor) VisitStartSessionGame(StartSessionGame) {
	v.visited = append(v.visited, TagStartSessionGame)
}
func (v *recordingVisitor) VisitPlayerUpdate(PlayerUpdate) {
	v.visited = append(v.visited, TagPlayerUpdate)
}

func TestAcceptDispatchesByType(t *testing.T) {
	v := &recordingVisitor{}
	for _, ev := range []ClientEvent{
		CreateNewSession{}, JoinSession{}, RejoinExistingSession{}, StartSessionGame{}, PlayerUpdate{},
	} {
		ev.Accept(v)
	}
	assert.Equal(t, []string{
		TagCreateNewSession, TagJoinSession, TagRejoinExistingSession, TagStartSessionGame, TagPlayerUpdate,
	}, v.visited)
}

func TestDecodeEnvelopeKeepsRawPayload(t *testing.T) {
	env, err := DecodeEnvelope([]byte(`{"type":"X","payload":{"a":1}}`))
	require.NoError(t, err)
	assert.Equal(t, "X", env.Type)
	assert.Equal(t, json.RawMessage(`{"a":1}`), env.Payload)
}
