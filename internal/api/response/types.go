package response

import (
	"time"

	"github.com/mcoot/duelsync-go/internal/model"
)

// Health statuses
const (
	HealthOK       = "ok"
	HealthDegraded = "degraded"
)

// Health is the response for the health endpoint
type Health struct {
	Status  string `json:"status"`
	Storage string `json:"storage"`
}

// Player represents one player slot in API responses
type Player struct {
	PlayerID     string `json:"player_id"`
	PlayerNumber int    `json:"player_number"`
	Connected    bool   `json:"connected"`
}

// PlayerFromModel converts a model.PlayerRecord
func PlayerFromModel(p model.PlayerRecord) Player {
	return Player{
		PlayerID:     string(p.PlayerID),
		PlayerNumber: int(p.PlayerNumber),
		Connected:    p.Connected,
	}
}

// Session represents a session summary in API responses
type Session struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	Players   []Player  `json:"players"`
	Ticks     uint64    `json:"ticks"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SessionFromModel converts a model.SessionRecord
func SessionFromModel(rec *model.SessionRecord) Session {
	players := make([]Player, len(rec.Players))
	for i, p := range rec.Players {
		players[i] = PlayerFromModel(p)
	}
	return Session{
		ID:        string(rec.ID),
		Status:    string(rec.Status),
		Players:   players,
		Ticks:     rec.Ticks,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}
}

// SessionList is the response for listing sessions
type SessionList struct {
	Sessions []Session `json:"sessions"`
}

// SessionListFromModel converts a slice of records, oldest first
func SessionListFromModel(records []*model.SessionRecord) SessionList {
	sessions := make([]Session, len(records))
	for i, rec := range records {
		sessions[i] = SessionFromModel(rec)
	}
	return SessionList{Sessions: sessions}
}
