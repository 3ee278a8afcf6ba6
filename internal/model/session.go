package model

import "time"

// SessionStatus represents the lifecycle phase of a session
type SessionStatus string

const (
	StatusAwaitingPlayers SessionStatus = "AWAITING_PLAYERS" // Fewer than two open connections
	StatusAwaitingStart   SessionStatus = "AWAITING_START"   // Both connected, tick loop not started
	StatusPlaying         SessionStatus = "PLAYING"          // Tick loop running
)

// SessionRecord is a read-only summary of a live session, published for the directory API.
// Records are never used to restore live sessions.
type SessionRecord struct {
	ID        SessionID      `json:"id"`
	Status    SessionStatus  `json:"status"`
	Players   []PlayerRecord `json:"players"`
	Ticks     uint64         `json:"ticks"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// PlayerRecord summarises one player slot
type PlayerRecord struct {
	PlayerID     PlayerID     `json:"player_id"`
	PlayerNumber PlayerNumber `json:"player_number"`
	Connected    bool         `json:"connected"`
}

// ConnectedCount returns the number of players with an open connection
func (r *SessionRecord) ConnectedCount() int {
	count := 0
	for _, p := range r.Players {
		if p.Connected {
			count++
		}
	}
	return count
}
