package redis

import (
	"fmt"

	"github.com/mcoot/duelsync-go/internal/model"
)

// Key prefix for all session directory data
const keyPrefix = "duelsync"

// sessionKey returns the Redis key for a SessionRecord
func sessionKey(id model.SessionID) string {
	return fmt.Sprintf("%s:session:%s", keyPrefix, id)
}

// sessionsIndexKey returns the Redis key for the SET of all session record keys
func sessionsIndexKey() string {
	return fmt.Sprintf("%s:idx:sessions", keyPrefix)
}
