package storage

import (
	"context"

	"github.com/mcoot/duelsync-go/internal/model"
)

// Storage holds published session records for the directory API
type Storage interface {
	SaveSession(ctx context.Context, rec *model.SessionRecord) error
	GetSession(ctx context.Context, id model.SessionID) (*model.SessionRecord, error)
	// ListSessions returns every stored record ordered by creation time
	ListSessions(ctx context.Context) ([]*model.SessionRecord, error)
	DeleteSession(ctx context.Context, id model.SessionID) error

	// Ping reports whether the backend is reachable
	Ping(ctx context.Context) error
}
