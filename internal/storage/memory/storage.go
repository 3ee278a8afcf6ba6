package memory

import (
	"context"
	"sync"

	"github.com/mcoot/duelsync-go/internal/model"
	"github.com/mcoot/duelsync-go/internal/storage"
)

// Storage is an in-memory implementation of the storage interface
type Storage struct {
	mu       sync.RWMutex
	sessions map[model.SessionID]*model.SessionRecord
}

// New creates a new in-memory storage instance
func New() *Storage {
	return &Storage{
		sessions: make(map[model.SessionID]*model.SessionRecord),
	}
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

func copyRecord(rec *model.SessionRecord) *model.SessionRecord {
	c := *rec
	c.Players = append([]model.PlayerRecord(nil), rec.Players...)
	return &c
}

func (s *Storage) SaveSession(ctx context.Context, rec *model.SessionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[rec.ID] = copyRecord(rec)
	return nil
}

func (s *Storage) GetSession(ctx context.Context, id model.SessionID) (*model.SessionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.sessions[id]
	if !ok {
		return nil, model.ErrSessionNotFound
	}
	return copyRecord(rec), nil
}

func (s *Storage) ListSessions(ctx context.Context) ([]*model.SessionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	records := make([]*model.SessionRecord, 0, len(s.sessions))
	for _, rec := range s.sessions {
		records = append(records, copyRecord(rec))
	}
	storage.SortRecords(records)
	return records, nil
}

func (s *Storage) DeleteSession(ctx context.Context, id model.SessionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

func (s *Storage) Ping(ctx context.Context) error {
	return nil
}
