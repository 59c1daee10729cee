package history

import (
	"context"
	"sync"

	"flashback/internal/models"
)

// MemoryStore keeps sessions in a map and is persisted through FileManager
// snapshots. A positive maxEntries bounds the history; inserting a new ID past
// the bound evicts the oldest sessions, which may be the inserted one.
type MemoryStore struct {
	mu         sync.RWMutex
	data       map[string]*models.Session
	maxEntries int
}

func NewMemoryStore(maxEntries int) *MemoryStore {
	return &MemoryStore{
		data:       make(map[string]*models.Session),
		maxEntries: maxEntries,
	}
}

func (s *MemoryStore) Upsert(_ context.Context, session *models.Session) error {
	if session == nil || session.ID == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	_, exists := s.data[session.ID]
	s.data[session.ID] = session.Clone()
	if !exists {
		s.evictIfNeeded()
	}
	return nil
}

func (s *MemoryStore) evictIfNeeded() {
	if s.maxEntries <= 0 || len(s.data) <= s.maxEntries {
		return
	}
	sessions := make([]*models.Session, 0, len(s.data))
	for _, v := range s.data {
		sessions = append(sessions, v)
	}
	models.SortNewestFirst(sessions)
	for _, old := range sessions[s.maxEntries:] {
		delete(s.data, old.ID)
	}
}

func (s *MemoryStore) Get(_ context.Context, id string) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[id]
	if !ok {
		return nil, models.ErrSessionNotFound
	}
	return v.Clone(), nil
}

func (s *MemoryStore) List(_ context.Context) ([]*models.Session, error) {
	s.mu.RLock()
	result := make([]*models.Session, 0, len(s.data))
	for _, v := range s.data {
		result = append(result, v.Clone())
	}
	s.mu.RUnlock()

	models.SortNewestFirst(result)
	return result, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[id]; !ok {
		return models.ErrSessionNotFound
	}
	delete(s.data, id)
	return nil
}

func (s *MemoryStore) Len(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data), nil
}

func (s *MemoryStore) Snapshot() map[string]*models.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make(map[string]*models.Session, len(s.data))
	for k, v := range s.data {
		result[k] = v.Clone()
	}
	return result
}

func (s *MemoryStore) PutData(sessions map[string]*models.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = make(map[string]*models.Session, len(sessions))
	for k, v := range sessions {
		if k == "" || v == nil {
			continue
		}
		s.data[k] = v.Clone()
	}
}
