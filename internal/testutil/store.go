package testutil

import (
	"context"
	"sync"

	"flashback/internal/models"
)

// MockStore is a map-backed interfaces.StoreInterface. UpsertErr, when set,
// fails every write.
type MockStore struct {
	mu        sync.Mutex
	Data      map[string]*models.Session
	UpsertErr error
}

func NewMockStore() *MockStore {
	return &MockStore{Data: make(map[string]*models.Session)}
}

func (m *MockStore) Upsert(_ context.Context, s *models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UpsertErr != nil {
		return m.UpsertErr
	}
	m.Data[s.ID] = s.Clone()
	return nil
}

func (m *MockStore) Get(_ context.Context, id string) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.Data[id]
	if !ok {
		return nil, models.ErrSessionNotFound
	}
	return s.Clone(), nil
}

func (m *MockStore) List(_ context.Context) ([]*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.Session, 0, len(m.Data))
	for _, s := range m.Data {
		out = append(out, s.Clone())
	}
	models.SortNewestFirst(out)
	return out, nil
}

func (m *MockStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.Data[id]; !ok {
		return models.ErrSessionNotFound
	}
	delete(m.Data, id)
	return nil
}

func (m *MockStore) Len(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Data), nil
}
