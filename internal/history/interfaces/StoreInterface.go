package interfaces

import (
	"context"

	"flashback/internal/models"
)

// StoreInterface is the keyed history backend. Implementations return
// models.ErrSessionNotFound for unknown IDs and hand out copies, never the
// stored value itself.
type StoreInterface interface {
	Upsert(ctx context.Context, session *models.Session) error
	Get(ctx context.Context, id string) (*models.Session, error)
	List(ctx context.Context) ([]*models.Session, error)
	Delete(ctx context.Context, id string) error
	Len(ctx context.Context) (int, error)
}

// SessionSnapshotter is implemented by stores whose data lives in process
// memory and must be written to the snapshot file.
type SessionSnapshotter interface {
	Snapshot() map[string]*models.Session
	PutData(sessions map[string]*models.Session)
}
