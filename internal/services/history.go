package services

import (
	"context"
	"crypto/rand"
	"sync"
	"sync/atomic"
	"time"

	"flashback/internal/history/interfaces"
	"flashback/internal/models"

	"github.com/oklog/ulid/v2"
)

const interruptedMessage = "generation interrupted"

type HistoryServiceInterface interface {
	Create(ctx context.Context, original models.Image, decades []string) (*models.Session, error)
	Get(ctx context.Context, id string) (*models.Session, error)
	List(ctx context.Context) ([]*models.Session, error)
	Delete(ctx context.Context, id string) error
	Update(ctx context.Context, id string, fn func(s *models.Session) error) (*models.Session, error)
	RecoverInterrupted(ctx context.Context) (int, error)
	Version() uint64
	Count() int
}

// HistoryService owns every read-modify-write of a session. Writes are
// serialized by one mutex so concurrent decade updates never overwrite each
// other.
type HistoryService struct {
	store   interfaces.StoreInterface
	mu      sync.Mutex
	version atomic.Uint64
	count   atomic.Int64

	entropyMu sync.Mutex
	entropy   *ulid.MonotonicEntropy
	now       func() time.Time
}

func NewHistoryService(store interfaces.StoreInterface) HistoryServiceInterface {
	return newHistoryService(store, time.Now)
}

func newHistoryService(store interfaces.StoreInterface, now func() time.Time) *HistoryService {
	return &HistoryService{
		store:   store,
		entropy: ulid.Monotonic(rand.Reader, 0),
		now:     now,
	}
}

func (h *HistoryService) newID(t time.Time) string {
	h.entropyMu.Lock()
	defer h.entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), h.entropy).String()
}

// Create stores a new session in stage uploaded. Decades are optional at
// upload time; when given they must be a valid selection.
func (h *HistoryService) Create(ctx context.Context, original models.Image, decades []string) (*models.Session, error) {
	if len(decades) > 0 {
		if err := models.ValidateDecades(decades); err != nil {
			return nil, err
		}
	}

	now := h.now().UTC()
	s := &models.Session{
		ID:        h.newID(now),
		CreatedAt: now,
		UpdatedAt: now,
		Original:  original,
		Decades:   append([]string(nil), decades...),
		Results:   make(map[string]*models.GenerationResult),
		Stage:     models.StageUploaded,
	}
	if original.Height > 0 {
		s.AspectRatio = float64(original.Width) / float64(original.Height)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.store.Upsert(ctx, s); err != nil {
		return nil, err
	}
	h.changed(ctx)
	return s, nil
}

func (h *HistoryService) Get(ctx context.Context, id string) (*models.Session, error) {
	return h.store.Get(ctx, id)
}

func (h *HistoryService) List(ctx context.Context) ([]*models.Session, error) {
	return h.store.List(ctx)
}

func (h *HistoryService) Delete(ctx context.Context, id string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.store.Delete(ctx, id); err != nil {
		return err
	}
	h.changed(ctx)
	return nil
}

// Update loads the session, applies fn and stores the result. Nothing is
// written when fn returns an error.
func (h *HistoryService) Update(ctx context.Context, id string, fn func(s *models.Session) error) (*models.Session, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, err := h.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(s); err != nil {
		return nil, err
	}
	s.UpdatedAt = h.now().UTC()
	if err := h.store.Upsert(ctx, s); err != nil {
		return nil, err
	}
	h.changed(ctx)
	return s, nil
}

// RecoverInterrupted turns results left pending by a previous process into
// errors. It returns the number of results changed.
func (h *HistoryService) RecoverInterrupted(ctx context.Context) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	sessions, err := h.store.List(ctx)
	if err != nil {
		return 0, err
	}
	now := h.now().UTC()
	recovered := 0
	for _, s := range sessions {
		touched := false
		for decade, r := range s.Results {
			if r == nil || r.Status != models.StatusPending {
				continue
			}
			s.SetResult(decade, models.ErrorResult(interruptedMessage, now))
			touched = true
			recovered++
		}
		if s.Stage == models.StageGenerating {
			if s.AllTerminal() {
				s.Stage = models.StageShown
			} else {
				s.Stage = models.StageUploaded
			}
			touched = true
		}
		if !touched {
			continue
		}
		s.UpdatedAt = now
		if err := h.store.Upsert(ctx, s); err != nil {
			return recovered, err
		}
	}
	h.changed(ctx)
	return recovered, nil
}

// Version increases on every write; response caches key on it.
func (h *HistoryService) Version() uint64 {
	return h.version.Load()
}

// Count is the number of stored sessions as of the last write.
func (h *HistoryService) Count() int {
	return int(h.count.Load())
}

func (h *HistoryService) changed(ctx context.Context) {
	h.version.Add(1)
	if n, err := h.store.Len(ctx); err == nil {
		h.count.Store(int64(n))
	}
}
