package history

import (
	"context"
	"errors"
	"fmt"

	"flashback/internal/models"

	json "github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

const (
	sessionKeyPart = ":session:" // {prefix}:session:{id} -> session JSON
	indexKeyPart   = ":sessions" // {prefix}:sessions -> sorted set of IDs scored by creation time
)

// RedisStore keeps one key per session plus a sorted-set index used for
// newest-first listing and eviction of the oldest entries.
type RedisStore struct {
	client     redis.UniversalClient
	prefix     string
	maxEntries int
}

func NewRedisStore(client redis.UniversalClient, prefix string, maxEntries int) *RedisStore {
	if prefix == "" {
		prefix = "flashback"
	}
	return &RedisStore{
		client:     client,
		prefix:     prefix,
		maxEntries: maxEntries,
	}
}

func (r *RedisStore) sessionKey(id string) string {
	return r.prefix + sessionKeyPart + id
}

func (r *RedisStore) indexKey() string {
	return r.prefix + indexKeyPart
}

func (r *RedisStore) Upsert(ctx context.Context, session *models.Session) error {
	if session == nil || session.ID == "" {
		return nil
	}
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	_, err = r.client.ZScore(ctx, r.indexKey(), session.ID).Result()
	isNew := errors.Is(err, redis.Nil)
	if err != nil && !isNew {
		return fmt.Errorf("failed to look up session index: %w", err)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.sessionKey(session.ID), data, 0)
		pipe.ZAdd(ctx, r.indexKey(), redis.Z{
			Score:  float64(session.CreatedAt.UnixMilli()),
			Member: session.ID,
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	if !isNew || r.maxEntries <= 0 {
		return nil
	}
	return r.evict(ctx)
}

// evict drops the oldest sessions beyond maxEntries, the one just inserted included.
func (r *RedisStore) evict(ctx context.Context) error {
	ids, err := r.oldestBeyond(ctx, r.maxEntries)
	if err != nil || len(ids) == 0 {
		return err
	}
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range ids {
			pipe.Del(ctx, r.sessionKey(id))
			pipe.ZRem(ctx, r.indexKey(), id)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to evict sessions: %w", err)
	}
	return nil
}

// oldestBeyond returns the IDs that must go so that at most keep entries remain.
func (r *RedisStore) oldestBeyond(ctx context.Context, keep int) ([]string, error) {
	count, err := r.client.ZCard(ctx, r.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to count sessions: %w", err)
	}
	excess := count - int64(keep)
	if excess <= 0 {
		return nil, nil
	}
	ids, err := r.client.ZRange(ctx, r.indexKey(), 0, excess-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read oldest sessions: %w", err)
	}
	return ids, nil
}

func (r *RedisStore) Get(ctx context.Context, id string) (*models.Session, error) {
	data, err := r.client.Get(ctx, r.sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, models.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var s models.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &s, nil
}

func (r *RedisStore) List(ctx context.Context) ([]*models.Session, error) {
	ids, err := r.client.ZRevRange(ctx, r.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	if len(ids) == 0 {
		return []*models.Session{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.sessionKey(id)
	}
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load sessions: %w", err)
	}

	result := make([]*models.Session, 0, len(values))
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			// index entry whose key is gone
			continue
		}
		var s models.Session
		if err := json.Unmarshal([]byte(raw), &s); err != nil {
			return nil, fmt.Errorf("failed to unmarshal session: %w", err)
		}
		result = append(result, &s)
	}
	models.SortNewestFirst(result)
	return result, nil
}

func (r *RedisStore) Delete(ctx context.Context, id string) error {
	var del *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, r.sessionKey(id))
		pipe.ZRem(ctx, r.indexKey(), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if del.Val() == 0 {
		return models.ErrSessionNotFound
	}
	return nil
}

func (r *RedisStore) Len(ctx context.Context) (int, error) {
	n, err := r.client.ZCard(ctx, r.indexKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	return int(n), nil
}
