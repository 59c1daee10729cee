package history

import (
	"context"
	"fmt"
	"time"

	"flashback/internal/history/interfaces"
	"flashback/internal/providers"
	"flashback/internal/structures"

	"github.com/redis/go-redis/v9"
)

// NewStore builds the history backend selected by persistence.backend. The
// returned cleanup closes any connection the backend holds.
func NewStore(conf *structures.Config, logger providers.Logger) (interfaces.StoreInterface, func(), error) {
	switch conf.Persistence.Backend {
	case structures.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     conf.Persistence.Redis.Addr,
			Password: conf.Persistence.Redis.Password,
			DB:       conf.Persistence.Redis.DB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("redis %s unreachable: %w", conf.Persistence.Redis.Addr, err)
		}
		logger.Infof(providers.TypeApp, "History backend: redis %s", conf.Persistence.Redis.Addr)
		cleanup := func() {
			_ = client.Close()
		}
		return NewRedisStore(client, conf.Persistence.Redis.Prefix, conf.History.MaxEntries), cleanup, nil
	default:
		logger.Infof(providers.TypeApp, "History backend: file %s", conf.Persistence.FilePath)
		return NewMemoryStore(conf.History.MaxEntries), func() {}, nil
	}
}
