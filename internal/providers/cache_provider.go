package providers

import (
	"math"

	"flashback/internal/structures"

	"github.com/coocood/freecache"
)

type CacheProviderInterface interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte)
}

// ResponseCache keeps rendered JSON bodies. freecache refuses entries above
// 1/1024 of its size; those are logged and served uncached.
type ResponseCache struct {
	cache  *freecache.Cache
	ttl    int
	logger Logger
}

func NewCacheProvider(conf *structures.Config, logger Logger) CacheProviderInterface {
	if !conf.Cache.Enabled || conf.Cache.Size <= 0 {
		logger.Infof(TypeApp, "Response cache disabled")
		return &noopCache{}
	}

	ttl := max(int(math.Ceil(conf.Cache.TTL.Seconds())), 1)
	logger.Infof(TypeApp, "Response cache: %dMB, entries expire after %ds", conf.Cache.Size, ttl)
	return &ResponseCache{
		cache:  freecache.NewCache(conf.Cache.Size << 20),
		ttl:    ttl,
		logger: logger,
	}
}

func (c *ResponseCache) Get(key string) ([]byte, bool) {
	body, err := c.cache.Get([]byte(key))
	if err != nil {
		return nil, false
	}
	return body, true
}

func (c *ResponseCache) Set(key string, value []byte) {
	if len(value) == 0 {
		return
	}
	if err := c.cache.Set([]byte(key), value, c.ttl); err != nil {
		c.logger.Debugf(TypeApp, "Response for %s not cached (%d bytes): %s", key, len(value), err)
	}
}

type noopCache struct{}

func (n *noopCache) Get(_ string) ([]byte, bool) { return nil, false }
func (n *noopCache) Set(_ string, _ []byte)      {}
