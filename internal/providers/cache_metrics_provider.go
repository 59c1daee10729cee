package providers

import (
	"strings"

	"flashback/internal/structures"
)

// instrumentedCache counts hits and misses by key family, the part of a key
// before the first colon.
type instrumentedCache struct {
	inner   CacheProviderInterface
	metrics MetricsProviderInterface
}

func cacheFamily(key string) string {
	family, _, _ := strings.Cut(key, ":")
	return family
}

func (c *instrumentedCache) Get(key string) ([]byte, bool) {
	val, ok := c.inner.Get(key)
	if ok {
		c.metrics.IncCacheHits(cacheFamily(key))
	} else {
		c.metrics.IncCacheMisses(cacheFamily(key))
	}
	return val, ok
}

func (c *instrumentedCache) Set(key string, value []byte) {
	c.inner.Set(key, value)
}

// NewInstrumentedCacheProvider skips instrumentation for a disabled cache,
// which would otherwise report every lookup as a miss.
func NewInstrumentedCacheProvider(conf *structures.Config, logger Logger, metrics MetricsProviderInterface) CacheProviderInterface {
	inner := NewCacheProvider(conf, logger)
	if _, disabled := inner.(*noopCache); disabled {
		return inner
	}
	return &instrumentedCache{inner: inner, metrics: metrics}
}
