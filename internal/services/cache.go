package services

import (
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"vaxdash/internal/metrics"
)

// ResultCache memoizes prepared structures. Keys always start with the
// dataset fingerprint, so entries built from an older dataset are never
// served after a reload even before Purge runs. Cached values are shared and
// must not be modified by callers.
type ResultCache struct {
	lru     *lru.Cache[string, any]
	metrics *metrics.Metrics
}

func NewResultCache(size int, m *metrics.Metrics) (*ResultCache, error) {
	c, err := lru.New[string, any](size)
	if err != nil {
		return nil, fmt.Errorf("create result cache: %w", err)
	}
	return &ResultCache{lru: c, metrics: m}, nil
}

func (c *ResultCache) Purge() { c.lru.Purge() }

func (c *ResultCache) Len() int { return c.lru.Len() }

// cached returns the value stored under key or builds and stores it. Errors
// are not cached.
func cached[T any](c *ResultCache, key string, build func() (T, error)) (T, error) {
	if v, ok := c.lru.Get(key); ok {
		if typed, ok := v.(T); ok {
			c.metrics.CacheHit()
			return typed, nil
		}
	}
	c.metrics.CacheMiss()
	v, err := build()
	if err != nil {
		return v, err
	}
	c.lru.Add(key, v)
	return v, nil
}

func cacheKey(fingerprint, kind string, parts ...any) string {
	var b strings.Builder
	b.WriteString(fingerprint)
	b.WriteByte('|')
	b.WriteString(kind)
	for _, p := range parts {
		fmt.Fprintf(&b, "|%v", p)
	}
	return b.String()
}
