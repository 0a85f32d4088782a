package secrets

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Cache is an append-only secret cache: one upstream fetch per key for the
// process lifetime, concurrent first reads collapsed through singleflight so
// the source never sees duplicate in-flight requests for the same key.
// Failed fetches are not cached; the next reader retries.
type Cache struct {
	source Source
	group  singleflight.Group

	mu     sync.RWMutex
	values map[string]string
}

// NewCache wraps source with caching.
func NewCache(source Source) *Cache {
	return &Cache{source: source, values: make(map[string]string)}
}

// Get returns the cached value for name, fetching it once on first access.
func (c *Cache) Get(ctx context.Context, name string) (string, error) {
	c.mu.RLock()
	v, ok := c.values[name]
	c.mu.RUnlock()
	if ok {
		return v, nil
	}

	out, err, _ := c.group.Do(name, func() (any, error) {
		// Re-check under the flight: a previous winner may have populated
		// the map between the read above and this call.
		c.mu.RLock()
		v, ok := c.values[name]
		c.mu.RUnlock()
		if ok {
			return v, nil
		}

		fetched, err := c.source.Fetch(ctx, name)
		if err != nil {
			return "", err
		}

		c.mu.Lock()
		c.values[name] = fetched
		c.mu.Unlock()
		return fetched, nil
	})
	if err != nil {
		return "", err
	}
	return out.(string), nil
}
