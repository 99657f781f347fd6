package geocode

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/couchcryptid/dispatch-feed-etl/internal/domain"
)

// outcome is a cached pair resolution. A miss is cached as found=false.
type outcome struct {
	coord domain.Coordinate
	found bool
}

// Cache is a bounded, goroutine-safe LRU of pair resolutions keyed by the
// unordered, uppercased query pair.
type Cache struct {
	entries *lru.Cache[string, outcome]
}

// NewCache creates a cache holding at most size pairs.
func NewCache(size int) (*Cache, error) {
	entries, err := lru.New[string, outcome](size)
	if err != nil {
		return nil, fmt.Errorf("create geocode cache: %w", err)
	}
	return &Cache{entries: entries}, nil
}

// Get returns the cached outcome for the pair. cached is false on a miss.
func (c *Cache) Get(a, b string) (coord domain.Coordinate, found, cached bool) {
	o, ok := c.entries.Get(pairKey(a, b))
	if !ok {
		return domain.Coordinate{}, false, false
	}
	return o.coord, o.found, true
}

// Put records the outcome for the pair.
func (c *Cache) Put(a, b string, coord domain.Coordinate, found bool) {
	c.entries.Add(pairKey(a, b), outcome{coord: coord, found: found})
}

// Len reports the number of cached pairs.
func (c *Cache) Len() int {
	return c.entries.Len()
}

func pairKey(a, b string) string {
	a, b = normalize(a), normalize(b)
	if b < a {
		a, b = b, a
	}
	return a + "\x1f" + b
}
