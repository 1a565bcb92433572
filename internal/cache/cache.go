// Package cache provides the bounded, time-expiring cache that fronts the
// semantic-search path.
package cache

import (
	"container/list"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/knowd-io/knowd/internal/domain"
)

// DefaultTTL is the entry lifetime when none is configured.
const DefaultTTL = 5 * time.Minute

// DefaultMaxEntries is the capacity when none is configured.
const DefaultMaxEntries = 1024

type entry struct {
	key        string
	value      []domain.Match
	insertedAt time.Time
}

// QueryCache is a mutex-guarded LRU with absolute TTL expiry.
// An entry older than the TTL is treated as a miss and purged on Get;
// capacity overflow evicts the least-recently-used entry.
type QueryCache struct {
	mu         sync.Mutex
	maxEntries int
	ttl        time.Duration
	ll         *list.List
	items      map[string]*list.Element
	hits       uint64
	misses     uint64
	hitTotal   *prometheus.CounterVec
	logger     *zap.Logger
	now        func() time.Time
}

// New creates a query cache. hitTotal is a counter vec with label "result"
// ("hit"/"miss"), passed explicitly; nil disables metric reporting.
func New(maxEntries int, ttl time.Duration, hitTotal *prometheus.CounterVec, logger *zap.Logger) *QueryCache {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &QueryCache{
		maxEntries: maxEntries,
		ttl:        ttl,
		ll:         list.New(),
		items:      make(map[string]*list.Element),
		hitTotal:   hitTotal,
		logger:     logger,
		now:        time.Now,
	}
}

// Get returns the cached value for key. A stale entry counts as a miss and
// is purged; stale data is never returned as a hit.
func (c *QueryCache) Get(key string) ([]domain.Match, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		c.miss()
		return nil, false
	}

	e := el.Value.(*entry)
	if c.now().Sub(e.insertedAt) > c.ttl {
		c.removeElement(el)
		c.miss()
		return nil, false
	}

	c.ll.MoveToFront(el)
	c.hits++
	c.inc("hit")
	return e.value, true
}

// Put inserts or overwrites an entry. Overflow evicts the LRU entry first.
func (c *QueryCache) Put(key string, value []domain.Match) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		c.ll.MoveToFront(el)
		e := el.Value.(*entry)
		e.value = value
		e.insertedAt = c.now()
		return
	}

	for c.ll.Len() >= c.maxEntries {
		oldest := c.ll.Back()
		if oldest == nil {
			break
		}
		c.removeElement(oldest)
		if c.logger != nil {
			c.logger.Debug("Evicted LRU cache entry",
				zap.String("key", oldest.Value.(*entry).key))
		}
	}

	el := c.ll.PushFront(&entry{key: key, value: value, insertedAt: c.now()})
	c.items[key] = el
}

// Len returns the current entry count.
func (c *QueryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

// Stats returns accumulated hit and miss counts.
func (c *QueryCache) Stats() (hits, misses uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

func (c *QueryCache) miss() {
	c.misses++
	c.inc("miss")
}

func (c *QueryCache) inc(result string) {
	if c.hitTotal != nil {
		c.hitTotal.WithLabelValues(result).Inc()
	}
}

// removeElement must be called with mu held.
func (c *QueryCache) removeElement(el *list.Element) {
	c.ll.Remove(el)
	delete(c.items, el.Value.(*entry).key)
}
