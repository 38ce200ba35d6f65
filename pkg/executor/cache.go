package executor

import (
	"container/list"
	"fmt"
	"hash/fnv"
	"sync"
)

// queryCache is a per-connection, size-bounded LRU of (cypher, params) -> *Result, grounded on the
// teacher's pkg/cypher/cache.go QueryCache (FNV-1a cache key over the cypher text plus a formatted
// params map, LRU eviction) but dropping its TTL: spec §4.6/§9 document invalidation as "whenever
// the executor observes a write", not time-based expiry, so this cache only ever evicts on size
// pressure or a write-triggered wholesale invalidate.
type queryCache struct {
	mu      sync.Mutex
	maxSize int
	entries map[uint64]*list.Element
	order   *list.List // front = most recently used
}

type cacheEntry struct {
	key    uint64
	result *Result
}

func newQueryCache(maxSize int) *queryCache {
	if maxSize <= 0 {
		maxSize = 1
	}
	return &queryCache{
		maxSize: maxSize,
		entries: make(map[uint64]*list.Element),
		order:   list.New(),
	}
}

func (c *queryCache) get(cypher string, params map[string]any) (*Result, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	key := cacheKey(cypher, params)
	el, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*cacheEntry).result, true
}

func (c *queryCache) put(cypher string, params map[string]any, result *Result) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	key := cacheKey(cypher, params)
	if el, ok := c.entries[key]; ok {
		el.Value.(*cacheEntry).result = result
		c.order.MoveToFront(el)
		return
	}
	el := c.order.PushFront(&cacheEntry{key: key, result: result})
	c.entries[key] = el
	for c.order.Len() > c.maxSize {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).key)
	}
}

func (c *queryCache) invalidate() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[uint64]*list.Element)
	c.order = list.New()
}

func cacheKey(cypher string, params map[string]any) uint64 {
	h := fnv.New64a()
	h.Write([]byte(cypher))
	h.Write([]byte(fmt.Sprintf("%v", params)))
	return h.Sum64()
}
