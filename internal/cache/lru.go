package cache

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/brec/resource"
)

// LRUBlockCache is a single-lock LRU BlockCache. Cached bytes count against
// the local capacity and, when a resource controller is attached, against
// the global memory budget.
type LRUBlockCache struct {
	mu       sync.Mutex
	capacity int64
	used     int64
	index    map[CacheKey]*list.Element
	order    *list.List // front is most recent

	rc *resource.Controller

	hits   atomic.Int64
	misses atomic.Int64
}

type block struct {
	key  CacheKey
	data []byte
}

// NewLRUBlockCache creates an LRU cache holding at most capacity bytes.
// A non-nil rc charges cached bytes to the global memory budget.
func NewLRUBlockCache(capacity int64, rc *resource.Controller) *LRUBlockCache {
	return &LRUBlockCache{
		capacity: capacity,
		index:    make(map[CacheKey]*list.Element),
		order:    list.New(),
		rc:       rc,
	}
}

// Get returns a cached block and marks it recently used.
func (c *LRUBlockCache) Get(ctx context.Context, key CacheKey) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.index[key]
	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	c.order.MoveToFront(e)
	return e.Value.(*block).data, true
}

// Set caches b under key. Items larger than the whole cache, and items the
// global budget has no room for, are silently not cached.
func (c *LRUBlockCache) Set(ctx context.Context, key CacheKey, b []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.index[key]; ok {
		c.update(e, b)
		return
	}

	size := int64(len(b))
	if size > c.capacity {
		return
	}

	// Free local space first; eviction returns bytes to the controller,
	// which may be what lets the acquire below succeed.
	for c.used+size > c.capacity {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.drop(oldest)
	}

	if c.rc != nil && !c.rc.TryAcquireMemory(size) {
		return
	}

	c.index[key] = c.order.PushFront(&block{key: key, data: b})
	c.used += size
}

// update replaces the value of an existing entry. When the global budget
// denies the growth the old value stays.
func (c *LRUBlockCache) update(e *list.Element, b []byte) {
	c.order.MoveToFront(e)

	blk := e.Value.(*block)
	oldSize, newSize := int64(len(blk.data)), int64(len(b))
	if c.rc != nil {
		switch {
		case newSize > oldSize:
			if !c.rc.TryAcquireMemory(newSize - oldSize) {
				return
			}
		case newSize < oldSize:
			c.rc.ReleaseMemory(oldSize - newSize)
		}
	}

	blk.data = b
	c.used += newSize - oldSize
	for c.used > c.capacity {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.drop(oldest)
	}
}

// Invalidate removes every entry the predicate matches.
func (c *LRUBlockCache) Invalidate(predicate func(key CacheKey) bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// drop mutates the list, so collect matches first.
	var matched []*list.Element
	for key, e := range c.index {
		if predicate(key) {
			matched = append(matched, e)
		}
	}
	for _, e := range matched {
		c.drop(e)
	}
}

func (c *LRUBlockCache) Close() error {
	return nil
}

// Stats returns the hit and miss counts.
func (c *LRUBlockCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// Size returns the cached bytes.
func (c *LRUBlockCache) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.used
}

// drop unlinks e and returns its bytes to the local and global budgets.
func (c *LRUBlockCache) drop(e *list.Element) {
	c.order.Remove(e)
	blk := e.Value.(*block)
	delete(c.index, blk.key)
	c.used -= int64(len(blk.data))
	if c.rc != nil {
		c.rc.ReleaseMemory(int64(len(blk.data)))
	}
}
