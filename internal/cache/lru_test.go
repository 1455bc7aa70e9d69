package cache

import (
	"context"
	"testing"

	"github.com/hupe1980/brec/resource"
	"github.com/stretchr/testify/assert"
)

func galleryKey(path string, block uint64) CacheKey {
	return CacheKey{Kind: CacheKindBlob, Path: path, Offset: block}
}

func TestLRUBlockCache_EvictionOrder(t *testing.T) {
	ctx := context.Background()
	c := NewLRUBlockCache(3, nil)

	c.Set(ctx, galleryKey("subjects.gal", 0), []byte{'a'})
	c.Set(ctx, galleryKey("subjects.gal", 1), []byte{'b'})
	c.Set(ctx, galleryKey("subjects.gal", 2), []byte{'c'})

	// Touch block 0 so block 1 becomes the coldest entry.
	_, ok := c.Get(ctx, galleryKey("subjects.gal", 0))
	assert.True(t, ok)

	c.Set(ctx, galleryKey("subjects.gal", 3), []byte{'d'})

	_, ok = c.Get(ctx, galleryKey("subjects.gal", 1))
	assert.False(t, ok, "coldest block should have been evicted")
	for _, block := range []uint64{0, 2, 3} {
		_, ok := c.Get(ctx, galleryKey("subjects.gal", block))
		assert.True(t, ok, "block %d should still be cached", block)
	}
}

func TestLRUBlockCache_OversizedItem(t *testing.T) {
	ctx := context.Background()
	c := NewLRUBlockCache(32, nil)

	c.Set(ctx, galleryKey("subjects.gal", 0), make([]byte, 40))

	_, ok := c.Get(ctx, galleryKey("subjects.gal", 0))
	assert.False(t, ok, "item larger than the cache must not be stored")
	assert.Zero(t, c.Size())
}

func TestLRUBlockCache_UpdateResizes(t *testing.T) {
	ctx := context.Background()
	c := NewLRUBlockCache(64, nil)
	k := galleryKey("subjects.gal", 7)

	c.Set(ctx, k, make([]byte, 24))
	assert.Equal(t, int64(24), c.Size())

	c.Set(ctx, k, make([]byte, 40))
	assert.Equal(t, int64(40), c.Size())

	c.Set(ctx, k, make([]byte, 16))
	assert.Equal(t, int64(16), c.Size())
}

func TestLRUBlockCache_BudgetDeniesGrowth(t *testing.T) {
	ctx := context.Background()
	rc := resource.NewController(resource.Config{MemoryLimitBytes: 32})
	c := NewLRUBlockCache(64, rc)
	k := galleryKey("subjects.gal", 0)

	c.Set(ctx, k, make([]byte, 24))

	// Growing to 40 needs 16 more bytes, but only 8 remain in the global
	// budget. The update is refused and the old value stays.
	c.Set(ctx, k, make([]byte, 40))

	val, ok := c.Get(ctx, k)
	assert.True(t, ok)
	assert.Len(t, val, 24)
	assert.Equal(t, int64(24), c.Size())
}

func TestLRUBlockCache_EvictionFreesBudget(t *testing.T) {
	ctx := context.Background()
	rc := resource.NewController(resource.Config{MemoryLimitBytes: 16})
	c := NewLRUBlockCache(16, rc)

	c.Set(ctx, galleryKey("subjects.gal", 0), make([]byte, 12))

	// The second block only fits if evicting the first returns its bytes to
	// the controller before the new acquire.
	c.Set(ctx, galleryKey("subjects.gal", 1), make([]byte, 12))

	_, ok := c.Get(ctx, galleryKey("subjects.gal", 0))
	assert.False(t, ok)
	_, ok = c.Get(ctx, galleryKey("subjects.gal", 1))
	assert.True(t, ok)
	assert.Equal(t, int64(12), c.Size())
}

func TestLRUBlockCache_Counters(t *testing.T) {
	ctx := context.Background()
	c := NewLRUBlockCache(100, nil)
	k := galleryKey("subjects.gal", 0)

	c.Set(ctx, k, []byte{1})
	c.Get(ctx, k)
	c.Get(ctx, k)
	c.Get(ctx, galleryKey("probes.gal", 9))

	hits, misses := c.Stats()
	assert.Equal(t, int64(2), hits)
	assert.Equal(t, int64(1), misses)
}

func TestLRUBlockCache_InvalidateByPath(t *testing.T) {
	ctx := context.Background()
	c := NewLRUBlockCache(100, nil)

	c.Set(ctx, galleryKey("cold.gal", 0), make([]byte, 4))
	c.Set(ctx, galleryKey("cold.gal", 1), make([]byte, 6))
	c.Set(ctx, galleryKey("hot.gal", 0), make([]byte, 3))

	c.Invalidate(func(k CacheKey) bool {
		return k.Path == "cold.gal"
	})

	_, ok := c.Get(ctx, galleryKey("cold.gal", 0))
	assert.False(t, ok)
	_, ok = c.Get(ctx, galleryKey("cold.gal", 1))
	assert.False(t, ok)
	_, ok = c.Get(ctx, galleryKey("hot.gal", 0))
	assert.True(t, ok)
	assert.Equal(t, int64(3), c.Size(), "invalidated bytes should be released")
}
