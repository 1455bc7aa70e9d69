package cache

import (
	"context"
)

// CacheKind separates key spaces so invalidation can target one class of
// cached data.
type CacheKind uint8

const (
	CacheKindUnknown CacheKind = iota
	CacheKindBlob              // generic blob store blocks
	CacheKindGallery           // decoded gallery blocks
	CacheKindModel             // trained model bodies
)

// CacheKey identifies one cached block. Keys must be stable across
// processes.
type CacheKey struct {
	Kind CacheKind
	// Path names the source, a blob name or file path.
	Path string
	// Offset is a logical block identifier, typically a byte offset.
	Offset uint64
}

// BlockCache caches immutable byte blocks. Callers must not mutate slices
// passed to Set or returned by Get.
type BlockCache interface {
	// Get returns the block cached under key, if any.
	Get(ctx context.Context, key CacheKey) (b []byte, ok bool)
	// Set caches a block. Implementations may retain b without copying.
	Set(ctx context.Context, key CacheKey, b []byte)
	// Invalidate removes every entry the predicate matches.
	Invalidate(predicate func(key CacheKey) bool)
	// Close releases cache resources.
	Close() error
	// Stats returns the hit and miss counts.
	Stats() (hits, misses int64)
}
