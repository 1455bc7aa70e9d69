package cache

import (
	"context"
	"hash/maphash"
	"sync"

	"github.com/hupe1980/brec/resource"
)

const numShards = 64

// ShardedLRUBlockCache spreads entries over 64 independent LRU shards so
// concurrent gallery streams do not serialize on one lock.
type ShardedLRUBlockCache struct {
	shards [numShards]*LRUBlockCache
	seed   maphash.Seed
}

// NewShardedLRUBlockCache creates a sharded LRU cache. Each shard gets an
// equal slice of capacity; a non-nil rc is shared by all of them.
func NewShardedLRUBlockCache(capacity int64, rc *resource.Controller) *ShardedLRUBlockCache {
	s := &ShardedLRUBlockCache{seed: maphash.MakeSeed()}
	for i := range numShards {
		s.shards[i] = NewLRUBlockCache(max(1, capacity/numShards), rc)
	}
	return s
}

// shard picks the shard for key by hashing its path, kind and offset.
func (s *ShardedLRUBlockCache) shard(key CacheKey) *LRUBlockCache {
	var h maphash.Hash
	h.SetSeed(s.seed)

	_, _ = h.WriteString(key.Path)

	var buf [9]byte
	buf[0] = byte(key.Kind)
	buf[1] = byte(key.Offset)
	buf[2] = byte(key.Offset >> 8)
	buf[3] = byte(key.Offset >> 16)
	buf[4] = byte(key.Offset >> 24)
	buf[5] = byte(key.Offset >> 32)
	buf[6] = byte(key.Offset >> 40)
	buf[7] = byte(key.Offset >> 48)
	buf[8] = byte(key.Offset >> 56)
	_, _ = h.Write(buf[:])

	return s.shards[h.Sum64()%numShards]
}

// Get returns a cached block.
func (s *ShardedLRUBlockCache) Get(ctx context.Context, key CacheKey) ([]byte, bool) {
	return s.shard(key).Get(ctx, key)
}

// Set caches a block.
func (s *ShardedLRUBlockCache) Set(ctx context.Context, key CacheKey, b []byte) {
	s.shard(key).Set(ctx, key, b)
}

// Invalidate removes matching entries from every shard. The shards sweep in
// parallel; the predicate must be safe for concurrent calls.
func (s *ShardedLRUBlockCache) Invalidate(predicate func(key CacheKey) bool) {
	var wg sync.WaitGroup
	wg.Add(numShards)
	for i := range numShards {
		go func(shard *LRUBlockCache) {
			defer wg.Done()
			shard.Invalidate(predicate)
		}(s.shards[i])
	}
	wg.Wait()
}

// Close closes every shard.
func (s *ShardedLRUBlockCache) Close() error {
	for i := range numShards {
		if err := s.shards[i].Close(); err != nil {
			return err
		}
	}
	return nil
}

// Stats sums hit and miss counts over the shards.
func (s *ShardedLRUBlockCache) Stats() (hits, misses int64) {
	for i := range numShards {
		h, m := s.shards[i].Stats()
		hits += h
		misses += m
	}
	return hits, misses
}

// Size sums the cached bytes over the shards.
func (s *ShardedLRUBlockCache) Size() int64 {
	var total int64
	for i := range numShards {
		total += s.shards[i].Size()
	}
	return total
}
