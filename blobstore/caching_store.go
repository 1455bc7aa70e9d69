package blobstore

import (
	"bytes"
	"context"
	"errors"
	"io"

	"github.com/hupe1980/brec/internal/cache"
	"golang.org/x/sync/errgroup"
)

// CachingStore layers a block cache over another BlobStore. Reads are served
// out of the cache in fixed-size blocks and anything missing is fetched from
// the inner store, so repeated gallery scans against S3 or MinIO pay the
// round trip only once per block.
type CachingStore struct {
	inner     BlobStore
	cache     cache.BlockCache
	blockSize int64
}

// NewCachingStore wraps inner with a block cache. A blockSize of zero or less
// falls back to 4KB.
func NewCachingStore(inner BlobStore, cache cache.BlockCache, blockSize int64) *CachingStore {
	if blockSize <= 0 {
		blockSize = 4096
	}
	return &CachingStore{
		inner:     inner,
		cache:     cache,
		blockSize: blockSize,
	}
}

func (s *CachingStore) Open(ctx context.Context, name string) (Blob, error) {
	b, err := s.inner.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	return &CachingBlob{
		inner:     b,
		cache:     s.cache,
		name:      name,
		blockSize: s.blockSize,
	}, nil
}

// Create passes through uncached. A published blob is immutable; overwrites
// go through Put, which drops the stale blocks.
func (s *CachingStore) Create(ctx context.Context, name string) (WritableBlob, error) {
	return s.inner.Create(ctx, name)
}

func (s *CachingStore) Put(ctx context.Context, name string, data []byte) error {
	s.forget(name)
	return s.inner.Put(ctx, name, data)
}

func (s *CachingStore) Delete(ctx context.Context, name string) error {
	s.forget(name)
	return s.inner.Delete(ctx, name)
}

func (s *CachingStore) List(ctx context.Context, prefix string) ([]string, error) {
	return s.inner.List(ctx, prefix)
}

// forget drops every cached block belonging to name.
func (s *CachingStore) forget(name string) {
	s.cache.Invalidate(func(key cache.CacheKey) bool {
		return key.Kind == cache.CacheKindBlob && key.Path == name
	})
}

// CachingBlob is the read side of CachingStore. The cache key space is
// (name, block index), so handles onto the same name share blocks.
type CachingBlob struct {
	inner     Blob
	cache     cache.BlockCache
	name      string
	blockSize int64
}

func (b *CachingBlob) Close() error {
	return b.inner.Close()
}

func (b *CachingBlob) Size() int64 {
	return b.inner.Size()
}

func (b *CachingBlob) blockKey(idx int64) cache.CacheKey {
	return cache.CacheKey{Kind: cache.CacheKindBlob, Path: b.name, Offset: uint64(idx)}
}

func (b *CachingBlob) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	from := off / b.blockSize
	to := (off + int64(len(p)) - 1) / b.blockSize
	if err := b.warm(ctx, from, to); err != nil {
		return 0, err
	}

	total := 0
	for idx := from; idx <= to; idx++ {
		data, err := b.loadBlock(ctx, idx)
		if err != nil {
			return total, err
		}

		// Overlap of this block with [off, off+len(p)), in block-local
		// coordinates. A short last block clamps hi; a block past the end of
		// the blob is empty and contributes nothing.
		base := idx * b.blockSize
		lo := max(off-base, 0)
		hi := min(int64(len(data)), off+int64(len(p))-base)
		if hi <= lo {
			continue
		}
		total += copy(p[base+lo-off:], data[lo:hi])
	}

	// Reads past the end of the blob come back short, like the other blobs.
	if total < len(p) {
		return total, io.EOF
	}
	return total, nil
}

// warm makes every block in [from, to] resident before the copy loop runs.
// Missing blocks are grouped into contiguous spans so a cold sequential read
// costs one backend request per span, not one per block.
func (b *CachingBlob) warm(ctx context.Context, from, to int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var missing []int64
	for idx := from; idx <= to; idx++ {
		if _, ok := b.cache.Get(ctx, b.blockKey(idx)); !ok {
			missing = append(missing, idx)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(16) // bound concurrent backend reads

	for start := 0; start < len(missing); {
		end := start + 1
		for end < len(missing) && missing[end] == missing[end-1]+1 {
			end++
		}
		first, count := missing[start], int64(end-start)
		g.Go(func() error {
			return b.fetchSpan(gctx, first, count)
		})
		start = end
	}
	return g.Wait()
}

// fetchSpan reads count consecutive blocks starting at first in a single
// backend request and installs each block as its own cache entry.
func (b *CachingBlob) fetchSpan(ctx context.Context, first, count int64) error {
	start := first * b.blockSize
	size := b.Size()
	if start >= size {
		return nil
	}
	length := min(count*b.blockSize, size-start)

	buf := make([]byte, length)
	n, err := b.inner.ReadAt(ctx, buf, start)
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	buf = buf[:n]

	for i := int64(0); i*b.blockSize < int64(len(buf)); i++ {
		chunk := buf[i*b.blockSize : min((i+1)*b.blockSize, int64(len(buf)))]
		// Clone so a single cached block does not pin the whole span buffer.
		b.cache.Set(ctx, b.blockKey(first+i), bytes.Clone(chunk))
	}
	return nil
}

// loadBlock returns one block, from cache when resident. warm runs ahead of
// every read, so a miss here means the entry was evicted in between; the
// single-block fallback keeps the read correct regardless.
func (b *CachingBlob) loadBlock(ctx context.Context, idx int64) ([]byte, error) {
	key := b.blockKey(idx)
	if data, ok := b.cache.Get(ctx, key); ok {
		return data, nil
	}

	buf := make([]byte, b.blockSize)
	n, err := b.inner.ReadAt(ctx, buf, idx*b.blockSize)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	if n > 0 {
		b.cache.Set(ctx, key, buf[:n])
	}
	return buf[:n], nil
}

// ReadRange serves ranged reads through the same block cache as ReadAt.
func (b *CachingBlob) ReadRange(ctx context.Context, off, length int64) (io.ReadCloser, error) {
	return NopReadCloser(&cachedRange{blob: b, ctx: ctx, pos: off, end: off + length}), nil
}

// cachedRange adapts CachingBlob.ReadAt to io.Reader over a fixed window.
type cachedRange struct {
	blob *CachingBlob
	ctx  context.Context
	pos  int64
	end  int64
}

func (r *cachedRange) Read(p []byte) (int, error) {
	if r.pos >= r.end {
		return 0, io.EOF
	}
	if left := r.end - r.pos; int64(len(p)) > left {
		p = p[:left]
	}
	n, err := r.blob.ReadAt(r.ctx, p, r.pos)
	r.pos += int64(n)
	return n, err
}
