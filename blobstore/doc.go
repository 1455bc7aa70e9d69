// Package blobstore abstracts where galleries, trained models and score
// matrices live. Everything above it reads and writes named blobs; whether
// those land on a local disk, in memory or in an object store is the
// caller's wiring choice.
//
// Four implementations ship with the package:
//
//   - LocalStore writes to a directory, publishes atomically via rename and
//     memory-maps large reads
//   - MemoryStore keeps blobs in a map for tests and scratch pipelines
//   - s3.Store talks to Amazon S3 with ranged GETs and multipart uploads
//   - minio.Store covers MinIO and other S3-compatible endpoints
//
// CachingStore wraps any of them with a block-level read cache, which turns
// repeated gallery scans against a remote backend into memory hits.
//
// Custom backends implement BlobStore. Two conventions matter: Create makes
// the blob visible to readers only when Close returns, and a ReadAt clamped
// at the end of the blob returns the bytes read together with io.EOF, like
// io.ReaderAt. Cloud backends should serve ReadRange with a single range
// request instead of falling back to ReadAt.
package blobstore
