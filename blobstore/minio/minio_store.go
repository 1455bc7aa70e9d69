package minio

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/hupe1980/brec/blobstore"
	"github.com/minio/minio-go/v7"
)

// Store serves blobs out of a MinIO bucket, or any S3-compatible endpoint the
// minio client can reach. Every key lives under a fixed root prefix so one
// bucket can carry several independent stores.
type Store struct {
	client *minio.Client
	bucket string
	prefix string
}

// NewStore returns a Store backed by bucket. rootPrefix is prepended to every
// name ("models/" for example); pass "" to work from the bucket root.
func NewStore(client *minio.Client, bucket, rootPrefix string) *Store {
	return &Store{client: client, bucket: bucket, prefix: rootPrefix}
}

func (s *Store) key(name string) string {
	return path.Join(s.prefix, name)
}

// missingObject reports whether err is the backend's way of saying the key
// does not exist.
func missingObject(err error) bool {
	code := minio.ToErrorResponse(err).Code
	return code == "NoSuchKey" || code == "NotFound"
}

// Open stats the object once to pin its size. Reads are ranged GETs against
// that snapshot.
func (s *Store) Open(ctx context.Context, name string) (blobstore.Blob, error) {
	key := s.key(name)
	info, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if missingObject(err) {
			return nil, blobstore.ErrNotFound
		}
		return nil, err
	}
	return &object{client: s.client, bucket: s.bucket, key: key, size: info.Size}, nil
}

// Put uploads data under name in a single request.
func (s *Store) Put(ctx context.Context, name string, data []byte) error {
	_, err := s.client.PutObject(ctx, s.bucket, s.key(name), bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{})
	return err
}

// Create starts a streaming upload. Written bytes are piped into a PutObject
// running in the background; Close waits for the upload to land and returns
// its error.
func (s *Store) Create(ctx context.Context, name string) (blobstore.WritableBlob, error) {
	pr, pw := io.Pipe()
	up := &pipeUpload{w: pw, result: make(chan error, 1)}

	go func() {
		_, err := s.client.PutObject(ctx, s.bucket, s.key(name), pr, -1, minio.PutObjectOptions{})
		_ = pr.CloseWithError(err)
		up.result <- err
	}()

	return up, nil
}

// Delete removes name. Deleting an absent object is not an error.
func (s *Store) Delete(ctx context.Context, name string) error {
	err := s.client.RemoveObject(ctx, s.bucket, s.key(name), minio.RemoveObjectOptions{})
	if err != nil && !missingObject(err) {
		return err
	}
	return nil
}

// List returns the sorted names under prefix, with the store's root prefix
// stripped off.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	opts := minio.ListObjectsOptions{Prefix: s.key(prefix), Recursive: true}

	var names []string
	for obj := range s.client.ListObjects(ctx, s.bucket, opts) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		name := strings.TrimPrefix(strings.TrimPrefix(obj.Key, s.prefix), "/")
		if name != "" {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// object is a read handle onto one stored object. Blobs are written once and
// never modified in place, so the size captured at Open stays valid.
type object struct {
	client *minio.Client
	bucket string
	key    string
	size   int64
}

func (o *object) Size() int64 {
	return o.size
}

func (o *object) Close() error {
	return nil
}

// get issues a ranged GET over the inclusive byte range [off, end].
func (o *object) get(ctx context.Context, off, end int64) (*minio.Object, error) {
	opts := minio.GetObjectOptions{}
	if err := opts.SetRange(off, end); err != nil {
		return nil, err
	}
	return o.client.GetObject(ctx, o.bucket, o.key, opts)
}

func (o *object) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if off >= o.size {
		return 0, io.EOF
	}
	end := min(off+int64(len(p)), o.size) - 1

	obj, err := o.get(ctx, off, end)
	if err != nil {
		return 0, err
	}
	defer obj.Close()

	n, err := io.ReadFull(obj, p[:end-off+1])
	if err != nil {
		return n, err
	}
	// The request ran past the end of the object and was clamped.
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// ReadRange streams [off, off+length), clamped to the object size. A range
// starting at or past the end yields an empty reader.
func (o *object) ReadRange(ctx context.Context, off, length int64) (io.ReadCloser, error) {
	if off >= o.size || length <= 0 {
		return blobstore.NopReadCloser(bytes.NewReader(nil)), nil
	}
	return o.get(ctx, off, min(off+length, o.size)-1)
}

// pipeUpload is the writer half of a streaming upload. The reader half feeds
// the PutObject goroutine started by Create.
type pipeUpload struct {
	w      *io.PipeWriter
	result chan error
	done   atomic.Bool
}

func (u *pipeUpload) Write(p []byte) (int, error) {
	return u.w.Write(p)
}

// Close finishes the stream and blocks until the upload has committed.
func (u *pipeUpload) Close() error {
	if !u.done.CompareAndSwap(false, true) {
		return errors.New("already closed")
	}
	if err := u.w.Close(); err != nil {
		return err
	}
	return <-u.result
}

// Abort tears down the pipe so the background PutObject gives up. Abort after
// Close is a no-op.
func (u *pipeUpload) Abort() error {
	if !u.done.CompareAndSwap(false, true) {
		return nil
	}
	return u.w.CloseWithError(errors.New("upload aborted"))
}

// Sync is a no-op. Bytes only become visible when Close commits the upload.
func (u *pipeUpload) Sync() error {
	return nil
}
