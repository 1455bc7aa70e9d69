package s3

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"io"
	"sync"
	"sync/atomic"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/hupe1980/brec/internal/hash"
)

// UploadConfig configures streaming uploads of models and galleries.
type UploadConfig struct {
	// PartSize is the minimum part size for multipart uploads.
	// Default: 8MB.
	PartSize int64

	// Concurrency is the number of concurrent part uploads.
	// Default: 5 (matches SDK default).
	Concurrency int

	// EnableChecksum enables CRC32C integrity validation.
	// Default: true.
	EnableChecksum bool

	// LeavePartsOnError controls whether failed multipart uploads
	// are automatically aborted.
	// Default: false (abort on error).
	LeavePartsOnError bool
}

// DefaultUploadConfig returns the default upload settings.
func DefaultUploadConfig() UploadConfig {
	return UploadConfig{
		PartSize:          8 * 1024 * 1024,
		Concurrency:       5,
		EnableChecksum:    true,
		LeavePartsOnError: false,
	}
}

// newUploader builds a manager.Uploader from cfg. A zero cfg falls back to
// the defaults.
func newUploader(client Client, cfg UploadConfig) *manager.Uploader {
	if cfg.PartSize == 0 {
		cfg = DefaultUploadConfig()
	}
	return manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = cfg.PartSize
		u.Concurrency = cfg.Concurrency
		u.LeavePartsOnError = cfg.LeavePartsOnError
	})
}

// computeCRC32C returns the CRC32C of data in the base64 big-endian form the
// S3 checksum headers expect.
func computeCRC32C(data []byte) string {
	var sum [4]byte
	binary.BigEndian.PutUint32(sum[:], hash.CRC32C(data))
	return base64.StdEncoding.EncodeToString(sum[:])
}

// streamUpload is the writer half of a streaming upload. Bytes written to it
// flow through a pipe into manager.Uploader running in its own goroutine,
// which promotes large bodies to multipart automatically. Close waits for
// the upload to commit and surfaces its error.
type streamUpload struct {
	w        *io.PipeWriter
	r        *io.PipeReader
	uploader *manager.Uploader
	bucket   string
	key      string

	result chan error
	closed atomic.Bool
	mu     sync.Mutex
	err    error
}

func newStreamUpload(ctx context.Context, uploader *manager.Uploader, bucket, key string, checksum bool) *streamUpload {
	pr, pw := io.Pipe()
	up := &streamUpload{
		w:        pw,
		r:        pr,
		uploader: uploader,
		bucket:   bucket,
		key:      key,
		result:   make(chan error, 1),
	}
	go up.run(ctx, checksum)
	return up
}

func (u *streamUpload) run(ctx context.Context, checksum bool) {
	input := &s3.PutObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(u.key),
		Body:   u.r,
	}
	if checksum {
		input.ChecksumAlgorithm = types.ChecksumAlgorithmCrc32c
	}

	_, err := u.uploader.Upload(ctx, input)

	// Closing the read end unblocks any pending Write with the same error.
	_ = u.r.CloseWithError(err)
	u.result <- err
}

func (u *streamUpload) Write(p []byte) (int, error) {
	if u.closed.Load() {
		return 0, io.ErrClosedPipe
	}
	return u.w.Write(p)
}

// Close signals EOF to the uploader and blocks until the object has
// committed. Repeated calls return the first result.
func (u *streamUpload) Close() error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if !u.closed.CompareAndSwap(false, true) {
		return u.err
	}
	if err := u.w.Close(); err != nil {
		u.err = err
		return err
	}
	u.err = <-u.result
	return u.err
}

// Abort tears down the pipe so the background upload fails. The uploader
// cleans up its own multipart state unless LeavePartsOnError is set.
func (u *streamUpload) Abort() error {
	u.closed.Store(true)
	return u.w.CloseWithError(context.Canceled)
}

// Sync is a no-op. Bytes only become visible when Close commits the upload.
func (u *streamUpload) Sync() error {
	return nil
}

// putWithChecksum uploads a small blob in one request with CRC32C validation
// on the wire.
func putWithChecksum(ctx context.Context, client Client, bucket, key string, data []byte) error {
	_, err := client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:         aws.String(bucket),
		Key:            aws.String(key),
		Body:           bytes.NewReader(data),
		ContentLength:  aws.Int64(int64(len(data))),
		ChecksumCRC32C: aws.String(computeCRC32C(data)),
	})
	return err
}
