package s3

import (
	"bytes"
	"context"
	"errors"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/hupe1980/brec/blobstore"
)

// ErrConflict is returned when a conditional write fails because the object
// already exists.
var ErrConflict = errors.New("object already exists")

// ExpressStore implements blobstore.BlobStore on S3 Express One Zone.
//
// Express One Zone is the single-AZ storage class with consistent
// single-digit millisecond access. It differs from standard S3 in three
// ways that matter here:
//   - buckets are directory buckets (names end with --azid--x-s3)
//   - authentication goes through CreateSession
//   - conditional writes (If-None-Match) are supported, which PutIfNotExists
//     uses to publish model versions exactly once
//
// It suits recognition workers that pull the current model on cold start and
// enrollment jobs that publish gallery blocks with low latency.
type ExpressStore struct {
	client Client
	bucket string
	prefix string
}

// NewExpressStore creates a new S3 Express One Zone blob store.
// The bucket must be a directory bucket (ending with --azid--x-s3).
func NewExpressStore(client Client, bucket, rootPrefix string) *ExpressStore {
	return &ExpressStore{client: client, bucket: bucket, prefix: rootPrefix}
}

func (s *ExpressStore) key(name string) string {
	return path.Join(s.prefix, name)
}

func (s *ExpressStore) Open(ctx context.Context, name string) (blobstore.Blob, error) {
	return statObject(ctx, s.client, s.bucket, s.key(name))
}

func (s *ExpressStore) Put(ctx context.Context, name string, data []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
		Body:   bytes.NewReader(data),
	})
	return err
}

// conditionalConflict reports whether err is the backend rejecting a
// conditional write because the object is already there. Directory buckets
// answer PreconditionFailed, regional endpoints ConditionalRequestConflict.
func conditionalConflict(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	code := apiErr.ErrorCode()
	return code == "PreconditionFailed" || code == "ConditionalRequestConflict"
}

// PutIfNotExists writes a blob only if the key is not already present, using
// a conditional write. A published model version can never be silently
// replaced this way. Returns ErrConflict when the object exists.
func (s *ExpressStore) PutIfNotExists(ctx context.Context, name string, data []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key(name)),
		Body:        bytes.NewReader(data),
		IfNoneMatch: aws.String("*"),
	})
	if conditionalConflict(err) {
		return ErrConflict
	}
	return err
}

// Create starts a streaming upload with the SDK's default part sizing.
func (s *ExpressStore) Create(ctx context.Context, name string) (blobstore.WritableBlob, error) {
	uploader := manager.NewUploader(s.client)
	return newStreamUpload(ctx, uploader, s.bucket, s.key(name), false), nil
}

func (s *ExpressStore) Delete(ctx context.Context, name string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
	})
	return err
}

func (s *ExpressStore) List(ctx context.Context, prefix string) ([]string, error) {
	return listObjects(ctx, s.client, s.bucket, s.key(prefix), s.prefix)
}
