package s3

import (
	"bytes"
	"context"
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/hupe1980/brec/blobstore"
)

// Options configures a Store created with New.
type Options struct {
	// Prefix is prepended to all keys, e.g. "models/".
	Prefix string

	// Region overrides the region resolved from the environment.
	Region string

	// Upload tunes streaming uploads. Zero value means DefaultUploadConfig.
	Upload UploadConfig

	// Client overrides the S3 client built from the default AWS config.
	// Useful for localstack or custom endpoints.
	Client Client
}

// Option mutates Options.
type Option func(*Options)

// WithPrefix sets the key prefix for all blobs in the store.
func WithPrefix(prefix string) Option {
	return func(o *Options) { o.Prefix = prefix }
}

// WithRegion overrides the AWS region.
func WithRegion(region string) Option {
	return func(o *Options) { o.Region = region }
}

// WithUploadConfig overrides the streaming upload settings.
func WithUploadConfig(cfg UploadConfig) Option {
	return func(o *Options) { o.Upload = cfg }
}

// WithClient supplies a pre-built S3 client.
func WithClient(client Client) Option {
	return func(o *Options) { o.Client = client }
}

// Store implements blobstore.BlobStore for S3. Model files and galleries
// written through it are streamed with multipart uploads and read back with
// ranged GETs.
type Store struct {
	client Client
	bucket string
	prefix string
	upload UploadConfig
}

// New creates an S3 blob store from the ambient AWS configuration
// (environment, shared config files, instance metadata).
func New(ctx context.Context, bucket string, optFns ...Option) (*Store, error) {
	opts := Options{Upload: DefaultUploadConfig()}
	for _, fn := range optFns {
		fn(&opts)
	}

	client := opts.Client
	if client == nil {
		var loadOpts []func(*config.LoadOptions) error
		if opts.Region != "" {
			loadOpts = append(loadOpts, config.WithRegion(opts.Region))
		}
		cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		client = s3.NewFromConfig(cfg)
	}

	store := NewStore(client, bucket, opts.Prefix)
	store.upload = opts.Upload
	return store, nil
}

// NewStore creates a new S3 blob store from an existing client.
// rootPrefix is prepended to all keys (e.g. "models/").
func NewStore(client Client, bucket, rootPrefix string) *Store {
	return &Store{
		client: client,
		bucket: bucket,
		prefix: rootPrefix,
		upload: DefaultUploadConfig(),
	}
}

func (s *Store) key(name string) string {
	return path.Join(s.prefix, name)
}

func (s *Store) Open(ctx context.Context, name string) (blobstore.Blob, error) {
	return statObject(ctx, s.client, s.bucket, s.key(name))
}

// Create starts a streaming upload. Data written to the returned blob is
// uploaded in the background; the object becomes visible when Close returns
// without error.
func (s *Store) Create(ctx context.Context, name string) (blobstore.WritableBlob, error) {
	uploader := newUploader(s.client, s.upload)
	return newStreamUpload(ctx, uploader, s.bucket, s.key(name), s.upload.EnableChecksum), nil
}

// Put uploads a small blob in a single request with CRC32C validation.
func (s *Store) Put(ctx context.Context, name string, data []byte) error {
	if s.upload.EnableChecksum {
		return putWithChecksum(ctx, s.client, s.bucket, s.key(name), data)
	}
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.key(name)),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	})
	return err
}

func (s *Store) Delete(ctx context.Context, name string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
	})
	return err
}

func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	return listObjects(ctx, s.client, s.bucket, s.key(prefix), s.prefix)
}
