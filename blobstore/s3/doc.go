// Package s3 keeps trained models and enrolled galleries in Amazon S3.
//
// New dials a bucket with default credentials and returns a
// blobstore.BlobStore; NewStore accepts a preconfigured client, which is
// how tests inject mocks:
//
//	store, err := s3.New(ctx, "my-bucket",
//	    s3.WithPrefix("models/"),
//	    s3.WithRegion("us-east-1"),
//	)
//
// Blobs are read with ranged GETs, so streaming a gallery block touches
// only the bytes it needs. Writes stream through multipart uploads with
// CRC32C trailers and become visible only once Close completes.
//
// Two specialized stores build on the same client: ExpressStore targets
// S3 Express One Zone directory buckets and adds PutIfNotExists via
// conditional writes, and DDBCommitStore keeps a LATEST model pointer in
// DynamoDB so concurrent trainers cannot publish over each other.
package s3
