// Package brec provides the orchestration core of a biometric recognition
// pipeline for Go.
//
// Brec turns compact textual descriptors like "Normalize:L2" into trainable
// algorithms, streams record galleries through them in bounded-memory
// blocks, and scores query populations against target populations into
// sharded, resumable score matrices.
//
// # Quick Start
//
// Enroll and compare against a local directory:
//
//	ctx := context.Background()
//	s := brec.NewSession(brec.WithBlobStore(blobstore.NewLocalStore("./data")))
//
//	gal, _ := template.ParseFile("people.gal[algorithm=Normalize:L2]")
//	files, _ := s.Enroll(ctx, template.NewFile("people.csv"), gal)
//
//	out, _ := template.ParseFile("scores.mtx[algorithm=Normalize:L2]")
//	_ = s.Compare(ctx, template.NewFile("people.gal"), template.NewFile("."), out)
//
// Cloud mode:
//
//	s3Store, _ := s3.New(ctx, "my-bucket", s3.WithPrefix("biometrics/"))
//	s := brec.NewSession(brec.WithBlobStore(s3Store))
//
// # Descriptors
//
// An algorithm descriptor is "Transform" or "Transform:Distance". The
// transform projects raw records into comparable templates; the distance
// scores template pairs. An algorithm without a distance is a classifier
// and cannot compare. Parenthesized arguments configure a stage:
//
//	"Normalize(norm=l1)"          // classifier
//	"Normalize(norm=l2):Cosine"   // full recognition algorithm
//
// Descriptors resolve through three layers before parsing: a stored model
// blob or file of that name, then session abbreviations, then the grammar
// itself. Abbreviations name a full descriptor for reuse:
//
//	s := brec.NewSession(brec.WithAbbreviation("Face", "Normalize:L2"))
//	a, _ := s.Algorithm(ctx, "Face")
//
// # Galleries and Outputs
//
// Records move through galleries, addressed by file descriptors whose
// suffix picks the format and whose bracket options steer the pipeline:
//
//	"people.gal"                  // blocked binary gallery, lz4 frames
//	"people.csv"                  // text interchange with payloads
//	"people.txt"                  // record list, no payloads
//	"people.mem"                  // session memory
//	"people.gal[read,noDuplicates]"
//
// Score matrices leave through outputs the same way: ".mtx" is the
// self-contained binary matrix, ".csv" a text rendering, ".mem" stays in
// the session for Session.Matrix. The split option shards a comparison
// into index-aligned segment pairings, one output per segment.
//
// # Models
//
// Train fits the transform and distance on a gallery and stores the result
// as a compressed model blob. A model resolves back into an algorithm by
// naming it:
//
//	model, _ := template.ParseFile("face.model[algorithm=Center:ScaledL2]")
//	_ = s.Train(ctx, template.NewFile("train.csv"), model)
//	a, _ := s.Algorithm(ctx, "face.model")
//
// # Storage
//
// All gallery, output and model IO goes through blobstore.BlobStore.
// Implementations cover the local filesystem (mmap-backed reads), S3,
// S3 Express One Zone, DynamoDB-committed buckets, MinIO and memory; a
// read-through cache layers any of them over fast local disk.
//
// # Key Features
//
//   - Descriptor-driven algorithm construction with nesting and abbreviations
//   - Concurrency-safe lazy algorithm registry
//   - Blocked enrollment: bounded memory at any input size
//   - Multi-pass comparison: full cross product, one block pair in memory
//   - Sharded score matrices via the split option
//   - Trained models as compressed, checksummed blobs
//   - Pluggable transforms, distances, galleries and outputs
package brec
