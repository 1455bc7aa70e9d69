package brec

import (
	"log/slog"

	"github.com/hupe1980/brec/blobstore"
	"github.com/hupe1980/brec/resource"
)

type options struct {
	parallelism      int
	blockSize        int
	quiet            bool
	abbreviations    map[string]string
	modelDir         string
	modelStore       blobstore.BlobStore
	blobStore        blobstore.BlobStore
	metricsCollector MetricsCollector
	logger           *Logger
	resource         *resource.Controller
}

// Option configures Session constructor behavior.
//
// Today options primarily exist to avoid exploding the API surface
// (e.g. store-specific constructor variants).
type Option func(*options)

// WithParallelism configures how many worker goroutines pipeline stages may
// use. Values below 1 disable intra-stage parallelism entirely, including
// the concurrent projection wrapper around algorithm transforms.
func WithParallelism(n int) Option {
	return func(o *options) {
		o.parallelism = n
	}
}

// WithBlockSize bounds how many templates enrollment and comparison hold in
// memory at once. Galleries are read, projected and written in blocks of this
// size, and score matrices are partitioned along the same boundaries.
//
// If n <= 0, DefaultBlockSize is used.
func WithBlockSize(n int) Option {
	return func(o *options) {
		o.blockSize = n
	}
}

// WithQuiet suppresses periodic progress reports. Pipelines still log their
// start and completion summaries.
func WithQuiet() Option {
	return func(o *options) {
		o.quiet = true
	}
}

// WithAbbreviation registers a shorthand name for an algorithm descriptor.
// Abbreviations are resolved recursively, so an expansion may itself name
// another abbreviation.
//
// Example:
//
//	session := brec.NewSession(
//	    brec.WithAbbreviation("FaceRec", "Center:ScaledL2"),
//	)
func WithAbbreviation(name, descriptor string) Option {
	return func(o *options) {
		o.abbreviations[name] = descriptor
	}
}

// WithModelDir configures a directory searched for pre-trained model files.
// A descriptor naming a file in this directory loads the stored algorithm
// instead of being parsed.
func WithModelDir(dir string) Option {
	return func(o *options) {
		o.modelDir = dir
	}
}

// WithModelStore configures a blob store for model persistence. When set,
// Store writes models to the store and descriptor resolution consults it,
// taking precedence over plain files.
func WithModelStore(store blobstore.BlobStore) Option {
	return func(o *options) {
		o.modelStore = store
	}
}

// WithBlobStore configures the store backing file galleries and outputs.
// Defaults to the local filesystem rooted at the working directory. Pass an
// S3 or in-memory store to run pipelines against remote or ephemeral data.
func WithBlobStore(store blobstore.BlobStore) Option {
	return func(o *options) {
		o.blobStore = store
	}
}

// WithResourceController attaches a resource controller to the session.
// Gallery and matrix streaming go through its IO limiter, and a caching
// blob store built on the same controller shares its memory budget.
//
// Example:
//
//	rc := resource.NewController(resource.Config{IOLimitBytesPerSec: 64 << 20})
//	session := brec.NewSession(brec.WithResourceController(rc))
func WithResourceController(rc *resource.Controller) Option {
	return func(o *options) {
		o.resource = rc
	}
}

// WithMetricsCollector configures a metrics collector for monitoring
// operations. Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &brec.BasicMetricsCollector{}
//	session := brec.NewSession(brec.WithMetricsCollector(metrics))
//	// ... run pipelines ...
//	stats := metrics.GetStats()
//	fmt.Printf("Comparisons: %d, Avg latency: %dns\n", stats.Comparisons, stats.CompareAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := brec.NewJSONLogger(slog.LevelInfo)
//	session := brec.NewSession(brec.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		parallelism:      defaultParallelism(),
		blockSize:        DefaultBlockSize,
		abbreviations:    make(map[string]string),
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
