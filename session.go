package brec

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/hupe1980/brec/blobstore"
	"github.com/hupe1980/brec/gallery"
	"github.com/hupe1980/brec/internal/progress"
	"github.com/hupe1980/brec/output"
	"github.com/hupe1980/brec/resource"
)

// DefaultBlockSize is the number of templates enrollment and comparison hold
// in memory per block when no explicit size is configured.
var DefaultBlockSize = 4096

// progressInterval is the minimum spacing between progress reports.
const progressInterval = time.Second

// Session carries the configuration shared by every pipeline operation:
// worker counts, block sizing, the algorithm cache and the backing stores.
// A Session is safe for concurrent use.
type Session struct {
	parallelism int
	blockSize   int
	quiet       bool

	abbreviations map[string]string
	modelDir      string
	modelStore    blobstore.BlobStore
	blobStore     blobstore.BlobStore
	resource      *resource.Controller

	galleryMem *gallery.MemStore
	outputMem  *output.MemStore

	logger  *Logger
	metrics MetricsCollector

	registry *Registry

	// enrollMu serializes implicit enrollment into session memory galleries.
	enrollMu sync.Mutex
}

// NewSession creates a Session. Without options it runs with one worker per
// CPU, DefaultBlockSize blocking and a local filesystem store rooted at the
// working directory.
func NewSession(optFns ...Option) *Session {
	o := applyOptions(optFns)

	if o.blockSize <= 0 {
		o.blockSize = DefaultBlockSize
	}
	if o.logger == nil {
		o.logger = NoopLogger()
	}
	if o.metricsCollector == nil {
		o.metricsCollector = NoopMetricsCollector{}
	}
	if o.blobStore == nil {
		o.blobStore = blobstore.NewLocalStore(".")
	}

	s := &Session{
		parallelism:   o.parallelism,
		blockSize:     o.blockSize,
		quiet:         o.quiet,
		abbreviations: o.abbreviations,
		modelDir:      o.modelDir,
		modelStore:    o.modelStore,
		blobStore:     o.blobStore,
		resource:      o.resource,
		galleryMem:    gallery.NewMemStore(),
		outputMem:     output.NewMemStore(),
		logger:        o.logger,
		metrics:       o.metricsCollector,
	}
	s.registry = newRegistry(s)
	return s
}

// Parallelism returns the configured worker count.
func (s *Session) Parallelism() int {
	return s.parallelism
}

// BlockSize returns the configured block size.
func (s *Session) BlockSize() int {
	return s.blockSize
}

// Registry returns the session's algorithm cache.
func (s *Session) Registry() *Registry {
	return s.registry
}

// Algorithm resolves name through the session registry, building and caching
// the algorithm on first use.
func (s *Session) Algorithm(ctx context.Context, name string) (*Algorithm, error) {
	return s.registry.Get(ctx, name)
}

// Matrix returns the score matrix a ".mem" output published in this session.
func (s *Session) Matrix(name string) (*output.Matrix, bool) {
	return s.outputMem.Get(name)
}

func (s *Session) galleryConfig() gallery.Config {
	return gallery.Config{
		BlockSize: s.blockSize,
		MemStore:  s.galleryMem,
		Store:     s.blobStore,
		Resource:  s.resource,
	}
}

func (s *Session) outputConfig() output.Config {
	return output.Config{
		BlockSize: s.blockSize,
		MemStore:  s.outputMem,
		Store:     s.blobStore,
		Resource:  s.resource,
	}
}

// tracker builds a progress tracker that reports through the session logger
// unless the session is quiet.
func (s *Session) tracker(op string) *progress.Tracker {
	if s.quiet {
		return progress.NewTracker(progressInterval, nil)
	}
	return progress.NewTracker(progressInterval, func(st progress.Status) {
		s.logger.LogProgress(op, st)
	})
}

// blocks returns how many blocks of the session block size cover n items.
func (s *Session) blocks(n int) int {
	if n <= 0 {
		return 0
	}
	return (n + s.blockSize - 1) / s.blockSize
}

func defaultParallelism() int {
	return runtime.GOMAXPROCS(0)
}
