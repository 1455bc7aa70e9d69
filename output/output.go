// Package output provides score-matrix sinks for the comparison pipeline.
//
// An Output receives similarity scores for (query, target) pairs, one
// bounded block pair at a time. The pipeline positions the sink with
// SetBlock(queryBlock, targetBlock) and then writes scores at offsets local
// to that block pair; the sink translates them to absolute matrix cells.
// Formats are keyed by file suffix: "mem" keeps the matrix in the session
// memory store, "csv" renders it as text, "mtx" writes the binary matrix
// format that ConvertOutput and CatOutputs read back.
package output

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hupe1980/brec/blobstore"
	"github.com/hupe1980/brec/resource"
	"github.com/hupe1980/brec/template"
)

// ErrUnknownFormat is returned by Open for a suffix with no registered opener.
var ErrUnknownFormat = errors.New("output: unknown output format")

// Output is a write-only score matrix sink scoped to one comparison run.
// Implementations are not safe for concurrent use; the pipeline owns the
// handle for the duration of the invocation and must Close it to flush.
type Output interface {
	// SetBlock positions the sink at the given (queryBlock, targetBlock)
	// pair. Subsequent Set calls use offsets local to this block pair.
	SetBlock(queryBlock, targetBlock int)

	// Set records one score at (queryIdx, targetIdx) within the current
	// block pair. Writing outside the matrix, or writing the same cell
	// twice, is an error.
	Set(score float32, queryIdx, targetIdx int) error

	Close() error
}

// Config carries the session state an output format needs.
type Config struct {
	// BlockSize is the pipeline block size; SetBlock(q, t) addresses the
	// cell region starting at (q*BlockSize, t*BlockSize).
	BlockSize int

	// MemStore receives "mem" outputs and serves ScoresFor lookups.
	MemStore *MemStore

	// Store is the blob store file-backed formats write through.
	Store blobstore.BlobStore

	// Resource rate-limits matrix reads when an IO limit is configured.
	// May be nil.
	Resource *resource.Controller
}

// Opener creates an Output for a file. The target and query lists fix the
// matrix dimensions: one column per target, one row per query.
type Opener func(ctx context.Context, f template.File, targetFiles, queryFiles template.FileList, cfg Config) (Output, error)

var (
	mu      sync.RWMutex
	openers = map[string]Opener{}
)

// Register installs an opener for a file suffix. Meant to be called from
// init; a later registration replaces an earlier one.
func Register(suffix string, opener Opener) {
	mu.Lock()
	defer mu.Unlock()
	openers[suffix] = opener
}

// Open creates the score sink for f, dispatching on the file suffix.
func Open(ctx context.Context, f template.File, targetFiles, queryFiles template.FileList, cfg Config) (Output, error) {
	if f.IsAnonymous() {
		return nil, fmt.Errorf("output: anonymous file needs a format suffix")
	}

	suffix := f.Suffix()
	mu.RLock()
	opener, ok := openers[suffix]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownFormat, suffix)
	}
	return opener(ctx, f, targetFiles, queryFiles, cfg)
}
