// Package gallery provides the enrolled-template stores the pipelines
// stream through. A Gallery is a cursor over template batches: repeated
// ReadBlock calls walk one pass in source order, a finished pass restarts
// from the beginning, and WriteBlock appends. Formats are keyed by file
// suffix: "mem" lives in the session memory store, "gal" (and its
// "template" alias) is the blocked lz4-compressed binary format, "csv" and
// "txt" are text formats for interchange and record lists.
package gallery

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
var ErrUnknownFormat = errors.New("gallery: unknown gallery format")

// Gallery is a streaming cursor over enrolled templates. Handles are
// single-owner per pipeline invocation and must be closed to flush writes.
type Gallery interface {
	// ReadBlock returns the next batch of one read pass. done reports that
	// the pass is complete: the call carried no data and the next ReadBlock
	// starts a fresh pass from the beginning.
	ReadBlock() (data template.List, done bool, err error)

	// WriteBlock appends a batch to the gallery.
	WriteBlock(data template.List) error

	// Files returns the descriptors of all records currently stored,
	// without disturbing the read cursor.
	Files() (template.FileList, error)

	Close() error
}

// Config carries the session state a gallery format needs.
type Config struct {
	// BlockSize bounds the batch size ReadBlock returns.
	BlockSize int

	// MemStore backs "mem" galleries.
	MemStore *MemStore

	// Store is the blob store file-backed formats read and write through.
	Store blobstore.BlobStore

	// Resource rate-limits streaming reads when an IO limit is configured.
	// May be nil.
	Resource *resource.Controller
}

// Opener creates a Gallery handle for a file.
type Opener func(ctx context.Context, f template.File, cfg Config) (Gallery, error)

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

// Registered reports whether a gallery format is registered for the suffix.
func Registered(suffix string) bool {
	mu.RLock()
	defer mu.RUnlock()
	_, ok := openers[suffix]
	return ok
}

// Open creates a gallery handle for f, dispatching on the file suffix.
func Open(ctx context.Context, f template.File, cfg Config) (Gallery, error) {
	suffix := f.Suffix()
	mu.RLock()
	opener, ok := openers[suffix]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownFormat, suffix)
	}
	return opener(ctx, f, cfg)
}

// ReadAll materializes a source as one in-memory list. A registered gallery
// suffix is streamed through one full pass; any other file stands for
// itself and yields a single raw template carrying the descriptor.
func ReadAll(ctx context.Context, f template.File, cfg Config) (template.List, error) {
	if !Registered(f.Suffix()) {
		return template.List{{File: f}}, nil
	}

	g, err := Open(ctx, f, cfg)
	if err != nil {
		return nil, err
	}
	defer g.Close()

	var all template.List
	for {
		block, done, err := g.ReadBlock()
		if err != nil {
			return nil, err
		}
		if done {
			return all, nil
		}
		all = append(all, block...)
	}
}
