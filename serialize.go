package brec

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/hupe1980/brec/blobstore"
	"github.com/hupe1980/brec/persistence"
	"github.com/hupe1980/brec/template"
)

// modelBlobName maps a model name to its key in a model store.
func modelBlobName(name string) string {
	return "models/" + name
}

// Store serializes the algorithm's descriptor and trained state to model.
// With a model store configured the blob is written there; otherwise it
// lands on the local filesystem through an atomic temp-file rename. The
// whole stream is zstd-compressed.
func (a *Algorithm) Store(ctx context.Context, model template.File) error {
	start := time.Now()

	var err error
	if a.transform == nil {
		err = fatal("store", ErrNilTransform)
	} else if a.session.modelStore != nil {
		var buf bytes.Buffer
		if err = writeModel(&buf, a); err == nil {
			err = a.session.modelStore.Put(ctx, modelBlobName(model.Name), buf.Bytes())
		}
	} else {
		err = persistence.SaveToFile(model.Name, func(w io.Writer) error {
			return writeModel(w, a)
		})
	}

	a.session.metrics.RecordModelStore(time.Since(start), err)
	a.session.logger.LogStore(ctx, model.Flat(), err)
	return err
}

// loadAlgorithmFile rebuilds a stored algorithm from a local model file.
func loadAlgorithmFile(ctx context.Context, s *Session, path, displayName string) (*Algorithm, error) {
	start := time.Now()

	var a *Algorithm
	err := persistence.LoadFromFile(path, func(r io.Reader) error {
		var err error
		a, err = readModel(s, r, displayName)
		return err
	})

	s.metrics.RecordModelLoad(time.Since(start), err)
	s.logger.LogLoad(ctx, path, err)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// loadAlgorithmBlob rebuilds a stored algorithm from a model store blob.
// A missing blob returns blobstore.ErrNotFound without logging, so
// descriptor resolution can fall through to the next source.
func loadAlgorithmBlob(ctx context.Context, s *Session, store blobstore.BlobStore, name, displayName string) (*Algorithm, error) {
	b, err := store.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer b.Close()

	start := time.Now()
	a, err := readModel(s, blobstore.Reader(ctx, b), displayName)

	s.metrics.RecordModelLoad(time.Since(start), err)
	s.logger.LogLoad(ctx, name, err)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func writeModel(w io.Writer, a *Algorithm) error {
	return persistence.Compress(w, persistence.DefaultCompressionLevel, func(pw *persistence.Writer) error {
		if err := pw.WriteHeader(&persistence.FileHeader{Kind: persistence.KindModel}); err != nil {
			return err
		}
		if err := pw.WriteString(a.name); err != nil {
			return err
		}
		if err := a.transform.Store(pw); err != nil {
			return err
		}
		if err := pw.WriteBool(a.distance != nil); err != nil {
			return err
		}
		if a.distance != nil {
			return a.distance.Store(pw)
		}
		return nil
	})
}

// readModel rebuilds an algorithm from its serialized form. The stored
// descriptor is resolved through abbreviations and the descriptor grammar
// only; it never reaches back into model files, so a model naming itself
// cannot recurse into another load.
func readModel(s *Session, r io.Reader, displayName string) (*Algorithm, error) {
	var a *Algorithm
	err := persistence.Decompress(r, func(pr *persistence.Reader) error {
		if _, err := pr.ReadHeader(persistence.KindModel); err != nil {
			return err
		}
		stored, err := pr.ReadString()
		if err != nil {
			return err
		}

		built, err := parseStoredDescriptor(s, stored, displayName)
		if err != nil {
			return err
		}
		if err := built.transform.Load(pr); err != nil {
			return err
		}

		hasDistance, err := pr.ReadBool()
		if err != nil {
			return err
		}
		if hasDistance != (built.distance != nil) {
			return fmt.Errorf("model distance flag disagrees with stored descriptor %q", stored)
		}
		if built.distance != nil {
			if err := built.distance.Load(pr); err != nil {
				return err
			}
		}

		a = built
		return nil
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

func parseStoredDescriptor(s *Session, stored, displayName string) (*Algorithm, error) {
	name := strings.TrimSpace(stored)
	for depth := 0; ; depth++ {
		if depth > maxAbbreviationDepth {
			return nil, fatal("load", fmt.Errorf("%w: abbreviation expansion exceeds %d levels in %q", ErrBadDescriptor, maxAbbreviationDepth, stored))
		}
		expansion, ok := s.abbreviations[name]
		if !ok {
			break
		}
		name = strings.TrimSpace(expansion)
	}

	f, err := template.ParseFile(name)
	if err != nil {
		return nil, fatal("load", err)
	}
	return parseAlgorithm(s, f, displayName)
}
