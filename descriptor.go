package brec

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hupe1980/brec/blobstore"
	"github.com/hupe1980/brec/distance"
	"github.com/hupe1980/brec/internal/spec"
	"github.com/hupe1980/brec/template"
	"github.com/hupe1980/brec/transform"
)

// maxAbbreviationDepth bounds recursive abbreviation expansion so that a
// self-referencing alias fails instead of looping.
const maxAbbreviationDepth = 16

// buildAlgorithm resolves a descriptor into a ready Algorithm.
//
// Resolution order:
//  1. a model blob in the configured model store
//  2. a model file in the configured model directory
//  3. a model file named directly by the descriptor
//  4. a registered abbreviation, resolved recursively
//  5. the descriptor grammar "featureSpec[:distanceSpec]"
func buildAlgorithm(ctx context.Context, s *Session, descriptor string) (*Algorithm, error) {
	d := strings.TrimSpace(descriptor)
	return resolveAlgorithm(ctx, s, d, d, 0)
}

func resolveAlgorithm(ctx context.Context, s *Session, descriptor, displayName string, depth int) (*Algorithm, error) {
	if depth > maxAbbreviationDepth {
		return nil, fatal("algorithm", fmt.Errorf("%w: abbreviation expansion exceeds %d levels in %q", ErrBadDescriptor, maxAbbreviationDepth, displayName))
	}

	f, err := template.ParseFile(descriptor)
	if err != nil {
		return nil, fatal("algorithm", err)
	}

	if s.modelStore != nil {
		a, err := loadAlgorithmBlob(ctx, s, s.modelStore, modelBlobName(f.Name), displayName)
		if err == nil {
			return a, nil
		}
		if !errors.Is(err, blobstore.ErrNotFound) {
			return nil, err
		}
	}
	if s.modelDir != "" {
		if path := filepath.Join(s.modelDir, f.Name); fileExists(path) {
			return loadAlgorithmFile(ctx, s, path, displayName)
		}
	}
	if f.Exists() {
		return loadAlgorithmFile(ctx, s, f.Name, displayName)
	}

	if expansion, ok := s.abbreviations[descriptor]; ok {
		return resolveAlgorithm(ctx, s, strings.TrimSpace(expansion), displayName, depth+1)
	}

	return parseAlgorithm(s, f, displayName)
}

// parseAlgorithm instantiates an Algorithm from the descriptor grammar:
// a feature spec, optionally followed by a colon and a distance spec.
// Nested parentheses and brackets shield inner colons from the split.
func parseAlgorithm(s *Session, f template.File, displayName string) (*Algorithm, error) {
	tokens := spec.Split(f.Name, ':')
	if len(tokens) < 1 || len(tokens) > 2 || strings.TrimSpace(tokens[0]) == "" {
		return nil, fatal("algorithm", fmt.Errorf("%w: %q", ErrBadDescriptor, displayName))
	}

	tf, err := transform.Make(strings.TrimSpace(tokens[0]))
	if err != nil {
		return nil, fatal("algorithm", err)
	}
	if distributable(f, s.parallelism) {
		tf = transform.NewDistribute(tf, s.parallelism)
	}

	var dist distance.Distance
	if len(tokens) == 2 {
		dist, err = distance.Make(strings.TrimSpace(tokens[1]))
		if err != nil {
			return nil, fatal("algorithm", err)
		}
	}

	return &Algorithm{
		name:      displayName,
		session:   s,
		transform: tf,
		distance:  dist,
	}, nil
}

// distributable reports whether the projection stage should fan out across
// workers. The descriptor option distribute=false opts out per algorithm.
func distributable(f template.File, parallelism int) bool {
	if parallelism < 1 {
		return false
	}
	return f.Get("distribute", "true") != "false"
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
