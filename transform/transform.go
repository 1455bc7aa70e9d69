// Package transform defines the feature-extraction capability: a Transform
// turns raw records into feature templates, optionally after training on a
// labeled batch. Implementations register a factory by name; descriptors
// instantiate them with the "Name" or "Name(key=value,...)" grammar.
package transform

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hupe1980/brec/internal/spec"
	"github.com/hupe1980/brec/persistence"
	"github.com/hupe1980/brec/template"
)

// Transform is the feature-extraction stage of an algorithm.
//
// Project derives feature templates from raw ones without mutating its
// input. A record that cannot be processed is marked with the FTE option
// and kept; only conditions that invalidate the whole batch return an error.
type Transform interface {
	// Name returns the registered name of the transform.
	Name() string

	// Train fits the transform on a labeled batch.
	Train(ctx context.Context, data template.List) error

	// Project derives feature templates. The returned list may grow or
	// shrink relative to the input.
	Project(ctx context.Context, data template.List) (template.List, error)

	// Store writes the trained state.
	Store(w *persistence.Writer) error

	// Load reads the trained state.
	Load(r *persistence.Reader) error
}

// Factory constructs a Transform from its parsed spec arguments.
type Factory func(args map[string]string) (Transform, error)

// ErrUnknown is returned by Make for an unregistered transform name.
var ErrUnknown = errors.New("transform: unknown transform")

var (
	factoryMu sync.RWMutex
	factories = map[string]Factory{}
)

// Register registers a transform factory under a name.
//
// Implementations should typically call this from an init() function.
func Register(name string, factory Factory) {
	factoryMu.Lock()
	defer factoryMu.Unlock()
	factories[name] = factory
}

// Make instantiates a transform from a descriptor of the form "Name" or
// "Name(key=value,flag,...)".
func Make(descriptor string) (Transform, error) {
	name, args, err := spec.Parse(descriptor)
	if err != nil {
		return nil, err
	}

	factoryMu.RLock()
	factory, ok := factories[name]
	factoryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknown, name)
	}

	return factory(args)
}
