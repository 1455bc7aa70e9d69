// Package distance defines the comparison-metric capability: a Distance
// scores (target, query) template pairs into an output sink. Implementations
// register a factory by name and are instantiated through the same
// "Name(key=value,...)" grammar as transforms. An algorithm without a
// distance is a classifier and cannot score pairs.
package distance

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hupe1980/brec/internal/spec"
	"github.com/hupe1980/brec/output"
	"github.com/hupe1980/brec/persistence"
	"github.com/hupe1980/brec/template"
)

// Distance is the pairwise scoring stage of an algorithm.
//
// Compare scores the full cross product of the two lists into the sink,
// one cell per (query, target) pair, using sink-local offsets: query i,
// target j. A pair that cannot be scored (failed record, dimension
// mismatch) receives the metric's worst value instead of failing the run.
type Distance interface {
	// Name returns the registered name of the distance.
	Name() string

	// Train fits the distance on a batch the transform already projected.
	Train(ctx context.Context, data template.List) error

	// Compare scores targets against queries into the sink.
	Compare(targets, queries template.List, sink output.Output) error

	// Store writes the trained state.
	Store(w *persistence.Writer) error

	// Load reads the trained state.
	Load(r *persistence.Reader) error
}

// Factory constructs a Distance from its parsed spec arguments.
type Factory func(args map[string]string) (Distance, error)

// ErrUnknown is returned by Make for an unregistered distance name.
var ErrUnknown = errors.New("distance: unknown distance")

var (
	factoryMu sync.RWMutex
	factories = map[string]Factory{}
)

// Register registers a distance factory under a name.
//
// Implementations should typically call this from an init() function.
func Register(name string, factory Factory) {
	factoryMu.Lock()
	defer factoryMu.Unlock()
	factories[name] = factory
}

// Make instantiates a distance from a descriptor of the form "Name" or
// "Name(key=value,flag,...)".
func Make(descriptor string) (Distance, error) {
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
