package brec

import (
	"context"
	"errors"
	"sync"
)

// Registry caches built algorithms by descriptor so repeated operations share
// one instance. Construction happens outside the lock; when two goroutines
// race to build the same descriptor, the first registered instance wins and
// the loser is discarded.
type Registry struct {
	session *Session

	mu         sync.RWMutex
	algorithms map[string]*Algorithm
}

func newRegistry(s *Session) *Registry {
	return &Registry{
		session:    s,
		algorithms: make(map[string]*Algorithm),
	}
}

// Get returns the algorithm for descriptor, building it on first use.
// All callers asking for the same descriptor receive the same instance.
func (r *Registry) Get(ctx context.Context, descriptor string) (*Algorithm, error) {
	if descriptor == "" {
		return nil, fatal("algorithm", errors.New("no algorithm specified"))
	}

	r.mu.RLock()
	a, ok := r.algorithms[descriptor]
	r.mu.RUnlock()
	if ok {
		return a, nil
	}

	// Descriptor resolution may load model files or recurse through
	// abbreviations, so it must not run under the registry lock.
	candidate, err := buildAlgorithm(ctx, r.session, descriptor)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.algorithms[descriptor]; ok {
		return existing, nil
	}
	r.algorithms[descriptor] = candidate
	return candidate, nil
}

// Names returns the descriptors currently cached, in no particular order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.algorithms))
	for name := range r.algorithms {
		names = append(names, name)
	}
	return names
}

// Remove drops a cached algorithm, forcing the next Get to rebuild it.
// Useful after replacing a stored model on disk.
func (r *Registry) Remove(descriptor string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.algorithms, descriptor)
}

func (r *Registry) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.algorithms = make(map[string]*Algorithm)
}
