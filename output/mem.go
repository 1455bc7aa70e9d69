package output

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/brec/template"
)

func init() {
	Register("mem", func(ctx context.Context, f template.File, targetFiles, queryFiles template.FileList, cfg Config) (Output, error) {
		if cfg.MemStore == nil {
			return nil, fmt.Errorf("output: no memory store configured for %q", f.Flat())
		}
		return &memOutput{
			scoreMatrix: newScoreMatrix(targetFiles, queryFiles, cfg.BlockSize),
			name:        f.Name,
			store:       cfg.MemStore,
		}, nil
	})
}

// MemStore holds completed in-memory score matrices by output name. It
// outlives the individual Output handles, so results written to a ".mem"
// output can be read back later in the same session.
type MemStore struct {
	mu       sync.RWMutex
	matrices map[string]*Matrix
}

// NewMemStore creates an empty matrix store.
func NewMemStore() *MemStore {
	return &MemStore{matrices: make(map[string]*Matrix)}
}

// Put stores a matrix under the given output name, replacing any previous
// matrix with that name.
func (s *MemStore) Put(name string, m *Matrix) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.matrices[name] = m
}

// Get returns the matrix stored under name.
func (s *MemStore) Get(name string) (*Matrix, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.matrices[name]
	return m, ok
}

// Delete removes the matrix stored under name, if any.
func (s *MemStore) Delete(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.matrices, name)
}

// Clear removes every stored matrix.
func (s *MemStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.matrices = make(map[string]*Matrix)
}

// memOutput accumulates scores in memory and publishes the finished matrix
// to the session MemStore on Close.
type memOutput struct {
	*scoreMatrix
	name  string
	store *MemStore
}

func (o *memOutput) Close() error {
	o.store.Put(o.name, o.mat)
	return nil
}
