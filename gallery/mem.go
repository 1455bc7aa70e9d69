package gallery

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/brec/template"
)

func init() {
	Register("mem", func(ctx context.Context, f template.File, cfg Config) (Gallery, error) {
		if cfg.MemStore == nil {
			return nil, fmt.Errorf("gallery: no memory store configured for %q", f.Flat())
		}
		return &memGallery{
			data:      cfg.MemStore.lookup(f.Name),
			blockSize: cfg.BlockSize,
		}, nil
	})
}

// MemStore holds in-process galleries by name. The implicit galleries that
// cache enrollment results between comparison runs live here, so the store
// must outlive the individual handles.
type MemStore struct {
	mu        sync.RWMutex
	galleries map[string]*memData
}

// NewMemStore creates an empty gallery store.
func NewMemStore() *MemStore {
	return &MemStore{galleries: make(map[string]*memData)}
}

func (s *MemStore) lookup(name string) *memData {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.galleries[name]
	if !ok {
		d = &memData{}
		s.galleries[name] = d
	}
	return d
}

// Contains reports whether a gallery is stored under name.
func (s *MemStore) Contains(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.galleries[name]
	return ok
}

// Delete drops the gallery stored under name, if any.
func (s *MemStore) Delete(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.galleries, name)
}

// Clear drops every stored gallery. Open handles keep their backing data.
func (s *MemStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.galleries = make(map[string]*memData)
}

// memData is the shared backing of one memory gallery. Handles opened for
// the same name all see the same records.
type memData struct {
	mu        sync.RWMutex
	templates template.List
}

func (d *memData) snapshot() template.List {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.templates
}

func (d *memData) append(data template.List) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.templates = append(d.templates, data...)
}

// memGallery streams a shared in-memory record list in blocks.
type memGallery struct {
	data      *memData
	blockSize int
	cursor    int
}

func (g *memGallery) ReadBlock() (template.List, bool, error) {
	templates := g.data.snapshot()
	if g.cursor >= len(templates) {
		g.cursor = 0
		return nil, true, nil
	}

	end := g.cursor + g.blockSize
	if g.blockSize <= 0 || end > len(templates) {
		end = len(templates)
	}
	block := templates[g.cursor:end:end]
	g.cursor = end
	return block, false, nil
}

func (g *memGallery) WriteBlock(data template.List) error {
	g.data.append(data)
	return nil
}

func (g *memGallery) Files() (template.FileList, error) {
	return g.data.snapshot().Files(), nil
}

func (g *memGallery) Close() error { return nil }
