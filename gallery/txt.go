package gallery

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hupe1980/brec/blobstore"
	"github.com/hupe1980/brec/template"
)

func init() {
	Register("txt", func(ctx context.Context, f template.File, cfg Config) (Gallery, error) {
		if cfg.Store == nil {
			return nil, fmt.Errorf("gallery: no blob store configured for %q", f.Flat())
		}
		return &txtGallery{ctx: ctx, name: f.Name, store: cfg.Store, blockSize: cfg.BlockSize}, nil
	})
}

// txtGallery is the record-list format: one flat descriptor per line, no
// payloads. It is how raw input lists enter the enrollment pipeline and
// how record lists leave it for other tools.
type txtGallery struct {
	ctx       context.Context
	name      string
	store     blobstore.BlobStore
	blockSize int

	loaded    bool
	templates template.List
	cursor    int
	dirty     bool
}

func (g *txtGallery) load() error {
	if g.loaded {
		return nil
	}
	g.loaded = true

	blob, err := g.store.Open(g.ctx, g.name)
	if errors.Is(err, blobstore.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	defer blob.Close()

	rc, err := blob.ReadRange(g.ctx, 0, blob.Size())
	if err != nil {
		return err
	}
	defer rc.Close()

	scanner := bufio.NewScanner(rc)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		flat := strings.TrimSpace(scanner.Text())
		if flat == "" {
			continue
		}
		f, err := template.ParseFile(flat)
		if err != nil {
			return fmt.Errorf("gallery: %q line %d: %w", g.name, line, err)
		}
		g.templates = append(g.templates, template.Template{File: f})
	}
	return scanner.Err()
}

func (g *txtGallery) ReadBlock() (template.List, bool, error) {
	if err := g.load(); err != nil {
		return nil, false, err
	}
	if g.cursor >= len(g.templates) {
		g.cursor = 0
		return nil, true, nil
	}

	end := g.cursor + g.blockSize
	if g.blockSize <= 0 || end > len(g.templates) {
		end = len(g.templates)
	}
	block := g.templates[g.cursor:end:end]
	g.cursor = end
	return block, false, nil
}

func (g *txtGallery) WriteBlock(data template.List) error {
	if err := g.load(); err != nil {
		return err
	}
	g.templates = append(g.templates, data...)
	if len(data) > 0 {
		g.dirty = true
	}
	return nil
}

func (g *txtGallery) Files() (template.FileList, error) {
	if err := g.load(); err != nil {
		return nil, err
	}
	return g.templates.Files(), nil
}

func (g *txtGallery) Close() error {
	if !g.dirty {
		return nil
	}

	var sb strings.Builder
	for _, t := range g.templates {
		sb.WriteString(t.File.Flat())
		sb.WriteByte('\n')
	}
	return g.store.Put(g.ctx, g.name, []byte(sb.String()))
}
