package gallery

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/hupe1980/brec/blobstore"
	"github.com/hupe1980/brec/template"
)

func init() {
	Register("csv", func(ctx context.Context, f template.File, cfg Config) (Gallery, error) {
		if cfg.Store == nil {
			return nil, fmt.Errorf("gallery: no blob store configured for %q", f.Flat())
		}
		return &csvGallery{ctx: ctx, name: f.Name, store: cfg.Store, blockSize: cfg.BlockSize}, nil
	})
}

// csvGallery is the text interchange format: a header row, then one row
// per record with the flat descriptor in the first column and the payload
// values in the rest. The whole file is materialized on first access;
// appends rewrite it atomically on Close.
type csvGallery struct {
	ctx       context.Context
	name      string
	store     blobstore.BlobStore
	blockSize int

	loaded    bool
	templates template.List
	cursor    int
	dirty     bool
}

func (g *csvGallery) load() error {
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

	r := csv.NewReader(rc)
	r.FieldsPerRecord = -1 // failed records carry no payload columns

	for row := 0; ; row++ {
		record, err := r.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("gallery: %q: %w", g.name, err)
		}
		if row == 0 {
			continue // header
		}

		f, err := template.ParseFile(record[0])
		if err != nil {
			return fmt.Errorf("gallery: %q row %d: %w", g.name, row, err)
		}
		var data []float32
		for _, field := range record[1:] {
			v, err := strconv.ParseFloat(field, 32)
			if err != nil {
				return fmt.Errorf("gallery: %q row %d: %w", g.name, row, err)
			}
			data = append(data, float32(v))
		}
		g.templates = append(g.templates, template.Template{File: f, Data: data})
	}
}

func (g *csvGallery) ReadBlock() (template.List, bool, error) {
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

func (g *csvGallery) WriteBlock(data template.List) error {
	if err := g.load(); err != nil {
		return err
	}
	g.templates = append(g.templates, data...)
	if len(data) > 0 {
		g.dirty = true
	}
	return nil
}

func (g *csvGallery) Files() (template.FileList, error) {
	if err := g.load(); err != nil {
		return nil, err
	}
	return g.templates.Files(), nil
}

func (g *csvGallery) Close() error {
	if !g.dirty {
		return nil
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	dim := 0
	if len(g.templates) > 0 {
		dim = len(g.templates[0].Data)
	}
	header := make([]string, 0, dim+1)
	header = append(header, "File")
	for i := 0; i < dim; i++ {
		header = append(header, "d"+strconv.Itoa(i))
	}
	if err := w.Write(header); err != nil {
		return err
	}

	for _, t := range g.templates {
		row := make([]string, 0, len(t.Data)+1)
		row = append(row, t.File.Flat())
		for _, v := range t.Data {
			row = append(row, strconv.FormatFloat(float64(v), 'g', -1, 32))
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return g.store.Put(g.ctx, g.name, buf.Bytes())
}
