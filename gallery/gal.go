package gallery

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/pierrec/lz4/v4"

	"github.com/hupe1980/brec/blobstore"
	"github.com/hupe1980/brec/persistence"
	"github.com/hupe1980/brec/resource"
	"github.com/hupe1980/brec/template"
)

func init() {
	opener := func(ctx context.Context, f template.File, cfg Config) (Gallery, error) {
		if cfg.Store == nil {
			return nil, fmt.Errorf("gallery: no blob store configured for %q", f.Flat())
		}
		return &galGallery{ctx: ctx, name: f.Name, store: cfg.Store, res: cfg.Resource}, nil
	}
	Register("gal", opener)
	// "template" files carry the same frame layout.
	Register("template", opener)
}

// galGallery is the blocked binary format: an uncompressed file header
// followed by one lz4-compressed frame per written block, so blocks stream
// without decoding the whole file. Appending to an existing gallery copies
// it into a fresh blob first and the result replaces the original
// atomically on Close; a crashed write never corrupts the old gallery.
type galGallery struct {
	ctx   context.Context
	name  string
	store blobstore.BlobStore
	res   *resource.Controller

	opened bool
	blob   blobstore.Blob // nil when the gallery does not exist yet
	pass   io.ReadCloser  // current read pass, nil between passes

	w  blobstore.WritableBlob // non-nil once writing has begun
	fw io.Writer              // frame writer, rate limited when an IO budget is set
}

// readAll opens a full-range reader over the backing blob, rate limited when
// the session carries an IO budget.
func (g *galGallery) readAll() (io.ReadCloser, error) {
	rc, err := g.blob.ReadRange(g.ctx, 0, g.blob.Size())
	if err != nil {
		return nil, err
	}
	if g.res == nil {
		return rc, nil
	}
	return struct {
		io.Reader
		io.Closer
	}{resource.NewRateLimitedReader(g.ctx, rc, g.res), rc}, nil
}

func (g *galGallery) open() error {
	if g.opened {
		return nil
	}
	blob, err := g.store.Open(g.ctx, g.name)
	if err != nil && !errors.Is(err, blobstore.ErrNotFound) {
		return err
	}
	g.blob = blob
	if err != nil {
		g.blob = nil
	}
	g.opened = true
	return nil
}

func (g *galGallery) startPass() error {
	if g.blob == nil {
		return nil
	}
	rc, err := g.readAll()
	if err != nil {
		return err
	}
	if _, err := persistence.NewReader(rc).ReadHeader(persistence.KindGallery); err != nil {
		_ = rc.Close()
		return fmt.Errorf("gallery: %q: %w", g.name, err)
	}
	g.pass = rc
	return nil
}

func (g *galGallery) ReadBlock() (template.List, bool, error) {
	if g.w != nil {
		return nil, false, fmt.Errorf("gallery: %q: read after write", g.name)
	}
	if err := g.open(); err != nil {
		return nil, false, err
	}
	if g.blob == nil {
		return nil, true, nil
	}

	if g.pass == nil {
		if err := g.startPass(); err != nil {
			return nil, false, err
		}
	}

	payload, err := readFrame(g.pass)
	if err == io.EOF {
		_ = g.pass.Close()
		g.pass = nil
		return nil, true, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("gallery: %q: %w", g.name, err)
	}

	block, err := decodeTemplates(payload)
	if err != nil {
		return nil, false, fmt.Errorf("gallery: %q: %w", g.name, err)
	}
	return block, false, nil
}

func (g *galGallery) WriteBlock(data template.List) error {
	if len(data) == 0 {
		return nil
	}
	if g.w == nil {
		if err := g.beginWrite(); err != nil {
			return err
		}
	}

	payload, err := encodeTemplates(data)
	if err != nil {
		return err
	}
	frame, err := compressFrame(payload)
	if err != nil {
		return err
	}
	_, err = g.fw.Write(frame)
	return err
}

// beginWrite turns the handle into a writer. Existing content is carried
// over verbatim; the frame layout is append-friendly, so the copied bytes
// need no re-encoding.
func (g *galGallery) beginWrite() error {
	if g.pass != nil {
		_ = g.pass.Close()
		g.pass = nil
	}
	if err := g.open(); err != nil {
		return err
	}

	w, err := g.store.Create(g.ctx, g.name)
	if err != nil {
		return err
	}

	if g.blob != nil {
		rc, err := g.readAll()
		if err != nil {
			_ = w.Close()
			return err
		}
		_, err = io.Copy(w, rc)
		_ = rc.Close()
		if err != nil {
			_ = w.Close()
			return err
		}
		_ = g.blob.Close()
		g.blob = nil
	} else {
		header := &persistence.FileHeader{Kind: persistence.KindGallery}
		if err := persistence.NewWriter(w).WriteHeader(header); err != nil {
			_ = w.Close()
			return err
		}
	}

	g.w = w
	g.fw = w
	if g.res != nil {
		g.fw = resource.NewRateLimitedWriter(g.ctx, w, g.res)
	}
	return nil
}

func (g *galGallery) Files() (template.FileList, error) {
	if g.w != nil {
		return nil, fmt.Errorf("gallery: %q: files after write", g.name)
	}
	if err := g.open(); err != nil {
		return nil, err
	}
	if g.blob == nil {
		return nil, nil
	}

	rc, err := g.readAll()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	if _, err := persistence.NewReader(rc).ReadHeader(persistence.KindGallery); err != nil {
		return nil, fmt.Errorf("gallery: %q: %w", g.name, err)
	}

	var files template.FileList
	for {
		payload, err := readFrame(rc)
		if err == io.EOF {
			return files, nil
		}
		if err != nil {
			return nil, fmt.Errorf("gallery: %q: %w", g.name, err)
		}
		block, err := decodeTemplates(payload)
		if err != nil {
			return nil, fmt.Errorf("gallery: %q: %w", g.name, err)
		}
		files = append(files, block.Files()...)
	}
}

func (g *galGallery) Close() error {
	if g.pass != nil {
		_ = g.pass.Close()
		g.pass = nil
	}
	if g.blob != nil {
		_ = g.blob.Close()
		g.blob = nil
	}
	if g.w != nil {
		w := g.w
		g.w = nil
		g.fw = nil
		return w.Close()
	}
	return nil
}

func encodeTemplates(data template.List) ([]byte, error) {
	var buf bytes.Buffer
	pw := persistence.NewWriter(&buf)
	if err := pw.WriteUint32(uint32(len(data))); err != nil { //nolint:gosec
		return nil, err
	}
	for _, t := range data {
		if err := pw.WriteString(t.File.Flat()); err != nil {
			return nil, err
		}
		if err := pw.WriteUint32(uint32(len(t.Data))); err != nil { //nolint:gosec
			return nil, err
		}
		if err := pw.WriteFloat32Slice(t.Data); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func decodeTemplates(payload []byte) (template.List, error) {
	pr := persistence.NewReader(bytes.NewReader(payload))
	count, err := pr.ReadUint32()
	if err != nil {
		return nil, err
	}

	block := make(template.List, 0, count)
	for i := uint32(0); i < count; i++ {
		flat, err := pr.ReadString()
		if err != nil {
			return nil, err
		}
		f, err := template.ParseFile(flat)
		if err != nil {
			return nil, err
		}
		dim, err := pr.ReadUint32()
		if err != nil {
			return nil, err
		}
		data, err := pr.ReadFloat32Slice(int(dim))
		if err != nil {
			return nil, err
		}
		block = append(block, template.Template{File: f, Data: data})
	}
	return block, nil
}

// Frame layout: [rawLen uint32][compLen uint32][payload]. compLen == 0
// means the payload is stored raw because lz4 did not help.
const frameHeaderSize = 8

func compressFrame(raw []byte) ([]byte, error) {
	bound := lz4.CompressBlockBound(len(raw))
	dst := make([]byte, bound)
	n, err := lz4.CompressBlock(raw, dst, nil)
	if err != nil {
		return nil, err
	}

	// Incompressible payloads (n == 0) or marginal wins are stored raw.
	if n == 0 || float64(n) > float64(len(raw))*0.9 {
		frame := make([]byte, frameHeaderSize+len(raw))
		binary.LittleEndian.PutUint32(frame[0:], uint32(len(raw))) //nolint:gosec
		binary.LittleEndian.PutUint32(frame[4:], 0)
		copy(frame[frameHeaderSize:], raw)
		return frame, nil
	}

	frame := make([]byte, frameHeaderSize+n)
	binary.LittleEndian.PutUint32(frame[0:], uint32(len(raw))) //nolint:gosec
	binary.LittleEndian.PutUint32(frame[4:], uint32(n))        //nolint:gosec
	copy(frame[frameHeaderSize:], dst[:n])
	return frame, nil
}

// readFrame returns the next decompressed payload, or io.EOF at a clean
// frame boundary.
func readFrame(r io.Reader) ([]byte, error) {
	var header [frameHeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("truncated frame header: %w", err)
	}
	rawLen := binary.LittleEndian.Uint32(header[0:])
	compLen := binary.LittleEndian.Uint32(header[4:])

	if compLen == 0 {
		raw := make([]byte, rawLen)
		if _, err := io.ReadFull(r, raw); err != nil {
			return nil, fmt.Errorf("truncated frame: %w", err)
		}
		return raw, nil
	}

	compressed := make([]byte, compLen)
	if _, err := io.ReadFull(r, compressed); err != nil {
		return nil, fmt.Errorf("truncated frame: %w", err)
	}
	raw := make([]byte, rawLen)
	n, err := lz4.UncompressBlock(compressed, raw)
	if err != nil {
		return nil, err
	}
	if uint32(n) != rawLen { //nolint:gosec
		return nil, errors.New("decompressed size mismatch")
	}
	return raw, nil
}
