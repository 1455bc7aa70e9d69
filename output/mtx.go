package output

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/hupe1980/brec/blobstore"
	"github.com/hupe1980/brec/persistence"
	"github.com/hupe1980/brec/resource"
	"github.com/hupe1980/brec/template"
)

func init() {
	Register("mtx", func(ctx context.Context, f template.File, targetFiles, queryFiles template.FileList, cfg Config) (Output, error) {
		if cfg.Store == nil {
			return nil, fmt.Errorf("output: no blob store configured for %q", f.Flat())
		}
		return &mtxOutput{
			scoreMatrix: newScoreMatrix(targetFiles, queryFiles, cfg.BlockSize),
			ctx:         ctx,
			name:        f.Name,
			store:       cfg.Store,
		}, nil
	})
}

// mtxOutput writes the binary matrix format: header, both file lists in
// flat form, raw row-major scores, CRC32 trailer. The file is self
// contained, so ConvertOutput and CatOutputs can rebuild the full matrix
// without the galleries it came from.
type mtxOutput struct {
	*scoreMatrix
	ctx   context.Context
	name  string
	store blobstore.BlobStore
}

func (o *mtxOutput) Close() error {
	var buf bytes.Buffer
	if err := writeMatrix(&buf, o.mat); err != nil {
		return err
	}
	return o.store.Put(o.ctx, o.name, buf.Bytes())
}

func writeMatrix(w io.Writer, m *Matrix) error {
	cw := persistence.NewChecksumWriter(w)
	bw := persistence.NewWriter(cw)

	header := &persistence.FileHeader{
		Magic:   persistence.MagicNumber,
		Version: persistence.Version,
		Kind:    persistence.KindMatrix,
		Count:   uint64(m.Rows()),
		Dim:     uint32(m.Cols()), //nolint:gosec
	}
	if err := bw.WriteHeader(header); err != nil {
		return err
	}
	for _, f := range m.TargetFiles {
		if err := bw.WriteString(f.Flat()); err != nil {
			return err
		}
	}
	for _, f := range m.QueryFiles {
		if err := bw.WriteString(f.Flat()); err != nil {
			return err
		}
	}
	if err := bw.WriteFloat32Slice(m.Data); err != nil {
		return err
	}

	// Trailer goes to the underlying writer so it is not part of its own sum.
	return persistence.NewWriter(w).WriteUint32(cw.Sum())
}

func readMatrix(r io.Reader) (*Matrix, error) {
	cr := persistence.NewChecksumReader(r)
	br := persistence.NewReader(cr)

	header, err := br.ReadHeader(persistence.KindMatrix)
	if err != nil {
		return nil, err
	}
	rows := int(header.Count)
	cols := int(header.Dim)

	targets := make(template.FileList, 0, cols)
	for i := 0; i < cols; i++ {
		flat, err := br.ReadString()
		if err != nil {
			return nil, fmt.Errorf("output: reading target %d: %w", i, err)
		}
		f, err := template.ParseFile(flat)
		if err != nil {
			return nil, err
		}
		targets = append(targets, f)
	}
	queries := make(template.FileList, 0, rows)
	for i := 0; i < rows; i++ {
		flat, err := br.ReadString()
		if err != nil {
			return nil, fmt.Errorf("output: reading query %d: %w", i, err)
		}
		f, err := template.ParseFile(flat)
		if err != nil {
			return nil, err
		}
		queries = append(queries, f)
	}

	data, err := br.ReadFloat32Slice(rows * cols)
	if err != nil {
		return nil, fmt.Errorf("output: reading %dx%d scores: %w", rows, cols, err)
	}

	expected, err := persistence.NewReader(r).ReadUint32()
	if err != nil {
		return nil, fmt.Errorf("output: reading checksum trailer: %w", err)
	}
	if err := cr.Verify(expected); err != nil {
		return nil, err
	}

	if data == nil {
		data = make([]float32, 0)
	}
	return &Matrix{TargetFiles: targets, QueryFiles: queries, Data: data}, nil
}

// ReadMatrix loads a stored ".mtx" matrix through the configured blob store.
func ReadMatrix(ctx context.Context, f template.File, cfg Config) (*Matrix, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("output: no blob store configured for %q", f.Flat())
	}
	blob, err := cfg.Store.Open(ctx, f.Name)
	if err != nil {
		return nil, err
	}
	defer blob.Close()

	rc, err := blob.ReadRange(ctx, 0, blob.Size())
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var r io.Reader = rc
	if cfg.Resource != nil {
		r = resource.NewRateLimitedReader(ctx, r, cfg.Resource)
	}
	return readMatrix(bufio.NewReaderSize(r, 256*1024))
}
