package output

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"

	"github.com/hupe1980/brec/blobstore"
	"github.com/hupe1980/brec/template"
)

func init() {
	Register("csv", func(ctx context.Context, f template.File, targetFiles, queryFiles template.FileList, cfg Config) (Output, error) {
		if cfg.Store == nil {
			return nil, fmt.Errorf("output: no blob store configured for %q", f.Flat())
		}
		return &csvOutput{
			scoreMatrix: newScoreMatrix(targetFiles, queryFiles, cfg.BlockSize),
			ctx:         ctx,
			name:        f.Name,
			store:       cfg.Store,
		}, nil
	})
}

// csvOutput renders the matrix as text on Close: a header row of target
// names, then one row per query with its name in the first column.
type csvOutput struct {
	*scoreMatrix
	ctx   context.Context
	name  string
	store blobstore.BlobStore
}

func (o *csvOutput) Close() error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := make([]string, 0, o.mat.Cols()+1)
	header = append(header, "File")
	for _, f := range o.mat.TargetFiles {
		header = append(header, f.Name)
	}
	if err := w.Write(header); err != nil {
		return err
	}

	row := make([]string, o.mat.Cols()+1)
	for i, q := range o.mat.QueryFiles {
		row[0] = q.Name
		for j := 0; j < o.mat.Cols(); j++ {
			row[j+1] = strconv.FormatFloat(float64(o.mat.At(i, j)), 'g', -1, 32)
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return o.store.Put(o.ctx, o.name, buf.Bytes())
}
