package brec

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/brec/gallery"
	"github.com/hupe1980/brec/output"
	"github.com/hupe1980/brec/template"
)

// ConvertGallery streams every record of in into out, translating between
// gallery formats. Payloads pass through untouched.
func (s *Session) ConvertGallery(ctx context.Context, in, out template.File) error {
	ig, err := gallery.Open(ctx, in, s.galleryConfig())
	if err != nil {
		return err
	}
	og, err := gallery.Open(ctx, out, s.galleryConfig())
	if err != nil {
		ig.Close()
		return err
	}

	err = copyGallery(ig, og)
	if closeErr := og.Close(); err == nil {
		err = closeErr
	}
	if closeErr := ig.Close(); err == nil {
		err = closeErr
	}
	return err
}

// CatGalleries appends the records of every input gallery to out, in input
// order. The output must not appear among the inputs: it would be consumed
// while it is being rewritten.
func (s *Session) CatGalleries(ctx context.Context, inputs []template.File, out template.File) error {
	for _, in := range inputs {
		if in.Name == out.Name {
			return fatal("cat", fmt.Errorf("output gallery %q is among the inputs", out.Name))
		}
	}

	og, err := gallery.Open(ctx, out, s.galleryConfig())
	if err != nil {
		return err
	}

	var runErr error
	for _, in := range inputs {
		ig, err := gallery.Open(ctx, in, s.galleryConfig())
		if err != nil {
			runErr = err
			break
		}
		err = copyGallery(ig, og)
		if closeErr := ig.Close(); err == nil {
			err = closeErr
		}
		if err != nil {
			runErr = err
			break
		}
	}

	if closeErr := og.Close(); runErr == nil {
		runErr = closeErr
	}
	return runErr
}

func copyGallery(src, dst gallery.Gallery) error {
	for {
		data, done, err := src.ReadBlock()
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		if err := dst.WriteBlock(data); err != nil {
			return err
		}
	}
}

// ConvertOutput reads a stored score matrix and re-emits it through another
// output format.
func (s *Session) ConvertOutput(ctx context.Context, in, out template.File) error {
	m, err := s.readOutput(ctx, in)
	if err != nil {
		return err
	}
	if err := validateMatrix("convert", m); err != nil {
		return err
	}
	return s.writeMatrixTo(ctx, m, out)
}

// CatOutputs joins stored score matrices into one output. The catType option
// on out picks the axis: colWise appends target columns for a shared query
// population, rowWise appends query rows for a shared target population.
func (s *Session) CatOutputs(ctx context.Context, inputs []template.File, out template.File) error {
	if len(inputs) == 0 {
		return fatal("cat", errors.New("no input matrices"))
	}

	catType := out.Get("catType", "")

	cat, err := s.readOutput(ctx, inputs[0])
	if err != nil {
		return err
	}
	if err := validateMatrix("cat", cat); err != nil {
		return err
	}

	for _, in := range inputs[1:] {
		m, err := s.readOutput(ctx, in)
		if err != nil {
			return err
		}
		if err := validateMatrix("cat", m); err != nil {
			return err
		}

		switch catType {
		case "colWise":
			if m.Rows() != cat.Rows() {
				return fatal("cat", fmt.Errorf("%w: cannot join %d query rows onto %d", ErrSizeMismatch, m.Rows(), cat.Rows()))
			}
			cat = hconcat(cat, m)
		case "rowWise":
			if m.Cols() != cat.Cols() {
				return fatal("cat", fmt.Errorf("%w: cannot join %d target columns onto %d", ErrSizeMismatch, m.Cols(), cat.Cols()))
			}
			cat = vconcat(cat, m)
		default:
			return fatal("cat", fmt.Errorf("unsupported catType %q", catType))
		}
	}

	return s.writeMatrixTo(ctx, cat, out)
}

// readOutput loads a score matrix from either the session's in-memory
// matrices or a stored matrix blob.
func (s *Session) readOutput(ctx context.Context, in template.File) (*output.Matrix, error) {
	if in.Suffix() == "mem" {
		m, ok := s.outputMem.Get(in.Name)
		if !ok {
			return nil, fmt.Errorf("no in-memory matrix %q", in.Name)
		}
		return m, nil
	}
	return output.ReadMatrix(ctx, in, s.outputConfig())
}

// writeMatrixTo re-emits a materialized matrix through the output pipeline
// as a single block.
func (s *Session) writeMatrixTo(ctx context.Context, m *output.Matrix, out template.File) error {
	o, err := output.Open(ctx, out, m.TargetFiles, m.QueryFiles, s.outputConfig())
	if err != nil {
		return err
	}

	o.SetBlock(0, 0)
	for i := 0; i < m.Rows(); i++ {
		for j := 0; j < m.Cols(); j++ {
			if err := o.Set(m.At(i, j), i, j); err != nil {
				return err
			}
		}
	}
	return o.Close()
}

func validateMatrix(op string, m *output.Matrix) error {
	if len(m.QueryFiles)*len(m.TargetFiles) != len(m.Data) {
		return fatal(op, fmt.Errorf("%w: matrix holds %d cells but lists name %d queries and %d targets",
			ErrSizeMismatch, len(m.Data), len(m.QueryFiles), len(m.TargetFiles)))
	}
	return nil
}

// hconcat lays the columns of b to the right of a. Row counts must already
// be verified equal.
func hconcat(a, b *output.Matrix) *output.Matrix {
	targets := make(template.FileList, 0, len(a.TargetFiles)+len(b.TargetFiles))
	targets = append(targets, a.TargetFiles...)
	targets = append(targets, b.TargetFiles...)

	joined := output.NewMatrix(targets, a.QueryFiles)
	for r := 0; r < a.Rows(); r++ {
		copy(joined.Data[r*joined.Cols():], a.Data[r*a.Cols():(r+1)*a.Cols()])
		copy(joined.Data[r*joined.Cols()+a.Cols():], b.Data[r*b.Cols():(r+1)*b.Cols()])
	}
	return joined
}

// vconcat stacks the rows of b below a. Column counts must already be
// verified equal.
func vconcat(a, b *output.Matrix) *output.Matrix {
	queries := make(template.FileList, 0, len(a.QueryFiles)+len(b.QueryFiles))
	queries = append(queries, a.QueryFiles...)
	queries = append(queries, b.QueryFiles...)

	joined := output.NewMatrix(a.TargetFiles, queries)
	copy(joined.Data, a.Data)
	copy(joined.Data[len(a.Data):], b.Data)
	return joined
}
