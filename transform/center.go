package transform

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/brec/persistence"
	"github.com/hupe1980/brec/template"
)

func init() {
	Register("Center", func(args map[string]string) (Transform, error) {
		return &Center{}, nil
	})
}

// Center is a trainable transform that subtracts the training mean from
// every projected template. Records whose dimension does not match the
// trained mean are marked FTE and carried along with empty payloads.
type Center struct {
	mean []float32
}

func (c *Center) Name() string { return "Center" }

func (c *Center) Train(ctx context.Context, data template.List) error {
	var sum []float64
	count := 0

	for _, t := range data {
		if t.File.Failed() || len(t.Data) == 0 {
			continue
		}
		if sum == nil {
			sum = make([]float64, len(t.Data))
		}
		if len(t.Data) != len(sum) {
			return fmt.Errorf("center: inconsistent training dimensions %d and %d", len(sum), len(t.Data))
		}
		for i, v := range t.Data {
			sum[i] += float64(v)
		}
		count++
	}

	if count == 0 {
		return errors.New("center: no usable training data")
	}

	c.mean = make([]float32, len(sum))
	for i, v := range sum {
		c.mean[i] = float32(v / float64(count))
	}
	return nil
}

func (c *Center) Project(ctx context.Context, data template.List) (template.List, error) {
	if c.mean == nil {
		return nil, errors.New("center: not trained")
	}

	out := make(template.List, 0, len(data))
	for _, t := range data {
		if len(t.Data) != len(c.mean) {
			file := t.File.Clone()
			file.SetBool("FTE", true)
			out = append(out, template.Template{File: file})
			continue
		}
		centered := make([]float32, len(t.Data))
		for i, v := range t.Data {
			centered[i] = v - c.mean[i]
		}
		out = append(out, template.Template{File: t.File, Data: centered})
	}
	return out, nil
}

func (c *Center) Store(w *persistence.Writer) error {
	if err := w.WriteUint32(uint32(len(c.mean))); err != nil {
		return err
	}
	if len(c.mean) == 0 {
		return nil
	}
	return w.WriteFloat32Slice(c.mean)
}

func (c *Center) Load(r *persistence.Reader) error {
	dim, err := r.ReadUint32()
	if err != nil {
		return err
	}
	if dim == 0 {
		c.mean = nil
		return nil
	}
	mean, err := r.ReadFloat32Slice(int(dim))
	if err != nil {
		return err
	}
	c.mean = mean
	return nil
}
