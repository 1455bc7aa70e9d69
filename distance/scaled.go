package distance

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/hupe1980/brec/output"
	"github.com/hupe1980/brec/persistence"
	"github.com/hupe1980/brec/template"
)

func init() {
	Register("ScaledL2", func(args map[string]string) (Distance, error) {
		return &ScaledL2{}, nil
	})
}

const scaleEpsilon = 1e-6

// ScaledL2 is a trainable variance-weighted squared Euclidean distance.
// Training learns one inverse-variance weight per dimension, so noisy
// dimensions contribute less to the score. Lower is more similar.
type ScaledL2 struct {
	scale []float32
}

func (d *ScaledL2) Name() string { return "ScaledL2" }

func (d *ScaledL2) Train(ctx context.Context, data template.List) error {
	var (
		sum   []float64
		sumSq []float64
		count int
	)
	for _, t := range data {
		if t.File.Failed() || len(t.Data) == 0 {
			continue
		}
		if sum == nil {
			sum = make([]float64, len(t.Data))
			sumSq = make([]float64, len(t.Data))
		}
		if len(t.Data) != len(sum) {
			return fmt.Errorf("scaledl2: dimension mismatch in training data: %d vs %d", len(t.Data), len(sum))
		}
		for i, v := range t.Data {
			sum[i] += float64(v)
			sumSq[i] += float64(v) * float64(v)
		}
		count++
	}
	if count == 0 {
		return errors.New("scaledl2: no usable training data")
	}

	d.scale = make([]float32, len(sum))
	n := float64(count)
	for i := range sum {
		mean := sum[i] / n
		variance := sumSq[i]/n - mean*mean
		if variance < 0 {
			variance = 0
		}
		d.scale[i] = float32(1 / (variance + scaleEpsilon))
	}
	return nil
}

func (d *ScaledL2) Compare(targets, queries template.List, sink output.Output) error {
	if d.scale == nil {
		return errors.New("scaledl2: not trained")
	}
	for i, q := range queries {
		for j, t := range targets {
			score := float32(math.MaxFloat32)
			if len(q.Data) == len(d.scale) && len(t.Data) == len(d.scale) {
				var sum float32
				for k := range d.scale {
					diff := t.Data[k] - q.Data[k]
					sum += d.scale[k] * diff * diff
				}
				score = sum
			}
			if err := sink.Set(score, i, j); err != nil {
				return err
			}
		}
	}
	return nil
}

func (d *ScaledL2) Store(w *persistence.Writer) error {
	if err := w.WriteUint32(uint32(len(d.scale))); err != nil { //nolint:gosec
		return err
	}
	return w.WriteFloat32Slice(d.scale)
}

func (d *ScaledL2) Load(r *persistence.Reader) error {
	dim, err := r.ReadUint32()
	if err != nil {
		return err
	}
	if dim == 0 {
		d.scale = nil
		return nil
	}
	d.scale, err = r.ReadFloat32Slice(int(dim))
	return err
}
