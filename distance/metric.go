package distance

import (
	"context"
	"math"

	"github.com/hupe1980/brec/output"
	"github.com/hupe1980/brec/persistence"
	"github.com/hupe1980/brec/template"
)

func init() {
	// L2 is a dissimilarity: lower scores are better, so the worst value
	// for an unscorable pair is the largest one. Dot and Cosine are
	// similarities and invert that.
	Register("L2", func(args map[string]string) (Distance, error) {
		return &metricDistance{name: "L2", fn: SquaredL2, worst: math.MaxFloat32}, nil
	})
	Register("Dot", func(args map[string]string) (Distance, error) {
		return &metricDistance{name: "Dot", fn: Dot, worst: -math.MaxFloat32}, nil
	})
	Register("Cosine", func(args map[string]string) (Distance, error) {
		return &metricDistance{name: "Cosine", fn: Cosine, worst: -math.MaxFloat32}, nil
	})
}

// metricDistance scores pairs with a stateless kernel. Pairs involving a
// failed record or mismatched dimensions get the metric's worst value, so
// enrollment failures rank last instead of aborting the comparison.
type metricDistance struct {
	name  string
	fn    Func
	worst float32
}

func (d *metricDistance) Name() string { return d.name }

func (d *metricDistance) Train(ctx context.Context, data template.List) error { return nil }

func (d *metricDistance) Compare(targets, queries template.List, sink output.Output) error {
	for i, q := range queries {
		for j, t := range targets {
			score := d.worst
			if len(q.Data) > 0 && len(q.Data) == len(t.Data) {
				score = d.fn(t.Data, q.Data)
			}
			if err := sink.Set(score, i, j); err != nil {
				return err
			}
		}
	}
	return nil
}

func (d *metricDistance) Store(w *persistence.Writer) error { return nil }

func (d *metricDistance) Load(r *persistence.Reader) error { return nil }
