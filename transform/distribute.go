package transform

import (
	"context"

	"github.com/hupe1980/brec/persistence"
	"github.com/hupe1980/brec/template"
	"golang.org/x/sync/errgroup"
)

// Distribute fans Project out over the records of a batch, bounded by the
// session parallelism. It is transparent everywhere else: Name, Train,
// Store and Load all delegate to the wrapped transform, so a distributed
// algorithm serializes identically to a serial one.
//
// Output order matches input order regardless of goroutine scheduling.
type Distribute struct {
	inner Transform
	limit int
}

// NewDistribute wraps inner with a fan-out limited to parallelism
// concurrent projections.
func NewDistribute(inner Transform, parallelism int) *Distribute {
	if parallelism < 1 {
		parallelism = 1
	}
	return &Distribute{inner: inner, limit: parallelism}
}

// Unwrap returns the wrapped transform.
func (d *Distribute) Unwrap() Transform {
	return d.inner
}

func (d *Distribute) Name() string {
	return d.inner.Name()
}

func (d *Distribute) Train(ctx context.Context, data template.List) error {
	return d.inner.Train(ctx, data)
}

func (d *Distribute) Project(ctx context.Context, data template.List) (template.List, error) {
	if len(data) <= 1 || d.limit <= 1 {
		return d.inner.Project(ctx, data)
	}

	// Index-sliced fan-out: result i belongs to input i, concatenation
	// preserves batch order.
	results := make([]template.List, len(data))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(d.limit)

	for i := range data {
		g.Go(func() error {
			out, err := d.inner.Project(ctx, data[i:i+1])
			if err != nil {
				return err
			}
			results[i] = out
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out template.List
	for _, r := range results {
		out = append(out, r...)
	}
	return out, nil
}

func (d *Distribute) Store(w *persistence.Writer) error {
	return d.inner.Store(w)
}

func (d *Distribute) Load(r *persistence.Reader) error {
	return d.inner.Load(r)
}
