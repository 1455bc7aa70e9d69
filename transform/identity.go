package transform

import (
	"context"

	"github.com/hupe1980/brec/persistence"
	"github.com/hupe1980/brec/template"
)

func init() {
	Register("Identity", func(args map[string]string) (Transform, error) {
		return Identity{}, nil
	})
}

// Identity passes templates through unchanged. It is the minimal transform
// for pipelines whose inputs already are feature vectors.
type Identity struct{}

func (Identity) Name() string { return "Identity" }

func (Identity) Train(ctx context.Context, data template.List) error { return nil }

func (Identity) Project(ctx context.Context, data template.List) (template.List, error) {
	return data, nil
}

func (Identity) Store(w *persistence.Writer) error { return nil }

func (Identity) Load(r *persistence.Reader) error { return nil }
