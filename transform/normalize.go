package transform

import (
	"context"
	"fmt"
	"math"

	"github.com/hupe1980/brec/persistence"
	"github.com/hupe1980/brec/template"
)

func init() {
	Register("Normalize", func(args map[string]string) (Transform, error) {
		norm := args["norm"]
		if norm == "" {
			norm = "l2"
		}
		if norm != "l1" && norm != "l2" {
			return nil, fmt.Errorf("normalize: unsupported norm %q", norm)
		}
		return &Normalize{norm: norm}, nil
	})
}

// Normalize scales each template to unit L1 or L2 norm. Zero vectors cannot
// be normalized; they are marked FTE and carried along.
type Normalize struct {
	norm string
}

func (n *Normalize) Name() string { return "Normalize" }

func (n *Normalize) Train(ctx context.Context, data template.List) error { return nil }

func (n *Normalize) Project(ctx context.Context, data template.List) (template.List, error) {
	out := make(template.List, 0, len(data))
	for _, t := range data {
		var sum float64
		for _, v := range t.Data {
			switch n.norm {
			case "l1":
				sum += math.Abs(float64(v))
			default:
				sum += float64(v) * float64(v)
			}
		}
		if n.norm == "l2" {
			sum = math.Sqrt(sum)
		}

		if sum == 0 {
			file := t.File.Clone()
			file.SetBool("FTE", true)
			out = append(out, template.Template{File: file})
			continue
		}

		scaled := make([]float32, len(t.Data))
		inv := float32(1 / sum)
		for i, v := range t.Data {
			scaled[i] = v * inv
		}
		out = append(out, template.Template{File: t.File, Data: scaled})
	}
	return out, nil
}

func (n *Normalize) Store(w *persistence.Writer) error {
	return w.WriteString(n.norm)
}

func (n *Normalize) Load(r *persistence.Reader) error {
	norm, err := r.ReadString()
	if err != nil {
		return err
	}
	if norm != "l1" && norm != "l2" {
		return fmt.Errorf("normalize: unsupported norm %q in stored state", norm)
	}
	n.norm = norm
	return nil
}
