package transform

import (
	"bytes"
	"context"
	"errors"
	"math"
	"testing"

	"github.com/hupe1980/brec/persistence"
	"github.com/hupe1980/brec/template"
)

func TestMake(t *testing.T) {
	if _, err := Make("Identity"); err != nil {
		t.Fatalf("Make(Identity): %v", err)
	}

	if _, err := Make("Normalize(norm=l1)"); err != nil {
		t.Fatalf("Make(Normalize): %v", err)
	}

	if _, err := Make("Normalize(norm=l7)"); err == nil {
		t.Fatal("Make with invalid norm: expected error")
	}

	if _, err := Make("Normalize(norm=l1"); err == nil {
		t.Fatal("Make with unterminated argument list: expected error")
	}

	_, err := Make("NoSuchTransform")
	if !errors.Is(err, ErrUnknown) {
		t.Fatalf("Make(NoSuchTransform): got %v, want ErrUnknown", err)
	}
}

func TestCenter_TrainProject(t *testing.T) {
	ctx := context.Background()

	c := &Center{}
	train := template.List{
		{File: template.NewFile("a"), Data: []float32{1, 2}},
		{File: template.NewFile("b"), Data: []float32{3, 4}},
	}
	if err := c.Train(ctx, train); err != nil {
		t.Fatalf("Train: %v", err)
	}

	out, err := c.Project(ctx, template.List{
		{File: template.NewFile("probe"), Data: []float32{2, 3}},
	})
	if err != nil {
		t.Fatalf("Project: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("Project returned %d templates, want 1", len(out))
	}
	if out[0].Data[0] != 0 || out[0].Data[1] != 0 {
		t.Errorf("centered = %v, want [0 0]", out[0].Data)
	}
}

func TestCenter_DimensionMismatchIsFTE(t *testing.T) {
	ctx := context.Background()

	c := &Center{}
	if err := c.Train(ctx, template.List{{File: template.NewFile("a"), Data: []float32{1, 2}}}); err != nil {
		t.Fatalf("Train: %v", err)
	}

	out, err := c.Project(ctx, template.List{
		{File: template.NewFile("short"), Data: []float32{5}},
		{File: template.NewFile("ok"), Data: []float32{1, 2}},
	})
	if err != nil {
		t.Fatalf("Project: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("Project returned %d templates, want 2", len(out))
	}
	if !out[0].File.Failed() {
		t.Error("mismatched record not marked FTE")
	}
	if out[1].File.Failed() {
		t.Error("valid record wrongly marked FTE")
	}
}

func TestCenter_UntrainedProjectFails(t *testing.T) {
	c := &Center{}
	_, err := c.Project(context.Background(), template.List{{Data: []float32{1}}})
	if err == nil {
		t.Fatal("expected error projecting with untrained Center")
	}
}

func TestCenter_TrainSkipsFailures(t *testing.T) {
	failed := template.NewFile("bad")
	failed.SetBool("FTE", true)

	c := &Center{}
	err := c.Train(context.Background(), template.List{
		{File: failed, Data: []float32{1000, 1000}},
		{File: template.NewFile("good"), Data: []float32{2, 4}},
	})
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	if c.mean[0] != 2 || c.mean[1] != 4 {
		t.Errorf("mean = %v, want [2 4]", c.mean)
	}
}

func TestCenter_StoreLoad(t *testing.T) {
	ctx := context.Background()

	c := &Center{}
	if err := c.Train(ctx, template.List{{File: template.NewFile("a"), Data: []float32{1, 2, 3}}}); err != nil {
		t.Fatalf("Train: %v", err)
	}

	var buf bytes.Buffer
	if err := c.Store(persistence.NewWriter(&buf)); err != nil {
		t.Fatalf("Store: %v", err)
	}

	loaded := &Center{}
	if err := loaded.Load(persistence.NewReader(&buf)); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded.mean) != 3 || loaded.mean[1] != 2 {
		t.Errorf("loaded mean = %v, want [1 2 3]", loaded.mean)
	}
}

func TestNormalize(t *testing.T) {
	ctx := context.Background()

	n := &Normalize{norm: "l2"}
	out, err := n.Project(ctx, template.List{
		{File: template.NewFile("v"), Data: []float32{3, 4}},
		{File: template.NewFile("zero"), Data: []float32{0, 0}},
	})
	if err != nil {
		t.Fatalf("Project: %v", err)
	}

	length := math.Sqrt(float64(out[0].Data[0]*out[0].Data[0] + out[0].Data[1]*out[0].Data[1]))
	if math.Abs(length-1) > 1e-6 {
		t.Errorf("normalized length = %f, want 1", length)
	}
	if !out[1].File.Failed() {
		t.Error("zero vector not marked FTE")
	}
}

func TestDistribute_PreservesOrder(t *testing.T) {
	ctx := context.Background()

	inner := &Normalize{norm: "l2"}
	d := NewDistribute(inner, 4)

	var data template.List
	for i := 0; i < 100; i++ {
		data = append(data, template.Template{
			File: template.NewFile(string(rune('a' + i%26))),
			Data: []float32{float32(i + 1), 0},
		})
	}

	out, err := d.Project(ctx, data)
	if err != nil {
		t.Fatalf("Project: %v", err)
	}
	if len(out) != len(data) {
		t.Fatalf("got %d templates, want %d", len(out), len(data))
	}
	for i, tmpl := range out {
		if tmpl.File.Name != data[i].File.Name {
			t.Fatalf("order broken at %d: got %q, want %q", i, tmpl.File.Name, data[i].File.Name)
		}
		if tmpl.Data[0] != 1 {
			t.Fatalf("record %d not normalized: %v", i, tmpl.Data)
		}
	}
}

func TestDistribute_Transparent(t *testing.T) {
	inner := &Normalize{norm: "l1"}
	d := NewDistribute(inner, 8)

	if d.Name() != "Normalize" {
		t.Errorf("Name = %q, want Normalize", d.Name())
	}

	var direct, wrapped bytes.Buffer
	if err := inner.Store(persistence.NewWriter(&direct)); err != nil {
		t.Fatalf("direct Store: %v", err)
	}
	if err := d.Store(persistence.NewWriter(&wrapped)); err != nil {
		t.Fatalf("wrapped Store: %v", err)
	}
	if !bytes.Equal(direct.Bytes(), wrapped.Bytes()) {
		t.Error("wrapped Store differs from direct Store")
	}
}

type failingTransform struct {
	Identity
	failOn string
}

func (f failingTransform) Project(ctx context.Context, data template.List) (template.List, error) {
	for _, t := range data {
		if t.File.Name == f.failOn {
			return nil, errors.New("boom")
		}
	}
	return data, nil
}

func TestDistribute_PropagatesError(t *testing.T) {
	d := NewDistribute(failingTransform{failOn: "x"}, 4)

	var data template.List
	for i := 0; i < 20; i++ {
		data = append(data, template.Template{File: template.NewFile("ok"), Data: []float32{1}})
	}
	data[13].File = template.NewFile("x")

	if _, err := d.Project(context.Background(), data); err == nil {
		t.Fatal("expected error from failing record")
	}
}
