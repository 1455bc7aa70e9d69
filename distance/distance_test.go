package distance

import (
	"bytes"
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hupe1980/brec/persistence"
	"github.com/hupe1980/brec/template"
)

// gridSink records scores by (query, target) offset for kernel-level tests.
type gridSink struct {
	scores map[[2]int]float32
}

func (s *gridSink) SetBlock(queryBlock, targetBlock int) {}

func (s *gridSink) Set(score float32, queryIdx, targetIdx int) error {
	if s.scores == nil {
		s.scores = make(map[[2]int]float32)
	}
	s.scores[[2]int{queryIdx, targetIdx}] = score
	return nil
}

func (s *gridSink) Close() error { return nil }

func tmpl(name string, data ...float32) template.Template {
	return template.Template{File: template.NewFile(name), Data: data}
}

func TestMake(t *testing.T) {
	for _, name := range []string{"L2", "Dot", "Cosine", "ScaledL2"} {
		if _, err := Make(name); err != nil {
			t.Errorf("Make(%s): %v", name, err)
		}
	}

	_, err := Make("NoSuchDistance")
	if !errors.Is(err, ErrUnknown) {
		t.Fatalf("Make(NoSuchDistance): got %v, want ErrUnknown", err)
	}
}

func TestSquaredL2(t *testing.T) {
	tests := []struct {
		name     string
		a, b     []float32
		expected float32
	}{
		{"Simple", []float32{1, 2, 3}, []float32{4, 5, 6}, 27},
		{"Zero", []float32{0, 0, 0}, []float32{0, 0, 0}, 0},
		{"Identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 0},
		{"Mixed", []float32{1, -1}, []float32{-1, 1}, 8},
		{"Empty", []float32{}, []float32{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, SquaredL2(tt.a, tt.b), 1e-5)
		})
	}
}

func TestDot(t *testing.T) {
	tests := []struct {
		name     string
		a, b     []float32
		expected float32
	}{
		{"Simple", []float32{1, 2, 3}, []float32{4, 5, 6}, 32},
		{"Zero", []float32{0, 0, 0}, []float32{0, 0, 0}, 0},
		{"Mixed", []float32{1, -1, 2}, []float32{1, 1, -2}, -4},
		{"Empty", []float32{}, []float32{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, Dot(tt.a, tt.b), 1e-5)
		})
	}
}

func TestCosine(t *testing.T) {
	tests := []struct {
		name     string
		a, b     []float32
		expected float32
	}{
		{"Identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"Orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"Opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"ZeroVector", []float32{0, 0}, []float32{1, 1}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, Cosine(tt.a, tt.b), 1e-5)
		})
	}
}

func TestMetricDistance_Compare(t *testing.T) {
	d, err := Make("L2")
	if err != nil {
		t.Fatalf("Make: %v", err)
	}

	targets := template.List{tmpl("tA", 0, 0), tmpl("tB", 3, 4)}
	queries := template.List{tmpl("qA", 0, 0), tmpl("qB", 1, 1)}

	sink := &gridSink{}
	if err := d.Compare(targets, queries, sink); err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if len(sink.scores) != 4 {
		t.Fatalf("got %d scores, want 4", len(sink.scores))
	}
	if got := sink.scores[[2]int{0, 1}]; got != 25 {
		t.Errorf("score(qA, tB) = %f, want 25", got)
	}
	if got := sink.scores[[2]int{1, 0}]; got != 2 {
		t.Errorf("score(qB, tA) = %f, want 2", got)
	}
}

func TestMetricDistance_WorstValueForBadPairs(t *testing.T) {
	targets := template.List{tmpl("t", 1, 2)}
	queries := template.List{
		tmpl("failed"),     // empty payload
		tmpl("short", 1),   // dimension mismatch
		tmpl("good", 1, 2), // scores normally
	}

	l2, _ := Make("L2")
	sink := &gridSink{}
	if err := l2.Compare(targets, queries, sink); err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if sink.scores[[2]int{0, 0}] != math.MaxFloat32 {
		t.Error("failed record did not get worst L2 value")
	}
	if sink.scores[[2]int{1, 0}] != math.MaxFloat32 {
		t.Error("mismatched record did not get worst L2 value")
	}
	if sink.scores[[2]int{2, 0}] != 0 {
		t.Errorf("good record = %f, want 0", sink.scores[[2]int{2, 0}])
	}

	cos, _ := Make("Cosine")
	sink = &gridSink{}
	if err := cos.Compare(targets, queries, sink); err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if sink.scores[[2]int{0, 0}] != -math.MaxFloat32 {
		t.Error("failed record did not get worst Cosine value")
	}
}

func TestScaledL2_TrainCompare(t *testing.T) {
	ctx := context.Background()

	d := &ScaledL2{}
	if err := d.Train(ctx, template.List{
		tmpl("a", 0, 5),
		tmpl("b", 2, 5),
	}); err != nil {
		t.Fatalf("Train: %v", err)
	}

	// Dimension 0 has unit variance, dimension 1 none: the same raw
	// difference must cost far more on dimension 1.
	sink := &gridSink{}
	err := d.Compare(
		template.List{tmpl("t0", 1, 5), tmpl("t1", 0, 6)},
		template.List{tmpl("q", 0, 5)},
		sink,
	)
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	dim0Cost := sink.scores[[2]int{0, 0}]
	dim1Cost := sink.scores[[2]int{0, 1}]
	if math.Abs(float64(dim0Cost)-1) > 0.01 {
		t.Errorf("unit-variance dimension cost = %f, want ~1", dim0Cost)
	}
	if dim1Cost < 1000*dim0Cost {
		t.Errorf("zero-variance dimension cost %f not dominating %f", dim1Cost, dim0Cost)
	}
}

func TestScaledL2_UntrainedCompareFails(t *testing.T) {
	d := &ScaledL2{}
	err := d.Compare(template.List{tmpl("t", 1)}, template.List{tmpl("q", 1)}, &gridSink{})
	if err == nil {
		t.Fatal("expected error comparing with untrained ScaledL2")
	}
}

func TestScaledL2_StoreLoad(t *testing.T) {
	ctx := context.Background()

	d := &ScaledL2{}
	if err := d.Train(ctx, template.List{tmpl("a", 0, 1), tmpl("b", 4, 1)}); err != nil {
		t.Fatalf("Train: %v", err)
	}

	var buf bytes.Buffer
	if err := d.Store(persistence.NewWriter(&buf)); err != nil {
		t.Fatalf("Store: %v", err)
	}

	loaded := &ScaledL2{}
	if err := loaded.Load(persistence.NewReader(&buf)); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded.scale) != 2 {
		t.Fatalf("loaded %d scales, want 2", len(loaded.scale))
	}
	for i := range d.scale {
		if loaded.scale[i] != d.scale[i] {
			t.Errorf("scale[%d] = %f, want %f", i, loaded.scale[i], d.scale[i])
		}
	}
}
