package brec

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/brec/blobstore"
	"github.com/hupe1980/brec/output"
	"github.com/hupe1980/brec/template"
)

func getBlob(t *testing.T, s *Session, name string) string {
	t.Helper()
	b, err := s.blobStore.Open(context.Background(), name)
	require.NoError(t, err)
	defer b.Close()
	data, err := blobstore.ReadAll(context.Background(), b)
	require.NoError(t, err)
	return string(data)
}

func buildMatrix(targetNames, queryNames []string, data []float32) *output.Matrix {
	var targets, queries template.FileList
	for _, n := range targetNames {
		targets = append(targets, template.NewFile(n))
	}
	for _, n := range queryNames {
		queries = append(queries, template.NewFile(n))
	}
	m := output.NewMatrix(targets, queries)
	copy(m.Data, data)
	return m
}

func TestConvertGallery(t *testing.T) {
	ctx := context.Background()

	t.Run("RoundTripThroughFormats", func(t *testing.T) {
		s := testSession(t)
		putBlob(t, s, "people.csv", numberedCSV(4))

		require.NoError(t, s.ConvertGallery(ctx, template.NewFile("people.csv"), template.NewFile("copy.gal")))

		enrolled := readGallery(t, s, "copy.gal")
		require.Len(t, enrolled, 4)
		assert.Equal(t, "r03", enrolled[3].File.Name)
		assert.Equal(t, []float32{2}, enrolled[2].Data)

		// txt keeps the descriptors and drops the payloads.
		require.NoError(t, s.ConvertGallery(ctx, template.NewFile("copy.gal"), template.NewFile("names.txt")))
		assert.Equal(t, "r00\nr01\nr02\nr03\n", getBlob(t, s, "names.txt"))
	})

	t.Run("MissingInputIsEmpty", func(t *testing.T) {
		s := testSession(t)
		require.NoError(t, s.ConvertGallery(ctx, template.NewFile("absent.csv"), template.NewFile("out.gal")))
		assert.Empty(t, readGallery(t, s, "out.gal"))
	})
}

func TestCatGalleries(t *testing.T) {
	ctx := context.Background()

	t.Run("AppendsInOrder", func(t *testing.T) {
		s := testSession(t)
		putBlob(t, s, "left.csv", numberedCSV(2))
		putBlob(t, s, "right.csv", "File,d0\ns0,7\ns1,8\n")

		inputs := []template.File{template.NewFile("left.csv"), template.NewFile("right.csv")}
		require.NoError(t, s.CatGalleries(ctx, inputs, template.NewFile("all.gal")))

		joined := readGallery(t, s, "all.gal")
		require.Len(t, joined, 4)
		assert.Equal(t, []string{"r00", "r01", "s0", "s1"}, joined.Files().Names())
		assert.Equal(t, []float32{8}, joined[3].Data)
	})

	t.Run("OutputAmongInputsIsFatal", func(t *testing.T) {
		s := testSession(t)
		inputs := []template.File{template.NewFile("a.gal"), template.NewFile("all.gal")}

		err := s.CatGalleries(ctx, inputs, template.NewFile("all.gal"))
		require.Error(t, err)
		assert.True(t, IsFatal(err))
		assert.ErrorContains(t, err, "among the inputs")
	})
}

func TestConvertOutput(t *testing.T) {
	ctx := context.Background()

	t.Run("MemToMtxToCsv", func(t *testing.T) {
		s := testSession(t)
		putBlob(t, s, "people.csv", numberedCSV(3))

		a, err := s.Algorithm(ctx, "Identity:L2")
		require.NoError(t, err)
		require.NoError(t, a.Compare(ctx, template.NewFile("people.csv"), template.NewFile("."), template.NewFile("m.mem")))

		require.NoError(t, s.ConvertOutput(ctx, template.NewFile("m.mem"), template.NewFile("m.mtx")))
		m, err := output.ReadMatrix(ctx, template.NewFile("m.mtx"), s.outputConfig())
		require.NoError(t, err)
		assert.Equal(t, float32(1), m.At(0, 1))
		assert.Equal(t, float32(4), m.At(2, 0))

		require.NoError(t, s.ConvertOutput(ctx, template.NewFile("m.mtx"), template.NewFile("m.csv")))
		text := getBlob(t, s, "m.csv")
		assert.Contains(t, text, "File,r00,r01,r02\n")
		assert.Contains(t, text, "r00,0,1,4\n")
	})

	t.Run("MissingMemMatrix", func(t *testing.T) {
		s := testSession(t)
		err := s.ConvertOutput(ctx, template.NewFile("nope.mem"), template.NewFile("out.mtx"))
		require.Error(t, err)
		assert.ErrorContains(t, err, "no in-memory matrix")
	})
}

func TestCatOutputs(t *testing.T) {
	ctx := context.Background()

	t.Run("ColWise", func(t *testing.T) {
		s := testSession(t)
		s.outputMem.Put("left.mem", buildMatrix([]string{"t0", "t1"}, []string{"q0", "q1"}, []float32{1, 2, 3, 4}))
		s.outputMem.Put("right.mem", buildMatrix([]string{"u0", "u1"}, []string{"q0", "q1"}, []float32{5, 6, 7, 8}))

		inputs := []template.File{template.NewFile("left.mem"), template.NewFile("right.mem")}
		require.NoError(t, s.CatOutputs(ctx, inputs, mustParseFile(t, "joined.mem[catType=colWise]")))

		m := memMatrix(t, s, "joined.mem")
		require.Equal(t, 2, m.Rows())
		require.Equal(t, 4, m.Cols())
		assert.Equal(t, []string{"t0", "t1", "u0", "u1"}, m.TargetFiles.Names())
		assert.Equal(t, []float32{1, 2, 5, 6, 3, 4, 7, 8}, m.Data)
	})

	t.Run("RowWise", func(t *testing.T) {
		s := testSession(t)
		s.outputMem.Put("top.mem", buildMatrix([]string{"t0", "t1"}, []string{"q0", "q1"}, []float32{1, 2, 3, 4}))
		s.outputMem.Put("bottom.mem", buildMatrix([]string{"t0", "t1"}, []string{"p0", "p1"}, []float32{5, 6, 7, 8}))

		inputs := []template.File{template.NewFile("top.mem"), template.NewFile("bottom.mem")}
		require.NoError(t, s.CatOutputs(ctx, inputs, mustParseFile(t, "stacked.mem[catType=rowWise]")))

		m := memMatrix(t, s, "stacked.mem")
		require.Equal(t, 4, m.Rows())
		require.Equal(t, 2, m.Cols())
		assert.Equal(t, []string{"q0", "q1", "p0", "p1"}, m.QueryFiles.Names())
		assert.Equal(t, float32(5), m.At(2, 0))
	})

	t.Run("RowMismatchIsFatal", func(t *testing.T) {
		s := testSession(t)
		s.outputMem.Put("a.mem", buildMatrix([]string{"t0", "t1"}, []string{"q0", "q1"}, []float32{1, 2, 3, 4}))
		s.outputMem.Put("b.mem", buildMatrix([]string{"t0", "t1"}, []string{"q0", "q1", "q2"}, []float32{1, 2, 3, 4, 5, 6}))

		inputs := []template.File{template.NewFile("a.mem"), template.NewFile("b.mem")}
		err := s.CatOutputs(ctx, inputs, mustParseFile(t, "bad.mem[catType=colWise]"))
		require.Error(t, err)
		assert.True(t, IsFatal(err))
		assert.ErrorIs(t, err, ErrSizeMismatch)
	})

	t.Run("UnsupportedCatType", func(t *testing.T) {
		s := testSession(t)
		s.outputMem.Put("a.mem", buildMatrix([]string{"t0"}, []string{"q0"}, []float32{1}))
		s.outputMem.Put("b.mem", buildMatrix([]string{"t0"}, []string{"q0"}, []float32{2}))

		inputs := []template.File{template.NewFile("a.mem"), template.NewFile("b.mem")}
		err := s.CatOutputs(ctx, inputs, template.NewFile("bad.mem"))
		require.Error(t, err)
		assert.True(t, IsFatal(err))
		assert.ErrorContains(t, err, "unsupported catType")
	})

	t.Run("SingleInputNeedsNoCatType", func(t *testing.T) {
		s := testSession(t)
		s.outputMem.Put("only.mem", buildMatrix([]string{"t0", "t1"}, []string{"q0"}, []float32{9, 8}))

		require.NoError(t, s.CatOutputs(ctx, []template.File{template.NewFile("only.mem")}, template.NewFile("copy.mtx")))

		m, err := output.ReadMatrix(ctx, template.NewFile("copy.mtx"), s.outputConfig())
		require.NoError(t, err)
		assert.Equal(t, []float32{9, 8}, m.Data)
	})

	t.Run("NoInputsIsFatal", func(t *testing.T) {
		s := testSession(t)
		err := s.CatOutputs(ctx, nil, template.NewFile("out.mem"))
		require.Error(t, err)
		assert.True(t, IsFatal(err))
	})

	t.Run("MalformedMatrixIsFatal", func(t *testing.T) {
		s := testSession(t)
		s.outputMem.Put("bad.mem", &output.Matrix{
			TargetFiles: template.FileList{template.NewFile("t0"), template.NewFile("t1")},
			QueryFiles:  template.FileList{template.NewFile("q0"), template.NewFile("q1")},
			Data:        []float32{1, 2, 3},
		})

		err := s.CatOutputs(ctx, []template.File{template.NewFile("bad.mem")}, template.NewFile("out.mem"))
		require.Error(t, err)
		assert.True(t, IsFatal(err))
		assert.ErrorIs(t, err, ErrSizeMismatch)
	})
}
