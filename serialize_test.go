package brec

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/brec/blobstore"
	"github.com/hupe1980/brec/template"
	"github.com/hupe1980/brec/transform"
)

const trainCSV = "File,d0,d1\nt0,0,4\nt1,2,6\nt2,4,8\n"

// projectProbe projects a fixed probe record through the algorithm so two
// instances can be compared for equal trained state.
func projectProbe(t *testing.T, ctx context.Context, a *Algorithm) []float32 {
	t.Helper()
	out, err := a.Project(ctx, template.List{template.New("probe", []float32{3, 7})})
	require.NoError(t, err)
	require.Len(t, out, 1)
	return out[0].Data
}

func TestModelRoundTrip(t *testing.T) {
	ctx := context.Background()

	t.Run("FileModel", func(t *testing.T) {
		sA := testSession(t)
		putBlob(t, sA, "train.csv", trainCSV)

		modelPath := filepath.Join(t.TempDir(), "face.model")
		model := mustParseFile(t, modelPath + "[algorithm=Center:ScaledL2]")
		require.NoError(t, sA.Train(ctx, template.NewFile("train.csv"), model))

		_, err := os.Stat(modelPath)
		require.NoError(t, err)

		aA, err := sA.Algorithm(ctx, "Center:ScaledL2")
		require.NoError(t, err)

		sB := testSession(t)
		aB, err := sB.Algorithm(ctx, modelPath)
		require.NoError(t, err)
		assert.Equal(t, modelPath, aB.Name())
		assert.False(t, aB.IsClassifier())

		want := projectProbe(t, ctx, aA)
		got := projectProbe(t, ctx, aB)
		require.Len(t, got, len(want))
		for i := range want {
			assert.InDelta(t, want[i], got[i], 1e-6)
		}
	})

	t.Run("ModelDirResolution", func(t *testing.T) {
		sA := testSession(t)
		putBlob(t, sA, "train.csv", trainCSV)

		dir := t.TempDir()
		model := mustParseFile(t, filepath.Join(dir, "face.model") + "[algorithm=Center:ScaledL2]")
		require.NoError(t, sA.Train(ctx, template.NewFile("train.csv"), model))

		sB := testSession(t, WithModelDir(dir))
		aB, err := sB.Algorithm(ctx, "face.model")
		require.NoError(t, err)
		assert.False(t, aB.IsClassifier())

		aA, err := sA.Algorithm(ctx, "Center:ScaledL2")
		require.NoError(t, err)
		assert.InDeltaSlice(t, projectProbe(t, ctx, aA), projectProbe(t, ctx, aB), 1e-6)
	})

	t.Run("ModelStoreRoundTrip", func(t *testing.T) {
		store := blobstore.NewMemoryStore()

		sA := testSession(t, WithModelStore(store))
		putBlob(t, sA, "train.csv", trainCSV)
		model := mustParseFile(t, "face.model[algorithm=Center:ScaledL2]")
		require.NoError(t, sA.Train(ctx, template.NewFile("train.csv"), model))

		b, err := store.Open(ctx, "models/face.model")
		require.NoError(t, err)
		require.NoError(t, b.Close())

		sB := testSession(t, WithModelStore(store))
		aB, err := sB.Algorithm(ctx, "face.model")
		require.NoError(t, err)

		aA, err := sA.Algorithm(ctx, "Center:ScaledL2")
		require.NoError(t, err)
		assert.InDeltaSlice(t, projectProbe(t, ctx, aA), projectProbe(t, ctx, aB), 1e-6)
	})

	t.Run("AbbreviatedModelNeedsAbbreviation", func(t *testing.T) {
		sA := testSession(t, WithAbbreviation("Face", "Center:ScaledL2"))
		putBlob(t, sA, "train.csv", trainCSV)

		modelPath := filepath.Join(t.TempDir(), "face.model")
		model := mustParseFile(t, modelPath + "[algorithm=Face]")
		require.NoError(t, sA.Train(ctx, template.NewFile("train.csv"), model))

		// The model stores the name it was requested as, so loading it
		// again depends on the same abbreviation being registered.
		sB := testSession(t, WithAbbreviation("Face", "Center:ScaledL2"))
		aB, err := sB.Algorithm(ctx, modelPath)
		require.NoError(t, err)
		assert.False(t, aB.IsClassifier())

		sC := testSession(t)
		_, err = sC.Algorithm(ctx, modelPath)
		require.Error(t, err)
		assert.ErrorIs(t, err, transform.ErrUnknown)
	})

	t.Run("CorruptModelFails", func(t *testing.T) {
		sA := testSession(t)
		putBlob(t, sA, "train.csv", trainCSV)

		modelPath := filepath.Join(t.TempDir(), "face.model")
		model := mustParseFile(t, modelPath + "[algorithm=Center:ScaledL2]")
		require.NoError(t, sA.Train(ctx, template.NewFile("train.csv"), model))

		raw, err := os.ReadFile(modelPath)
		require.NoError(t, err)
		raw[1] ^= 0xff
		require.NoError(t, os.WriteFile(modelPath, raw, 0644))

		sB := testSession(t)
		_, err = sB.Algorithm(ctx, modelPath)
		require.Error(t, err)
	})

	t.Run("TrainWithoutModelSkipsStore", func(t *testing.T) {
		s := testSession(t)
		putBlob(t, s, "train.csv", trainCSV)

		a, err := s.Algorithm(ctx, "Center:ScaledL2")
		require.NoError(t, err)
		require.NoError(t, a.Train(ctx, template.NewFile("train.csv"), template.File{}))
	})
}
