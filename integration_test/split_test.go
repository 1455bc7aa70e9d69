package integration_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/brec"
	"github.com/hupe1980/brec/blobstore"
	"github.com/hupe1980/brec/output"
	"github.com/hupe1980/brec/template"
	"github.com/hupe1980/brec/testutil"
)

// TestSplit_SegmentsMatchFullRun partitions a comparison into two segment
// shards and checks each shard against the corresponding region of an
// unsplit run.
func TestSplit_SegmentsMatchFullRun(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := blobstore.NewLocalStore(dir)

	rng := testutil.NewRNG(21)
	people := rng.SubjectRecords(2, 3, 8, 0.1) // 6 records

	require.NoError(t, store.Put(ctx, "people.csv", testutil.GalleryCSV(people)))

	s := brec.NewSession(brec.WithBlobStore(store), brec.WithBlockSize(6))
	defer s.Close()

	require.NoError(t, s.Compare(ctx,
		template.NewFile("people.csv"),
		template.NewFile("."),
		template.MustParseFile("full.mtx[algorithm=Normalize:L2]")))

	// Segment 0 holds the first two records, segment 1 the remaining four.
	require.NoError(t, s.Compare(ctx,
		template.NewFile("people.csv"),
		template.NewFile("."),
		template.MustParseFile("part%d.mtx[algorithm=Normalize:L2,split=[2,4]]")))

	cfg := output.Config{Store: store}
	full, err := output.ReadMatrix(ctx, template.NewFile("full.mtx"), cfg)
	require.NoError(t, err)
	part0, err := output.ReadMatrix(ctx, template.NewFile("part0.mtx"), cfg)
	require.NoError(t, err)
	part1, err := output.ReadMatrix(ctx, template.NewFile("part1.mtx"), cfg)
	require.NoError(t, err)

	// Shards keep the full matrix shape. Segment scores land at the block
	// origin: shard i holds segment i of the queries against segment i of
	// the targets, indexed from the top left.
	require.Equal(t, full.Rows(), part0.Rows())
	require.Equal(t, full.Cols(), part1.Cols())

	for q := 0; q < 2; q++ {
		for tg := 0; tg < 2; tg++ {
			assert.Equal(t, full.At(q, tg), part0.At(q, tg))
		}
	}
	for q := 0; q < 4; q++ {
		for tg := 0; tg < 4; tg++ {
			assert.Equal(t, full.At(2+q, 2+tg), part1.At(q, tg))
		}
	}

	// Outside its segment a shard stays unwritten.
	assert.Zero(t, part0.At(3, 3))
	assert.Zero(t, part1.At(4, 4))
}

// TestSplit_SizesMustCoverEveryBlock runs a split whose sizes do not cover
// the single block and expects a fatal size mismatch.
func TestSplit_SizesMustCoverEveryBlock(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewLocalStore(t.TempDir())

	rng := testutil.NewRNG(3)
	require.NoError(t, store.Put(ctx, "people.csv", testutil.GalleryCSV(rng.Records("p", 5, 4))))

	s := brec.NewSession(brec.WithBlobStore(store), brec.WithBlockSize(8))
	defer s.Close()

	err := s.Compare(ctx,
		template.NewFile("people.csv"),
		template.NewFile("."),
		template.MustParseFile("part%d.mtx[algorithm=Normalize:L2,split=[2,2]]"))
	require.Error(t, err)
	assert.True(t, brec.IsFatal(err))
	assert.ErrorIs(t, err, brec.ErrSizeMismatch)
}
