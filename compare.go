package brec

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/brec/gallery"
	"github.com/hupe1980/brec/internal/progress"
	"github.com/hupe1980/brec/output"
	"github.com/hupe1980/brec/template"
)

// Compare scores every query record of queryGallery against every target
// record of targetGallery and streams the score matrix into out. Inputs that
// are not galleries of enrolled templates are enrolled first, cached in
// session memory galleries keyed by algorithm and input.
//
// A query gallery named "." compares the target gallery against itself.
// An out carrying cache skips the run entirely when it already exists.
//
// The split option partitions both galleries into index-aligned segments and
// writes one output per segment pairing: segment i of the queries is scored
// only against segment i of the targets. The out name must then contain a %d
// placeholder for the segment number.
func (a *Algorithm) Compare(ctx context.Context, targetGallery, queryGallery, out template.File) error {
	if a.distance == nil {
		return fatal("compare", ErrNilDistance)
	}

	if out.Bool("cache") && a.outputExists(ctx, out) {
		return nil
	}
	if queryGallery.Name == "." {
		queryGallery = targetGallery
	}

	start := time.Now()

	tFile, targetFiles, err := a.retrieveOrEnroll(ctx, targetGallery)
	if err != nil {
		return err
	}
	qFile, queryFiles, err := a.retrieveOrEnroll(ctx, queryGallery)
	if err != nil {
		return err
	}

	partitionSizes, outFiles, err := splitOutputs(out)
	if err != nil {
		return err
	}

	outputs := make([]output.Output, 0, len(outFiles))
	for _, f := range outFiles {
		o, err := output.Open(ctx, f, targetFiles, queryFiles, a.session.outputConfig())
		if err != nil {
			return err
		}
		outputs = append(outputs, o)
	}

	t, err := gallery.Open(ctx, tFile, a.session.galleryConfig())
	if err != nil {
		return err
	}
	defer t.Close()
	q, err := gallery.Open(ctx, qFile, a.session.galleryConfig())
	if err != nil {
		return err
	}
	defer q.Close()

	tracker := a.session.tracker("compare")
	comparisons := countComparisons(len(targetFiles), len(queryFiles), partitionSizes)
	tracker.AddTotal(int64(comparisons)) //nolint:gosec

	runErr := a.compareBlocks(ctx, t, q, partitionSizes, outputs, tracker)
	tracker.Finish()

	// Outputs publish on Close. A failed run abandons them unwritten.
	if runErr == nil {
		for _, o := range outputs {
			if err := o.Close(); err != nil {
				runErr = err
				break
			}
		}
	}

	elapsed := time.Since(start)
	a.session.metrics.RecordCompare(comparisons, elapsed, runErr)
	a.session.logger.LogCompare(ctx, out.Flat(), comparisons, elapsed, runErr)
	return runErr
}

// compareBlocks drives the nested multi-pass loop: for every query block, and
// every partition within it, the target gallery is re-streamed from the top
// so only one block pair is in memory at a time.
func (a *Algorithm) compareBlocks(ctx context.Context, t, q gallery.Gallery, partitionSizes []int, outputs []output.Output, tracker *progress.Tracker) error {
	queryBlock := -1
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		queryBlock++
		queries, queryDone, err := q.ReadBlock()
		if err != nil {
			return err
		}
		if queryDone {
			return nil
		}

		queryParts, err := partitionBlock(queries, partitionSizes, "query")
		if err != nil {
			return err
		}

		for i, queryPart := range queryParts {
			targetBlock := -1
			for {
				if err := ctx.Err(); err != nil {
					return err
				}
				targetBlock++
				targets, targetDone, err := t.ReadBlock()
				if err != nil {
					return err
				}
				if targetDone {
					break
				}

				targetParts, err := partitionBlock(targets, partitionSizes, "target")
				if err != nil {
					return err
				}

				outputs[i].SetBlock(queryBlock, targetBlock)
				if err := a.distance.Compare(targetParts[i], queryPart, outputs[i]); err != nil {
					return err
				}

				tracker.Step(int64(len(targetParts[i])) * int64(len(queryPart)))
			}
		}
	}
}

// splitOutputs expands the split option into per-segment output descriptors.
// Without split the out descriptor is used as-is.
func splitOutputs(out template.File) ([]int, []template.File, error) {
	if !out.Contains("split") {
		return nil, []template.File{out}, nil
	}
	if !strings.Contains(out.Name, "%d") {
		return nil, nil, fatal("compare", fmt.Errorf("%w: %q", ErrMissingPlaceholder, out.Flat()))
	}
	sizes, err := out.IntList("split")
	if err != nil {
		return nil, nil, fatal("compare", err)
	}
	if len(sizes) == 0 {
		return nil, nil, fatal("compare", fmt.Errorf("empty split sizes in %q", out.Flat()))
	}

	outFiles := make([]template.File, 0, len(sizes))
	for i := range sizes {
		f := out.Clone()
		f.Name = fmt.Sprintf(out.Name, i)
		outFiles = append(outFiles, f)
	}
	return sizes, outFiles, nil
}

// partitionBlock slices a block into the configured split segments, checking
// that the sizes cover the block exactly.
func partitionBlock(block template.List, sizes []int, role string) ([]template.List, error) {
	if len(sizes) == 0 {
		return []template.List{block}, nil
	}
	sum := 0
	for _, s := range sizes {
		sum += s
	}
	if sum != len(block) {
		return nil, fatal("compare", fmt.Errorf("%w: split sizes cover %d records but the %s block holds %d", ErrSizeMismatch, sum, role, len(block)))
	}
	return block.Partition(sizes), nil
}

// countComparisons counts the pairs a run scores. A plain run covers the
// full cross product. A split run pairs each segment only with its
// index-aligned peer, so per block pair the work is the sum of squared
// segment sizes.
func countComparisons(targets, queries int, sizes []int) uint64 {
	if len(sizes) == 0 {
		return uint64(targets) * uint64(queries) //nolint:gosec
	}
	sum, squares := 0, 0
	for _, s := range sizes {
		sum += s
		squares += s * s
	}
	if sum == 0 {
		return 0
	}
	return uint64(targets/sum) * uint64(queries/sum) * uint64(squares) //nolint:gosec
}

// outputExists reports whether out has already been written, either as a
// published in-memory matrix or as a blob in the session store.
func (a *Algorithm) outputExists(ctx context.Context, out template.File) bool {
	if out.Suffix() == "mem" {
		_, ok := a.session.outputMem.Get(out.Name)
		return ok
	}
	b, err := a.session.blobStore.Open(ctx, out.Name)
	if err != nil {
		return false
	}
	_ = b.Close()
	return true
}
