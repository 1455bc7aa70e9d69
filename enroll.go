package brec

import (
	"context"
	"time"

	"github.com/hupe1980/brec/gallery"
	"github.com/hupe1980/brec/template"
)

// EnrollTo projects the records of input through the algorithm and writes the
// resulting templates to the named gallery, returning the descriptors of
// everything written. Records the transform cannot process are kept with
// their failure mark so galleries stay index-aligned with their inputs.
//
// Gallery options adjust the pipeline:
//
//	read          preload the gallery's existing records into the result
//	cache         return the existing records untouched when non-empty
//	noDuplicates  skip input records whose name is already enrolled
//
// An input carrying the infinite option re-enrolls pass after pass until ctx
// is canceled; the cancellation error is returned alongside the records
// enrolled so far.
func (a *Algorithm) EnrollTo(ctx context.Context, input, gal template.File) (template.FileList, error) {
	if gal.IsAnonymous() {
		if input.IsAnonymous() {
			return nil, nil
		}
		gal = a.memoryGalleryFor(input)
	}
	if a.transform == nil {
		return nil, fatal("enroll", ErrNilTransform)
	}

	g, err := gallery.Open(ctx, gal, a.session.galleryConfig())
	if err != nil {
		return nil, err
	}

	files, err := a.enrollInto(ctx, g, input, gal)
	if closeErr := g.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return files, err
	}
	return files, nil
}

// EnrollList projects raw templates in memory, without gallery IO.
func (a *Algorithm) EnrollList(ctx context.Context, data template.List) (template.List, error) {
	if a.transform == nil {
		return nil, fatal("enroll", ErrNilTransform)
	}
	return a.transform.Project(ctx, data)
}

func (a *Algorithm) enrollInto(ctx context.Context, g gallery.Gallery, input, gal template.File) (template.FileList, error) {
	for {
		var fileList template.FileList

		if gal.Contains("read") || gal.Contains("cache") {
			var err error
			fileList, err = g.Files()
			if err != nil {
				return nil, err
			}
		}
		if len(fileList) > 0 && gal.Contains("cache") {
			return fileList, nil
		}

		data, err := gallery.ReadAll(ctx, input, a.session.galleryConfig())
		if err != nil {
			return nil, err
		}
		if len(data) == 0 {
			return fileList, nil
		}

		fileList, err = a.enrollPass(ctx, g, gal, data, fileList)
		if err != nil {
			return fileList, err
		}

		if !input.Bool("infinite") {
			return fileList, nil
		}
		if err := ctx.Err(); err != nil {
			return fileList, err
		}
	}
}

// enrollPass pushes one full read of the input through projection and into
// the gallery. Work proceeds in blocks of the session block size, split into
// sub-blocks sized to keep every worker busy while bounding how many
// projected templates exist at once.
func (a *Algorithm) enrollPass(ctx context.Context, g gallery.Gallery, gal template.File, data template.List, fileList template.FileList) (template.FileList, error) {
	start := time.Now()
	tracker := a.session.tracker("enroll")
	tracker.AddTotal(int64(len(data)))

	noDuplicates := gal.Contains("noDuplicates")
	var known map[string]struct{}
	if noDuplicates {
		existing, err := g.Files()
		if err != nil {
			return fileList, err
		}
		known = make(map[string]struct{}, len(existing))
		for _, f := range existing {
			known[f.Name] = struct{}{}
		}
	}

	subBlockSize := 4 * max(1, a.session.parallelism)
	numSubBlocks := (a.session.blockSize + subBlockSize - 1) / subBlockSize
	blocks := a.session.blocks(len(data))

	var written, failures, bytes int
	for block := 0; block < blocks; block++ {
		for sub := 0; sub < numSubBlocks; sub++ {
			if err := ctx.Err(); err != nil {
				return fileList, err
			}

			// The last sub-block is truncated so it never spills into the
			// next block when blockSize is not a multiple of subBlockSize.
			offset := block*a.session.blockSize + sub*subBlockSize
			length := subBlockSize
			if remaining := (block+1)*a.session.blockSize - offset; remaining < length {
				length = remaining
			}
			chunk := data.Mid(offset, length)
			if len(chunk) == 0 {
				break
			}
			if noDuplicates {
				chunk = dropKnown(chunk, known)
			}
			stepped := len(chunk)

			projected, err := a.transform.Project(ctx, chunk)
			if err != nil {
				return fileList, err
			}
			if err := g.WriteBlock(projected); err != nil {
				return fileList, err
			}

			newFiles := projected.Files()
			fileList = append(fileList, newFiles...)

			written += len(newFiles)
			failures += newFiles.Failures()
			bytes += projected.Bytes()
			tracker.Fail(int64(newFiles.Failures()))
			tracker.Step(int64(stepped))
		}
	}

	tracker.Finish()
	elapsed := time.Since(start)
	a.session.metrics.RecordEnroll(written, failures, elapsed)
	a.session.logger.LogEnroll(ctx, gal.Flat(), written, failures, bytes, elapsed)
	return fileList, nil
}

// dropKnown filters out records whose name is already enrolled. The input is
// a window into the shared read buffer, so filtering copies instead of
// compacting in place.
func dropKnown(data template.List, known map[string]struct{}) template.List {
	kept := make(template.List, 0, len(data))
	for _, t := range data {
		if _, ok := known[t.File.Name]; !ok {
			kept = append(kept, t)
		}
	}
	return kept
}
