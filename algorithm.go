package brec

import (
	"context"
	"time"

	"github.com/hupe1980/brec/distance"
	"github.com/hupe1980/brec/gallery"
	"github.com/hupe1980/brec/template"
	"github.com/hupe1980/brec/transform"
)

// Algorithm pairs a feature-extraction transform with an optional distance.
// Instances are built by the session registry and shared; all methods are
// safe for concurrent use once construction completes.
type Algorithm struct {
	name    string
	session *Session

	transform transform.Transform
	distance  distance.Distance
}

// Name returns the descriptor the algorithm was requested as.
func (a *Algorithm) Name() string {
	return a.name
}

// IsClassifier reports whether the algorithm runs in classifier mode: no
// distance stage, so it labels records but cannot score pairs.
func (a *Algorithm) IsClassifier() bool {
	return a.distance == nil
}

// Project runs the feature-extraction stage over data.
func (a *Algorithm) Project(ctx context.Context, data template.List) (template.List, error) {
	if a.transform == nil {
		return nil, fatal("project", ErrNilTransform)
	}
	return a.transform.Project(ctx, data)
}

// Train fits the algorithm on the records of input. The transform trains on
// the raw records; the distance, if any, trains on their projections. When
// model is non-anonymous the trained algorithm is stored there afterwards.
func (a *Algorithm) Train(ctx context.Context, input, model template.File) error {
	if a.transform == nil {
		return fatal("train", ErrNilTransform)
	}
	start := time.Now()

	in := input.Clone()
	in.SetBool("Train", true)

	data, err := gallery.ReadAll(ctx, in, a.session.galleryConfig())
	if err == nil {
		data = data.Tagged("Train", "true")
		err = a.transform.Train(ctx, data)
	}
	if err == nil && a.distance != nil {
		var projected template.List
		projected, err = a.transform.Project(ctx, data)
		if err == nil {
			err = a.distance.Train(ctx, projected)
		}
	}

	elapsed := time.Since(start)
	a.session.metrics.RecordTrain(len(data), elapsed, err)
	a.session.logger.LogTrain(ctx, a.name, len(data), elapsed, err)
	if err != nil {
		return err
	}

	if !model.IsAnonymous() {
		return a.Store(ctx, model)
	}
	return nil
}

// galleryLike reports whether a suffix denotes already-enrolled templates
// that can be streamed without projection.
func galleryLike(suffix string) bool {
	switch suffix {
	case "gal", "mem", "template":
		return true
	}
	return false
}

// memoryGalleryFor derives the session memory gallery that caches
// enrollments of input under this algorithm. The name folds in the input's
// options so the same path enrolled with different options caches separately.
func (a *Algorithm) memoryGalleryFor(input template.File) template.File {
	return template.NewFile(a.name + input.BaseName() + input.Hash() + ".mem")
}

// retrieveOrEnroll resolves input into a streamable gallery of enrolled
// templates plus its record descriptors. Gallery-like inputs are consumed
// as-is unless they carry the enroll option; anything else is enrolled once
// into a session memory gallery and served from there on later calls.
func (a *Algorithm) retrieveOrEnroll(ctx context.Context, input template.File) (template.File, template.FileList, error) {
	if galleryLike(input.Suffix()) && !input.Bool("enroll") {
		files, err := a.galleryFiles(ctx, input)
		return input, files, err
	}

	mem := a.memoryGalleryFor(input)

	// Serialized so concurrent comparisons sharing an input enroll it once.
	a.session.enrollMu.Lock()
	if !a.session.galleryMem.Contains(mem.Name) {
		if _, err := a.EnrollTo(ctx, input, mem); err != nil {
			a.session.galleryMem.Delete(mem.Name)
			a.session.enrollMu.Unlock()
			return template.File{}, nil, err
		}
	}
	a.session.enrollMu.Unlock()

	files, err := a.galleryFiles(ctx, mem)
	return mem, files, err
}

func (a *Algorithm) galleryFiles(ctx context.Context, f template.File) (template.FileList, error) {
	g, err := gallery.Open(ctx, f, a.session.galleryConfig())
	if err != nil {
		return nil, err
	}
	files, err := g.Files()
	if closeErr := g.Close(); err == nil {
		err = closeErr
	}
	return files, err
}
