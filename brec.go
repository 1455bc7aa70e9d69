package brec

import (
	"context"

	"github.com/hupe1980/brec/distance"
	"github.com/hupe1980/brec/template"
	"github.com/hupe1980/brec/transform"
)

// Train resolves the algorithm named by model's algorithm option and fits it
// on the records of input, storing the trained model afterwards.
func (s *Session) Train(ctx context.Context, input, model template.File) error {
	a, err := s.registry.Get(ctx, model.Get("algorithm", ""))
	if err != nil {
		return err
	}
	return a.Train(ctx, input, model)
}

// Enroll resolves the algorithm named by gal's algorithm option and enrolls
// the records of input into gal.
func (s *Session) Enroll(ctx context.Context, input, gal template.File) (template.FileList, error) {
	a, err := s.registry.Get(ctx, gal.Get("algorithm", ""))
	if err != nil {
		return nil, err
	}
	return a.EnrollTo(ctx, input, gal)
}

// EnrollList projects raw templates through the algorithm named by the first
// record's algorithm option. An empty batch is a no-op.
func (s *Session) EnrollList(ctx context.Context, data template.List) (template.List, error) {
	if len(data) == 0 {
		return nil, nil
	}
	a, err := s.registry.Get(ctx, data[0].File.Get("algorithm", ""))
	if err != nil {
		return nil, err
	}
	return a.EnrollList(ctx, data)
}

// Compare resolves the algorithm named by out's algorithm option and scores
// queryGallery against targetGallery into out.
func (s *Session) Compare(ctx context.Context, targetGallery, queryGallery, out template.File) error {
	a, err := s.registry.Get(ctx, out.Get("algorithm", ""))
	if err != nil {
		return err
	}
	return a.Compare(ctx, targetGallery, queryGallery, out)
}

// IsClassifier reports whether the named algorithm runs in classifier mode.
func (s *Session) IsClassifier(ctx context.Context, algorithm string) (bool, error) {
	a, err := s.registry.Get(ctx, algorithm)
	if err != nil {
		return false, err
	}
	return a.IsClassifier(), nil
}

// TransformOf returns the shared feature-extraction stage of the named
// algorithm.
func (s *Session) TransformOf(ctx context.Context, algorithm string) (transform.Transform, error) {
	a, err := s.registry.Get(ctx, algorithm)
	if err != nil {
		return nil, err
	}
	return a.transform, nil
}

// DistanceOf returns the shared comparison stage of the named algorithm, or
// nil for a classifier.
func (s *Session) DistanceOf(ctx context.Context, algorithm string) (distance.Distance, error) {
	a, err := s.registry.Get(ctx, algorithm)
	if err != nil {
		return nil, err
	}
	return a.distance, nil
}
