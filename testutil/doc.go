// Package testutil provides deterministic data generators for tests and
// benchmarks.
//
// This package is intended for use in tests and benchmarks only. A seeded
// RNG produces repeatable payloads, record lists and per-subject clusters,
// so pipeline runs can be compared across processes.
//
// # Record Generation
//
//	rng := testutil.NewRNG(4711)
//	records := rng.Records("probe", 100, 64)          // uniform payloads
//	people := rng.SubjectRecords(10, 5, 64, 0.05)     // clustered by identity
//
// SubjectRecords clusters samples around per-identity centroids, so
// same-subject pairs score closer than cross-subject pairs and rank checks
// stay stable across runs.
//
// # Gallery Input
//
//	store.Put(ctx, "people.csv", testutil.GalleryCSV(people))
package testutil
