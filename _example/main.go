package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/hupe1980/brec"
	"github.com/hupe1980/brec/blobstore"
	"github.com/hupe1980/brec/template"
	"github.com/hupe1980/brec/testutil"
)

func main() {
	seed := int64(4711)
	dim := 32
	targets := 20000
	queries := 500

	ctx := context.Background()
	rng := testutil.NewRNG(seed)

	store := blobstore.NewMemoryStore()
	if err := store.Put(ctx, "targets.csv", testutil.GalleryCSV(rng.Records("t", targets, dim))); err != nil {
		log.Fatal(err)
	}
	if err := store.Put(ctx, "queries.csv", testutil.GalleryCSV(rng.Records("q", queries, dim))); err != nil {
		log.Fatal(err)
	}

	s := brec.NewSession(brec.WithBlobStore(store), brec.WithQuiet())
	defer s.Close()

	fmt.Println("--- Enroll ---")
	fmt.Println("Dimension:", dim)
	fmt.Println("Targets:", targets)

	gal := template.MustParseFile("targets.gal[algorithm=Normalize:L2]")

	start := time.Now()

	files, err := s.Enroll(ctx, template.NewFile("targets.csv"), gal)
	if err != nil {
		log.Fatal(err)
	}

	end := time.Since(start)

	fmt.Printf("Seconds: %.2f (%.0f records/sec)\n\n", end.Seconds(), float64(len(files))/end.Seconds())

	fmt.Println("--- Compare ---")
	fmt.Println("Queries:", queries)

	out := template.MustParseFile("scores.mem[algorithm=Normalize:L2]")

	start = time.Now()

	if err := s.Compare(ctx, gal, template.NewFile("queries.csv"), out); err != nil {
		log.Fatal(err)
	}

	end = time.Since(start)

	scores := targets * queries
	fmt.Printf("Scores: %d\n", scores)
	fmt.Printf("Seconds: %.2f (%.0f scores/sec)\n\n", end.Seconds(), float64(scores)/end.Seconds())

	m, ok := s.Matrix("scores.mem")
	if !ok {
		log.Fatal("score matrix missing")
	}

	fmt.Println("--- Best match for first query ---")
	best := 0
	for t := 1; t < m.Cols(); t++ {
		if m.At(0, t) < m.At(0, best) {
			best = t
		}
	}
	fmt.Printf("Query: %s, Target: %s, Distance: %.4f\n", m.QueryFiles[0].Name, m.TargetFiles[best].Name, m.At(0, best))
}
