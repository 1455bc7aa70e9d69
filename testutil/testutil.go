package testutil

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"math"
	"math/rand"
	"strconv"
	"sync"

	"github.com/hupe1980/brec/template"
)

// RNG is a seeded random source safe for concurrent use. Reset rewinds it
// to the initial seed so fixtures are reproducible across runs.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG returns a generator seeded with seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset rewinds the generator to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// FillUniform fills dst with values uniform in [0, 1). It locks once per
// call rather than once per element.
func (r *RNG) FillUniform(dst []float32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range dst {
		dst[i] = r.rand.Float32()
	}
}

// UnitVector generates a single L2-normalized random vector.
func (r *RNG) UnitVector(dim int) []float32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.unitVectorLocked(dim)
}

func (r *RNG) unitVectorLocked(dim int) []float32 {
	vec := make([]float32, dim)
	var norm float64
	for j := range vec {
		v := r.rand.NormFloat64()
		vec[j] = float32(v)
		norm += v * v
	}
	if norm == 0 {
		norm = 1
	}
	invNorm := float32(1.0 / math.Sqrt(norm))
	for j := range vec {
		vec[j] *= invNorm
	}
	return vec
}

// Records generates num records named prefix0000, prefix0001, ..., each
// carrying a dim-dimensional payload uniform in [-1, 1). One backing array
// holds all payloads.
func (r *RNG) Records(prefix string, num, dim int) template.List {
	r.mu.Lock()
	defer r.mu.Unlock()

	data := make([]float32, num*dim)
	records := make(template.List, num)

	for i := range num {
		vec := data[i*dim : (i+1)*dim]
		for j := range vec {
			vec[j] = r.rand.Float32()*2 - 1
		}
		records[i] = template.Template{
			File: template.NewFile(fmt.Sprintf("%s%04d", prefix, i)),
			Data: vec,
		}
	}

	return records
}

// SubjectRecords generates samplesPer records for each of subjects
// identities. All samples of one subject share a unit centroid plus
// Gaussian noise scaled by spread, so same-subject pairs land closer
// together than cross-subject pairs. Names follow "s<subject>_<sample>"
// and carry a Subject option for ground-truth checks.
func (r *RNG) SubjectRecords(subjects, samplesPer, dim int, spread float32) template.List {
	r.mu.Lock()
	defer r.mu.Unlock()

	centroids := make([][]float32, subjects)
	for i := range subjects {
		centroids[i] = r.unitVectorLocked(dim)
	}

	data := make([]float32, subjects*samplesPer*dim)
	records := make(template.List, 0, subjects*samplesPer)

	for subj := range subjects {
		for sample := range samplesPer {
			i := subj*samplesPer + sample
			vec := data[i*dim : (i+1)*dim]
			for j := range vec {
				vec[j] = centroids[subj][j] + float32(r.rand.NormFloat64())*spread
			}

			f := template.NewFile(fmt.Sprintf("s%03d_%02d", subj, sample))
			f.Set("Subject", strconv.Itoa(subj))
			records = append(records, template.Template{File: f, Data: vec})
		}
	}

	return records
}

// GalleryCSV renders records in the csv gallery format: a header row, then
// one row per record with the flat descriptor first and the payload values
// after it. The result can be Put into a blob store as pipeline input.
func GalleryCSV(records template.List) []byte {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	dim := 0
	if len(records) > 0 {
		dim = len(records[0].Data)
	}
	header := make([]string, 0, dim+1)
	header = append(header, "File")
	for i := 0; i < dim; i++ {
		header = append(header, "d"+strconv.Itoa(i))
	}
	_ = w.Write(header)

	for _, t := range records {
		row := make([]string, 0, len(t.Data)+1)
		row = append(row, t.File.Flat())
		for _, v := range t.Data {
			row = append(row, strconv.FormatFloat(float64(v), 'g', -1, 32))
		}
		_ = w.Write(row)
	}
	w.Flush()
	return buf.Bytes()
}
