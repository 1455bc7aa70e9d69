package output

import (
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/brec/template"
)

// Matrix is a fully materialized score matrix: one row per query, one
// column per target, scores in row-major order. Cells no comparison wrote
// stay zero, which is how sharded runs leave their off-diagonal regions.
type Matrix struct {
	TargetFiles template.FileList
	QueryFiles  template.FileList
	Data        []float32
}

// NewMatrix allocates a zeroed matrix for the given populations.
func NewMatrix(targetFiles, queryFiles template.FileList) *Matrix {
	return &Matrix{
		TargetFiles: targetFiles,
		QueryFiles:  queryFiles,
		Data:        make([]float32, len(queryFiles)*len(targetFiles)),
	}
}

// Rows returns the query count.
func (m *Matrix) Rows() int { return len(m.QueryFiles) }

// Cols returns the target count.
func (m *Matrix) Cols() int { return len(m.TargetFiles) }

// At returns the score for (queryIdx, targetIdx).
func (m *Matrix) At(queryIdx, targetIdx int) float32 {
	return m.Data[queryIdx*m.Cols()+targetIdx]
}

// scoreMatrix is the shared write side of the matrix formats. It resolves
// block-relative offsets to absolute cells and tracks written cells in a
// roaring bitmap so a double write, which always means a pipeline bug,
// surfaces as an error instead of a silently clobbered score.
type scoreMatrix struct {
	mat       *Matrix
	written   *roaring.Bitmap
	blockSize int
	rowOff    int
	colOff    int
}

func newScoreMatrix(targetFiles, queryFiles template.FileList, blockSize int) *scoreMatrix {
	return &scoreMatrix{
		mat:       NewMatrix(targetFiles, queryFiles),
		written:   roaring.New(),
		blockSize: blockSize,
	}
}

func (s *scoreMatrix) SetBlock(queryBlock, targetBlock int) {
	s.rowOff = queryBlock * s.blockSize
	s.colOff = targetBlock * s.blockSize
}

func (s *scoreMatrix) Set(score float32, queryIdx, targetIdx int) error {
	row := s.rowOff + queryIdx
	col := s.colOff + targetIdx
	if row < 0 || row >= s.mat.Rows() || col < 0 || col >= s.mat.Cols() {
		return fmt.Errorf("output: cell (%d,%d) outside %dx%d matrix", row, col, s.mat.Rows(), s.mat.Cols())
	}

	cell := uint32(row*s.mat.Cols() + col) //nolint:gosec
	if s.written.Contains(cell) {
		return fmt.Errorf("output: cell (%d,%d) written twice", row, col)
	}
	s.written.Add(cell)

	s.mat.Data[row*s.mat.Cols()+col] = score
	return nil
}

// coverage returns the written-cell fraction, 1.0 for a fully scored matrix.
func (s *scoreMatrix) coverage() float64 {
	cells := len(s.mat.Data)
	if cells == 0 {
		return 1
	}
	return float64(s.written.GetCardinality()) / float64(cells)
}
