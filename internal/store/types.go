// Package store provides the immutable lexical (BM25) and dense vector
// indices the fusion engine scores against, and their on-disk blobs.
package store

import "fmt"

// Document is the unit both indices are built from.
type Document struct {
	ID      string
	Content string
}

// BM25Config configures BM25 scoring.
type BM25Config struct {
	// K1 controls term frequency saturation.
	K1 float64
	// B controls document length normalization (0 = none, 1 = full).
	B float64
}

// DefaultBM25Config returns the standard Okapi constants.
func DefaultBM25Config() BM25Config {
	return BM25Config{
		K1: 1.5,
		B:  0.75,
	}
}

// VectorResult is one vector search hit.
type VectorResult struct {
	ID string
	// Similarity is the inner product of unit vectors, in [-1, 1].
	Similarity float32
}

// ErrDimensionMismatch is returned when a vector does not match the index dimension.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Got)
}
