package store

import (
	"fmt"
	"math"
	"sort"

	"github.com/viterin/vek/vek32"

	smerrors "github.com/Aman-CERP/smre/internal/errors"
)

const vectorBlobVersion = 1

// VectorIndex holds one unit-normalized embedding per document and answers
// exact inner-product queries by exhaustive scan.
type VectorIndex struct {
	dim  int
	ids  []string
	pos  map[string]int
	data []float32 // row-major, len(ids) * dim
	gen  string
}

type vectorBlob struct {
	Version    int
	Generation string
	Dim        int
	Count      int
	Data       []float32
}

// NewVectorIndex creates an empty index for vectors of the given dimension.
func NewVectorIndex(dim int) *VectorIndex {
	return &VectorIndex{
		dim: dim,
		pos: make(map[string]int),
	}
}

// Add L2-normalizes vec and appends it under id.
func (v *VectorIndex) Add(id string, vec []float32) error {
	if len(vec) != v.dim {
		return ErrDimensionMismatch{Expected: v.dim, Got: len(vec)}
	}
	if first, dup := v.pos[id]; dup {
		return smerrors.DuplicateIDError(id, first+1, len(v.ids)+1)
	}

	row := make([]float32, v.dim)
	copy(row, vec)
	normalizeVectorInPlace(row)

	v.pos[id] = len(v.ids)
	v.ids = append(v.ids, id)
	v.data = append(v.data, row...)
	return nil
}

// Search returns up to topN entries by descending similarity. topN <= 0 or
// larger than the index returns every document. Ties keep insertion order.
func (v *VectorIndex) Search(query []float32, topN int) ([]VectorResult, error) {
	if len(query) != v.dim {
		return nil, ErrDimensionMismatch{Expected: v.dim, Got: len(query)}
	}

	q := make([]float32, v.dim)
	copy(q, query)
	normalizeVectorInPlace(q)

	n := len(v.ids)
	results := make([]VectorResult, n)
	for i := 0; i < n; i++ {
		row := v.data[i*v.dim : (i+1)*v.dim]
		results[i] = VectorResult{ID: v.ids[i], Similarity: vek32.Dot(q, row)}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})

	if topN > 0 && topN < n {
		results = results[:topN]
	}
	return results, nil
}

// Vector returns a copy of the stored vector for id.
func (v *VectorIndex) Vector(id string) ([]float32, bool) {
	i, ok := v.pos[id]
	if !ok {
		return nil, false
	}
	out := make([]float32, v.dim)
	copy(out, v.data[i*v.dim:(i+1)*v.dim])
	return out, true
}

// Len returns the number of stored vectors.
func (v *VectorIndex) Len() int {
	return len(v.ids)
}

// Dimensions returns the vector dimension.
func (v *VectorIndex) Dimensions() int {
	return v.dim
}

// IDs returns the identifiers in insertion order.
func (v *VectorIndex) IDs() []string {
	out := make([]string, len(v.ids))
	copy(out, v.ids)
	return out
}

// SetGeneration tags the index with the build it belongs to.
func (v *VectorIndex) SetGeneration(gen string) { v.gen = gen }

// Generation returns the build tag.
func (v *VectorIndex) Generation() string { return v.gen }

// Save writes the raw vectors. Identifiers are stored by the caller.
func (v *VectorIndex) Save(path string) error {
	blob := vectorBlob{
		Version:    vectorBlobVersion,
		Generation: v.gen,
		Dim:        v.dim,
		Count:      len(v.ids),
		Data:       v.data,
	}
	if err := saveGob(path, &blob); err != nil {
		return fmt.Errorf("failed to save vector index: %w", err)
	}
	return nil
}

// LoadVector reads a blob written by Save and binds it to ids. A count
// mismatch is fatal, never truncated or padded.
func LoadVector(path string, ids []string) (*VectorIndex, error) {
	var blob vectorBlob
	if err := loadGob(path, &blob); err != nil {
		return nil, smerrors.IndexCorruptError("failed to read vector index", err).WithDetail("path", path)
	}

	if blob.Version != vectorBlobVersion {
		return nil, smerrors.IndexCorruptError(
			fmt.Sprintf("vector index version %d, expected %d", blob.Version, vectorBlobVersion), nil)
	}
	if blob.Count != len(ids) {
		return nil, smerrors.IndexCorruptError(
			fmt.Sprintf("vector index holds %d vectors but %d identifiers were stored", blob.Count, len(ids)), nil).
			WithDetail("path", path)
	}
	if blob.Dim <= 0 && blob.Count > 0 || len(blob.Data) != blob.Dim*blob.Count {
		return nil, smerrors.IndexCorruptError(
			fmt.Sprintf("vector data has %d values, expected %d x %d", len(blob.Data), blob.Count, blob.Dim), nil).
			WithDetail("path", path)
	}

	v := &VectorIndex{
		dim:  blob.Dim,
		ids:  make([]string, len(ids)),
		pos:  make(map[string]int, len(ids)),
		data: blob.Data,
		gen:  blob.Generation,
	}
	for i, id := range ids {
		if _, dup := v.pos[id]; dup {
			return nil, smerrors.IndexCorruptError(fmt.Sprintf("identifier %q stored twice", id), nil)
		}
		v.ids[i] = id
		v.pos[id] = i
	}
	return v, nil
}

// normalizeVectorInPlace scales v to unit length. Zero vectors are left as-is.
func normalizeVectorInPlace(v []float32) {
	var sumSquares float64
	for _, x := range v {
		sumSquares += float64(x) * float64(x)
	}
	if sumSquares == 0 || math.IsNaN(sumSquares) || math.IsInf(sumSquares, 0) {
		return
	}
	inv := 1 / math.Sqrt(sumSquares)
	for i, x := range v {
		v[i] = float32(float64(x) * inv)
	}
}
