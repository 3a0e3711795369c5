// Package catalog owns the loaded vector index and product metadata pair and
// their atomic reload lifecycle.
package catalog

import (
	"fmt"
	"math"
	"sort"
)

// Hit is one nearest-neighbor result: the cosine score and the position of
// the matching record in the metadata list.
type Hit struct {
	Score float64
	Ref   int
}

// FlatIndex is an exact inner-product index over L2-normalized vectors.
// Vectors are normalized at build time, so inner product equals cosine
// similarity.
type FlatIndex struct {
	dimension int
	vectors   [][]float32
}

// NewFlatIndex builds an index from pre-computed vectors. All vectors must
// share one dimensionality.
func NewFlatIndex(dimension int, vectors [][]float32) (*FlatIndex, error) {
	for i, v := range vectors {
		if len(v) != dimension {
			return nil, fmt.Errorf("vector %d has dimension %d, want %d", i, len(v), dimension)
		}
	}
	return &FlatIndex{dimension: dimension, vectors: vectors}, nil
}

// Len returns the number of indexed vectors.
func (idx *FlatIndex) Len() int {
	return len(idx.vectors)
}

// Dimension returns the index's vector dimensionality.
func (idx *FlatIndex) Dimension() int {
	return idx.dimension
}

// Search returns the topN highest-scoring vectors for the query, best first.
func (idx *FlatIndex) Search(query []float32, topN int) ([]Hit, error) {
	if len(query) != idx.dimension {
		return nil, fmt.Errorf("query has dimension %d, want %d", len(query), idx.dimension)
	}
	if topN <= 0 || len(idx.vectors) == 0 {
		return nil, nil
	}

	hits := make([]Hit, 0, len(idx.vectors))
	for i, v := range idx.vectors {
		hits = append(hits, Hit{Score: dot(query, v), Ref: i})
	}
	sort.Slice(hits, func(a, b int) bool { return hits[a].Score > hits[b].Score })

	if topN < len(hits) {
		hits = hits[:topN]
	}
	return hits, nil
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// NormalizeL2 scales a vector to unit length in place. Zero vectors are left
// untouched.
func NormalizeL2(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	norm := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= norm
	}
}
