package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFlatIndexRejectsMixedDimensions(t *testing.T) {
	_, err := NewFlatIndex(3, [][]float32{{1, 0, 0}, {1, 0}})
	assert.ErrorContains(t, err, "dimension")
}

func TestSearchOrdersByScore(t *testing.T) {
	index, err := NewFlatIndex(2, [][]float32{
		{0, 1},
		{1, 0},
		{0.6, 0.8},
	})
	require.NoError(t, err)

	hits, err := index.Search([]float32{1, 0}, 3)
	require.NoError(t, err)
	require.Len(t, hits, 3)

	assert.Equal(t, 1, hits[0].Ref)
	assert.Equal(t, 2, hits[1].Ref)
	assert.Equal(t, 0, hits[2].Ref)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-6)
	assert.InDelta(t, 0.6, hits[1].Score, 1e-6)
}

func TestSearchTruncatesToTopN(t *testing.T) {
	index, err := NewFlatIndex(2, [][]float32{{1, 0}, {0, 1}, {0.6, 0.8}})
	require.NoError(t, err)

	hits, err := index.Search([]float32{1, 0}, 2)
	require.NoError(t, err)
	assert.Len(t, hits, 2)
}

func TestSearchRejectsWrongDimension(t *testing.T) {
	index, err := NewFlatIndex(2, [][]float32{{1, 0}})
	require.NoError(t, err)

	_, err = index.Search([]float32{1, 0, 0}, 1)
	assert.Error(t, err)
}

func TestSearchEmptyIndex(t *testing.T) {
	index, err := NewFlatIndex(2, nil)
	require.NoError(t, err)

	hits, err := index.Search([]float32{1, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestNormalizeL2(t *testing.T) {
	v := []float32{3, 4}
	NormalizeL2(v)
	assert.InDelta(t, 0.6, float64(v[0]), 1e-6)
	assert.InDelta(t, 0.8, float64(v[1]), 1e-6)

	zero := []float32{0, 0}
	NormalizeL2(zero)
	assert.Equal(t, []float32{0, 0}, zero)
}
