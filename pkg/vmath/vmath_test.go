package vmath

import (
	"testing"

	"github.com/materia-tech/vector-backend/pkg/e"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCosineSimilarity(t *testing.T) {
	t.Run("identical vectors give 1", func(t *testing.T) {
		sim, err := CosineSimilarity([]float32{1, 2, 3}, []float32{1, 2, 3})
		require.NoError(t, err)
		assert.InDelta(t, 1.0, sim, 1e-9)
	})

	t.Run("orthogonal vectors give 0", func(t *testing.T) {
		sim, err := CosineSimilarity([]float32{1, 0}, []float32{0, 1})
		require.NoError(t, err)
		assert.InDelta(t, 0.0, sim, 1e-9)
	})

	t.Run("opposite vectors give -1", func(t *testing.T) {
		sim, err := CosineSimilarity([]float32{1, 2}, []float32{-1, -2})
		require.NoError(t, err)
		assert.InDelta(t, -1.0, sim, 1e-9)
	})

	t.Run("scaled vectors keep similarity 1", func(t *testing.T) {
		sim, err := CosineSimilarity([]float32{1, 2, 3}, []float32{10, 20, 30})
		require.NoError(t, err)
		assert.InDelta(t, 1.0, sim, 1e-9)
	})

	t.Run("dimension mismatch is rejected", func(t *testing.T) {
		_, err := CosineSimilarity([]float32{1, 2, 3}, []float32{1, 2})
		require.ErrorIs(t, err, e.ErrDimensionMismatch)
	})

	t.Run("empty vectors are rejected", func(t *testing.T) {
		_, err := CosineSimilarity([]float32{}, []float32{})
		require.ErrorIs(t, err, e.ErrEmptyVector)
	})

	t.Run("zero magnitude gives 0 without error", func(t *testing.T) {
		sim, err := CosineSimilarity([]float32{0, 0, 0}, []float32{1, 2, 3})
		require.NoError(t, err)
		assert.Equal(t, 0.0, sim)
	})

	t.Run("result stays within [-1,1]", func(t *testing.T) {
		sim, err := CosineSimilarity(
			[]float32{0.0001, 0.0002, 0.0003},
			[]float32{0.0001, 0.0002, 0.0003},
		)
		require.NoError(t, err)
		assert.LessOrEqual(t, sim, 1.0)
		assert.GreaterOrEqual(t, sim, -1.0)
	})
}

func TestMagnitude(t *testing.T) {
	assert.InDelta(t, 5.0, Magnitude([]float32{3, 4}), 1e-9)
	assert.Equal(t, 0.0, Magnitude(nil))
}

func TestConcat(t *testing.T) {
	t.Run("preserves argument order", func(t *testing.T) {
		out := Concat([]float32{1, 2}, []float32{3}, []float32{4, 5})
		assert.Equal(t, []float32{1, 2, 3, 4, 5}, out)
	})

	t.Run("empty parts are allowed", func(t *testing.T) {
		out := Concat(nil, []float32{1}, nil)
		assert.Equal(t, []float32{1}, out)
	})
}
