package domain

import (
	"testing"

	"github.com/materia-tech/vector-backend/pkg/e"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpec(t *testing.T) {
	cases := []struct {
		t   EmbeddingType
		dim int
	}{
		{TypeText, 1536},
		{TypeVisual, 512},
		{TypeMultimodal, 2048},
		{TypeColor, 256},
		{TypeTexture, 256},
		{TypeApplication, 512},
	}

	for _, tc := range cases {
		spec, err := Spec(tc.t)
		require.NoError(t, err)
		assert.Equal(t, tc.dim, spec.Dim, "dim of %s", tc.t)
	}

	_, err := Spec(EmbeddingType("audio"))
	require.ErrorIs(t, err, e.ErrUnknownEmbeddingType)
}

func TestMultimodalIsComposite(t *testing.T) {
	spec, err := Spec(TypeMultimodal)
	require.NoError(t, err)
	assert.True(t, spec.Composite)

	// 2048 = 1536 (text) + 512 (visual)
	textSpec, _ := Spec(TypeText)
	visualSpec, _ := Spec(TypeVisual)
	assert.Equal(t, spec.Dim, textSpec.Dim+visualSpec.Dim)
}

func TestAllTypesStableOrder(t *testing.T) {
	first := AllTypes()
	second := AllTypes()
	assert.Equal(t, first, second)
	assert.Len(t, first, 6)

	// Мутация копии не затрагивает реестр.
	first[0] = EmbeddingType("mutated")
	assert.NotEqual(t, first[0], AllTypes()[0])
}

func TestParseEmbeddingType(t *testing.T) {
	parsed, err := ParseEmbeddingType("text")
	require.NoError(t, err)
	assert.Equal(t, TypeText, parsed)

	_, err = ParseEmbeddingType("TEXT")
	require.ErrorIs(t, err, e.ErrUnknownEmbeddingType)
}

func TestValidateVector(t *testing.T) {
	t.Run("exact dimension passes", func(t *testing.T) {
		require.NoError(t, ValidateVector(TypeColor, make([]float32, 256)))
	})

	t.Run("wrong dimension is rejected, never truncated", func(t *testing.T) {
		err := ValidateVector(TypeColor, make([]float32, 257))
		require.ErrorIs(t, err, e.ErrDimensionMismatch)
	})

	t.Run("empty vector is rejected", func(t *testing.T) {
		err := ValidateVector(TypeColor, nil)
		require.ErrorIs(t, err, e.ErrEmptyVector)
	})

	t.Run("unknown type is rejected", func(t *testing.T) {
		err := ValidateVector(EmbeddingType("audio"), make([]float32, 256))
		require.ErrorIs(t, err, e.ErrUnknownEmbeddingType)
	})
}

func TestEntityRefKey(t *testing.T) {
	ref := NewEntityRef("product", "42")
	assert.Equal(t, "product:42", ref.Key())
	assert.False(t, ref.IsZero())
	assert.True(t, EntityRef{Kind: "product"}.IsZero())
}

func TestEmbeddingRecordValidate(t *testing.T) {
	rec := NewEmbeddingRecord(NewEntityRef("product", "1"), TypeTexture, make([]float32, 256), "texture-encoder-v1", nil)
	require.NoError(t, rec.Validate())
	assert.False(t, rec.GeneratedAt.IsZero())

	rec.Vector = make([]float32, 10)
	require.ErrorIs(t, rec.Validate(), e.ErrDimensionMismatch)
}
