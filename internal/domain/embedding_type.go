package domain

import (
	"fmt"

	"github.com/materia-tech/vector-backend/pkg/e"
)

// EmbeddingType — закрытый набор видов embedding-векторов.
type EmbeddingType string

const (
	TypeText        EmbeddingType = "text"
	TypeVisual      EmbeddingType = "visual"
	TypeMultimodal  EmbeddingType = "multimodal"
	TypeColor       EmbeddingType = "color"
	TypeTexture     EmbeddingType = "texture"
	TypeApplication EmbeddingType = "application"
)

// TypeSpec описывает фиксированные характеристики одного вида вектора.
type TypeSpec struct {
	Dim         int    // размерность вектора, инвариант хранилища
	ProviderKey string // ключ маршрутизации генерации у провайдера
	Composite   bool   // вектор собирается из других типов, а не запрашивается напрямую
}

// typeRegistry — статический каталог поддерживаемых видов векторов.
// multimodal (2048) собирается конкатенацией text (1536) и visual (512).
var typeRegistry = map[EmbeddingType]TypeSpec{
	TypeText:        {Dim: 1536, ProviderKey: "text-embedding-3-small"},
	TypeVisual:      {Dim: 512, ProviderKey: "clip-vit-b32"},
	TypeMultimodal:  {Dim: 2048, ProviderKey: "fused-text-visual", Composite: true},
	TypeColor:       {Dim: 256, ProviderKey: "color-histogram-v2"},
	TypeTexture:     {Dim: 256, ProviderKey: "texture-encoder-v1"},
	TypeApplication: {Dim: 512, ProviderKey: "application-context-v1"},
}

// allTypes — фиксированный порядок обхода типов (детерминизм отчётов и тестов).
var allTypes = []EmbeddingType{
	TypeText,
	TypeVisual,
	TypeMultimodal,
	TypeColor,
	TypeTexture,
	TypeApplication,
}

// Spec возвращает характеристики типа или ошибку для неизвестного типа.
func Spec(t EmbeddingType) (TypeSpec, error) {
	spec, ok := typeRegistry[t]
	if !ok {
		return TypeSpec{}, fmt.Errorf("%w: %q", e.ErrUnknownEmbeddingType, t)
	}

	return spec, nil
}

// AllTypes возвращает все поддерживаемые типы в стабильном порядке.
func AllTypes() []EmbeddingType {
	out := make([]EmbeddingType, len(allTypes))
	copy(out, allTypes)
	return out
}

// ParseEmbeddingType валидирует строковое представление типа.
func ParseEmbeddingType(s string) (EmbeddingType, error) {
	t := EmbeddingType(s)
	if _, ok := typeRegistry[t]; !ok {
		return "", fmt.Errorf("%w: %q", e.ErrUnknownEmbeddingType, s)
	}

	return t, nil
}

// ValidateVector проверяет соответствие длины вектора заявленной размерности типа.
// Несовпадающие векторы отклоняются, никогда не обрезаются и не дополняются.
func ValidateVector(t EmbeddingType, vector []float32) error {
	spec, err := Spec(t)
	if err != nil {
		return err
	}

	if len(vector) == 0 {
		return e.ErrEmptyVector
	}

	if len(vector) != spec.Dim {
		return fmt.Errorf("%w: type %s expects %d, got %d", e.ErrDimensionMismatch, t, spec.Dim, len(vector))
	}

	return nil
}
