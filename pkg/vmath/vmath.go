// Package vmath содержит примитивы сравнения embedding-векторов.
package vmath

import (
	"fmt"
	"math"

	"github.com/materia-tech/vector-backend/pkg/e"
)

// CosineSimilarity вычисляет косинусное сходство двух векторов: dot(a,b) / (||a|| * ||b||).
// Векторы разной длины отклоняются с ошибкой e.ErrDimensionMismatch.
// Вектор нулевой длины (magnitude) даёт сходство 0, а не ошибку деления.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", e.ErrDimensionMismatch, len(a), len(b))
	}

	if len(a) == 0 {
		return 0, e.ErrEmptyVector
	}

	var dot, normA, normB float64
	for i := range a {
		av, bv := float64(a[i]), float64(b[i])
		dot += av * bv
		normA += av * av
		normB += bv * bv
	}

	if normA == 0 || normB == 0 {
		return 0, nil
	}

	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))

	// Защита от накопленной погрешности float64
	if sim > 1 {
		sim = 1
	} else if sim < -1 {
		sim = -1
	}

	return sim, nil
}

// Magnitude возвращает евклидову норму вектора.
func Magnitude(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}

	return math.Sqrt(sum)
}

// Concat склеивает векторы в один, сохраняя порядок аргументов.
// Используется для составного multimodal-вектора (text + visual).
func Concat(vectors ...[]float32) []float32 {
	total := 0
	for _, v := range vectors {
		total += len(v)
	}

	out := make([]float32, 0, total)
	for _, v := range vectors {
		out = append(out, v...)
	}

	return out
}
