package domain

import "time"

// EmbeddingRecord представляет одну пару (сущность, тип вектора) в хранилище.
// Отсутствие записи — полноценное состояние: вектор ещё не сгенерирован.
type EmbeddingRecord struct {
	Entity       EntityRef
	Type         EmbeddingType
	Vector       []float32
	ModelVersion string
	GeneratedAt  time.Time
	Confidence   *float64 // опциональная оценка качества в [0,1]
}

func NewEmbeddingRecord(entity EntityRef, t EmbeddingType, vector []float32, modelVersion string, confidence *float64) *EmbeddingRecord {
	return &EmbeddingRecord{
		Entity:       entity,
		Type:         t,
		Vector:       vector,
		ModelVersion: modelVersion,
		GeneratedAt:  time.Now().UTC(),
		Confidence:   confidence,
	}
}

// Validate проверяет инвариант размерности перед записью в хранилище.
func (r *EmbeddingRecord) Validate() error {
	return ValidateVector(r.Type, r.Vector)
}

// RecordMeta — метаданные записи без самого вектора (PostgreSQL-часть хранилища).
type RecordMeta struct {
	Entity       EntityRef
	Type         EmbeddingType
	PointID      string // ID точки в Qdrant
	ModelVersion string
	GeneratedAt  time.Time
	Confidence   *float64
}
