package usecase

import (
	"context"

	"github.com/materia-tech/vector-backend/internal/domain"
)

// EntityRepository — доступ к каноническим полям сущностей каталога и фильтрации кандидатов.
type EntityRepository interface {
	GetFields(ctx context.Context, ref domain.EntityRef) (*domain.EntityFields, error)
	// QueryCandidates применяет область kind и несемантические фильтры ДО скоринга.
	QueryCandidates(ctx context.Context, kind string, filters *CandidateFilters) ([]domain.Candidate, error)
}

// RecordRepository — метаданные embedding-записей (PostgreSQL-часть хранилища).
type RecordRepository interface {
	UpsertMeta(ctx context.Context, meta *domain.RecordMeta) error
	GetMeta(ctx context.Context, ref domain.EntityRef) (map[domain.EmbeddingType]domain.RecordMeta, error)
	// ExistingTypes возвращает подмножество types, для которых запись уже есть.
	ExistingTypes(ctx context.Context, ref domain.EntityRef, types []domain.EmbeddingType) (map[domain.EmbeddingType]bool, error)
	// GetMetaForCandidates возвращает разреженную карту метаданных: ключ — EntityRef.Key().
	GetMetaForCandidates(ctx context.Context, refs []domain.EntityRef, types []domain.EmbeddingType) (map[string]map[domain.EmbeddingType]domain.RecordMeta, error)
	Coverage(ctx context.Context, kind string) (*CoverageReport, error)
}

// ScoredRef — результат нативного векторного поиска хранилища.
type ScoredRef struct {
	Ref   domain.EntityRef
	Score float64
}

// VectorRepository — хранение и выборка самих векторов (Qdrant).
type VectorRepository interface {
	// Upsert сохраняет вектор записи и возвращает ID точки в коллекции типа.
	Upsert(ctx context.Context, record *domain.EmbeddingRecord) (string, error)
	// GetVectors возвращает разреженную карту векторов: ключ — EntityRef.Key().
	// Отсутствующие пары (сущность, тип) просто не попадают в результат.
	GetVectors(ctx context.Context, refs []domain.EntityRef, types []domain.EmbeddingType) (map[string]map[domain.EmbeddingType][]float32, error)
	// QueryNearest — опциональный pushdown косинусного поиска в Qdrant,
	// ограниченный заданным набором кандидатов.
	QueryNearest(ctx context.Context, t domain.EmbeddingType, vector []float32, allowed []domain.EntityRef, limit int) ([]ScoredRef, error)
}

// CacheRepository — кэш векторов ad-hoc запросов и отчётов покрытия (Redis).
type CacheRepository interface {
	GetQueryVector(ctx context.Context, key string) ([]float32, error)
	SetQueryVector(ctx context.Context, key string, vector []float32) error
	GetCoverage(ctx context.Context, kind string) (*CoverageReport, error)
	SetCoverage(ctx context.Context, report *CoverageReport) error
	InvalidateCoverage(ctx context.Context, kind string) error
}

// ImageRepository — выборка канонических изображений сущностей из MinIO.
type ImageRepository interface {
	Fetch(ctx context.Context, key string) ([]byte, error)
}
