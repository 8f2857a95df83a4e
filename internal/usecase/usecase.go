package usecase

import (
	"context"

	"github.com/materia-tech/vector-backend/internal/domain"
)

// GenerationUC — граница подсистемы генерации embedding-векторов.
type GenerationUC interface {
	Generate(ctx context.Context, req *GenerationRequest) (*GenerationOutcome, error)
	BatchGenerate(ctx context.Context, req *BatchGenerationRequest) (*BatchOutcome, error)
	Coverage(ctx context.Context, kind string) (*CoverageReport, error)
	// Records возвращает метаданные существующих записей сущности по типам.
	Records(ctx context.Context, ref domain.EntityRef) (map[domain.EmbeddingType]domain.RecordMeta, error)
}

// SearchUC — граница подсистемы взвешенного мультимодального поиска.
type SearchUC interface {
	Search(ctx context.Context, query *SearchQuery) ([]SearchResult, error)
}
