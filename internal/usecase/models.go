package usecase

import (
	"time"

	"github.com/materia-tech/vector-backend/internal/domain"
)

// GENERATION

// GenerationRequest — запрос на (пере)генерацию подмножества типов векторов одной сущности.
type GenerationRequest struct {
	Entity          domain.EntityRef
	Types           []domain.EmbeddingType
	ForceRegenerate bool // если false, типы с существующей записью пропускаются
}

// BatchGenerationRequest — шаблон генерации, применяемый к списку сущностей.
// Сущности разбиваются на батчи по BatchSize с паузой между батчами.
type BatchGenerationRequest struct {
	Entities        []domain.EntityRef
	Types           []domain.EmbeddingType
	ForceRegenerate bool
	BatchSize       int // 0 — использовать значение из политики генерации
}

// OutcomeStatus — статус генерации одного типа вектора.
type OutcomeStatus string

const (
	StatusGenerated OutcomeStatus = "generated"
	StatusSkipped   OutcomeStatus = "skipped" // запись уже существует, force не задан
	StatusFailed    OutcomeStatus = "failed"
)

// TypeOutcome — результат генерации одного типа: запись либо причина отказа.
type TypeOutcome struct {
	Status    OutcomeStatus
	Record    *domain.EmbeddingRecord // заполнен при StatusGenerated
	Reason    string                  // заполнен при StatusFailed
	Transient bool                    // отказ был временным (таймаут, 5xx, rate limit)
}

// GenerationOutcome — гетерогенная карта результатов по всем запрошенным типам.
// Частичный успех — ожидаемое состояние, успешные типы не отбрасываются.
type GenerationOutcome struct {
	Entity  domain.EntityRef
	Results map[domain.EmbeddingType]TypeOutcome
}

// GeneratedCount возвращает число успешно сгенерированных типов.
func (o *GenerationOutcome) GeneratedCount() int {
	return o.countByStatus(StatusGenerated)
}

// FailedCount возвращает число типов, завершившихся отказом.
func (o *GenerationOutcome) FailedCount() int {
	return o.countByStatus(StatusFailed)
}

func (o *GenerationOutcome) countByStatus(status OutcomeStatus) int {
	n := 0
	for _, res := range o.Results {
		if res.Status == status {
			n++
		}
	}

	return n
}

// BatchOutcome — агрегат по batchGenerate: счётчики и карта результатов по сущностям.
type BatchOutcome struct {
	Attempted          int
	FullySucceeded     int
	PartiallySucceeded int
	FullyFailed        int
	Outcomes           map[string]*GenerationOutcome // ключ — EntityRef.Key()
}

// CoverageStat — покрытие одного типа вектора.
type CoverageStat struct {
	WithRecord int64
	Fraction   float64 // доля сущностей с актуальной записью, [0,1]
}

// CoverageReport — отчёт покрытия по всем типам для области entity kind.
type CoverageReport struct {
	Kind          string
	TotalEntities int64
	ByType        map[domain.EmbeddingType]CoverageStat
	GeneratedAt   time.Time
}

// SEARCH

// SortMode — режим сортировки результатов поиска.
type SortMode string

const (
	SortBySimilarity SortMode = "similarity"
	SortByNewest     SortMode = "newest"
	SortByPrice      SortMode = "price"
)

// QueryInput — сырой вход одного типа в поисковом запросе либо готовый вектор.
type QueryInput struct {
	Text      string
	ImageData []byte
	ImageKey  string // альтернатива ImageData: ключ объекта в MinIO
	Colors    []string
	Label     string
	Vector    []float32 // предвычисленный вектор, валидируется по размерности
}

// HasRawInput сообщает, содержит ли вход сырые данные для ad-hoc эмбеддинга.
func (q QueryInput) HasRawInput() bool {
	return q.Text != "" || len(q.ImageData) > 0 || q.ImageKey != "" || len(q.Colors) > 0 || q.Label != ""
}

// CandidateFilters — несемантические фильтры, применяемые до скоринга.
type CandidateFilters struct {
	Categories    []string
	PriceMinCents *int64
	PriceMaxCents *int64
	DateFrom      *time.Time
	DateTo        *time.Time
	MinConfidence *float64 // минимальная сохранённая confidence записи
}

// SearchQuery — разреженный мультимодальный запрос: любое подмножество типов,
// веса, фильтры и параметры выдачи.
type SearchQuery struct {
	Kind    string // область поиска по виду сущности
	Inputs  map[domain.EmbeddingType]QueryInput
	Weights map[domain.EmbeddingType]float64 // неотрицательные, нормируются по вкладу
	Filters CandidateFilters
	Limit   int
	Sort    SortMode
}

// SearchResult — один кандидат выдачи: разбивка сходства по типам и fused-оценка.
type SearchResult struct {
	Entity     domain.EntityRef
	Scores     map[domain.EmbeddingType]float64 // только типы, внёсшие вклад
	FusedScore float64
}

// INFRASTRUCTURE

// EmbedInput — типизированный вход провайдера; заполненные поля зависят от типа вектора.
type EmbedInput struct {
	Text      string
	ImageData []byte
	Colors    []string
	Label     string
}

// EmbedResult — вектор, полученный от провайдера, с метаданными модели.
type EmbedResult struct {
	Vector       []float32
	ModelVersion string
	Confidence   *float64
}

// GenerationEvent — событие в Kafka о завершённой генерации векторов сущности.
type GenerationEvent struct {
	EventID     string                 `json:"event_id"`
	EntityKind  string                 `json:"entity_kind"`
	EntityID    string                 `json:"entity_id"`
	Types       []domain.EmbeddingType `json:"types"`
	OccurredAt  int64                  `json:"occurred_at"`
	ModelsByKey map[string]string      `json:"models_by_key"`
}

// MAPPERS

func NewGenerationRequest(entity domain.EntityRef, types []domain.EmbeddingType, force bool) *GenerationRequest {
	return &GenerationRequest{
		Entity:          entity,
		Types:           types,
		ForceRegenerate: force,
	}
}

func NewGenerationOutcome(entity domain.EntityRef) *GenerationOutcome {
	return &GenerationOutcome{
		Entity:  entity,
		Results: make(map[domain.EmbeddingType]TypeOutcome),
	}
}

func NewGeneratedOutcome(record *domain.EmbeddingRecord) TypeOutcome {
	return TypeOutcome{Status: StatusGenerated, Record: record}
}

func NewSkippedOutcome() TypeOutcome {
	return TypeOutcome{Status: StatusSkipped}
}

func NewFailedOutcome(reason string, transient bool) TypeOutcome {
	return TypeOutcome{Status: StatusFailed, Reason: reason, Transient: transient}
}

func NewEmbedResult(vector []float32, modelVersion string, confidence *float64) *EmbedResult {
	return &EmbedResult{
		Vector:       vector,
		ModelVersion: modelVersion,
		Confidence:   confidence,
	}
}

func NewSearchResult(entity domain.EntityRef, scores map[domain.EmbeddingType]float64, fused float64) SearchResult {
	return SearchResult{
		Entity:     entity,
		Scores:     scores,
		FusedScore: fused,
	}
}
