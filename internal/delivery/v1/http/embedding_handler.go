package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/materia-tech/vector-backend/internal/domain"
	"github.com/materia-tech/vector-backend/internal/usecase"
	"github.com/materia-tech/vector-backend/pkg/e"
	"github.com/materia-tech/vector-backend/pkg/logger"
	"github.com/go-chi/chi/v5"
)

type EmbeddingHandler struct {
	generationUsecase usecase.GenerationUC
	logger            logger.Logger
}

func NewEmbeddingHandler(generationUsecase usecase.GenerationUC, logger logger.Logger) *EmbeddingHandler {
	return &EmbeddingHandler{generationUsecase: generationUsecase, logger: logger}
}

type generateRequest struct {
	EntityKind string   `json:"entity_kind"`
	EntityID   string   `json:"entity_id"`
	Types      []string `json:"types"`
	Force      bool     `json:"force"`
}

type entityRefDTO struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
}

type batchGenerateRequest struct {
	Entities  []entityRefDTO `json:"entities"`
	Types     []string       `json:"types"`
	Force     bool           `json:"force"`
	BatchSize int            `json:"batch_size"`
}

type batchOutcomeDTO struct {
	Attempted          int                             `json:"attempted"`
	FullySucceeded     int                             `json:"fully_succeeded"`
	PartiallySucceeded int                             `json:"partially_succeeded"`
	FullyFailed        int                             `json:"fully_failed"`
	Outcomes           map[string]generationOutcomeDTO `json:"outcomes"`
}

type recordMetaDTO struct {
	PointID      string   `json:"point_id"`
	ModelVersion string   `json:"model_version"`
	GeneratedAt  string   `json:"generated_at"`
	Confidence   *float64 `json:"confidence,omitempty"`
}

type coverageStatDTO struct {
	WithRecord int64   `json:"with_record"`
	Fraction   float64 `json:"fraction"`
}

type coverageReportDTO struct {
	Kind          string                     `json:"kind"`
	TotalEntities int64                      `json:"total_entities"`
	ByType        map[string]coverageStatDTO `json:"by_type"`
	GeneratedAt   string                     `json:"generated_at"`
}

// generate
//
//	@Summary		Генерация embedding-векторов сущности
//	@Description	Запускает генерацию запрошенных типов векторов; частичный успех — штатный исход
//	@Tags			embeddings
//	@Accept			json
//	@Produce		json
//	@Param			request	body		generateRequest	true	"Сущность, типы и флаг force"
//	@Success		200		{object}	generationOutcomeDTO	"Карта результатов по типам"
//	@Failure		400		{object}	ErrorResponse	"Ошибка валидации"
//	@Failure		404		{object}	ErrorResponse	"Сущность не найдена"
//	@Failure		503		{object}	ErrorResponse	"Хранилище недоступно"
//	@Router			/embeddings/generate [post]
func (h *EmbeddingHandler) generate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warnf("%d %s: %s", http.StatusBadRequest, e.ErrStatusBadRequest.Error(), err.Error())
		WriteError(w, e.ErrStatusBadRequest)
		return
	}

	types, err := parseTypes(req.Types)
	if err != nil {
		h.logger.Warnf("%d %s: %s", http.StatusBadRequest, e.ErrStatusBadRequest.Error(), err.Error())
		WriteError(w, err)
		return
	}

	ref := domain.EntityRef{Kind: req.EntityKind, ID: req.EntityID}
	outcome, err := h.generationUsecase.Generate(r.Context(), usecase.NewGenerationRequest(ref, types, req.Force))
	if err != nil {
		h.logger.Warnf("%s", err.Error())
		WriteError(w, err)
		return
	}

	WriteSuccess(w, http.StatusOK, toGenerationOutcomeDTO(outcome))
}

// batchGenerate
//
//	@Summary		Батчевая генерация embedding-векторов
//	@Description	Применяет один шаблон генерации к списку сущностей с паузами между батчами
//	@Tags			embeddings
//	@Accept			json
//	@Produce		json
//	@Param			request	body		batchGenerateRequest	true	"Сущности, типы, размер батча"
//	@Success		200		{object}	batchOutcomeDTO	"Агрегат по батчу"
//	@Failure		400		{object}	ErrorResponse	"Ошибка валидации"
//	@Router			/embeddings/batch [post]
func (h *EmbeddingHandler) batchGenerate(w http.ResponseWriter, r *http.Request) {
	var req batchGenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warnf("%d %s: %s", http.StatusBadRequest, e.ErrStatusBadRequest.Error(), err.Error())
		WriteError(w, e.ErrStatusBadRequest)
		return
	}

	types, err := parseTypes(req.Types)
	if err != nil {
		h.logger.Warnf("%d %s: %s", http.StatusBadRequest, e.ErrStatusBadRequest.Error(), err.Error())
		WriteError(w, err)
		return
	}

	entities := make([]domain.EntityRef, 0, len(req.Entities))
	for _, dto := range req.Entities {
		entities = append(entities, domain.EntityRef{Kind: dto.Kind, ID: dto.ID})
	}

	batch, err := h.generationUsecase.BatchGenerate(r.Context(), &usecase.BatchGenerationRequest{
		Entities:        entities,
		Types:           types,
		ForceRegenerate: req.Force,
		BatchSize:       req.BatchSize,
	})
	if err != nil {
		h.logger.Warnf("%s", err.Error())
		WriteError(w, err)
		return
	}

	dto := batchOutcomeDTO{
		Attempted:          batch.Attempted,
		FullySucceeded:     batch.FullySucceeded,
		PartiallySucceeded: batch.PartiallySucceeded,
		FullyFailed:        batch.FullyFailed,
		Outcomes:           make(map[string]generationOutcomeDTO, len(batch.Outcomes)),
	}
	for key, outcome := range batch.Outcomes {
		dto.Outcomes[key] = toGenerationOutcomeDTO(outcome)
	}

	WriteSuccess(w, http.StatusOK, dto)
}

// records
//
//	@Summary		Embedding-записи сущности
//	@Description	Метаданные существующих записей по типам; пустая карта означает, что векторы ещё не сгенерированы
//	@Tags			embeddings
//	@Produce		json
//	@Param			kind	path		string	true	"Вид сущности"
//	@Param			id		path		string	true	"ID сущности"
//	@Success		200		{object}	map[string]recordMetaDTO	"Метаданные по типам"
//	@Failure		404		{object}	ErrorResponse	"Сущность не найдена"
//	@Failure		503		{object}	ErrorResponse	"Хранилище недоступно"
//	@Router			/embeddings/{kind}/{id} [get]
func (h *EmbeddingHandler) records(w http.ResponseWriter, r *http.Request) {
	ref := domain.EntityRef{Kind: chi.URLParam(r, "kind"), ID: chi.URLParam(r, "id")}

	metas, err := h.generationUsecase.Records(r.Context(), ref)
	if err != nil {
		h.logger.Warnf("%s", err.Error())
		WriteError(w, err)
		return
	}

	dto := make(map[string]recordMetaDTO, len(metas))
	for t, meta := range metas {
		dto[string(t)] = recordMetaDTO{
			PointID:      meta.PointID,
			ModelVersion: meta.ModelVersion,
			GeneratedAt:  meta.GeneratedAt.Format(time.RFC3339Nano),
			Confidence:   meta.Confidence,
		}
	}

	WriteSuccess(w, http.StatusOK, dto)
}

// statistics
//
//	@Summary		Статистика покрытия embedding-векторами
//	@Description	Доля сущностей с актуальной записью по каждому типу вектора
//	@Tags			embeddings
//	@Produce		json
//	@Param			kind	query		string	false	"Вид сущности; пусто — по всем"
//	@Success		200		{object}	coverageReportDTO	"Отчёт покрытия"
//	@Failure		503		{object}	ErrorResponse	"Хранилище недоступно"
//	@Router			/embeddings/statistics [get]
func (h *EmbeddingHandler) statistics(w http.ResponseWriter, r *http.Request) {
	kind := r.URL.Query().Get("kind")

	report, err := h.generationUsecase.Coverage(r.Context(), kind)
	if err != nil {
		h.logger.Warnf("%s", err.Error())
		WriteError(w, err)
		return
	}

	dto := coverageReportDTO{
		Kind:          report.Kind,
		TotalEntities: report.TotalEntities,
		ByType:        make(map[string]coverageStatDTO, len(report.ByType)),
		GeneratedAt:   report.GeneratedAt.Format(time.RFC3339Nano),
	}
	for t, stat := range report.ByType {
		dto.ByType[string(t)] = coverageStatDTO{
			WithRecord: stat.WithRecord,
			Fraction:   stat.Fraction,
		}
	}

	WriteSuccess(w, http.StatusOK, dto)
}
