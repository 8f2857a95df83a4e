package http

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"time"

	"github.com/materia-tech/vector-backend/internal/domain"
	"github.com/materia-tech/vector-backend/internal/usecase"
	"github.com/materia-tech/vector-backend/pkg/e"
	"github.com/materia-tech/vector-backend/pkg/logger"
)

type SearchHandler struct {
	searchUsecase usecase.SearchUC
	logger        logger.Logger
}

func NewSearchHandler(searchUsecase usecase.SearchUC, logger logger.Logger) *SearchHandler {
	return &SearchHandler{searchUsecase: searchUsecase, logger: logger}
}

type queryInputDTO struct {
	Text     string    `json:"text,omitempty"`
	ImageB64 string    `json:"image_b64,omitempty"`
	ImageKey string    `json:"image_key,omitempty"`
	Colors   []string  `json:"colors,omitempty"`
	Label    string    `json:"label,omitempty"`
	Vector   []float32 `json:"vector,omitempty"`
}

type filtersDTO struct {
	Categories    []string `json:"categories,omitempty"`
	PriceMin      string   `json:"price_min,omitempty"`
	PriceMax      string   `json:"price_max,omitempty"`
	DateFrom      string   `json:"date_from,omitempty"` // RFC3339
	DateTo        string   `json:"date_to,omitempty"`   // RFC3339
	MinConfidence *float64 `json:"min_confidence,omitempty"`
}

type searchRequest struct {
	Kind    string                   `json:"kind"`
	Inputs  map[string]queryInputDTO `json:"inputs"`
	Weights map[string]float64       `json:"weights,omitempty"`
	Filters filtersDTO               `json:"filters"`
	Limit   int                      `json:"limit,omitempty"`
	Sort    string                   `json:"sort,omitempty"`
}

type searchResultDTO struct {
	EntityKind string             `json:"entity_kind"`
	EntityID   string             `json:"entity_id"`
	Scores     map[string]float64 `json:"scores"`
	FusedScore float64            `json:"fused_score"`
}

// search
//
//	@Summary		Взвешенный мультимодальный поиск
//	@Description	Поиск по любому подмножеству типов векторов с весами и фильтрами
//	@Tags			search
//	@Accept			json
//	@Produce		json
//	@Param			request	body		searchRequest	true	"Запрос: входы по типам, веса, фильтры"
//	@Success		200		{array}		searchResultDTO	"Отранжированные кандидаты"
//	@Failure		400		{object}	ErrorResponse	"Ошибка валидации"
//	@Failure		503		{object}	ErrorResponse	"Хранилище недоступно"
//	@Router			/search [post]
func (h *SearchHandler) search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warnf("%d %s: %s", http.StatusBadRequest, e.ErrStatusBadRequest.Error(), err.Error())
		WriteError(w, e.ErrStatusBadRequest)
		return
	}

	query, err := toSearchQuery(&req)
	if err != nil {
		h.logger.Warnf("%d %s: %s", http.StatusBadRequest, e.ErrStatusBadRequest.Error(), err.Error())
		WriteError(w, err)
		return
	}

	results, err := h.searchUsecase.Search(r.Context(), query)
	if err != nil {
		h.logger.Warnf("%s", err.Error())
		WriteError(w, err)
		return
	}

	dto := make([]searchResultDTO, 0, len(results))
	for _, res := range results {
		scores := make(map[string]float64, len(res.Scores))
		for t, s := range res.Scores {
			scores[string(t)] = s
		}
		dto = append(dto, searchResultDTO{
			EntityKind: res.Entity.Kind,
			EntityID:   res.Entity.ID,
			Scores:     scores,
			FusedScore: res.FusedScore,
		})
	}

	WriteSuccess(w, http.StatusOK, dto)
}

// toSearchQuery валидирует и конвертирует транспортный запрос в модель use case.
func toSearchQuery(req *searchRequest) (*usecase.SearchQuery, error) {
	inputs := make(map[domain.EmbeddingType]usecase.QueryInput, len(req.Inputs))
	for key, dto := range req.Inputs {
		t, err := domain.ParseEmbeddingType(key)
		if err != nil {
			return nil, err
		}

		input := usecase.QueryInput{
			Text:     dto.Text,
			ImageKey: dto.ImageKey,
			Colors:   dto.Colors,
			Label:    dto.Label,
			Vector:   dto.Vector,
		}
		if dto.ImageB64 != "" {
			data, err := base64.StdEncoding.DecodeString(dto.ImageB64)
			if err != nil {
				return nil, e.Wrap("image_b64", e.ErrStatusBadRequest)
			}
			input.ImageData = data
		}
		inputs[t] = input
	}

	weights := make(map[domain.EmbeddingType]float64, len(req.Weights))
	for key, w := range req.Weights {
		t, err := domain.ParseEmbeddingType(key)
		if err != nil {
			return nil, err
		}
		weights[t] = w
	}

	filters, err := toCandidateFilters(&req.Filters)
	if err != nil {
		return nil, err
	}

	sort := usecase.SortMode(req.Sort)
	if req.Sort == "" {
		sort = usecase.SortBySimilarity
	}

	return &usecase.SearchQuery{
		Kind:    req.Kind,
		Inputs:  inputs,
		Weights: weights,
		Filters: *filters,
		Limit:   req.Limit,
		Sort:    sort,
	}, nil
}

func toCandidateFilters(dto *filtersDTO) (*usecase.CandidateFilters, error) {
	filters := &usecase.CandidateFilters{
		Categories:    dto.Categories,
		MinConfidence: dto.MinConfidence,
	}

	if dto.PriceMin != "" {
		cents, err := parsePriceToCents(dto.PriceMin)
		if err != nil {
			return nil, err
		}
		filters.PriceMinCents = &cents
	}
	if dto.PriceMax != "" {
		cents, err := parsePriceToCents(dto.PriceMax)
		if err != nil {
			return nil, err
		}
		filters.PriceMaxCents = &cents
	}

	if dto.DateFrom != "" {
		from, err := time.Parse(time.RFC3339, dto.DateFrom)
		if err != nil {
			return nil, e.Wrap("date_from", e.ErrStatusBadRequest)
		}
		filters.DateFrom = &from
	}
	if dto.DateTo != "" {
		to, err := time.Parse(time.RFC3339, dto.DateTo)
		if err != nil {
			return nil, e.Wrap("date_to", e.ErrStatusBadRequest)
		}
		filters.DateTo = &to
	}

	return filters, nil
}
