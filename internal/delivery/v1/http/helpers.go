package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/materia-tech/vector-backend/internal/domain"
	"github.com/materia-tech/vector-backend/internal/usecase"
	"github.com/materia-tech/vector-backend/pkg/e"
	"github.com/shopspring/decimal"
)

type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func NewErrorResponse(code int, message string) *ErrorResponse {
	return &ErrorResponse{
		Code:    code,
		Message: message,
	}
}

func ToHTTPResponse(err error) (int, string) {
	switch {
	case errors.Is(err, e.ErrStatusBadRequest),
		errors.Is(err, e.ErrEmptyQuery),
		errors.Is(err, e.ErrNegativeWeight),
		errors.Is(err, e.ErrNoTypesRequested),
		errors.Is(err, e.ErrNoEntities),
		errors.Is(err, e.ErrEntityRefRequired),
		errors.Is(err, e.ErrInvalidLimit),
		errors.Is(err, e.ErrInvalidSortMode),
		errors.Is(err, e.ErrInvalidBatchSize),
		errors.Is(err, e.ErrInvalidPrice),
		errors.Is(err, e.ErrPricePrecision),
		errors.Is(err, e.ErrInvalidConfidence),
		errors.Is(err, e.ErrMissingFields),
		errors.Is(err, e.ErrUnsupportedPayload),
		errors.Is(err, e.ErrUnknownEmbeddingType),
		errors.Is(err, e.ErrDimensionMismatch),
		errors.Is(err, e.ErrEmptyVector):
		return http.StatusBadRequest, unwrapMessage(err)
	case errors.Is(err, e.ErrEntityNotFound), errors.Is(err, e.ErrRecordNotFound):
		return http.StatusNotFound, unwrapMessage(err)
	case errors.Is(err, e.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, e.ErrStoreUnavailable.Error()
	default:
		return http.StatusInternalServerError, e.ErrInternalServerError.Error()
	}
}

// unwrapMessage возвращает текст терминальной ошибки без цепочки op-префиксов.
func unwrapMessage(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err.Error()
		}
		err = next
	}
}

func WriteError(w http.ResponseWriter, err error) {
	code, msg := ToHTTPResponse(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(NewErrorResponse(code, msg))
}

func WriteSuccess(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// parsePriceToCents конвертирует строку вида "599.99" или "600" в int64 копеек.
// Отклоняет отрицательные значения, больше двух знаков после запятой и
// значения за разумным потолком.
func parsePriceToCents(s string) (int64, error) {
	if strings.TrimSpace(s) == "" {
		return 0, e.ErrInvalidPrice
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, e.ErrInvalidPrice
	}

	if d.LessThan(decimal.Zero) {
		return 0, e.ErrInvalidPrice
	}

	maxPrice := decimal.NewFromInt(1_000_000_000).Mul(decimal.NewFromInt(100))
	if d.GreaterThan(maxPrice) {
		return 0, e.ErrInvalidPrice
	}

	if d.Exponent() < -2 {
		return 0, e.ErrPricePrecision
	}

	cents := d.Mul(decimal.NewFromInt(100)).Round(0)

	return cents.IntPart(), nil
}

// parseTypes валидирует список строковых типов из запроса.
func parseTypes(raw []string) ([]domain.EmbeddingType, error) {
	types := make([]domain.EmbeddingType, 0, len(raw))
	for _, s := range raw {
		t, err := domain.ParseEmbeddingType(s)
		if err != nil {
			return nil, err
		}
		types = append(types, t)
	}

	return types, nil
}

// outcomeDTO — сериализуемый результат генерации одного типа.
type outcomeDTO struct {
	Status       string   `json:"status"`
	Reason       string   `json:"reason,omitempty"`
	Transient    bool     `json:"transient,omitempty"`
	ModelVersion string   `json:"model_version,omitempty"`
	GeneratedAt  string   `json:"generated_at,omitempty"`
	Confidence   *float64 `json:"confidence,omitempty"`
}

// generationOutcomeDTO — карта результатов по типам одной сущности.
type generationOutcomeDTO struct {
	EntityKind string                `json:"entity_kind"`
	EntityID   string                `json:"entity_id"`
	Generated  int                   `json:"generated"`
	Failed     int                   `json:"failed"`
	Results    map[string]outcomeDTO `json:"results"`
}

func toGenerationOutcomeDTO(outcome *usecase.GenerationOutcome) generationOutcomeDTO {
	dto := generationOutcomeDTO{
		EntityKind: outcome.Entity.Kind,
		EntityID:   outcome.Entity.ID,
		Generated:  outcome.GeneratedCount(),
		Failed:     outcome.FailedCount(),
		Results:    make(map[string]outcomeDTO, len(outcome.Results)),
	}
	for t, res := range outcome.Results {
		item := outcomeDTO{
			Status:    string(res.Status),
			Reason:    res.Reason,
			Transient: res.Transient,
		}
		if res.Record != nil {
			item.ModelVersion = res.Record.ModelVersion
			item.GeneratedAt = res.Record.GeneratedAt.Format(time.RFC3339Nano)
			item.Confidence = res.Record.Confidence
		}
		dto.Results[string(t)] = item
	}

	return dto
}
