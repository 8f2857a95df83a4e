package e

import "fmt"

var (
	// Внутренние ошибки с векторами
	ErrDimensionMismatch    = fmt.Errorf("vector dimension mismatch")
	ErrEmptyVector          = fmt.Errorf("vector is empty")
	ErrUnknownEmbeddingType = fmt.Errorf("unknown embedding type")

	// Ошибки провайдера эмбеддингов
	ErrProviderTransient  = fmt.Errorf("provider transient failure")
	ErrProviderValidation = fmt.Errorf("provider rejected input")

	// Ошибки хранилищ
	ErrStoreUnavailable = fmt.Errorf("vector store unavailable")
	ErrRecordNotFound   = fmt.Errorf("embedding record not found")
	ErrEntityNotFound   = fmt.Errorf("entity not found")

	// 400 Bad Request
	ErrStatusBadRequest   = fmt.Errorf("bad request")
	ErrEmptyQuery         = fmt.Errorf("query has no embedding types")
	ErrNegativeWeight     = fmt.Errorf("weight must be non-negative")
	ErrNoTypesRequested   = fmt.Errorf("no embedding types requested")
	ErrNoEntities         = fmt.Errorf("no entities provided")
	ErrEntityRefRequired  = fmt.Errorf("entity kind and id are required")
	ErrInvalidLimit       = fmt.Errorf("limit must be positive")
	ErrInvalidSortMode    = fmt.Errorf("unknown sort mode")
	ErrInvalidBatchSize   = fmt.Errorf("batch size must be positive")
	ErrInvalidPrice       = fmt.Errorf("invalid price value")
	ErrPricePrecision     = fmt.Errorf("price must have at most 2 decimal places")
	ErrInvalidConfidence  = fmt.Errorf("confidence must be within [0,1]")
	ErrMissingFields      = fmt.Errorf("missing required fields")
	ErrUnsupportedPayload = fmt.Errorf("unsupported input payload for embedding type")

	// 500
	ErrInternalServerError = fmt.Errorf("internal server error")

	// Конфигурация
	ErrIncorrectEnvVariable = fmt.Errorf("incorrect environment variable")
)

// Wrap оборачивает ошибку
func Wrap(msg string, err error) error {
	return fmt.Errorf("%s: %w", msg, err)
}
