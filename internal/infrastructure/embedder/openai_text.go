package embedder

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/materia-tech/vector-backend/internal/usecase"
	"github.com/materia-tech/vector-backend/pkg/e"
	"github.com/sashabaranov/go-openai"
)

// OpenAIClient получает текстовые эмбеддинги через OpenAI Embeddings API.
type OpenAIClient struct {
	client *openai.Client
}

func NewOpenAIClient(apiKey string) *OpenAIClient {
	return &OpenAIClient{
		client: openai.NewClient(apiKey),
	}
}

// Embed возвращает вектор текстового входа. Пустой текст — ошибка валидации.
func (c *OpenAIClient) Embed(ctx context.Context, text string) (*usecase.EmbedResult, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: empty text input", e.ErrProviderValidation)
	}

	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input: []string{text},
		Model: openai.SmallEmbedding3,
	})
	if err != nil {
		return nil, classifyOpenAIError(err)
	}

	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("%w: empty embedding response", e.ErrProviderTransient)
	}

	return usecase.NewEmbedResult(resp.Data[0].Embedding, string(openai.SmallEmbedding3), nil), nil
}

// classifyOpenAIError разделяет отказы API на временные и валидационные.
// Rate limit, 5xx и сетевые таймауты ретраябельны; остальные 4xx — нет.
func classifyOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= http.StatusInternalServerError {
			return fmt.Errorf("%w: openai: %v", e.ErrProviderTransient, err)
		}

		return fmt.Errorf("%w: openai: %v", e.ErrProviderValidation, err)
	}

	// Сетевые ошибки и истёкшие контексты считаем временными.
	return fmt.Errorf("%w: openai: %v", e.ErrProviderTransient, err)
}
