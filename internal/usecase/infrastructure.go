package usecase

import (
	"context"

	"github.com/materia-tech/vector-backend/internal/domain"
)

// EmbeddingProvider превращает типизированный вход в вектор заявленного типа.
// Временные отказы ретраятся внутри клиента; ошибки валидации возвращаются сразу.
type EmbeddingProvider interface {
	Embed(ctx context.Context, t domain.EmbeddingType, input *EmbedInput) (*EmbedResult, error)
}

// MessageProducer публикует события о завершённой генерации для downstream-потребителей.
type MessageProducer interface {
	WriteGenerationEvent(ctx context.Context, event *GenerationEvent) error
}
