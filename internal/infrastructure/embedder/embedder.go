package embedder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/materia-tech/vector-backend/internal/cfg"
	"github.com/materia-tech/vector-backend/internal/domain"
	"github.com/materia-tech/vector-backend/internal/usecase"
	"github.com/materia-tech/vector-backend/pkg/e"
	"github.com/materia-tech/vector-backend/pkg/jitter"
	"github.com/materia-tech/vector-backend/pkg/logger"
	"github.com/materia-tech/vector-backend/pkg/vmath"
)

const (
	retryBackoffBase = 500 * time.Millisecond
	retryBackoffMax  = 10 * time.Second
)

// Embedder — фасад над внешними embedding-провайдерами: текст уходит в OpenAI,
// остальные типы — во внутренний feature-сервис. Composite-типы собираются
// из базовых. Временные отказы ретраятся с экспоненциальным отступлением,
// ошибки валидации возвращаются сразу.
type Embedder struct {
	text    *OpenAIClient
	feature *FeatureClient
	cfg     *cfg.ProviderCfg
	logger  logger.Logger
}

func New(cfg *cfg.ProviderCfg, logger logger.Logger) *Embedder {
	return &Embedder{
		text:    NewOpenAIClient(cfg.OpenAIKey),
		feature: NewFeatureClient(cfg.FeatureAddr, cfg.RequestTimeout),
		cfg:     cfg,
		logger:  logger,
	}
}

// Embed возвращает вектор заявленного типа для типизированного входа.
// Размерность результата сверяется с каталогом типов до возврата.
func (em *Embedder) Embed(ctx context.Context, t domain.EmbeddingType, input *usecase.EmbedInput) (*usecase.EmbedResult, error) {
	const op = "Embedder.Embed"

	spec, err := domain.Spec(t)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	var res *usecase.EmbedResult
	if spec.Composite {
		res, err = em.embedComposite(ctx, t, input)
	} else {
		res, err = em.withRetries(ctx, func(ctx context.Context) (*usecase.EmbedResult, error) {
			return em.embedDirect(ctx, t, spec, input)
		})
	}
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	if err := domain.ValidateVector(t, res.Vector); err != nil {
		return nil, e.Wrap(op, fmt.Errorf("%w: %v", e.ErrProviderValidation, err))
	}

	return res, nil
}

// embedDirect маршрутизирует один вызов провайдера по типу вектора.
func (em *Embedder) embedDirect(ctx context.Context, t domain.EmbeddingType, spec domain.TypeSpec, input *usecase.EmbedInput) (*usecase.EmbedResult, error) {
	if t == domain.TypeText {
		return em.text.Embed(ctx, input.Text)
	}

	return em.feature.Embed(ctx, spec.ProviderKey, input)
}

// embedComposite собирает composite-вектор конкатенацией базовых.
// Сейчас единственный composite-тип — multimodal = text ++ visual.
func (em *Embedder) embedComposite(ctx context.Context, t domain.EmbeddingType, input *usecase.EmbedInput) (*usecase.EmbedResult, error) {
	if t != domain.TypeMultimodal {
		return nil, e.ErrUnknownEmbeddingType
	}

	textRes, err := em.Embed(ctx, domain.TypeText, &usecase.EmbedInput{Text: input.Text})
	if err != nil {
		return nil, err
	}

	visualRes, err := em.Embed(ctx, domain.TypeVisual, &usecase.EmbedInput{ImageData: input.ImageData})
	if err != nil {
		return nil, err
	}

	version := textRes.ModelVersion + "+" + visualRes.ModelVersion

	return usecase.NewEmbedResult(
		vmath.Concat(textRes.Vector, visualRes.Vector),
		version,
		minConfidence(textRes.Confidence, visualRes.Confidence),
	), nil
}

// withRetries выполняет вызов с таймаутом на попытку и повторяет только
// временные отказы, не больше MaxRetries раз.
func (em *Embedder) withRetries(ctx context.Context, call func(ctx context.Context) (*usecase.EmbedResult, error)) (*usecase.EmbedResult, error) {
	var lastErr error
	for attempt := 0; attempt <= em.cfg.MaxRetries; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, em.cfg.RequestTimeout)
		res, err := call(attemptCtx)
		cancel()
		if err == nil {
			return res, nil
		}

		lastErr = err
		if !errors.Is(err, e.ErrProviderTransient) {
			return nil, err
		}

		if attempt == em.cfg.MaxRetries {
			break
		}

		em.logger.Warnf("provider call failed (attempt %d/%d), retrying: %v", attempt+1, em.cfg.MaxRetries, err)
		if err := jitter.Sleep(ctx, jitter.ExponentialBackoff(retryBackoffBase, retryBackoffMax, attempt, jitter.DefaultJitter)); err != nil {
			return nil, err
		}
	}

	return nil, lastErr
}

// minConfidence возвращает наименьшую из присутствующих confidence.
func minConfidence(a, b *float64) *float64 {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	if *a < *b {
		return a
	}

	return b
}
