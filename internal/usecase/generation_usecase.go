package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/materia-tech/vector-backend/internal/domain"
	"github.com/materia-tech/vector-backend/pkg/e"
	"github.com/materia-tech/vector-backend/pkg/jitter"
	"github.com/materia-tech/vector-backend/pkg/logger"
	"github.com/google/uuid"
)

// GenerationPolicy — явная политика генерации, передаётся при создании use case,
// а не через глобальное состояние. Разные инстансы могут обслуживать разные политики.
type GenerationPolicy struct {
	MaxConcurrent    int           // потолок одновременных обращений к провайдеру
	DefaultBatchSize int           // размер батча, если вызывающий не задал свой
	BatchCooldown    time.Duration // пауза между батчами для внешних rate limit
}

// GenerationUseCase оркестрирует генерацию embedding-векторов по типам:
// собирает входы из канонических полей сущности, вызывает провайдера и
// сохраняет результаты. Отказ одного типа никогда не прерывает остальные.
type GenerationUseCase struct {
	entityRepo EntityRepository
	recordRepo RecordRepository
	vectorRepo VectorRepository
	imageRepo  ImageRepository
	cacheRepo  CacheRepository
	provider   EmbeddingProvider
	producer   MessageProducer
	policy     GenerationPolicy
	logger     logger.Logger
}

func NewGenerationUC(
	entityRepo EntityRepository,
	recordRepo RecordRepository,
	vectorRepo VectorRepository,
	imageRepo ImageRepository,
	cacheRepo CacheRepository,
	provider EmbeddingProvider,
	producer MessageProducer,
	policy GenerationPolicy,
	logger logger.Logger,
) *GenerationUseCase {
	const (
		defaultMaxConcurrent = 4
		defaultBatchSize     = 10
		defaultCooldown      = 2 * time.Second
	)

	if policy.MaxConcurrent <= 0 {
		policy.MaxConcurrent = defaultMaxConcurrent
	}
	if policy.DefaultBatchSize <= 0 {
		policy.DefaultBatchSize = defaultBatchSize
	}
	if policy.BatchCooldown <= 0 {
		policy.BatchCooldown = defaultCooldown
	}

	return &GenerationUseCase{
		entityRepo: entityRepo,
		recordRepo: recordRepo,
		vectorRepo: vectorRepo,
		imageRepo:  imageRepo,
		cacheRepo:  cacheRepo,
		provider:   provider,
		producer:   producer,
		policy:     policy,
		logger:     logger,
	}
}

// Generate обрабатывает весь запрошенный набор типов и возвращает карту результатов
// после завершения всех типов (join-семантика). Частичный успех — штатный исход.
func (g *GenerationUseCase) Generate(ctx context.Context, req *GenerationRequest) (*GenerationOutcome, error) {
	const op = "GenerationUseCase.Generate"

	if err := g.validateRequest(req); err != nil {
		return nil, e.Wrap(op, err)
	}

	// Чтения до начала работы: без хранилища продолжать нечем.
	existing, err := g.existingTypes(ctx, req)
	if err != nil {
		return nil, e.Wrap(op, fmt.Errorf("%w: %v", e.ErrStoreUnavailable, err))
	}

	fields, err := g.entityRepo.GetFields(ctx, req.Entity)
	if err != nil {
		if errors.Is(err, e.ErrEntityNotFound) {
			return nil, e.Wrap(op, err)
		}
		return nil, e.Wrap(op, fmt.Errorf("%w: %v", e.ErrStoreUnavailable, err))
	}

	outcome := NewGenerationOutcome(req.Entity)

	type typeResult struct {
		t   domain.EmbeddingType
		res TypeOutcome
		err error
	}

	resCh := make(chan typeResult, len(req.Types))
	sem := make(chan struct{}, g.policy.MaxConcurrent)

	var wg sync.WaitGroup
	for _, t := range req.Types {
		if existing[t] {
			outcome.Results[t] = NewSkippedOutcome()
			continue
		}

		wg.Add(1)
		go func(t domain.EmbeddingType) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			res, err := g.generateType(ctx, fields, t)
			resCh <- typeResult{t: t, res: res, err: err}
		}(t)
	}

	wg.Wait()
	close(resCh)

	var storeErr error
	for r := range resCh {
		if r.err != nil {
			storeErr = r.err
			continue
		}
		outcome.Results[r.t] = r.res
	}

	// Результаты отменённого вызова отбрасываются целиком.
	if ctx.Err() != nil {
		return nil, e.Wrap(op, ctx.Err())
	}

	// Недоступность хранилища фатальна для всей операции, не для одного типа.
	if storeErr != nil {
		return nil, e.Wrap(op, storeErr)
	}

	g.afterGenerate(ctx, outcome)

	return outcome, nil
}

// BatchGenerate разбивает сущности на батчи и обрабатывает их последовательно
// с паузой между батчами; внутри батча сущности идут конкурентно.
// Полный провал одной сущности не останавливает батч.
func (g *GenerationUseCase) BatchGenerate(ctx context.Context, req *BatchGenerationRequest) (*BatchOutcome, error) {
	const op = "GenerationUseCase.BatchGenerate"

	if len(req.Entities) == 0 {
		return nil, e.Wrap(op, e.ErrNoEntities)
	}
	if len(req.Types) == 0 {
		return nil, e.Wrap(op, e.ErrNoTypesRequested)
	}

	batchSize := req.BatchSize
	if batchSize < 0 {
		return nil, e.Wrap(op, e.ErrInvalidBatchSize)
	}
	if batchSize == 0 {
		batchSize = g.policy.DefaultBatchSize
	}

	batch := &BatchOutcome{
		Attempted: len(req.Entities),
		Outcomes:  make(map[string]*GenerationOutcome, len(req.Entities)),
	}

	var mu sync.Mutex
	for start := 0; start < len(req.Entities); start += batchSize {
		end := start + batchSize
		if end > len(req.Entities) {
			end = len(req.Entities)
		}

		var wg sync.WaitGroup
		for _, ref := range req.Entities[start:end] {
			wg.Add(1)
			go func(ref domain.EntityRef) {
				defer wg.Done()

				outcome, err := g.Generate(ctx, NewGenerationRequest(ref, req.Types, req.ForceRegenerate))
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					g.logger.Warnf("batch entity %s failed entirely: %v", ref.Key(), err)
					batch.Outcomes[ref.Key()] = g.totalFailure(ref, req.Types, err)
					return
				}

				batch.Outcomes[ref.Key()] = outcome
			}(ref)
		}
		wg.Wait()

		if ctx.Err() != nil {
			return nil, e.Wrap(op, ctx.Err())
		}

		// Пауза между батчами, последний батч не ждёт.
		if end < len(req.Entities) {
			if err := jitter.Sleep(ctx, jitter.Duration(g.policy.BatchCooldown, jitter.DefaultJitter)); err != nil {
				return nil, e.Wrap(op, err)
			}
		}
	}

	for _, outcome := range batch.Outcomes {
		switch {
		case outcome.FailedCount() == 0:
			batch.FullySucceeded++
		case outcome.FailedCount() == len(outcome.Results):
			batch.FullyFailed++
		default:
			batch.PartiallySucceeded++
		}
	}

	return batch, nil
}

// Coverage возвращает долю сущностей с актуальной записью по каждому типу.
// Агрегат только читает хранилище; короткоживущий кэш в Redis.
func (g *GenerationUseCase) Coverage(ctx context.Context, kind string) (*CoverageReport, error) {
	const op = "GenerationUseCase.Coverage"

	if report, err := g.cacheRepo.GetCoverage(ctx, kind); err == nil && report != nil {
		return report, nil
	}

	report, err := g.recordRepo.Coverage(ctx, kind)
	if err != nil {
		return nil, e.Wrap(op, fmt.Errorf("%w: %v", e.ErrStoreUnavailable, err))
	}

	if err := g.cacheRepo.SetCoverage(ctx, report); err != nil {
		g.logger.Warnf("failed to cache coverage report for %q: %v", kind, err)
	}

	return report, nil
}

// Records возвращает метаданные существующих embedding-записей сущности.
// Отсутствие записей — валидное состояние: для известной сущности без
// векторов возвращается пустая карта.
func (g *GenerationUseCase) Records(ctx context.Context, ref domain.EntityRef) (map[domain.EmbeddingType]domain.RecordMeta, error) {
	const op = "GenerationUseCase.Records"

	if ref.IsZero() {
		return nil, e.Wrap(op, e.ErrEntityRefRequired)
	}

	if _, err := g.entityRepo.GetFields(ctx, ref); err != nil {
		if errors.Is(err, e.ErrEntityNotFound) {
			return nil, e.Wrap(op, err)
		}
		return nil, e.Wrap(op, fmt.Errorf("%w: %v", e.ErrStoreUnavailable, err))
	}

	metas, err := g.recordRepo.GetMeta(ctx, ref)
	if err != nil {
		return nil, e.Wrap(op, fmt.Errorf("%w: %v", e.ErrStoreUnavailable, err))
	}

	return metas, nil
}

// generateType выполняет генерацию одного типа: вход -> провайдер -> валидация -> запись.
// Отказы провайдера и входа восстанавливаются локально и попадают в карту
// результатов; отказ записи в хранилище возвращается ошибкой и валит операцию.
func (g *GenerationUseCase) generateType(ctx context.Context, fields *domain.EntityFields, t domain.EmbeddingType) (TypeOutcome, error) {
	input, err := g.buildInput(ctx, fields, t)
	if err != nil {
		return NewFailedOutcome(err.Error(), errors.Is(err, e.ErrProviderTransient)), nil
	}

	res, err := g.provider.Embed(ctx, t, input)
	if err != nil {
		return NewFailedOutcome(err.Error(), errors.Is(err, e.ErrProviderTransient)), nil
	}

	// После отмены контекста готовые результаты не сохраняются.
	if ctx.Err() != nil {
		return NewFailedOutcome(ctx.Err().Error(), true), nil
	}

	record := domain.NewEmbeddingRecord(fields.Ref, t, res.Vector, res.ModelVersion, res.Confidence)
	if err := record.Validate(); err != nil {
		return NewFailedOutcome(err.Error(), false), nil
	}

	pointID, err := g.vectorRepo.Upsert(ctx, record)
	if err != nil {
		return TypeOutcome{}, fmt.Errorf("%w: %v", e.ErrStoreUnavailable, err)
	}

	meta := &domain.RecordMeta{
		Entity:       record.Entity,
		Type:         record.Type,
		PointID:      pointID,
		ModelVersion: record.ModelVersion,
		GeneratedAt:  record.GeneratedAt,
		Confidence:   record.Confidence,
	}
	if err := g.recordRepo.UpsertMeta(ctx, meta); err != nil {
		return TypeOutcome{}, fmt.Errorf("%w: %v", e.ErrStoreUnavailable, err)
	}

	return NewGeneratedOutcome(record), nil
}

// buildInput собирает типоспецифичный вход провайдера из канонических полей сущности.
func (g *GenerationUseCase) buildInput(ctx context.Context, fields *domain.EntityFields, t domain.EmbeddingType) (*EmbedInput, error) {
	switch t {
	case domain.TypeText:
		text := composeEntityText(fields)
		if text == "" {
			return nil, e.Wrap("entity has no textual fields", e.ErrProviderValidation)
		}
		return &EmbedInput{Text: text}, nil

	case domain.TypeVisual:
		data, err := g.fetchImage(ctx, fields)
		if err != nil {
			return nil, err
		}
		return &EmbedInput{ImageData: data}, nil

	case domain.TypeMultimodal:
		text := composeEntityText(fields)
		if text == "" {
			return nil, e.Wrap("entity has no textual fields", e.ErrProviderValidation)
		}
		data, err := g.fetchImage(ctx, fields)
		if err != nil {
			return nil, err
		}
		return &EmbedInput{Text: text, ImageData: data}, nil

	case domain.TypeColor:
		if len(fields.Colors) == 0 {
			return nil, e.Wrap("entity has no color values", e.ErrProviderValidation)
		}
		return &EmbedInput{Colors: fields.Colors}, nil

	case domain.TypeTexture:
		if fields.TextureLabel == "" {
			return nil, e.Wrap("entity has no texture label", e.ErrProviderValidation)
		}
		return &EmbedInput{Label: fields.TextureLabel}, nil

	case domain.TypeApplication:
		if fields.ApplicationLabel == "" {
			return nil, e.Wrap("entity has no application label", e.ErrProviderValidation)
		}
		return &EmbedInput{Label: fields.ApplicationLabel}, nil

	default:
		return nil, e.ErrUnknownEmbeddingType
	}
}

// fetchImage получает каноническое изображение сущности из MinIO.
func (g *GenerationUseCase) fetchImage(ctx context.Context, fields *domain.EntityFields) ([]byte, error) {
	if fields.ImageKey == "" {
		return nil, e.Wrap("entity has no canonical image", e.ErrProviderValidation)
	}

	data, err := g.imageRepo.Fetch(ctx, fields.ImageKey)
	if err != nil {
		return nil, e.Wrap("image fetch failed", e.ErrProviderTransient)
	}

	return data, nil
}

// existingTypes возвращает типы, для которых запись уже есть и force не задан.
func (g *GenerationUseCase) existingTypes(ctx context.Context, req *GenerationRequest) (map[domain.EmbeddingType]bool, error) {
	if req.ForceRegenerate {
		return map[domain.EmbeddingType]bool{}, nil
	}

	return g.recordRepo.ExistingTypes(ctx, req.Entity, req.Types)
}

// afterGenerate выполняет пост-обработку успешной генерации: событие в Kafka и
// инвалидация кэша покрытия. Ошибки здесь не влияют на результат вызова.
func (g *GenerationUseCase) afterGenerate(ctx context.Context, outcome *GenerationOutcome) {
	if outcome.GeneratedCount() == 0 {
		return
	}

	event := &GenerationEvent{
		EventID:     uuid.NewString(),
		EntityKind:  outcome.Entity.Kind,
		EntityID:    outcome.Entity.ID,
		OccurredAt:  time.Now().UnixNano(),
		ModelsByKey: make(map[string]string),
	}
	for t, res := range outcome.Results {
		if res.Status == StatusGenerated {
			event.Types = append(event.Types, t)
			event.ModelsByKey[string(t)] = res.Record.ModelVersion
		}
	}

	if err := g.producer.WriteGenerationEvent(ctx, event); err != nil {
		g.logger.Warnf("failed to publish generation event for %s: %v", outcome.Entity.Key(), err)
	}

	if err := g.cacheRepo.InvalidateCoverage(ctx, outcome.Entity.Kind); err != nil {
		g.logger.Warnf("failed to invalidate coverage cache for %q: %v", outcome.Entity.Kind, err)
	}
}

// totalFailure строит карту результатов для сущности, не дошедшей до генерации.
func (g *GenerationUseCase) totalFailure(ref domain.EntityRef, types []domain.EmbeddingType, err error) *GenerationOutcome {
	outcome := NewGenerationOutcome(ref)
	for _, t := range types {
		outcome.Results[t] = NewFailedOutcome(err.Error(), true)
	}

	return outcome
}

func (g *GenerationUseCase) validateRequest(req *GenerationRequest) error {
	if req.Entity.IsZero() {
		return e.ErrEntityRefRequired
	}

	if len(req.Types) == 0 {
		return e.ErrNoTypesRequested
	}

	for _, t := range req.Types {
		if _, err := domain.Spec(t); err != nil {
			return err
		}
	}

	return nil
}

// composeEntityText собирает текстовый вход из названия, описания и категории.
func composeEntityText(fields *domain.EntityFields) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{fields.Name, fields.Description, fields.Category} {
		if p != "" {
			parts = append(parts, p)
		}
	}

	return strings.Join(parts, "\n")
}
