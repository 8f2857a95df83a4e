package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/materia-tech/vector-backend/internal/domain"
	"github.com/materia-tech/vector-backend/pkg/e"
	"github.com/materia-tech/vector-backend/pkg/logger"
	"github.com/materia-tech/vector-backend/pkg/vmath"
)

const (
	defaultSearchLimit = 20
	maxSearchLimit     = 200
)

// SearchUseCase реализует взвешенный мультимодальный поиск: resolve -> filter -> score -> fuse/sort.
// Одинаковые запросы при неизменном хранилище дают одинаковый порядок выдачи.
type SearchUseCase struct {
	entityRepo    EntityRepository
	recordRepo    RecordRepository
	vectorRepo    VectorRepository
	imageRepo     ImageRepository
	cacheRepo     CacheRepository
	provider      EmbeddingProvider
	maxConcurrent int
	logger        logger.Logger
}

func NewSearchUC(
	entityRepo EntityRepository,
	recordRepo RecordRepository,
	vectorRepo VectorRepository,
	imageRepo ImageRepository,
	cacheRepo CacheRepository,
	provider EmbeddingProvider,
	maxConcurrent int,
	logger logger.Logger,
) *SearchUseCase {
	const defaultMaxConcurrent = 4

	if maxConcurrent <= 0 {
		maxConcurrent = defaultMaxConcurrent
	}

	return &SearchUseCase{
		entityRepo:    entityRepo,
		recordRepo:    recordRepo,
		vectorRepo:    vectorRepo,
		imageRepo:     imageRepo,
		cacheRepo:     cacheRepo,
		provider:      provider,
		maxConcurrent: maxConcurrent,
		logger:        logger,
	}
}

// Search выполняет поиск по запросу. Выдача либо полная, либо одна ошибка —
// частичных результатов не бывает.
func (s *SearchUseCase) Search(ctx context.Context, query *SearchQuery) ([]SearchResult, error) {
	const op = "SearchUseCase.Search"

	if err := s.validateQuery(query); err != nil {
		return nil, e.Wrap(op, err)
	}

	limit := query.Limit
	if limit == 0 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}

	sortMode := query.Sort
	if sortMode == "" {
		sortMode = SortBySimilarity
	}

	// 1. Векторы запроса: ad-hoc эмбеддинг сырых входов, валидация готовых векторов.
	queryVectors, err := s.resolveQueryVectors(ctx, query)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	weighted := s.weightedTypes(query, queryVectors)
	if len(weighted) == 0 {
		return nil, e.Wrap(op, e.ErrEmptyQuery)
	}

	// 2. Кандидаты: несемантические фильтры до любого скоринга.
	candidates, err := s.entityRepo.QueryCandidates(ctx, query.Kind, &query.Filters)
	if err != nil {
		return nil, e.Wrap(op, fmt.Errorf("%w: %v", e.ErrStoreUnavailable, err))
	}
	if len(candidates) == 0 {
		return []SearchResult{}, nil
	}

	// Pushdown косинуса в Qdrant для одного типа — оптимизация, не контракт:
	// при любом сбое выполняется эталонный путь.
	if len(weighted) == 1 && query.Filters.MinConfidence == nil && sortMode == SortBySimilarity {
		if results, err := s.searchPushdown(ctx, weighted[0], queryVectors[weighted[0]], candidates, limit); err == nil {
			return results, nil
		} else {
			s.logger.Warnf("vector search pushdown failed, falling back to exact scoring: %v", err)
		}
	}

	// 3-4. Скоринг по типам и взвешенное слияние.
	results, err := s.scoreAndFuse(ctx, query, queryVectors, weighted, candidates)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	// 5. Сортировка и ограничение выдачи.
	s.sortResults(results, sortMode, candidates)
	if len(results) > limit {
		results = results[:limit]
	}

	return results, nil
}

// CalculateCosineSimilarity — самостоятельный примитив сравнения, доступный вызывающим.
// Несовпадающие длины отклоняются типизированной ошибкой, не обрезаются.
func (s *SearchUseCase) CalculateCosineSimilarity(a, b []float32) (float64, error) {
	return vmath.CosineSimilarity(a, b)
}

// resolveQueryVectors конкурентно собирает векторы всех присутствующих в запросе типов.
// Векторы запросов никогда не сохраняются как записи сущностей.
func (s *SearchUseCase) resolveQueryVectors(ctx context.Context, query *SearchQuery) (map[domain.EmbeddingType][]float32, error) {
	type typeVector struct {
		t   domain.EmbeddingType
		vec []float32
	}

	// Типы с нулевым весом не скорятся, провайдер для них не вызывается.
	present := make([]domain.EmbeddingType, 0, len(query.Inputs))
	for t, input := range query.Inputs {
		if (len(input.Vector) > 0 || input.HasRawInput()) && s.weightOf(query, t) > 0 {
			present = append(present, t)
		}
	}
	if len(present) == 0 {
		return nil, e.ErrEmptyQuery
	}

	vecCh := make(chan typeVector, len(present))
	errCh := make(chan error, len(present))
	sem := make(chan struct{}, s.maxConcurrent)

	var wg sync.WaitGroup
	for _, t := range present {
		wg.Add(1)
		go func(t domain.EmbeddingType) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			vec, err := s.resolveOne(ctx, t, query.Inputs[t])
			if err != nil {
				errCh <- err
				return
			}

			vecCh <- typeVector{t: t, vec: vec}
		}(t)
	}

	wg.Wait()
	close(vecCh)
	close(errCh)

	if err := <-errCh; err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	vectors := make(map[domain.EmbeddingType][]float32, len(present))
	for tv := range vecCh {
		vectors[tv.t] = tv.vec
	}

	return vectors, nil
}

// resolveOne возвращает вектор одного типа: готовый, из кэша или от провайдера.
func (s *SearchUseCase) resolveOne(ctx context.Context, t domain.EmbeddingType, input QueryInput) ([]float32, error) {
	if len(input.Vector) > 0 {
		if err := domain.ValidateVector(t, input.Vector); err != nil {
			return nil, err
		}
		return input.Vector, nil
	}

	cacheKey := queryVectorCacheKey(t, input)
	if cacheKey != "" {
		if vec, err := s.cacheRepo.GetQueryVector(ctx, cacheKey); err == nil && len(vec) > 0 {
			return vec, nil
		}
	}

	embedInput, err := s.buildQueryInput(ctx, t, input)
	if err != nil {
		return nil, err
	}

	res, err := s.provider.Embed(ctx, t, embedInput)
	if err != nil {
		return nil, err
	}

	if err := domain.ValidateVector(t, res.Vector); err != nil {
		return nil, err
	}

	if cacheKey != "" {
		if err := s.cacheRepo.SetQueryVector(ctx, cacheKey, res.Vector); err != nil {
			s.logger.Warnf("failed to cache query vector (%s): %v", t, err)
		}
	}

	return res.Vector, nil
}

// buildQueryInput валидирует и собирает вход провайдера из сырого входа запроса.
func (s *SearchUseCase) buildQueryInput(ctx context.Context, t domain.EmbeddingType, input QueryInput) (*EmbedInput, error) {
	imageData := func() ([]byte, error) {
		if len(input.ImageData) > 0 {
			return input.ImageData, nil
		}
		if input.ImageKey != "" {
			data, err := s.imageRepo.Fetch(ctx, input.ImageKey)
			if err != nil {
				return nil, e.Wrap("query image fetch failed", e.ErrProviderTransient)
			}
			return data, nil
		}
		return nil, e.Wrap("image input required", e.ErrUnsupportedPayload)
	}

	switch t {
	case domain.TypeText:
		if input.Text == "" {
			return nil, e.Wrap("text input required", e.ErrUnsupportedPayload)
		}
		return &EmbedInput{Text: input.Text}, nil

	case domain.TypeVisual:
		data, err := imageData()
		if err != nil {
			return nil, err
		}
		return &EmbedInput{ImageData: data}, nil

	case domain.TypeMultimodal:
		if input.Text == "" {
			return nil, e.Wrap("text input required", e.ErrUnsupportedPayload)
		}
		data, err := imageData()
		if err != nil {
			return nil, err
		}
		return &EmbedInput{Text: input.Text, ImageData: data}, nil

	case domain.TypeColor:
		if len(input.Colors) == 0 {
			return nil, e.Wrap("color values required", e.ErrUnsupportedPayload)
		}
		return &EmbedInput{Colors: input.Colors}, nil

	case domain.TypeTexture, domain.TypeApplication:
		if input.Label == "" {
			return nil, e.Wrap("label input required", e.ErrUnsupportedPayload)
		}
		return &EmbedInput{Label: input.Label}, nil

	default:
		return nil, e.ErrUnknownEmbeddingType
	}
}

// scoreAndFuse считает по-типовые косинусы и сливает их по весам. Отсутствующий
// у кандидата вектор типа исключается и из числителя, и из знаменателя нормировки:
// «ещё нет вектора» не штрафуется как «совсем не похоже». Кандидат без единого
// вклада выпадает из выдачи целиком.
func (s *SearchUseCase) scoreAndFuse(
	ctx context.Context,
	query *SearchQuery,
	queryVectors map[domain.EmbeddingType][]float32,
	weighted []domain.EmbeddingType,
	candidates []domain.Candidate,
) ([]SearchResult, error) {
	refs := make([]domain.EntityRef, len(candidates))
	for i, c := range candidates {
		refs[i] = c.Ref
	}

	// Фильтр по минимальной confidence требует метаданных записей.
	var metas map[string]map[domain.EmbeddingType]domain.RecordMeta
	if query.Filters.MinConfidence != nil {
		var err error
		metas, err = s.recordRepo.GetMetaForCandidates(ctx, refs, weighted)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", e.ErrStoreUnavailable, err)
		}
	}

	vectors, err := s.vectorRepo.GetVectors(ctx, refs, weighted)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", e.ErrStoreUnavailable, err)
	}

	results := make([]SearchResult, 0, len(candidates))
	for _, c := range candidates {
		stored := vectors[c.Ref.Key()]
		if len(stored) == 0 {
			continue
		}

		scores := make(map[domain.EmbeddingType]float64, len(weighted))
		var num, den float64
		for _, t := range weighted {
			vec, ok := stored[t]
			if !ok {
				continue
			}

			if query.Filters.MinConfidence != nil && !passesConfidence(metas, c.Ref, t, *query.Filters.MinConfidence) {
				continue
			}

			sim, err := vmath.CosineSimilarity(queryVectors[t], vec)
			if err != nil {
				// Расхождение размерностей в хранилище фатально для всей операции.
				return nil, err
			}

			w := s.weightOf(query, t)
			scores[t] = sim
			num += w * sim
			den += w
		}

		if den == 0 {
			continue
		}

		results = append(results, NewSearchResult(c.Ref, scores, num/den))
	}

	return results, nil
}

// searchPushdown выполняет косинусный поиск одним типом нативно в Qdrant,
// ограничив выдачу набором кандидатов. Результат эквивалентен эталонному пути.
func (s *SearchUseCase) searchPushdown(
	ctx context.Context,
	t domain.EmbeddingType,
	vector []float32,
	candidates []domain.Candidate,
	limit int,
) ([]SearchResult, error) {
	refs := make([]domain.EntityRef, len(candidates))
	for i, c := range candidates {
		refs[i] = c.Ref
	}

	// Выбирается весь допустимый набор: обрезка до limit внутри Qdrant резала бы
	// равные score до tiebreak по ID и расходилась с эталонным путём на границе.
	scored, err := s.vectorRepo.QueryNearest(ctx, t, vector, refs, len(refs))
	if err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0, len(scored))
	for _, sr := range scored {
		results = append(results, NewSearchResult(sr.Ref, map[domain.EmbeddingType]float64{t: sr.Score}, sr.Score))
	}

	s.sortResults(results, SortBySimilarity, candidates)
	if len(results) > limit {
		results = results[:limit]
	}

	return results, nil
}

// sortResults сортирует выдачу детерминированно: вторичный ключ — ID сущности.
func (s *SearchUseCase) sortResults(results []SearchResult, mode SortMode, candidates []domain.Candidate) {
	byKey := make(map[string]domain.Candidate, len(candidates))
	for _, c := range candidates {
		byKey[c.Ref.Key()] = c
	}

	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		switch mode {
		case SortByNewest:
			ca, cb := byKey[a.Entity.Key()], byKey[b.Entity.Key()]
			if !ca.CreatedAt.Equal(cb.CreatedAt) {
				return ca.CreatedAt.After(cb.CreatedAt)
			}
		case SortByPrice:
			ca, cb := byKey[a.Entity.Key()], byKey[b.Entity.Key()]
			if ca.PriceCents != cb.PriceCents {
				return ca.PriceCents < cb.PriceCents
			}
		default:
			if a.FusedScore != b.FusedScore {
				return a.FusedScore > b.FusedScore
			}
		}

		return a.Entity.ID < b.Entity.ID
	})
}

// weightedTypes возвращает типы запроса с положительным весом в стабильном порядке.
func (s *SearchUseCase) weightedTypes(query *SearchQuery, queryVectors map[domain.EmbeddingType][]float32) []domain.EmbeddingType {
	weighted := make([]domain.EmbeddingType, 0, len(queryVectors))
	for _, t := range domain.AllTypes() {
		if _, ok := queryVectors[t]; !ok {
			continue
		}
		if s.weightOf(query, t) > 0 {
			weighted = append(weighted, t)
		}
	}

	return weighted
}

// weightOf возвращает вес типа; для присутствующего типа без явного веса — 1.
func (s *SearchUseCase) weightOf(query *SearchQuery, t domain.EmbeddingType) float64 {
	if query.Weights == nil {
		return 1
	}

	w, ok := query.Weights[t]
	if !ok {
		return 1
	}

	return w
}

func (s *SearchUseCase) validateQuery(query *SearchQuery) error {
	if query.Kind == "" {
		return e.ErrEntityRefRequired
	}

	if len(query.Inputs) == 0 {
		return e.ErrEmptyQuery
	}

	for t := range query.Inputs {
		if _, err := domain.Spec(t); err != nil {
			return err
		}
	}

	for t, w := range query.Weights {
		if _, err := domain.Spec(t); err != nil {
			return err
		}
		if w < 0 {
			return e.ErrNegativeWeight
		}
	}

	if query.Limit < 0 {
		return e.ErrInvalidLimit
	}

	switch query.Sort {
	case "", SortBySimilarity, SortByNewest, SortByPrice:
	default:
		return e.ErrInvalidSortMode
	}

	if mc := query.Filters.MinConfidence; mc != nil && (*mc < 0 || *mc > 1) {
		return e.ErrInvalidConfidence
	}

	return nil
}

// passesConfidence проверяет сохранённую confidence записи против порога.
// Запись без confidence при активном фильтре не проходит.
func passesConfidence(
	metas map[string]map[domain.EmbeddingType]domain.RecordMeta,
	ref domain.EntityRef,
	t domain.EmbeddingType,
	min float64,
) bool {
	meta, ok := metas[ref.Key()][t]
	if !ok || meta.Confidence == nil {
		return false
	}

	return *meta.Confidence >= min
}

// queryVectorCacheKey строит ключ кэша для детерминированных входов.
// Байты изображений не кэшируются.
func queryVectorCacheKey(t domain.EmbeddingType, input QueryInput) string {
	if len(input.ImageData) > 0 || input.ImageKey != "" {
		return ""
	}

	var payload string
	switch {
	case input.Text != "":
		payload = "text:" + input.Text
	case len(input.Colors) > 0:
		payload = "colors:" + strings.Join(input.Colors, ",")
	case input.Label != "":
		payload = "label:" + input.Label
	default:
		return ""
	}

	sum := sha256.Sum256([]byte(string(t) + "|" + payload))
	return "qvec:" + string(t) + ":" + hex.EncodeToString(sum[:])
}
