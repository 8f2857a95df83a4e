package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/materia-tech/vector-backend/internal/domain"
	"github.com/materia-tech/vector-backend/pkg/e"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type searchFixture struct {
	uc         *SearchUseCase
	entityRepo *fakeEntityRepo
	recordRepo *fakeRecordRepo
	vectorRepo *fakeVectorRepo
	imageRepo  *fakeImageRepo
	cacheRepo  *fakeCacheRepo
	provider   *fakeProvider
}

func newSearchFixture() *searchFixture {
	f := &searchFixture{
		entityRepo: newFakeEntityRepo(),
		recordRepo: newFakeRecordRepo(),
		vectorRepo: newFakeVectorRepo(),
		imageRepo:  newFakeImageRepo(),
		cacheRepo:  newFakeCacheRepo(),
		provider:   newFakeProvider(),
	}

	f.uc = NewSearchUC(
		f.entityRepo,
		f.recordRepo,
		f.vectorRepo,
		f.imageRepo,
		f.cacheRepo,
		f.provider,
		2,
		nopLogger{},
	)

	return f
}

func (f *searchFixture) addCandidate(id string, price int64, createdAt time.Time) domain.EntityRef {
	ref := domain.NewEntityRef("product", id)
	f.entityRepo.addEntity(&domain.EntityFields{
		Ref:        ref,
		Name:       "entity " + id,
		Category:   "panels",
		PriceCents: price,
		CreatedAt:  createdAt,
	})

	return ref
}

// unitVec возвращает вектор размерности dim с единицей на позиции axis.
func unitVec(dim, axis int) []float32 {
	v := make([]float32, dim)
	v[axis] = 1
	return v
}

func textQuery(kind string) *SearchQuery {
	return &SearchQuery{
		Kind:   kind,
		Inputs: map[domain.EmbeddingType]QueryInput{domain.TypeText: {Vector: unitVec(1536, 0)}},
	}
}

func TestSearch_WeightedFusion(t *testing.T) {
	f := newSearchFixture()
	now := time.Now().UTC()
	refA := f.addCandidate("a", 100, now)
	refB := f.addCandidate("b", 200, now)

	// A: text sim 1, color sim 0. B: только text, sim 1.
	f.vectorRepo.setVector(refA, domain.TypeText, unitVec(1536, 0))
	f.vectorRepo.setVector(refA, domain.TypeColor, unitVec(256, 1))
	f.vectorRepo.setVector(refB, domain.TypeText, unitVec(1536, 0))

	query := &SearchQuery{
		Kind: "product",
		Inputs: map[domain.EmbeddingType]QueryInput{
			domain.TypeText:  {Vector: unitVec(1536, 0)},
			domain.TypeColor: {Vector: unitVec(256, 0)},
		},
		Weights: map[domain.EmbeddingType]float64{
			domain.TypeText:  0.5,
			domain.TypeColor: 0.3,
		},
	}

	results, err := f.uc.Search(context.Background(), query)
	require.NoError(t, err)
	require.Len(t, results, 2)

	byID := map[string]SearchResult{}
	for _, r := range results {
		byID[r.Entity.ID] = r
	}

	// A: (0.5*1 + 0.3*0) / (0.5+0.3) = 0.625
	assert.InDelta(t, 0.625, byID["a"].FusedScore, 1e-9)
	assert.Len(t, byID["a"].Scores, 2)

	// B: отсутствующий color исключён из числителя И знаменателя: 0.5*1/0.5 = 1.
	assert.InDelta(t, 1.0, byID["b"].FusedScore, 1e-9)
	assert.Len(t, byID["b"].Scores, 1)

	// B выше A: «ещё нет вектора» не штрафуется.
	assert.Equal(t, "b", results[0].Entity.ID)
}

func TestSearch_CandidateWithoutAnyVectorIsExcluded(t *testing.T) {
	f := newSearchFixture()
	now := time.Now().UTC()
	refA := f.addCandidate("a", 100, now)
	f.addCandidate("no-vectors", 100, now)

	f.vectorRepo.setVector(refA, domain.TypeText, unitVec(1536, 0))
	// MinConfidence отключает pushdown: проверяется именно точный путь.
	minConf := 0.0
	query := textQuery("product")
	query.Filters.MinConfidence = &minConf
	conf := 0.9
	f.recordRepo.setMeta(domain.RecordMeta{Entity: refA, Type: domain.TypeText, Confidence: &conf})

	results, err := f.uc.Search(context.Background(), query)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].Entity.ID)
}

func TestSearch_DeterministicTieBreakByEntityID(t *testing.T) {
	f := newSearchFixture()
	now := time.Now().UTC()
	refB := f.addCandidate("b", 100, now)
	refA := f.addCandidate("a", 100, now)

	f.vectorRepo.setVector(refA, domain.TypeText, unitVec(1536, 0))
	f.vectorRepo.setVector(refB, domain.TypeText, unitVec(1536, 0))
	f.vectorRepo.nearestErr = errors.New("force exact path")

	for i := 0; i < 5; i++ {
		results, err := f.uc.Search(context.Background(), textQuery("product"))
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, "a", results[0].Entity.ID)
		assert.Equal(t, "b", results[1].Entity.ID)
	}
}

func TestSearch_SortModes(t *testing.T) {
	f := newSearchFixture()
	old := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	recent := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	refOld := f.addCandidate("old-cheap", 100, old)
	refNew := f.addCandidate("new-pricey", 900, recent)

	f.vectorRepo.setVector(refOld, domain.TypeText, unitVec(1536, 0))
	f.vectorRepo.setVector(refNew, domain.TypeText, unitVec(1536, 0))
	f.vectorRepo.nearestErr = errors.New("force exact path")

	newest := textQuery("product")
	newest.Sort = SortByNewest
	results, err := f.uc.Search(context.Background(), newest)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "new-pricey", results[0].Entity.ID)

	price := textQuery("product")
	price.Sort = SortByPrice
	results, err = f.uc.Search(context.Background(), price)
	require.NoError(t, err)
	assert.Equal(t, "old-cheap", results[0].Entity.ID)
}

func TestSearch_LimitCapsResults(t *testing.T) {
	f := newSearchFixture()
	now := time.Now().UTC()
	for _, id := range []string{"a", "b", "c"} {
		ref := f.addCandidate(id, 100, now)
		f.vectorRepo.setVector(ref, domain.TypeText, unitVec(1536, 0))
	}
	f.vectorRepo.nearestErr = errors.New("force exact path")

	query := textQuery("product")
	query.Limit = 2

	results, err := f.uc.Search(context.Background(), query)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestSearch_MinConfidenceFilter(t *testing.T) {
	f := newSearchFixture()
	now := time.Now().UTC()
	refHigh := f.addCandidate("high", 100, now)
	refLow := f.addCandidate("low", 100, now)
	refNil := f.addCandidate("nil-conf", 100, now)

	for _, ref := range []domain.EntityRef{refHigh, refLow, refNil} {
		f.vectorRepo.setVector(ref, domain.TypeText, unitVec(1536, 0))
	}

	high, low := 0.9, 0.3
	f.recordRepo.setMeta(domain.RecordMeta{Entity: refHigh, Type: domain.TypeText, Confidence: &high})
	f.recordRepo.setMeta(domain.RecordMeta{Entity: refLow, Type: domain.TypeText, Confidence: &low})
	f.recordRepo.setMeta(domain.RecordMeta{Entity: refNil, Type: domain.TypeText})

	minConf := 0.5
	query := textQuery("product")
	query.Filters.MinConfidence = &minConf

	results, err := f.uc.Search(context.Background(), query)
	require.NoError(t, err)
	require.Len(t, results, 1)
	// Запись без confidence при активном фильтре не проходит.
	assert.Equal(t, "high", results[0].Entity.ID)
}

func TestSearch_ZeroWeightTypeIsNotResolved(t *testing.T) {
	f := newSearchFixture()
	now := time.Now().UTC()
	ref := f.addCandidate("a", 100, now)
	f.vectorRepo.setVector(ref, domain.TypeText, unitVec(1536, 0))
	f.vectorRepo.nearestErr = errors.New("force exact path")

	query := &SearchQuery{
		Kind: "product",
		Inputs: map[domain.EmbeddingType]QueryInput{
			domain.TypeText:  {Vector: unitVec(1536, 0)},
			domain.TypeColor: {Colors: []string{"#fff"}},
		},
		Weights: map[domain.EmbeddingType]float64{
			domain.TypeText:  1,
			domain.TypeColor: 0,
		},
	}

	results, err := f.uc.Search(context.Background(), query)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Zero(t, f.provider.callCount(domain.TypeColor))
}

func TestSearch_MissingWeightDefaultsToOne(t *testing.T) {
	f := newSearchFixture()
	now := time.Now().UTC()
	ref := f.addCandidate("a", 100, now)
	f.vectorRepo.setVector(ref, domain.TypeText, unitVec(1536, 0))
	f.vectorRepo.setVector(ref, domain.TypeColor, unitVec(256, 0))
	f.vectorRepo.nearestErr = errors.New("force exact path")

	query := &SearchQuery{
		Kind: "product",
		Inputs: map[domain.EmbeddingType]QueryInput{
			domain.TypeText:  {Vector: unitVec(1536, 0)},
			domain.TypeColor: {Vector: unitVec(256, 1)}, // sim 0
		},
		Weights: map[domain.EmbeddingType]float64{domain.TypeText: 1},
	}

	results, err := f.uc.Search(context.Background(), query)
	require.NoError(t, err)
	require.Len(t, results, 1)
	// (1*1 + 1*0) / 2 = 0.5 — вес color по умолчанию 1.
	assert.InDelta(t, 0.5, results[0].FusedScore, 1e-9)
}

func TestSearch_ValidatesQuery(t *testing.T) {
	f := newSearchFixture()

	cases := []struct {
		name  string
		query *SearchQuery
		want  error
	}{
		{"missing kind", &SearchQuery{Inputs: map[domain.EmbeddingType]QueryInput{domain.TypeText: {Text: "x"}}}, e.ErrEntityRefRequired},
		{"no inputs", &SearchQuery{Kind: "product"}, e.ErrEmptyQuery},
		{"unknown type", &SearchQuery{Kind: "product", Inputs: map[domain.EmbeddingType]QueryInput{"audio": {Text: "x"}}}, e.ErrUnknownEmbeddingType},
		{"negative weight", &SearchQuery{
			Kind:    "product",
			Inputs:  map[domain.EmbeddingType]QueryInput{domain.TypeText: {Text: "x"}},
			Weights: map[domain.EmbeddingType]float64{domain.TypeText: -1},
		}, e.ErrNegativeWeight},
		{"negative limit", &SearchQuery{
			Kind:   "product",
			Inputs: map[domain.EmbeddingType]QueryInput{domain.TypeText: {Text: "x"}},
			Limit:  -1,
		}, e.ErrInvalidLimit},
		{"unknown sort", &SearchQuery{
			Kind:   "product",
			Inputs: map[domain.EmbeddingType]QueryInput{domain.TypeText: {Text: "x"}},
			Sort:   SortMode("random"),
		}, e.ErrInvalidSortMode},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.uc.Search(context.Background(), tc.query)
			require.ErrorIs(t, err, tc.want)
		})
	}

	t.Run("confidence out of range", func(t *testing.T) {
		bad := 1.5
		query := textQuery("product")
		query.Filters.MinConfidence = &bad
		_, err := f.uc.Search(context.Background(), query)
		require.ErrorIs(t, err, e.ErrInvalidConfidence)
	})
}

func TestSearch_EmptyQueryBeforeStoreAccess(t *testing.T) {
	f := newSearchFixture()
	f.entityRepo.queryErr = errors.New("store must not be touched")

	// Все входы с нулевым весом эквивалентны пустому запросу.
	query := &SearchQuery{
		Kind:    "product",
		Inputs:  map[domain.EmbeddingType]QueryInput{domain.TypeText: {Text: "oak"}},
		Weights: map[domain.EmbeddingType]float64{domain.TypeText: 0},
	}

	_, err := f.uc.Search(context.Background(), query)
	require.ErrorIs(t, err, e.ErrEmptyQuery)
}

func TestSearch_PrecomputedVectorIsValidated(t *testing.T) {
	f := newSearchFixture()
	f.addCandidate("a", 100, time.Now().UTC())

	query := &SearchQuery{
		Kind:   "product",
		Inputs: map[domain.EmbeddingType]QueryInput{domain.TypeText: {Vector: make([]float32, 10)}},
	}

	_, err := f.uc.Search(context.Background(), query)
	require.ErrorIs(t, err, e.ErrDimensionMismatch)
	assert.Zero(t, f.provider.totalCalls())
}

func TestSearch_QueryVectorCacheAvoidsRepeatEmbedding(t *testing.T) {
	f := newSearchFixture()
	ref := f.addCandidate("a", 100, time.Now().UTC())
	f.vectorRepo.setVector(ref, domain.TypeText, unitVec(1536, 0))
	f.vectorRepo.nearestErr = errors.New("force exact path")

	query := &SearchQuery{
		Kind:   "product",
		Inputs: map[domain.EmbeddingType]QueryInput{domain.TypeText: {Text: "oak veneer"}},
	}

	_, err := f.uc.Search(context.Background(), query)
	require.NoError(t, err)
	require.Equal(t, 1, f.provider.callCount(domain.TypeText))

	_, err = f.uc.Search(context.Background(), query)
	require.NoError(t, err)
	assert.Equal(t, 1, f.provider.callCount(domain.TypeText), "second search must hit the cache")
}

func TestSearch_SingleTypePushdown(t *testing.T) {
	f := newSearchFixture()
	now := time.Now().UTC()
	refA := f.addCandidate("a", 100, now)
	refB := f.addCandidate("b", 100, now)

	// Векторы в «точном» пути отсутствуют: выдача возможна только через pushdown.
	f.vectorRepo.nearest = []ScoredRef{
		{Ref: refB, Score: 0.9},
		{Ref: refA, Score: 0.8},
	}

	results, err := f.uc.Search(context.Background(), textQuery("product"))
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "b", results[0].Entity.ID)
	assert.InDelta(t, 0.9, results[0].FusedScore, 1e-9)
}

func TestSearch_PushdownLimitAppliedAfterTieBreak(t *testing.T) {
	f := newSearchFixture()
	now := time.Now().UTC()
	refC := f.addCandidate("c", 100, now)
	refB := f.addCandidate("b", 100, now)
	refA := f.addCandidate("a", 100, now)

	// Три равных score: граница limit должна резать после tiebreak по ID,
	// как на точном пути, а не в порядке выдачи хранилища.
	f.vectorRepo.nearest = []ScoredRef{
		{Ref: refC, Score: 0.7},
		{Ref: refB, Score: 0.7},
		{Ref: refA, Score: 0.7},
	}

	query := textQuery("product")
	query.Limit = 2

	results, err := f.uc.Search(context.Background(), query)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].Entity.ID)
	assert.Equal(t, "b", results[1].Entity.ID)
}

func TestSearch_PushdownFallsBackToExactPath(t *testing.T) {
	f := newSearchFixture()
	now := time.Now().UTC()
	ref := f.addCandidate("a", 100, now)
	f.vectorRepo.setVector(ref, domain.TypeText, unitVec(1536, 0))
	f.vectorRepo.nearestErr = errors.New("qdrant query failed")

	results, err := f.uc.Search(context.Background(), textQuery("product"))
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.InDelta(t, 1.0, results[0].FusedScore, 1e-9)
}

func TestSearch_NoCandidatesReturnsEmpty(t *testing.T) {
	f := newSearchFixture()

	results, err := f.uc.Search(context.Background(), textQuery("product"))
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearch_StoreFailureFailsWholeOperation(t *testing.T) {
	f := newSearchFixture()
	f.addCandidate("a", 100, time.Now().UTC())
	f.vectorRepo.getErr = errors.New("qdrant down")
	f.vectorRepo.nearestErr = errors.New("qdrant down")

	_, err := f.uc.Search(context.Background(), textQuery("product"))
	require.ErrorIs(t, err, e.ErrStoreUnavailable)
}

func TestSearch_CandidateQueryFailureFailsWholeOperation(t *testing.T) {
	f := newSearchFixture()
	f.entityRepo.queryErr = errors.New("pg down")

	_, err := f.uc.Search(context.Background(), textQuery("product"))
	require.ErrorIs(t, err, e.ErrStoreUnavailable)
}

func TestCalculateCosineSimilarity(t *testing.T) {
	f := newSearchFixture()

	sim, err := f.uc.CalculateCosineSimilarity([]float32{1, 0}, []float32{1, 0})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, sim, 1e-9)

	_, err = f.uc.CalculateCosineSimilarity([]float32{1, 0}, []float32{1})
	require.ErrorIs(t, err, e.ErrDimensionMismatch)
}
