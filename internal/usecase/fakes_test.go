package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/materia-tech/vector-backend/internal/domain"
	"github.com/materia-tech/vector-backend/pkg/e"
)

type nopLogger struct{}

func (nopLogger) Infof(format string, args ...any)            {}
func (nopLogger) Warnf(format string, args ...any)            {}
func (nopLogger) Errorf(err error, format string, args ...any) {}

// fakeEntityRepo — in-memory реализация EntityRepository.
type fakeEntityRepo struct {
	mu         sync.Mutex
	fields     map[string]*domain.EntityFields
	candidates []domain.Candidate
	fieldsErr  error
	queryErr   error
}

func newFakeEntityRepo() *fakeEntityRepo {
	return &fakeEntityRepo{fields: make(map[string]*domain.EntityFields)}
}

func (f *fakeEntityRepo) addEntity(fields *domain.EntityFields) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fields[fields.Ref.Key()] = fields
	f.candidates = append(f.candidates, domain.Candidate{
		Ref:        fields.Ref,
		Category:   fields.Category,
		PriceCents: fields.PriceCents,
		CreatedAt:  fields.CreatedAt,
	})
}

func (f *fakeEntityRepo) GetFields(ctx context.Context, ref domain.EntityRef) (*domain.EntityFields, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fieldsErr != nil {
		return nil, f.fieldsErr
	}

	fields, ok := f.fields[ref.Key()]
	if !ok {
		return nil, e.ErrEntityNotFound
	}

	return fields, nil
}

func (f *fakeEntityRepo) QueryCandidates(ctx context.Context, kind string, filters *CandidateFilters) ([]domain.Candidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.queryErr != nil {
		return nil, f.queryErr
	}

	out := make([]domain.Candidate, 0, len(f.candidates))
	for _, c := range f.candidates {
		if c.Ref.Kind != kind {
			continue
		}
		out = append(out, c)
	}

	return out, nil
}

// fakeRecordRepo — in-memory реализация RecordRepository.
type fakeRecordRepo struct {
	mu          sync.Mutex
	metas       map[string]map[domain.EmbeddingType]domain.RecordMeta
	existingErr error
	upsertErr   error
	metaErr     error
	upserts     int
}

func newFakeRecordRepo() *fakeRecordRepo {
	return &fakeRecordRepo{metas: make(map[string]map[domain.EmbeddingType]domain.RecordMeta)}
}

func (f *fakeRecordRepo) setMeta(meta domain.RecordMeta) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := meta.Entity.Key()
	if f.metas[key] == nil {
		f.metas[key] = make(map[domain.EmbeddingType]domain.RecordMeta)
	}
	f.metas[key][meta.Type] = meta
}

func (f *fakeRecordRepo) UpsertMeta(ctx context.Context, meta *domain.RecordMeta) error {
	f.mu.Lock()
	upsertErr := f.upsertErr
	f.mu.Unlock()
	if upsertErr != nil {
		return upsertErr
	}

	f.setMeta(*meta)
	f.mu.Lock()
	f.upserts++
	f.mu.Unlock()
	return nil
}

func (f *fakeRecordRepo) GetMeta(ctx context.Context, ref domain.EntityRef) (map[domain.EmbeddingType]domain.RecordMeta, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.metaErr != nil {
		return nil, f.metaErr
	}

	out := make(map[domain.EmbeddingType]domain.RecordMeta)
	for t, meta := range f.metas[ref.Key()] {
		out[t] = meta
	}

	return out, nil
}

func (f *fakeRecordRepo) ExistingTypes(ctx context.Context, ref domain.EntityRef, types []domain.EmbeddingType) (map[domain.EmbeddingType]bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.existingErr != nil {
		return nil, f.existingErr
	}

	existing := make(map[domain.EmbeddingType]bool)
	for _, t := range types {
		if _, ok := f.metas[ref.Key()][t]; ok {
			existing[t] = true
		}
	}

	return existing, nil
}

func (f *fakeRecordRepo) GetMetaForCandidates(ctx context.Context, refs []domain.EntityRef, types []domain.EmbeddingType) (map[string]map[domain.EmbeddingType]domain.RecordMeta, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]map[domain.EmbeddingType]domain.RecordMeta)
	for _, ref := range refs {
		if metas, ok := f.metas[ref.Key()]; ok {
			out[ref.Key()] = metas
		}
	}

	return out, nil
}

func (f *fakeRecordRepo) Coverage(ctx context.Context, kind string) (*CoverageReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	report := &CoverageReport{
		Kind:        kind,
		ByType:      make(map[domain.EmbeddingType]CoverageStat),
		GeneratedAt: time.Now().UTC(),
	}
	for _, metas := range f.metas {
		report.TotalEntities++
		for t := range metas {
			stat := report.ByType[t]
			stat.WithRecord++
			report.ByType[t] = stat
		}
	}

	return report, nil
}

// fakeVectorRepo — in-memory реализация VectorRepository.
type fakeVectorRepo struct {
	mu         sync.Mutex
	vectors    map[string]map[domain.EmbeddingType][]float32
	upsertErr  error
	getErr     error
	nearest    []ScoredRef
	nearestErr error
	upserts    int
}

func newFakeVectorRepo() *fakeVectorRepo {
	return &fakeVectorRepo{vectors: make(map[string]map[domain.EmbeddingType][]float32)}
}

func (f *fakeVectorRepo) setVector(ref domain.EntityRef, t domain.EmbeddingType, vec []float32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := ref.Key()
	if f.vectors[key] == nil {
		f.vectors[key] = make(map[domain.EmbeddingType][]float32)
	}
	f.vectors[key][t] = vec
}

func (f *fakeVectorRepo) Upsert(ctx context.Context, record *domain.EmbeddingRecord) (string, error) {
	f.mu.Lock()
	upsertErr := f.upsertErr
	f.mu.Unlock()
	if upsertErr != nil {
		return "", upsertErr
	}

	f.setVector(record.Entity, record.Type, record.Vector)
	f.mu.Lock()
	f.upserts++
	f.mu.Unlock()
	return fmt.Sprintf("point-%s-%s", record.Entity.Key(), record.Type), nil
}

func (f *fakeVectorRepo) GetVectors(ctx context.Context, refs []domain.EntityRef, types []domain.EmbeddingType) (map[string]map[domain.EmbeddingType][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}

	out := make(map[string]map[domain.EmbeddingType][]float32)
	for _, ref := range refs {
		stored, ok := f.vectors[ref.Key()]
		if !ok {
			continue
		}
		filtered := make(map[domain.EmbeddingType][]float32)
		for _, t := range types {
			if vec, ok := stored[t]; ok {
				filtered[t] = vec
			}
		}
		if len(filtered) > 0 {
			out[ref.Key()] = filtered
		}
	}

	return out, nil
}

func (f *fakeVectorRepo) QueryNearest(ctx context.Context, t domain.EmbeddingType, vector []float32, allowed []domain.EntityRef, limit int) ([]ScoredRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.nearestErr != nil {
		return nil, f.nearestErr
	}

	return f.nearest, nil
}

// fakeCacheRepo — in-memory реализация CacheRepository.
type fakeCacheRepo struct {
	mu           sync.Mutex
	queryVectors map[string][]float32
	coverage     map[string]*CoverageReport
	invalidated  []string
	vectorHits   int
}

func newFakeCacheRepo() *fakeCacheRepo {
	return &fakeCacheRepo{
		queryVectors: make(map[string][]float32),
		coverage:     make(map[string]*CoverageReport),
	}
}

func (f *fakeCacheRepo) GetQueryVector(ctx context.Context, key string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if vec, ok := f.queryVectors[key]; ok {
		f.vectorHits++
		return vec, nil
	}

	return nil, nil
}

func (f *fakeCacheRepo) SetQueryVector(ctx context.Context, key string, vector []float32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queryVectors[key] = vector
	return nil
}

func (f *fakeCacheRepo) GetCoverage(ctx context.Context, kind string) (*CoverageReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.coverage[kind], nil
}

func (f *fakeCacheRepo) SetCoverage(ctx context.Context, report *CoverageReport) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.coverage[report.Kind] = report
	return nil
}

func (f *fakeCacheRepo) InvalidateCoverage(ctx context.Context, kind string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.coverage, kind)
	delete(f.coverage, "")
	f.invalidated = append(f.invalidated, kind)
	return nil
}

// fakeImageRepo — in-memory реализация ImageRepository.
type fakeImageRepo struct {
	mu     sync.Mutex
	images map[string][]byte
	err    error
}

func newFakeImageRepo() *fakeImageRepo {
	return &fakeImageRepo{images: make(map[string][]byte)}
}

func (f *fakeImageRepo) Fetch(ctx context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}

	data, ok := f.images[key]
	if !ok {
		return nil, fmt.Errorf("object %s not found", key)
	}

	return data, nil
}

// fakeProvider отвечает векторами правильной размерности; ошибки настраиваются по типу.
type fakeProvider struct {
	mu      sync.Mutex
	errs    map[domain.EmbeddingType]error
	vectors map[domain.EmbeddingType][]float32
	calls   map[domain.EmbeddingType]int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		errs:    make(map[domain.EmbeddingType]error),
		vectors: make(map[domain.EmbeddingType][]float32),
		calls:   make(map[domain.EmbeddingType]int),
	}
}

func (f *fakeProvider) Embed(ctx context.Context, t domain.EmbeddingType, input *EmbedInput) (*EmbedResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[t]++

	if err, ok := f.errs[t]; ok {
		return nil, err
	}

	if vec, ok := f.vectors[t]; ok {
		return NewEmbedResult(vec, "fake-"+string(t), nil), nil
	}

	spec, err := domain.Spec(t)
	if err != nil {
		return nil, err
	}

	vec := make([]float32, spec.Dim)
	for i := range vec {
		vec[i] = 1
	}

	return NewEmbedResult(vec, "fake-"+string(t), nil), nil
}

func (f *fakeProvider) callCount(t domain.EmbeddingType) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[t]
}

func (f *fakeProvider) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.calls {
		total += n
	}

	return total
}

// fakeProducer накапливает опубликованные события.
type fakeProducer struct {
	mu     sync.Mutex
	events []*GenerationEvent
	err    error
}

func (f *fakeProducer) WriteGenerationEvent(ctx context.Context, event *GenerationEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}

	f.events = append(f.events, event)
	return nil
}

func (f *fakeProducer) eventCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}
