package pgdb

import (
	"context"
	"time"

	"github.com/materia-tech/vector-backend/internal/domain"
	"github.com/materia-tech/vector-backend/internal/usecase"
	"github.com/materia-tech/vector-backend/pkg/e"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jimlawless/whereami"
)

// RecordRepo хранит метаданные embedding-записей в PostgreSQL.
// Сами векторы лежат в Qdrant; здесь — модель, момент генерации, confidence
// и ID точки. Отсутствие строки означает, что вектор ещё не сгенерирован.
type RecordRepo struct {
	pool *pgxpool.Pool
}

func NewRecordRepo(pool *pgxpool.Pool) *RecordRepo {
	return &RecordRepo{
		pool: pool,
	}
}

// UpsertMeta идемпотентно сохраняет метаданные записи. Повторная генерация
// перезаписывает строку: последняя запись по (сущность, тип) выигрывает.
func (r *RecordRepo) UpsertMeta(ctx context.Context, meta *domain.RecordMeta) error {
	query := `
		INSERT INTO embedding_records
			(entity_kind, entity_id, embedding_type, point_id, model_version, generated_at, confidence)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (entity_kind, entity_id, embedding_type)
		DO UPDATE SET
			point_id = EXCLUDED.point_id,
			model_version = EXCLUDED.model_version,
			generated_at = EXCLUDED.generated_at,
			confidence = EXCLUDED.confidence
	`

	_, err := r.pool.Exec(ctx, query,
		meta.Entity.Kind, meta.Entity.ID, string(meta.Type),
		meta.PointID, meta.ModelVersion, meta.GeneratedAt, meta.Confidence,
	)
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}

// GetMeta возвращает метаданные всех записей сущности по типам.
func (r *RecordRepo) GetMeta(ctx context.Context, ref domain.EntityRef) (map[domain.EmbeddingType]domain.RecordMeta, error) {
	query := `
		SELECT embedding_type, point_id, model_version, generated_at, confidence
		FROM embedding_records
		WHERE entity_kind = $1 AND entity_id = $2
	`

	rows, err := r.pool.Query(ctx, query, ref.Kind, ref.ID)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	defer rows.Close()

	result := make(map[domain.EmbeddingType]domain.RecordMeta)
	for rows.Next() {
		var (
			typeStr string
			meta    domain.RecordMeta
		)
		if err := rows.Scan(&typeStr, &meta.PointID, &meta.ModelVersion, &meta.GeneratedAt, &meta.Confidence); err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}

		t, err := domain.ParseEmbeddingType(typeStr)
		if err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}

		meta.Entity = ref
		meta.Type = t
		result[t] = meta
	}
	if err := rows.Err(); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return result, nil
}

// ExistingTypes возвращает подмножество types с существующей записью у сущности.
func (r *RecordRepo) ExistingTypes(ctx context.Context, ref domain.EntityRef, types []domain.EmbeddingType) (map[domain.EmbeddingType]bool, error) {
	query := `
		SELECT embedding_type
		FROM embedding_records
		WHERE entity_kind = $1 AND entity_id = $2 AND embedding_type = ANY($3)
	`

	rows, err := r.pool.Query(ctx, query, ref.Kind, ref.ID, typesToStrings(types))
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	defer rows.Close()

	existing := make(map[domain.EmbeddingType]bool, len(types))
	for rows.Next() {
		var typeStr string
		if err := rows.Scan(&typeStr); err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}

		existing[domain.EmbeddingType(typeStr)] = true
	}
	if err := rows.Err(); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return existing, nil
}

// GetMetaForCandidates возвращает разреженную карту метаданных для набора кандидатов.
func (r *RecordRepo) GetMetaForCandidates(ctx context.Context, refs []domain.EntityRef, types []domain.EmbeddingType) (map[string]map[domain.EmbeddingType]domain.RecordMeta, error) {
	if len(refs) == 0 || len(types) == 0 {
		return map[string]map[domain.EmbeddingType]domain.RecordMeta{}, nil
	}

	kinds := make([]string, len(refs))
	ids := make([]string, len(refs))
	for i, ref := range refs {
		kinds[i] = ref.Kind
		ids[i] = ref.ID
	}

	query := `
		SELECT r.entity_kind, r.entity_id, r.embedding_type,
		       r.point_id, r.model_version, r.generated_at, r.confidence
		FROM embedding_records r
		JOIN unnest($1::text[], $2::text[]) AS u(kind, id)
			ON r.entity_kind = u.kind AND r.entity_id = u.id
		WHERE r.embedding_type = ANY($3)
	`

	rows, err := r.pool.Query(ctx, query, kinds, ids, typesToStrings(types))
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	defer rows.Close()

	result := make(map[string]map[domain.EmbeddingType]domain.RecordMeta)
	for rows.Next() {
		var (
			meta    domain.RecordMeta
			typeStr string
		)
		if err := rows.Scan(
			&meta.Entity.Kind, &meta.Entity.ID, &typeStr,
			&meta.PointID, &meta.ModelVersion, &meta.GeneratedAt, &meta.Confidence,
		); err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}

		meta.Type = domain.EmbeddingType(typeStr)
		key := meta.Entity.Key()
		if result[key] == nil {
			result[key] = make(map[domain.EmbeddingType]domain.RecordMeta)
		}
		result[key][meta.Type] = meta
	}
	if err := rows.Err(); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return result, nil
}

// Coverage агрегирует долю сущностей с записью по каждому типу вектора.
// kind = "" — по всем видам сущностей. Только чтение, без побочных эффектов.
func (r *RecordRepo) Coverage(ctx context.Context, kind string) (*usecase.CoverageReport, error) {
	var total int64
	totalQuery := `SELECT COUNT(*) FROM entities WHERE ($1 = '' OR kind = $1)`
	if err := r.pool.QueryRow(ctx, totalQuery, kind).Scan(&total); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	query := `
		SELECT r.embedding_type, COUNT(*)
		FROM embedding_records r
		JOIN entities en ON en.kind = r.entity_kind AND en.id = r.entity_id
		WHERE ($1 = '' OR en.kind = $1)
		GROUP BY r.embedding_type
	`

	rows, err := r.pool.Query(ctx, query, kind)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	defer rows.Close()

	report := &usecase.CoverageReport{
		Kind:          kind,
		TotalEntities: total,
		ByType:        make(map[domain.EmbeddingType]usecase.CoverageStat, len(domain.AllTypes())),
		GeneratedAt:   time.Now().UTC(),
	}
	for _, t := range domain.AllTypes() {
		report.ByType[t] = usecase.CoverageStat{}
	}

	for rows.Next() {
		var (
			typeStr string
			count   int64
		)
		if err := rows.Scan(&typeStr, &count); err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}

		t, err := domain.ParseEmbeddingType(typeStr)
		if err != nil {
			// Записи устаревших типов не ломают отчёт.
			continue
		}

		stat := usecase.CoverageStat{WithRecord: count}
		if total > 0 {
			stat.Fraction = float64(count) / float64(total)
		}
		report.ByType[t] = stat
	}
	if err := rows.Err(); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return report, nil
}

func typesToStrings(types []domain.EmbeddingType) []string {
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = string(t)
	}

	return out
}
