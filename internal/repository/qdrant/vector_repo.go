package qdrant

import (
	"context"

	"github.com/materia-tech/vector-backend/internal/domain"
	"github.com/materia-tech/vector-backend/internal/usecase"
	"github.com/materia-tech/vector-backend/pkg/clients"
	"github.com/materia-tech/vector-backend/pkg/e"
	"github.com/google/uuid"
	"github.com/jimlawless/whereami"
	"github.com/qdrant/go-client/qdrant"
)

// VectorRepo хранит embedding-векторы в Qdrant: по коллекции на тип вектора,
// точка имеет детерминированный UUID от (kind, id, type), поэтому повторная
// генерация перезаписывает точку (last write wins).
type VectorRepo struct {
	client *clients.QdrantClient
}

func NewVectorRepo(client *clients.QdrantClient) *VectorRepo {
	return &VectorRepo{
		client: client,
	}
}

// Upsert сохраняет вектор записи в коллекцию её типа и возвращает ID точки.
func (q *VectorRepo) Upsert(ctx context.Context, record *domain.EmbeddingRecord) (string, error) {
	if err := record.Validate(); err != nil {
		return "", e.Wrap(whereami.WhereAmI(), err)
	}

	pointID := PointID(record.Entity, record.Type)

	payload := map[string]any{
		"entity_kind":   record.Entity.Kind,
		"entity_id":     record.Entity.ID,
		"entity_key":    record.Entity.Key(),
		"model_version": record.ModelVersion,
		"generated_at":  record.GeneratedAt.UnixNano(),
	}
	if record.Confidence != nil {
		payload["confidence"] = *record.Confidence
	}

	_, err := q.client.Client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.client.CollectionName(record.Type),
		Points: []*qdrant.PointStruct{
			{
				Id:      qdrant.NewIDUUID(pointID),
				Vectors: qdrant.NewVectors(record.Vector...),
				Payload: qdrant.NewValueMap(payload),
			},
		},
	})
	if err != nil {
		return "", e.Wrap(whereami.WhereAmI(), err)
	}

	return pointID, nil
}

// GetVectors возвращает разреженную карту векторов кандидатов по типам.
// Отсутствующие точки просто не попадают в результат — это не ошибка.
func (q *VectorRepo) GetVectors(ctx context.Context, refs []domain.EntityRef, types []domain.EmbeddingType) (map[string]map[domain.EmbeddingType][]float32, error) {
	result := make(map[string]map[domain.EmbeddingType][]float32, len(refs))

	for _, t := range types {
		ids := make([]*qdrant.PointId, 0, len(refs))
		refByPoint := make(map[string]domain.EntityRef, len(refs))
		for _, ref := range refs {
			pid := PointID(ref, t)
			ids = append(ids, qdrant.NewIDUUID(pid))
			refByPoint[pid] = ref
		}

		points, err := q.client.Client.Get(ctx, &qdrant.GetPoints{
			CollectionName: q.client.CollectionName(t),
			Ids:            ids,
			WithVectors:    qdrant.NewWithVectors(true),
		})
		if err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}

		for _, p := range points {
			ref, ok := refByPoint[p.GetId().GetUuid()]
			if !ok {
				continue
			}

			vector := p.GetVectors().GetVector().GetData()
			if len(vector) == 0 {
				continue
			}

			key := ref.Key()
			if result[key] == nil {
				result[key] = make(map[domain.EmbeddingType][]float32, len(types))
			}
			result[key][t] = vector
		}
	}

	return result, nil
}

// QueryNearest выполняет нативный косинусный поиск Qdrant по одному типу,
// ограниченный точками заданных кандидатов. Score коллекции с косинусной
// метрикой — уже сходство, без пересчёта.
func (q *VectorRepo) QueryNearest(ctx context.Context, t domain.EmbeddingType, vector []float32, allowed []domain.EntityRef, limit int) ([]usecase.ScoredRef, error) {
	if err := domain.ValidateVector(t, vector); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	ids := make([]*qdrant.PointId, 0, len(allowed))
	refByPoint := make(map[string]domain.EntityRef, len(allowed))
	for _, ref := range allowed {
		pid := PointID(ref, t)
		ids = append(ids, qdrant.NewIDUUID(pid))
		refByPoint[pid] = ref
	}

	points, err := q.client.Client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.client.CollectionName(t),
		Query:          qdrant.NewQuery(vector...),
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewHasID(ids...)},
		},
		Limit: qdrant.PtrOf(uint64(limit)),
	})
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	scored := make([]usecase.ScoredRef, 0, len(points))
	for _, p := range points {
		ref, ok := refByPoint[p.GetId().GetUuid()]
		if !ok {
			continue
		}

		scored = append(scored, usecase.ScoredRef{Ref: ref, Score: float64(p.GetScore())})
	}

	return scored, nil
}

// PointID возвращает детерминированный UUID точки для пары (сущность, тип).
func PointID(ref domain.EntityRef, t domain.EmbeddingType) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("vector-backend/"+ref.Key()+"/"+string(t))).String()
}
