package clients

import (
	"context"
	"fmt"
	"time"

	config "github.com/materia-tech/vector-backend/internal/cfg"
	"github.com/materia-tech/vector-backend/internal/domain"
	"github.com/materia-tech/vector-backend/pkg/e"
	"github.com/jimlawless/whereami"
	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/keepalive"
)

type QdrantClient struct {
	Client *qdrant.Client
	cfg    *config.QdrantCfg
}

func NewQdrantClient(cfg *config.QdrantCfg) (*QdrantClient, error) {
	qdrantClient, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.ApiKey,
		UseTLS: cfg.UseTLS,
		GrpcOptions: []grpc.DialOption{
			grpc.WithKeepaliveParams(keepalive.ClientParameters{
				Time:                30 * time.Second,
				Timeout:             10 * time.Second,
				PermitWithoutStream: true,
			}),
		},
	})
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return &QdrantClient{
		Client: qdrantClient,
		cfg:    cfg,
	}, nil
}

// CollectionName возвращает имя коллекции для типа вектора: по коллекции на тип.
func (c *QdrantClient) CollectionName(t domain.EmbeddingType) string {
	return fmt.Sprintf("%s_%s", c.cfg.CollectionPrefix, t)
}

// EnsureCollections создаёт недостающие коллекции, по одной на тип вектора,
// с размерностью типа и косинусной метрикой.
func EnsureCollections(ctx context.Context, client *QdrantClient) error {
	for _, t := range domain.AllTypes() {
		spec, err := domain.Spec(t)
		if err != nil {
			return e.Wrap(whereami.WhereAmI(), err)
		}

		name := client.CollectionName(t)
		exists, err := client.Client.CollectionExists(ctx, name)
		if err != nil {
			return fmt.Errorf("failed to check collection %s: %w", name, err)
		}
		if exists {
			continue
		}

		if err := client.Client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: name,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(spec.Dim),
				Distance: qdrant.Distance_Cosine,
			}),
		}); err != nil {
			return fmt.Errorf("failed to create collection %s: %w", name, err)
		}
	}

	return nil
}
