package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/materia-tech/vector-backend/internal/cfg"
	"github.com/materia-tech/vector-backend/internal/usecase"
	"github.com/materia-tech/vector-backend/pkg/clients"
	"github.com/materia-tech/vector-backend/pkg/e"
	"github.com/materia-tech/vector-backend/pkg/logger"
	"github.com/jimlawless/whereami"
	r "github.com/redis/go-redis/v9"
)

// CacheRepo кэширует векторы ad-hoc запросов и отчёты покрытия в Redis.
// Кэш вспомогательный: промахи и повреждённые значения не ломают запрос.
type CacheRepo struct {
	client *clients.RedisClient
	cfg    *cfg.RedisCfg
	logger logger.Logger
}

func NewCacheRepo(client *clients.RedisClient, cfg *cfg.RedisCfg, logger logger.Logger) *CacheRepo {
	return &CacheRepo{
		client: client,
		cfg:    cfg,
		logger: logger,
	}
}

// GetQueryVector возвращает закэшированный вектор ad-hoc запроса. Промах — не ошибка вызова.
func (c *CacheRepo) GetQueryVector(ctx context.Context, key string) ([]float32, error) {
	data, err := c.client.Client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, r.Nil) {
			return nil, nil // cache miss
		}
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	var vector []float32
	if err := json.Unmarshal(data, &vector); err != nil {
		c.logger.Warnf("Redis query vector unmarshal failed: %v", e.Wrap(whereami.WhereAmI(), err))
		return nil, nil // повреждённое значение эквивалентно промаху
	}

	return vector, nil
}

// SetQueryVector кэширует вектор ad-hoc запроса с TTL из конфигурации.
func (c *CacheRepo) SetQueryVector(ctx context.Context, key string, vector []float32) error {
	data, err := json.Marshal(vector)
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	if err := c.client.Client.Set(ctx, key, data, c.cfg.QueryVectorTTL).Err(); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}

// GetCoverage возвращает закэшированный отчёт покрытия для области kind.
func (c *CacheRepo) GetCoverage(ctx context.Context, kind string) (*usecase.CoverageReport, error) {
	data, err := c.client.Client.Get(ctx, coverageKey(kind)).Bytes()
	if err != nil {
		if errors.Is(err, r.Nil) {
			return nil, nil // cache miss
		}
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	var report usecase.CoverageReport
	if err := json.Unmarshal(data, &report); err != nil {
		c.logger.Warnf("Redis coverage unmarshal failed: %v", e.Wrap(whereami.WhereAmI(), err))
		return nil, nil
	}

	return &report, nil
}

// SetCoverage кэширует отчёт покрытия с коротким TTL.
func (c *CacheRepo) SetCoverage(ctx context.Context, report *usecase.CoverageReport) error {
	data, err := json.Marshal(report)
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	if err := c.client.Client.Set(ctx, coverageKey(report.Kind), data, c.cfg.CoverageTTL).Err(); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}

// InvalidateCoverage сбрасывает отчёты покрытия после генерации: и область kind,
// и сводный отчёт по всем видам.
func (c *CacheRepo) InvalidateCoverage(ctx context.Context, kind string) error {
	keys := []string{coverageKey(kind)}
	if kind != "" {
		keys = append(keys, coverageKey(""))
	}

	if err := c.client.Client.Del(ctx, keys...).Err(); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}

// coverageKey возвращает Redis-ключ отчёта покрытия для области kind.
func coverageKey(kind string) string {
	if kind == "" {
		return "coverage:all"
	}

	return fmt.Sprintf("coverage:%s", kind)
}
