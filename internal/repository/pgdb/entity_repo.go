package pgdb

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/materia-tech/vector-backend/internal/domain"
	"github.com/materia-tech/vector-backend/internal/usecase"
	"github.com/materia-tech/vector-backend/pkg/e"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jimlawless/whereami"
)

// EntityRepo реализует доступ к каноническим полям сущностей каталога поверх PostgreSQL.
// Таблицу entities наполняют внешние коллабораторы; здесь только чтения.
type EntityRepo struct {
	pool *pgxpool.Pool
}

func NewEntityRepo(pool *pgxpool.Pool) *EntityRepo {
	return &EntityRepo{
		pool: pool,
	}
}

// GetFields возвращает канонические поля сущности для сборки входов генерации.
func (r *EntityRepo) GetFields(ctx context.Context, ref domain.EntityRef) (*domain.EntityFields, error) {
	query := `
		SELECT kind, id, name, description, category, price_cents,
		       image_key, colors, texture_label, application_label, created_at
		FROM entities
		WHERE kind = $1 AND id = $2
	`

	fields := domain.EntityFields{}
	err := r.pool.QueryRow(ctx, query, ref.Kind, ref.ID).Scan(
		&fields.Ref.Kind, &fields.Ref.ID, &fields.Name, &fields.Description,
		&fields.Category, &fields.PriceCents, &fields.ImageKey, &fields.Colors,
		&fields.TextureLabel, &fields.ApplicationLabel, &fields.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, e.Wrap(ref.Key(), e.ErrEntityNotFound)
		}
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return &fields, nil
}

// QueryCandidates применяет область kind и несемантические фильтры
// (категории, диапазон цены, диапазон дат) до любого векторного скоринга.
func (r *EntityRepo) QueryCandidates(ctx context.Context, kind string, filters *usecase.CandidateFilters) ([]domain.Candidate, error) {
	conditions := []string{"kind = $1"}
	args := []any{kind}

	if filters != nil {
		if len(filters.Categories) > 0 {
			args = append(args, filters.Categories)
			conditions = append(conditions, fmt.Sprintf("category = ANY($%d)", len(args)))
		}
		if filters.PriceMinCents != nil {
			args = append(args, *filters.PriceMinCents)
			conditions = append(conditions, fmt.Sprintf("price_cents >= $%d", len(args)))
		}
		if filters.PriceMaxCents != nil {
			args = append(args, *filters.PriceMaxCents)
			conditions = append(conditions, fmt.Sprintf("price_cents <= $%d", len(args)))
		}
		if filters.DateFrom != nil {
			args = append(args, *filters.DateFrom)
			conditions = append(conditions, fmt.Sprintf("created_at >= $%d", len(args)))
		}
		if filters.DateTo != nil {
			args = append(args, *filters.DateTo)
			conditions = append(conditions, fmt.Sprintf("created_at <= $%d", len(args)))
		}
	}

	// Стабильный порядок кандидатов — часть гарантии детерминизма выдачи.
	query := fmt.Sprintf(`
		SELECT kind, id, category, price_cents, created_at
		FROM entities
		WHERE %s
		ORDER BY id
	`, strings.Join(conditions, " AND "))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	defer rows.Close()

	candidates := make([]domain.Candidate, 0)
	for rows.Next() {
		var c domain.Candidate
		if err := rows.Scan(&c.Ref.Kind, &c.Ref.ID, &c.Category, &c.PriceCents, &c.CreatedAt); err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}

		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return candidates, nil
}
