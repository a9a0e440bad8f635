package repo

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/srlee0408/voguedrop-sub005/internal/domain"
)

// EffectRepositoryPG implements domain.EffectRepository.
type EffectRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewEffectRepository creates a new effect repository backed by PostgreSQL.
func NewEffectRepository(pool *pgxpool.Pool) *EffectRepositoryPG {
	return &EffectRepositoryPG{pool: pool}
}

// List returns the effect library in display order.
func (r *EffectRepositoryPG) List(ctx context.Context) ([]domain.Effect, error) {
	query := `
SELECT id, name, category, prompt, display_order
FROM effects
ORDER BY display_order, name;
`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var effects []domain.Effect
	for rows.Next() {
		var e domain.Effect
		if err := rows.Scan(&e.ID, &e.Name, &e.Category, &e.Prompt, &e.DisplayOrder); err != nil {
			return nil, err
		}
		effects = append(effects, e)
	}
	return effects, rows.Err()
}

// GetByIDs resolves selected effect ids. Missing ids surface as
// domain.ErrUnknownEffect so submissions referencing stale effects fail fast.
func (r *EffectRepositoryPG) GetByIDs(ctx context.Context, ids []string) ([]domain.Effect, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `
SELECT id, name, category, prompt, display_order
FROM effects
WHERE id = ANY($1);
`
	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	found := make(map[string]domain.Effect, len(ids))
	for rows.Next() {
		var e domain.Effect
		if err := rows.Scan(&e.ID, &e.Name, &e.Category, &e.Prompt, &e.DisplayOrder); err != nil {
			return nil, err
		}
		found[e.ID] = e
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	effects := make([]domain.Effect, 0, len(ids))
	for _, id := range ids {
		e, ok := found[id]
		if !ok {
			return nil, domain.ErrUnknownEffect
		}
		effects = append(effects, e)
	}
	return effects, nil
}

var _ domain.EffectRepository = (*EffectRepositoryPG)(nil)
