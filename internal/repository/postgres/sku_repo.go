package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/qinqiang2000/RedBlueMatcher/internal/port"
)

type skuRepo struct {
	db *sqlx.DB
}

// NewSKURepo creates a new PostgreSQL-backed SKURepository.
func NewSKURepo(db *sqlx.DB) port.SKURepository {
	return &skuRepo{db: db}
}

func (r *skuRepo) Get(ctx context.Context, code string) (*port.SKUMetadata, bool, error) {
	var m port.SKUMetadata
	err := r.db.GetContext(ctx, &m, `SELECT code, description, unit, quantity_scale FROM sku_metadata WHERE code = $1`, code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("sku_repo.Get: %w", err)
	}
	return &m, true, nil
}

func (r *skuRepo) Upsert(ctx context.Context, entries []port.SKUMetadata) error {
	if len(entries) == 0 {
		return nil
	}
	const q = `
		INSERT INTO sku_metadata (code, description, unit, quantity_scale)
		VALUES (:code, :description, :unit, :quantity_scale)
		ON CONFLICT (code) DO UPDATE SET
			description = EXCLUDED.description,
			unit = EXCLUDED.unit,
			quantity_scale = EXCLUDED.quantity_scale`
	if _, err := r.db.NamedExecContext(ctx, q, entries); err != nil {
		return fmt.Errorf("sku_repo.Upsert: %w", err)
	}
	return nil
}
