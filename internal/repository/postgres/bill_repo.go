package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/qinqiang2000/RedBlueMatcher/internal/domain"
	"github.com/qinqiang2000/RedBlueMatcher/internal/port"
)

type billRepo struct {
	db *sqlx.DB
}

// NewBillRepo creates a new PostgreSQL-backed BillRepository.
func NewBillRepo(db *sqlx.DB) port.BillRepository {
	return &billRepo{db: db}
}

func (r *billRepo) GetBill(ctx context.Context, tenantID, billID string) (*domain.BillHeader, error) {
	var h domain.BillHeader
	err := r.db.GetContext(ctx, &h,
		`SELECT id, tenant_id, buyer_tax_no, seller_tax_no
		 FROM bills
		 WHERE tenant_id = $1 AND id = $2`,
		tenantID, billID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrBillNotFound
		}
		return nil, fmt.Errorf("bill_repo.GetBill: %w", err)
	}
	return &h, nil
}

func (r *billRepo) ListBillLines(ctx context.Context, tenantID, billID string) ([]domain.BillLine, error) {
	var lines []domain.BillLine
	err := r.db.SelectContext(ctx, &lines,
		`SELECT bill_id, line_id, sku, amount, quantity, unit_price
		 FROM bill_lines
		 WHERE tenant_id = $1 AND bill_id = $2`,
		tenantID, billID)
	if err != nil {
		return nil, fmt.Errorf("bill_repo.ListBillLines: %w", err)
	}
	return lines, nil
}
