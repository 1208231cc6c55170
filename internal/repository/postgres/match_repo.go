package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/qinqiang2000/RedBlueMatcher/internal/domain"
	"github.com/qinqiang2000/RedBlueMatcher/internal/port"
)

type matchRepo struct {
	db *sqlx.DB
}

// NewMatchRepo creates a new PostgreSQL-backed MatchRecordRepository.
func NewMatchRepo(db *sqlx.DB) port.MatchRecordRepository {
	return &matchRepo{db: db}
}

const insertMatchRecordsSQL = `
	INSERT INTO match_records (
		bill_id, tenant_id, buyer_tax_no, seller_tax_no, sku,
		invoice_id, invoice_line_id, bill_amount, invoice_amount, match_amount,
		bill_unit_price, bill_quantity, invoice_unit_price, invoice_quantity, invoice_quantity_2, matched_at
	) VALUES (
		:bill_id, :tenant_id, :buyer_tax_no, :seller_tax_no, :sku,
		:invoice_id, :invoice_line_id, :bill_amount, :invoice_amount, :match_amount,
		:bill_unit_price, :bill_quantity, :invoice_unit_price, :invoice_quantity, :invoice_quantity_2, :matched_at
	)`

// InsertMatchRecords persists up to 1000 records in a single statement,
// per §6's write operation contract. Larger batches are the caller's
// responsibility to chunk (see internal/match.Engine).
func (r *matchRepo) InsertMatchRecords(ctx context.Context, records []domain.MatchRecord) error {
	if len(records) == 0 {
		return nil
	}
	if _, err := r.db.NamedExecContext(ctx, insertMatchRecordsSQL, records); err != nil {
		return fmt.Errorf("match_repo.InsertMatchRecords: %w", err)
	}
	return nil
}

const listMatchRecordsByBillIDsSQL = `
	SELECT bill_id, tenant_id, buyer_tax_no, seller_tax_no, sku,
	       invoice_id, invoice_line_id, bill_amount, invoice_amount, match_amount,
	       bill_unit_price, bill_quantity, invoice_unit_price, invoice_quantity, invoice_quantity_2, matched_at
	FROM match_records
	WHERE tenant_id = $1 AND bill_id = ANY($2)
	ORDER BY bill_id, matched_at`

// ListByBillIDs returns every record emitted for billIDs, for workbook export.
func (r *matchRepo) ListByBillIDs(ctx context.Context, tenantID string, billIDs []string) ([]domain.MatchRecord, error) {
	if len(billIDs) == 0 {
		return nil, nil
	}
	var records []domain.MatchRecord
	if err := r.db.SelectContext(ctx, &records, listMatchRecordsByBillIDsSQL, tenantID, pq.StringArray(billIDs)); err != nil {
		return nil, fmt.Errorf("match_repo.ListByBillIDs: %w", err)
	}
	return records, nil
}
