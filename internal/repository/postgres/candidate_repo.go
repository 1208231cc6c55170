package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/qinqiang2000/RedBlueMatcher/internal/domain"
	"github.com/qinqiang2000/RedBlueMatcher/internal/port"
)

// candidatePositivityPredicate restricts every read below to invoice
// lines whose remaining amount is strictly positive and whose parent
// invoice has not been voided or zeroed out, per §6's positivity
// predicate requirement. It uses "?" placeholders so callers can run
// it through sqlx.In/Rebind alongside a variable-length IN() clause.
const candidatePositivityPredicate = `
	vii.remaining_amount > 0
	AND EXISTS (
		SELECT 1 FROM invoices vi
		WHERE vi.tenant_id = vii.tenant_id
		  AND vi.id = vii.invoice_id
		  AND vi.buyer_tax_no = ?
		  AND vi.seller_tax_no = ?
		  AND COALESCE(vi.total_amount, 0) > 0
	)`

type candidateRepo struct {
	db *sqlx.DB
}

// NewCandidateRepo creates a new PostgreSQL-backed CandidatePoolRepository.
func NewCandidateRepo(db *sqlx.DB) port.CandidatePoolRepository {
	return &candidateRepo{db: db}
}

func (r *candidateRepo) StatForProduct(ctx context.Context, tenantID, buyerTax, sellerTax, sku string) (domain.CandidateStat, error) {
	query := fmt.Sprintf(`
		SELECT COUNT(*) AS count, COALESCE(SUM(vii.remaining_amount), 0) AS total_amount
		FROM invoice_lines vii
		WHERE vii.tenant_id = ? AND vii.sku = ? AND %s`, candidatePositivityPredicate)
	query = r.db.Rebind(query)

	var stat domain.CandidateStat
	err := r.db.GetContext(ctx, &stat, query, tenantID, sku, buyerTax, sellerTax)
	if err != nil {
		return domain.CandidateStat{}, fmt.Errorf("candidate_repo.StatForProduct: %w", err)
	}
	return stat, nil
}

func (r *candidateRepo) MatchByTaxAndProduct(ctx context.Context, tenantID, buyerTax, sellerTax, sku string) ([]domain.InvoiceLine, error) {
	query := fmt.Sprintf(`
		SELECT vii.invoice_id, vii.line_id, vii.sku, vii.remaining_amount, vii.quantity, vii.unit_price
		FROM invoice_lines vii
		WHERE vii.tenant_id = ? AND vii.sku = ? AND %s
		ORDER BY vii.remaining_amount DESC`, candidatePositivityPredicate)
	query = r.db.Rebind(query)

	var lines []domain.InvoiceLine
	err := r.db.SelectContext(ctx, &lines, query, tenantID, sku, buyerTax, sellerTax)
	if err != nil {
		return nil, fmt.Errorf("candidate_repo.MatchByTaxAndProduct: %w", err)
	}
	return lines, nil
}

func (r *candidateRepo) MatchOnInvoices(ctx context.Context, tenantID, buyerTax, sellerTax, sku string, invoiceIDs []string) ([]domain.InvoiceLine, error) {
	if len(invoiceIDs) == 0 {
		return nil, nil
	}
	base := fmt.Sprintf(`
		SELECT vii.invoice_id, vii.line_id, vii.sku, vii.remaining_amount, vii.quantity, vii.unit_price
		FROM invoice_lines vii
		WHERE vii.tenant_id = ? AND vii.sku = ? AND %s AND vii.invoice_id IN (?)
		ORDER BY vii.remaining_amount ASC`, candidatePositivityPredicate)

	query, args, err := sqlx.In(base, tenantID, sku, buyerTax, sellerTax, invoiceIDs)
	if err != nil {
		return nil, fmt.Errorf("candidate_repo.MatchOnInvoices: expanding ids: %w", err)
	}
	query = r.db.Rebind(query)

	var lines []domain.InvoiceLine
	if err := r.db.SelectContext(ctx, &lines, query, args...); err != nil {
		return nil, fmt.Errorf("candidate_repo.MatchOnInvoices: %w", err)
	}
	return lines, nil
}
