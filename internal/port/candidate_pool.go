package port

import (
	"context"

	"github.com/qinqiang2000/RedBlueMatcher/internal/domain"
)

// BillRepository loads the bill headers and line items the matching
// engine operates on.
type BillRepository interface {
	// GetBill returns a bill's header, or domain.ErrBillNotFound.
	GetBill(ctx context.Context, tenantID, billID string) (*domain.BillHeader, error)
	// ListBillLines returns a bill's line items in storage order; the
	// ranker re-orders them, so callers must not rely on this order.
	ListBillLines(ctx context.Context, tenantID, billID string) ([]domain.BillLine, error)
}

// CandidatePoolRepository is the candidate-pool interface the engine
// consumes: scarcity statistics and the two-tier candidate queries.
// All three read operations must filter to invoice lines whose
// remaining amount is strictly positive and whose parent invoice
// satisfies the store's positivity predicate.
type CandidatePoolRepository interface {
	// StatForProduct returns the count and total remaining amount of
	// candidate lines for (buyerTax, sellerTax, sku).
	StatForProduct(ctx context.Context, tenantID, buyerTax, sellerTax, sku string) (domain.CandidateStat, error)
	// MatchByTaxAndProduct returns all candidate lines for (buyerTax,
	// sellerTax, sku), ordered by remaining amount descending.
	MatchByTaxAndProduct(ctx context.Context, tenantID, buyerTax, sellerTax, sku string) ([]domain.InvoiceLine, error)
	// MatchOnInvoices returns candidate lines for (buyerTax, sellerTax,
	// sku) restricted to invoiceIDs, ordered by remaining amount
	// ascending. invoiceIDs must contain at most 1000 entries; callers
	// page larger registries themselves.
	MatchOnInvoices(ctx context.Context, tenantID, buyerTax, sellerTax, sku string, invoiceIDs []string) ([]domain.InvoiceLine, error)
}

// MatchRecordRepository persists emitted match records.
type MatchRecordRepository interface {
	// InsertMatchRecords atomically persists up to 1000 records.
	InsertMatchRecords(ctx context.Context, records []domain.MatchRecord) error
	// ListByBillIDs returns every record emitted for the given bills,
	// used to assemble the exported workbook for a finished run.
	ListByBillIDs(ctx context.Context, tenantID string, billIDs []string) ([]domain.MatchRecord, error)
}
