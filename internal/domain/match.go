package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// MatchRecord is one emitted association between a bill line and a
// share of a candidate invoice line. Field names follow the columns of
// the match-records table this engine persists to.
type MatchRecord struct {
	BillID           string          `db:"bill_id"`
	TenantID         string          `db:"tenant_id"`
	BuyerTaxNo       string          `db:"buyer_tax_no"`
	SellerTaxNo      string          `db:"seller_tax_no"`
	SKU              string          `db:"sku"`
	InvoiceID        string          `db:"invoice_id"`
	InvoiceLineID    string          `db:"invoice_line_id"`
	BillAmount       decimal.Decimal `db:"bill_amount"`
	InvoiceAmount    decimal.Decimal `db:"invoice_amount"`
	MatchAmount      decimal.Decimal `db:"match_amount"`
	BillUnitPrice    decimal.Decimal `db:"bill_unit_price"`
	BillQuantity     decimal.Decimal `db:"bill_quantity"`
	InvoiceUnitPrice decimal.Decimal `db:"invoice_unit_price"`
	InvoiceQuantity  decimal.Decimal `db:"invoice_quantity"`
	// InvoiceQuantity2 duplicates InvoiceQuantity. The ground-truth
	// schema this engine's output format follows carries both
	// fnum/finvoiceqty columns set from the same source quantity; kept
	// here rather than collapsed so downstream consumers built against
	// that schema see both columns populated.
	InvoiceQuantity2 decimal.Decimal `db:"invoice_quantity_2"`
	MatchedAt        time.Time       `db:"matched_at"`
}

// MatchRunStatus tracks a BatchMatch invocation across its bills.
type MatchRunStatus string

const (
	MatchRunQueued    MatchRunStatus = "queued"
	MatchRunRunning   MatchRunStatus = "running"
	MatchRunCompleted MatchRunStatus = "completed"
	MatchRunFailed    MatchRunStatus = "failed"
)

// MatchRun is the persisted record of one BatchMatch call over a set of
// bill ids, tracked so the HTTP surface and the CLI can poll progress.
type MatchRun struct {
	ID               string          `db:"id"`
	TenantID         string          `db:"tenant_id"`
	RequestedBy      string          `db:"requested_by"`
	Status           MatchRunStatus  `db:"status"`
	BillIDs          []string        `db:"-"`
	SuccessCount     int             `db:"success_count"`
	FailureCount     int             `db:"failure_count"`
	ShortfallTotal   decimal.Decimal `db:"shortfall_total"`
	ResultObjectKey  string          `db:"result_object_key"`
	StartedAt        time.Time       `db:"started_at"`
	FinishedAt       *time.Time      `db:"finished_at"`
}
