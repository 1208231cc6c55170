package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// BillHeader identifies a red-flush bill and the tax-number pair it
// matches against. It is read-only for the duration of a match session.
type BillHeader struct {
	ID          string `db:"id"`
	TenantID    string `db:"tenant_id"`
	BuyerTaxNo  string `db:"buyer_tax_no"`
	SellerTaxNo string `db:"seller_tax_no"`
}

// BillLine is one SKU-keyed line on a bill. Amount is the absolute value
// of the signed amount stored upstream; several lines may share a SKU.
type BillLine struct {
	BillID    string          `db:"bill_id"`
	LineID    string          `db:"line_id"`
	SKU       string          `db:"sku"`
	Amount    decimal.Decimal `db:"amount"`
	Quantity  decimal.Decimal `db:"quantity"`
	UnitPrice decimal.Decimal `db:"unit_price"`
}

// BillStatus is the terminal or in-flight stage of one bill within a run.
type BillStatus string

const (
	BillStatusLoaded  BillStatus = "loaded"
	BillStatusRanked  BillStatus = "ranked"
	BillStatusMatched BillStatus = "matched"
	BillStatusFlushed BillStatus = "flushed"
	BillStatusDone    BillStatus = "done"
	BillStatusFailed  BillStatus = "failed"
)

// BillOutcome is the per-bill result of one run, persisted for the
// batch response and for operator inspection via the CLI.
type BillOutcome struct {
	RunID           string          `db:"run_id"`
	BillID          string          `db:"bill_id"`
	Status          BillStatus      `db:"status"`
	MatchedAmount   decimal.Decimal `db:"matched_amount"`
	ShortfallAmount decimal.Decimal `db:"shortfall_amount"`
	FailureReason   string          `db:"failure_reason"`
	FinishedAt      time.Time       `db:"finished_at"`
}
