package domain

import "github.com/shopspring/decimal"

// InvoiceLine is a candidate blue-invoice detail row that may be drawn
// upon to offset a bill line. Identity for deduplication is
// (InvoiceID, LineID). RemainingAmount is always positive; the
// candidate queries filter out zero or negative lines.
type InvoiceLine struct {
	InvoiceID       string          `db:"invoice_id"`
	LineID          string          `db:"line_id"`
	SKU             string          `db:"sku"`
	RemainingAmount decimal.Decimal `db:"remaining_amount"`
	Quantity        decimal.Decimal `db:"quantity"`
	UnitPrice       decimal.Decimal `db:"unit_price"`
}

// CandidateStat is the scarcity signal for one (buyer, seller, SKU)
// triple: how many candidate lines exist and their combined amount.
type CandidateStat struct {
	Count       int64           `db:"count"`
	TotalAmount decimal.Decimal `db:"total_amount"`
}
