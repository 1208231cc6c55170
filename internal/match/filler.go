package match

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/qinqiang2000/RedBlueMatcher/internal/domain"
)

// flushChunkSize is the maximum number of match records accumulated
// before an intermediate flush (§4.D, §6).
const flushChunkSize = 1000

// fillSKU walks candidates in order, consuming min(candidate.remaining,
// remaining need) per step, and returns the match records to emit for
// this SKU along with the amount actually matched. It mutates registry
// in place; the caller adds the returned matched amount to its per-SKU
// matched total.
func fillSKU(bill *domain.BillHeader, repLine domain.BillLine, target decimal.Decimal, already decimal.Decimal, candidates []domain.InvoiceLine, registry *PreferredRegistry, now time.Time) (records []domain.MatchRecord, matched decimal.Decimal) {
	remaining := target.Sub(already)
	matched = decimal.Zero
	if remaining.Sign() <= 0 {
		return nil, matched
	}

	for _, c := range candidates {
		if remaining.Sign() <= 0 {
			break
		}
		use := c.RemainingAmount
		if use.Cmp(remaining) > 0 {
			use = remaining
		}
		if use.Sign() <= 0 {
			continue
		}

		records = append(records, domain.MatchRecord{
			BillID:           bill.ID,
			TenantID:         bill.TenantID,
			BuyerTaxNo:       bill.BuyerTaxNo,
			SellerTaxNo:      bill.SellerTaxNo,
			SKU:              repLine.SKU,
			InvoiceID:        c.InvoiceID,
			InvoiceLineID:    c.LineID,
			BillAmount:       repLine.Amount,
			InvoiceAmount:    c.RemainingAmount,
			MatchAmount:      use,
			BillUnitPrice:    repLine.UnitPrice,
			BillQuantity:     repLine.Quantity,
			InvoiceUnitPrice: c.UnitPrice,
			InvoiceQuantity:  c.Quantity,
			InvoiceQuantity2: c.Quantity,
			MatchedAt:        now,
		})

		registry.Add(c.InvoiceID)
		matched = matched.Add(use)
		remaining = remaining.Sub(use)
	}

	return records, matched
}
