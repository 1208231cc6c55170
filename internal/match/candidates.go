package match

import (
	"context"
	"fmt"

	"github.com/qinqiang2000/RedBlueMatcher/internal/domain"
	"github.com/qinqiang2000/RedBlueMatcher/internal/port"
)

// preferredPageSize is the maximum number of invoice ids sent to a
// single MatchOnInvoices call (§4.C, §6).
const preferredPageSize = 1000

type candidateKey struct {
	invoiceID string
	lineID    string
}

// BuildCandidates produces the ordered, deduplicated candidate
// sequence for one SKU: the preferred slice (invoice ids already in
// registry, paged at 1000, amount ascending) followed by the general
// slice (amount descending), first-seen deduplicated by (invoice id,
// line id).
func BuildCandidates(ctx context.Context, pool port.CandidatePoolRepository, tenantID string, bill *domain.BillHeader, sku string, registry *PreferredRegistry) ([]domain.InvoiceLine, error) {
	seen := make(map[candidateKey]struct{})
	out := make([]domain.InvoiceLine, 0)

	for _, chunk := range registry.Chunks(preferredPageSize) {
		preferred, err := pool.MatchOnInvoices(ctx, tenantID, bill.BuyerTaxNo, bill.SellerTaxNo, sku, chunk)
		if err != nil {
			return nil, fmt.Errorf("match: preferred candidates for %q: %w", sku, domain.ErrCandidateQueryFailed)
		}
		for _, c := range preferred {
			k := candidateKey{c.InvoiceID, c.LineID}
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, c)
		}
	}

	general, err := pool.MatchByTaxAndProduct(ctx, tenantID, bill.BuyerTaxNo, bill.SellerTaxNo, sku)
	if err != nil {
		return nil, fmt.Errorf("match: general candidates for %q: %w", sku, domain.ErrCandidateQueryFailed)
	}
	for _, c := range general {
		k := candidateKey{c.InvoiceID, c.LineID}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, c)
	}

	return out, nil
}
