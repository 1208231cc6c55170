package match

import (
	"context"
	"fmt"
	"sort"

	"github.com/qinqiang2000/RedBlueMatcher/internal/domain"
	"github.com/qinqiang2000/RedBlueMatcher/internal/port"
)

// skuRank holds one SKU's scarcity signal for sorting.
type skuRank struct {
	sku   string
	stat  domain.CandidateStat
	lines []domain.BillLine
}

// Rank orders a bill's lines scarcity-first: for each distinct SKU it
// queries candidate-pool statistics, then sorts SKUs by (count asc,
// total amount asc, sku asc), and finally flattens back into a bill
// line sequence where lines sharing a SKU keep their original
// relative order.
func Rank(ctx context.Context, pool port.CandidatePoolRepository, tenantID string, bill *domain.BillHeader, lines []domain.BillLine) ([]domain.BillLine, error) {
	order := make([]string, 0)
	grouped := make(map[string][]domain.BillLine)
	for _, l := range lines {
		if _, ok := grouped[l.SKU]; !ok {
			order = append(order, l.SKU)
		}
		grouped[l.SKU] = append(grouped[l.SKU], l)
	}

	ranks := make([]skuRank, 0, len(order))
	for _, sku := range order {
		stat, err := pool.StatForProduct(ctx, tenantID, bill.BuyerTaxNo, bill.SellerTaxNo, sku)
		if err != nil {
			return nil, fmt.Errorf("match: stat for product %q: %w", sku, domain.ErrCandidateQueryFailed)
		}
		ranks = append(ranks, skuRank{sku: sku, stat: stat, lines: grouped[sku]})
	}

	sort.SliceStable(ranks, func(i, j int) bool {
		a, b := ranks[i], ranks[j]
		if a.stat.Count != b.stat.Count {
			return a.stat.Count < b.stat.Count
		}
		cmp := a.stat.TotalAmount.Cmp(b.stat.TotalAmount)
		if cmp != 0 {
			return cmp < 0
		}
		return a.sku < b.sku
	})

	out := make([]domain.BillLine, 0, len(lines))
	for _, r := range ranks {
		out = append(out, r.lines...)
	}
	return out, nil
}
