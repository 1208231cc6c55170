// Package match implements the core batch matching engine: scarcity
// ranking, two-tier candidate retrieval with ordered deduplication, an
// invoice-reuse registry driving preferential assignment, and the
// greedy fill loop that produces persisted match records.
package match

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/qinqiang2000/RedBlueMatcher/internal/domain"
	"github.com/qinqiang2000/RedBlueMatcher/internal/port"
)

// BillResult is the outcome of matching a single bill.
type BillResult struct {
	BillID          string
	Status          domain.BillStatus
	MatchedAmount   decimal.Decimal
	ShortfallAmount decimal.Decimal
	Err             error
}

// Engine runs the per-bill match pipeline: Loader -> Ranker -> (per
// SKU) Builder -> Filler, flushing emitted records in bounded batches.
type Engine struct {
	bills   port.BillRepository
	pool    port.CandidatePoolRepository
	records port.MatchRecordRepository
	now     func() time.Time
}

// New constructs an Engine. now defaults to time.Now when nil.
func New(bills port.BillRepository, pool port.CandidatePoolRepository, records port.MatchRecordRepository, now func() time.Time) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{bills: bills, pool: pool, records: records, now: now}
}

// MatchBill runs the full pipeline for one bill id. It implements the
// per-bill state machine LOADED -> RANKED -> MATCHING(sku_i) ->
// FLUSHING -> DONE, with terminal states DONE or
// FAILED(BillNotFound|PersistFailed|CandidateQueryFailed|Timeout).
//
// A failure here is scoped to this bill only; the caller is expected
// to continue with the rest of the batch.
func (e *Engine) MatchBill(ctx context.Context, tenantID, billID string) BillResult {
	bill, err := e.bills.GetBill(ctx, tenantID, billID)
	if err != nil {
		if errors.Is(err, domain.ErrBillNotFound) {
			return BillResult{BillID: billID, Status: domain.BillStatusFailed, Err: domain.ErrBillNotFound}
		}
		return BillResult{BillID: billID, Status: domain.BillStatusFailed, Err: fmt.Errorf("match: load bill %s: %w", billID, err)}
	}

	lines, err := e.bills.ListBillLines(ctx, tenantID, billID)
	if err != nil {
		return BillResult{BillID: billID, Status: domain.BillStatusFailed, Err: fmt.Errorf("match: list lines for bill %s: %w", billID, err)}
	}
	if len(lines) == 0 {
		return BillResult{BillID: billID, Status: domain.BillStatusDone, MatchedAmount: decimal.Zero, ShortfallAmount: decimal.Zero}
	}

	ranked, err := Rank(ctx, e.pool, tenantID, bill, lines)
	if err != nil {
		return BillResult{BillID: billID, Status: domain.BillStatusFailed, Err: err}
	}

	registry := NewPreferredRegistry()
	target := make(map[string]decimal.Decimal)
	matchedTotal := make(map[string]decimal.Decimal)
	repLine := make(map[string]domain.BillLine)
	skuOrder := make([]string, 0)

	for _, l := range ranked {
		if _, ok := repLine[l.SKU]; !ok {
			repLine[l.SKU] = l
			skuOrder = append(skuOrder, l.SKU)
		}
		target[l.SKU] = target[l.SKU].Add(l.Amount.Abs())
	}

	var buffer []domain.MatchRecord
	totalMatched := decimal.Zero
	totalTarget := decimal.Zero

	flush := func() error {
		if len(buffer) == 0 {
			return nil
		}
		if err := e.records.InsertMatchRecords(ctx, buffer); err != nil {
			return fmt.Errorf("match: flush bill %s: %w", billID, domain.ErrPersistFailed)
		}
		buffer = buffer[:0]
		return nil
	}

	for _, sku := range skuOrder {
		if ctx.Err() != nil {
			return BillResult{BillID: billID, Status: domain.BillStatusFailed, Err: domain.ErrBillTimeout}
		}

		t := target[sku]
		totalTarget = totalTarget.Add(t)
		already := matchedTotal[sku]
		if t.Sub(already).Sign() <= 0 {
			continue
		}

		candidates, err := BuildCandidates(ctx, e.pool, tenantID, bill, sku, registry)
		if err != nil {
			return BillResult{BillID: billID, Status: domain.BillStatusFailed, Err: err}
		}

		records, matched := fillSKU(bill, repLine[sku], t, already, candidates, registry, e.now())
		matchedTotal[sku] = already.Add(matched)
		totalMatched = totalMatched.Add(matched)
		buffer = append(buffer, records...)

		for len(buffer) >= flushChunkSize {
			chunk := buffer[:flushChunkSize]
			buffer = buffer[flushChunkSize:]
			if err := e.records.InsertMatchRecords(ctx, chunk); err != nil {
				return BillResult{BillID: billID, Status: domain.BillStatusFailed, Err: fmt.Errorf("match: flush bill %s: %w", billID, domain.ErrPersistFailed)}
			}
		}
	}

	if err := flush(); err != nil {
		return BillResult{BillID: billID, Status: domain.BillStatusFailed, Err: err}
	}

	shortfall := totalTarget.Sub(totalMatched)
	if shortfall.Sign() < 0 {
		shortfall = decimal.Zero
	}
	return BillResult{
		BillID:          billID,
		Status:          domain.BillStatusDone,
		MatchedAmount:   totalMatched,
		ShortfallAmount: shortfall,
	}
}
