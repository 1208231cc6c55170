package match

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qinqiang2000/RedBlueMatcher/internal/domain"
)

// fakePool is an in-memory candidate pool used to exercise the engine
// end to end without a database, per the testable properties in §8.
type fakePool struct {
	// lines holds candidate invoice lines keyed by (buyer, seller, sku).
	lines map[string][]domain.InvoiceLine
}

func key(buyer, seller, sku string) string { return buyer + "|" + seller + "|" + sku }

func newFakePool() *fakePool { return &fakePool{lines: make(map[string][]domain.InvoiceLine)} }

func (p *fakePool) seed(buyer, seller, sku string, lines ...domain.InvoiceLine) {
	p.lines[key(buyer, seller, sku)] = append(p.lines[key(buyer, seller, sku)], lines...)
}

func (p *fakePool) StatForProduct(_ context.Context, _, buyer, seller, sku string) (domain.CandidateStat, error) {
	ls := p.lines[key(buyer, seller, sku)]
	total := decimal.Zero
	for _, l := range ls {
		total = total.Add(l.RemainingAmount)
	}
	return domain.CandidateStat{Count: int64(len(ls)), TotalAmount: total}, nil
}

func (p *fakePool) MatchByTaxAndProduct(_ context.Context, _, buyer, seller, sku string) ([]domain.InvoiceLine, error) {
	ls := append([]domain.InvoiceLine{}, p.lines[key(buyer, seller, sku)]...)
	sort.SliceStable(ls, func(i, j int) bool { return ls[i].RemainingAmount.Cmp(ls[j].RemainingAmount) > 0 })
	return ls, nil
}

func (p *fakePool) MatchOnInvoices(_ context.Context, _, buyer, seller, sku string, invoiceIDs []string) ([]domain.InvoiceLine, error) {
	want := make(map[string]struct{}, len(invoiceIDs))
	for _, id := range invoiceIDs {
		want[id] = struct{}{}
	}
	var out []domain.InvoiceLine
	for _, l := range p.lines[key(buyer, seller, sku)] {
		if _, ok := want[l.InvoiceID]; ok {
			out = append(out, l)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].RemainingAmount.Cmp(out[j].RemainingAmount) < 0 })
	return out, nil
}

// fakeBills is an in-memory BillRepository.
type fakeBills struct {
	headers map[string]*domain.BillHeader
	lines   map[string][]domain.BillLine
}

func newFakeBills() *fakeBills {
	return &fakeBills{headers: make(map[string]*domain.BillHeader), lines: make(map[string][]domain.BillLine)}
}

func (b *fakeBills) GetBill(_ context.Context, _, billID string) (*domain.BillHeader, error) {
	h, ok := b.headers[billID]
	if !ok {
		return nil, domain.ErrBillNotFound
	}
	return h, nil
}

func (b *fakeBills) ListBillLines(_ context.Context, _, billID string) ([]domain.BillLine, error) {
	return b.lines[billID], nil
}

// fakeRecords is an in-memory MatchRecordRepository.
type fakeRecords struct {
	flushes [][]domain.MatchRecord
	failOn  int // flush call index (0-based) to fail, -1 for never
}

func (r *fakeRecords) InsertMatchRecords(_ context.Context, records []domain.MatchRecord) error {
	idx := len(r.flushes)
	r.flushes = append(r.flushes, append([]domain.MatchRecord{}, records...))
	if r.failOn == idx {
		return errors.New("boom")
	}
	return nil
}

func (r *fakeRecords) ListByBillIDs(_ context.Context, _ string, _ []string) ([]domain.MatchRecord, error) {
	var all []domain.MatchRecord
	for _, batch := range r.flushes {
		all = append(all, batch...)
	}
	return all, nil
}

func (r *fakeRecords) all() []domain.MatchRecord {
	var out []domain.MatchRecord
	for _, f := range r.flushes {
		out = append(out, f...)
	}
	return out
}

func amt(s string) decimal.Decimal { d, _ := decimal.NewFromString(s); return d }

func newEngine(bills *fakeBills, pool *fakePool, records *fakeRecords) *Engine {
	fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return New(bills, pool, records, func() time.Time { return fixed })
}

// Scenario 1 from §8: single SKU, two general candidates descending.
func TestMatchBill_Scenario1_GeneralDescendingFill(t *testing.T) {
	bills := newFakeBills()
	bills.headers["B1"] = &domain.BillHeader{ID: "B1", TenantID: "t1", BuyerTaxNo: "X", SellerTaxNo: "Y"}
	bills.lines["B1"] = []domain.BillLine{{BillID: "B1", LineID: "l1", SKU: "A", Amount: amt("100")}}

	pool := newFakePool()
	pool.seed("X", "Y", "A",
		domain.InvoiceLine{InvoiceID: "1", LineID: "1", SKU: "A", RemainingAmount: amt("80")},
		domain.InvoiceLine{InvoiceID: "2", LineID: "1", SKU: "A", RemainingAmount: amt("50")},
	)
	records := &fakeRecords{failOn: -1}
	e := newEngine(bills, pool, records)

	res := e.MatchBill(context.Background(), "t1", "B1")
	require.NoError(t, res.Err)
	require.Equal(t, domain.BillStatusDone, res.Status)

	got := records.all()
	require.Len(t, got, 2)
	assert.Equal(t, "1", got[0].InvoiceID)
	assert.True(t, got[0].MatchAmount.Equal(amt("80")))
	assert.Equal(t, "2", got[1].InvoiceID)
	assert.True(t, got[1].MatchAmount.Equal(amt("20")))
}

// Scenario 2 from §8: scarcity ranking processes the scarcer SKU first.
func TestMatchBill_Scenario2_ScarcitySKUFirst(t *testing.T) {
	bills := newFakeBills()
	bills.headers["B2"] = &domain.BillHeader{ID: "B2", TenantID: "t1", BuyerTaxNo: "X", SellerTaxNo: "Y"}
	bills.lines["B2"] = []domain.BillLine{
		{BillID: "B2", LineID: "l1", SKU: "A", Amount: amt("100")},
		{BillID: "B2", LineID: "l2", SKU: "B", Amount: amt("50")},
	}

	pool := newFakePool()
	for i := 0; i < 5; i++ {
		pool.seed("X", "Y", "A", domain.InvoiceLine{InvoiceID: "a" + string(rune('0'+i)), LineID: "1", SKU: "A", RemainingAmount: amt("80")})
	}
	pool.seed("X", "Y", "B", domain.InvoiceLine{InvoiceID: "k", LineID: "1", SKU: "B", RemainingAmount: amt("60")})

	records := &fakeRecords{failOn: -1}
	e := newEngine(bills, pool, records)

	res := e.MatchBill(context.Background(), "t1", "B2")
	require.NoError(t, res.Err)

	got := records.all()
	require.NotEmpty(t, got)
	assert.Equal(t, "k", got[0].InvoiceID, "scarcer SKU B must be matched before SKU A")
}

// Scenario 3 from §8: preferred invoice from an earlier SKU is reused
// ahead of a general candidate of equal amount.
func TestMatchBill_Scenario3_PreferredReuse(t *testing.T) {
	bills := newFakeBills()
	bills.headers["B3"] = &domain.BillHeader{ID: "B3", TenantID: "t1", BuyerTaxNo: "X", SellerTaxNo: "Y"}
	bills.lines["B3"] = []domain.BillLine{
		{BillID: "B3", LineID: "l0", SKU: "Z", Amount: amt("60")},
		{BillID: "B3", LineID: "l1", SKU: "A", Amount: amt("100")},
	}

	pool := newFakePool()
	pool.seed("X", "Y", "Z", domain.InvoiceLine{InvoiceID: "9", LineID: "1", SKU: "Z", RemainingAmount: amt("60")})
	pool.seed("X", "Y", "A",
		domain.InvoiceLine{InvoiceID: "9", LineID: "2", SKU: "A", RemainingAmount: amt("60")},
		domain.InvoiceLine{InvoiceID: "10", LineID: "1", SKU: "A", RemainingAmount: amt("60")},
	)

	records := &fakeRecords{failOn: -1}
	e := newEngine(bills, pool, records)

	res := e.MatchBill(context.Background(), "t1", "B3")
	require.NoError(t, res.Err)

	got := records.all()
	var forA []domain.MatchRecord
	for _, r := range got {
		if r.SKU == "A" {
			forA = append(forA, r)
		}
	}
	require.Len(t, forA, 2)
	assert.Equal(t, "9", forA[0].InvoiceID)
	assert.True(t, forA[0].MatchAmount.Equal(amt("60")))
	assert.Equal(t, "10", forA[1].InvoiceID)
	assert.True(t, forA[1].MatchAmount.Equal(amt("40")))
}

// Scenario 4 from §8: under-matched bill reports shortfall, not error.
func TestMatchBill_Scenario4_UnderMatchIsNotAnError(t *testing.T) {
	bills := newFakeBills()
	bills.headers["B4"] = &domain.BillHeader{ID: "B4", TenantID: "t1", BuyerTaxNo: "X", SellerTaxNo: "Y"}
	bills.lines["B4"] = []domain.BillLine{{BillID: "B4", LineID: "l1", SKU: "A", Amount: amt("100")}}

	pool := newFakePool()
	pool.seed("X", "Y", "A", domain.InvoiceLine{InvoiceID: "1", LineID: "1", SKU: "A", RemainingAmount: amt("40")})

	records := &fakeRecords{failOn: -1}
	e := newEngine(bills, pool, records)

	res := e.MatchBill(context.Background(), "t1", "B4")
	require.NoError(t, res.Err)
	assert.True(t, res.MatchedAmount.Equal(amt("40")))
	assert.True(t, res.ShortfallAmount.Equal(amt("60")))
}

// Scenario 5 from §8: two bill lines sharing a SKU share one consumption bucket.
func TestMatchBill_Scenario5_SharedSKUBucket(t *testing.T) {
	bills := newFakeBills()
	bills.headers["B5"] = &domain.BillHeader{ID: "B5", TenantID: "t1", BuyerTaxNo: "X", SellerTaxNo: "Y"}
	bills.lines["B5"] = []domain.BillLine{
		{BillID: "B5", LineID: "l1", SKU: "A", Amount: amt("100")},
		{BillID: "B5", LineID: "l2", SKU: "A", Amount: amt("50")},
	}

	pool := newFakePool()
	pool.seed("X", "Y", "A", domain.InvoiceLine{InvoiceID: "1", LineID: "1", SKU: "A", RemainingAmount: amt("200")})

	records := &fakeRecords{failOn: -1}
	e := newEngine(bills, pool, records)

	res := e.MatchBill(context.Background(), "t1", "B5")
	require.NoError(t, res.Err)

	got := records.all()
	require.Len(t, got, 1)
	assert.True(t, got[0].MatchAmount.Equal(amt("150")))
}

// Scenario 6 from §8: tie-break by SKU string ascending when count and total tie.
func TestMatchBill_Scenario6_TieBreakBySKU(t *testing.T) {
	bills := newFakeBills()
	bills.headers["B6"] = &domain.BillHeader{ID: "B6", TenantID: "t1", BuyerTaxNo: "X", SellerTaxNo: "Y"}
	bills.lines["B6"] = []domain.BillLine{
		{BillID: "B6", LineID: "l1", SKU: "B", Amount: amt("100")},
		{BillID: "B6", LineID: "l2", SKU: "A", Amount: amt("100")},
	}

	pool := newFakePool()
	pool.seed("X", "Y", "A",
		domain.InvoiceLine{InvoiceID: "a1", LineID: "1", SKU: "A", RemainingAmount: amt("150")},
		domain.InvoiceLine{InvoiceID: "a2", LineID: "1", SKU: "A", RemainingAmount: amt("150")},
	)
	pool.seed("X", "Y", "B",
		domain.InvoiceLine{InvoiceID: "b1", LineID: "1", SKU: "B", RemainingAmount: amt("150")},
		domain.InvoiceLine{InvoiceID: "b2", LineID: "1", SKU: "B", RemainingAmount: amt("150")},
	)

	records := &fakeRecords{failOn: -1}
	e := newEngine(bills, pool, records)

	res := e.MatchBill(context.Background(), "t1", "B6")
	require.NoError(t, res.Err)

	got := records.all()
	require.NotEmpty(t, got)
	assert.Equal(t, "A", got[0].SKU, "SKU A must be ranked before B on a full tie")
}

func TestMatchBill_BillNotFound(t *testing.T) {
	bills := newFakeBills()
	pool := newFakePool()
	records := &fakeRecords{failOn: -1}
	e := newEngine(bills, pool, records)

	res := e.MatchBill(context.Background(), "t1", "missing")
	assert.ErrorIs(t, res.Err, domain.ErrBillNotFound)
	assert.Equal(t, domain.BillStatusFailed, res.Status)
}

func TestMatchBill_EmptyBillIsNotAnError(t *testing.T) {
	bills := newFakeBills()
	bills.headers["B7"] = &domain.BillHeader{ID: "B7", TenantID: "t1", BuyerTaxNo: "X", SellerTaxNo: "Y"}
	pool := newFakePool()
	records := &fakeRecords{failOn: -1}
	e := newEngine(bills, pool, records)

	res := e.MatchBill(context.Background(), "t1", "B7")
	require.NoError(t, res.Err)
	assert.Equal(t, domain.BillStatusDone, res.Status)
	assert.Empty(t, records.all())
}

func TestMatchBill_PersistFailureAbortsBill(t *testing.T) {
	bills := newFakeBills()
	bills.headers["B8"] = &domain.BillHeader{ID: "B8", TenantID: "t1", BuyerTaxNo: "X", SellerTaxNo: "Y"}
	bills.lines["B8"] = []domain.BillLine{{BillID: "B8", LineID: "l1", SKU: "A", Amount: amt("100")}}
	pool := newFakePool()
	pool.seed("X", "Y", "A", domain.InvoiceLine{InvoiceID: "1", LineID: "1", SKU: "A", RemainingAmount: amt("100")})

	records := &fakeRecords{failOn: 0}
	e := newEngine(bills, pool, records)

	res := e.MatchBill(context.Background(), "t1", "B8")
	assert.ErrorIs(t, res.Err, domain.ErrPersistFailed)
	assert.Equal(t, domain.BillStatusFailed, res.Status)
}

func TestPreferredRegistry_ChunksPreserveOrder(t *testing.T) {
	r := NewPreferredRegistry()
	for i := 0; i < 2500; i++ {
		r.Add(string(rune('a')) + string(rune(i)))
	}
	chunks := r.Chunks(1000)
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 1000)
	assert.Len(t, chunks[1], 1000)
	assert.Len(t, chunks[2], 500)
	assert.Equal(t, string(rune('a'))+string(rune(0)), chunks[0][0])
	assert.Equal(t, string(rune('a'))+string(rune(1000)), chunks[1][0])
	assert.Equal(t, string(rune('a'))+string(rune(2499)), chunks[2][499])
}
