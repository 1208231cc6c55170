package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qinqiang2000/RedBlueMatcher/internal/domain"
	"github.com/qinqiang2000/RedBlueMatcher/internal/match"
	"github.com/qinqiang2000/RedBlueMatcher/internal/port"
)

// fakeRunRepo is an in-memory port.RunRepository, mirroring the style
// of internal/match/engine_test.go's hand-rolled fakes.
type fakeRunRepo struct {
	mu       sync.Mutex
	runs     map[string]*domain.MatchRun
	outcomes map[string][]domain.BillOutcome
}

func newFakeRunRepo() *fakeRunRepo {
	return &fakeRunRepo{runs: make(map[string]*domain.MatchRun), outcomes: make(map[string][]domain.BillOutcome)}
}

func (f *fakeRunRepo) CreateRun(_ context.Context, run *domain.MatchRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *run
	f.runs[run.ID] = &cp
	return nil
}

func (f *fakeRunRepo) UpdateRun(_ context.Context, run *domain.MatchRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *run
	f.runs[run.ID] = &cp
	return nil
}

func (f *fakeRunRepo) GetRun(_ context.Context, _, runID string) (*domain.MatchRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.runs[runID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return r, nil
}

func (f *fakeRunRepo) RecordOutcome(_ context.Context, outcome domain.BillOutcome) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outcomes[outcome.RunID] = append(f.outcomes[outcome.RunID], outcome)
	return nil
}

func (f *fakeRunRepo) ListOutcomes(_ context.Context, runID string) ([]domain.BillOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.outcomes[runID], nil
}

// fakeBillRepo serves bills for ids in ok, with the lines listed in
// lines (none when unset), and domain.ErrBillNotFound otherwise.
type fakeBillRepo struct {
	ok    map[string]bool
	lines map[string][]domain.BillLine
}

func (f *fakeBillRepo) GetBill(_ context.Context, tenantID, billID string) (*domain.BillHeader, error) {
	if !f.ok[billID] {
		return nil, domain.ErrBillNotFound
	}
	return &domain.BillHeader{ID: billID, TenantID: tenantID, BuyerTaxNo: "B1", SellerTaxNo: "S1"}, nil
}

func (f *fakeBillRepo) ListBillLines(_ context.Context, _, billID string) ([]domain.BillLine, error) {
	return f.lines[billID], nil
}

// countingBillRepo wraps fakeBillRepo and records the peak number of
// GetBill calls in flight at once.
type countingBillRepo struct {
	fakeBillRepo
	mu          sync.Mutex
	inFlight    int
	maxInFlight int
}

func (f *countingBillRepo) GetBill(ctx context.Context, tenantID, billID string) (*domain.BillHeader, error) {
	f.mu.Lock()
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	f.mu.Unlock()
	time.Sleep(time.Millisecond)
	f.mu.Lock()
	f.inFlight--
	f.mu.Unlock()
	return f.fakeBillRepo.GetBill(ctx, tenantID, billID)
}

// fakeSKURepo is an in-memory port.SKURepository that records every
// code it was asked about, for asserting the advisory enqueue check.
type fakeSKURepo struct {
	mu       sync.Mutex
	known    map[string]bool
	lookedUp []string
}

func (f *fakeSKURepo) Get(_ context.Context, code string) (*port.SKUMetadata, bool, error) {
	f.mu.Lock()
	f.lookedUp = append(f.lookedUp, code)
	f.mu.Unlock()
	if !f.known[code] {
		return nil, false, nil
	}
	return &port.SKUMetadata{Code: code}, true, nil
}

func (f *fakeSKURepo) Upsert(context.Context, []port.SKUMetadata) error { return nil }

type noopPool struct{}

func (noopPool) StatForProduct(context.Context, string, string, string, string) (domain.CandidateStat, error) {
	return domain.CandidateStat{}, nil
}
func (noopPool) MatchByTaxAndProduct(context.Context, string, string, string, string) ([]domain.InvoiceLine, error) {
	return nil, nil
}
func (noopPool) MatchOnInvoices(context.Context, string, string, string, string, []string) ([]domain.InvoiceLine, error) {
	return nil, nil
}

type noopRecords struct{}

func (noopRecords) InsertMatchRecords(context.Context, []domain.MatchRecord) error { return nil }
func (noopRecords) ListByBillIDs(context.Context, string, []string) ([]domain.MatchRecord, error) {
	return nil, nil
}

func newTestOrchestrator(okBills map[string]bool, cfg OrchestratorConfig) (*Orchestrator, *fakeRunRepo) {
	engine := match.New(&fakeBillRepo{ok: okBills}, noopPool{}, noopRecords{}, func() time.Time { return time.Unix(0, 0) })
	runs := newFakeRunRepo()
	return NewOrchestrator(engine, runs, cfg, nil, nil, nil, nil), runs
}

func TestOrchestrator_EnqueueRejectsEmptyBatch(t *testing.T) {
	o, _ := newTestOrchestrator(nil, OrchestratorConfig{})
	_, err := o.Enqueue(context.Background(), "tenant-1", "user-1", nil)
	assert.ErrorIs(t, err, domain.ErrValidationFailed)
}

func TestOrchestrator_EnqueueRejectsOversizedBatch(t *testing.T) {
	o, _ := newTestOrchestrator(nil, OrchestratorConfig{MaxBatchSize: 2})
	_, err := o.Enqueue(context.Background(), "tenant-1", "user-1", []string{"b1", "b2", "b3"})
	assert.ErrorIs(t, err, domain.ErrValidationFailed)
}

func TestOrchestrator_EnqueuePersistsQueuedRun(t *testing.T) {
	o, runs := newTestOrchestrator(nil, OrchestratorConfig{})
	run, err := o.Enqueue(context.Background(), "tenant-1", "user-1", []string{"b1"})
	require.NoError(t, err)
	assert.Equal(t, domain.MatchRunQueued, run.Status)

	stored, err := runs.GetRun(context.Background(), "tenant-1", run.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.MatchRunQueued, stored.Status)
}

func TestOrchestrator_EnqueueChecksSKUMetadataAdvisoryOnly(t *testing.T) {
	bills := &fakeBillRepo{
		ok: map[string]bool{"b1": true},
		lines: map[string][]domain.BillLine{
			"b1": {
				{BillID: "b1", LineID: "l1", SKU: "known-sku"},
				{BillID: "b1", LineID: "l2", SKU: "unknown-sku"},
			},
		},
	}
	skus := &fakeSKURepo{known: map[string]bool{"known-sku": true}}
	engine := match.New(bills, noopPool{}, noopRecords{}, func() time.Time { return time.Unix(0, 0) })
	o := NewOrchestrator(engine, newFakeRunRepo(), OrchestratorConfig{}, nil, nil, bills, skus)

	run, err := o.Enqueue(context.Background(), "tenant-1", "user-1", []string{"b1"})
	require.NoError(t, err)
	assert.Equal(t, domain.MatchRunQueued, run.Status)

	assert.ElementsMatch(t, []string{"known-sku", "unknown-sku"}, skus.lookedUp)
}

func TestOrchestrator_ExecuteAggregatesAllBills(t *testing.T) {
	billIDs := []string{"b1", "b2", "b3", "b4"}
	ok := map[string]bool{"b1": true, "b3": true} // b2, b4 fail: not found
	o, runs := newTestOrchestrator(ok, OrchestratorConfig{Concurrency: 2})

	run, err := o.Enqueue(context.Background(), "tenant-1", "user-1", billIDs)
	require.NoError(t, err)

	result, err := o.Execute(context.Background(), run.ID, "tenant-1", "user-1", billIDs)
	require.NoError(t, err)

	assert.Equal(t, 2, result.SuccessCount)
	assert.Equal(t, 2, result.FailureCount)
	assert.Equal(t, len(billIDs), result.SuccessCount+result.FailureCount)
	assert.Len(t, result.Outcomes, len(billIDs))

	stored, err := runs.GetRun(context.Background(), "tenant-1", run.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.MatchRunCompleted, stored.Status)
	assert.NotNil(t, stored.FinishedAt)
}

func TestOrchestrator_ExecuteMarksFailedWhenAllBillsFail(t *testing.T) {
	billIDs := []string{"b1", "b2"}
	o, runs := newTestOrchestrator(map[string]bool{}, OrchestratorConfig{Concurrency: 4})

	run, err := o.Enqueue(context.Background(), "tenant-1", "user-1", billIDs)
	require.NoError(t, err)

	result, err := o.Execute(context.Background(), run.ID, "tenant-1", "user-1", billIDs)
	require.NoError(t, err)
	assert.Equal(t, 0, result.SuccessCount)
	assert.Equal(t, 2, result.FailureCount)

	stored, err := runs.GetRun(context.Background(), "tenant-1", run.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.MatchRunFailed, stored.Status)
}

func TestOrchestrator_ExecuteHonorsBoundedConcurrency(t *testing.T) {
	// A concurrency of 1 with many bills should never panic or race
	// (run with -race); no more than one bill is loaded at a time, and
	// every bill is still accounted for despite serialized access.
	billIDs := make([]string, 20)
	ok := make(map[string]bool, 20)
	for i := range billIDs {
		billIDs[i] = "b" + string(rune('a'+i))
		ok[billIDs[i]] = true
	}
	bills := &countingBillRepo{fakeBillRepo: fakeBillRepo{ok: ok}}
	engine := match.New(bills, noopPool{}, noopRecords{}, func() time.Time { return time.Unix(0, 0) })
	o := NewOrchestrator(engine, newFakeRunRepo(), OrchestratorConfig{Concurrency: 1}, nil, nil, nil, nil)

	run, err := o.Enqueue(context.Background(), "tenant-1", "user-1", billIDs)
	require.NoError(t, err)

	result, err := o.Execute(context.Background(), run.ID, "tenant-1", "user-1", billIDs)
	require.NoError(t, err)
	assert.LessOrEqual(t, bills.maxInFlight, 1)
	assert.Equal(t, len(billIDs), result.SuccessCount)
	assert.Equal(t, decimal.Zero.String(), result.ShortfallTotal.String())
}

func TestOrchestrator_NotifierAndExporterCalledOnCompletion(t *testing.T) {
	engine := match.New(&fakeBillRepo{ok: map[string]bool{"b1": true}}, noopPool{}, noopRecords{}, func() time.Time { return time.Unix(0, 0) })
	runs := newFakeRunRepo()

	var exportCalled, notifyCalled bool
	exporter := exporterFunc(func(_ context.Context, run *domain.MatchRun, _ []domain.BillOutcome) (string, error) {
		exportCalled = true
		return "tenant-1/batch-matches/" + run.ID + ".xlsx", nil
	})
	notifier := notifierFunc(func(_ context.Context, _ *domain.MatchRun, _ []domain.BillOutcome) {
		notifyCalled = true
	})

	o := NewOrchestrator(engine, runs, OrchestratorConfig{}, exporter, notifier, nil, nil)
	run, err := o.Enqueue(context.Background(), "tenant-1", "user-1", []string{"b1"})
	require.NoError(t, err)

	_, err = o.Execute(context.Background(), run.ID, "tenant-1", "user-1", []string{"b1"})
	require.NoError(t, err)

	assert.True(t, exportCalled)
	assert.True(t, notifyCalled)

	stored, err := runs.GetRun(context.Background(), "tenant-1", run.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, stored.ResultObjectKey)
}

type exporterFunc func(ctx context.Context, run *domain.MatchRun, outcomes []domain.BillOutcome) (string, error)

func (f exporterFunc) ExportRun(ctx context.Context, run *domain.MatchRun, outcomes []domain.BillOutcome) (string, error) {
	return f(ctx, run, outcomes)
}

type notifierFunc func(ctx context.Context, run *domain.MatchRun, outcomes []domain.BillOutcome)

func (f notifierFunc) NotifyRunCompleted(ctx context.Context, run *domain.MatchRun, outcomes []domain.BillOutcome) {
	f(ctx, run, outcomes)
}
