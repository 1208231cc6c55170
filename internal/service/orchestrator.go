package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/qinqiang2000/RedBlueMatcher/internal/domain"
	"github.com/qinqiang2000/RedBlueMatcher/internal/match"
	"github.com/qinqiang2000/RedBlueMatcher/internal/port"
)

// OrchestratorConfig bounds a single run's resource usage.
type OrchestratorConfig struct {
	Concurrency  int
	RunTimeout   time.Duration
	MaxBatchSize int
}

// BatchMatchResult is the aggregated outcome of one BatchMatch call.
type BatchMatchResult struct {
	RunID          string
	SuccessCount   int
	FailureCount   int
	ShortfallTotal decimal.Decimal
	Outcomes       []domain.BillOutcome
}

// Notifier is implemented by anything that should react to a finished
// run (sending a completion email).
type Notifier interface {
	NotifyRunCompleted(ctx context.Context, run *domain.MatchRun, outcomes []domain.BillOutcome)
}

// Exporter builds and stores the result workbook for a finished run,
// returning the object key it was stored under.
type Exporter interface {
	ExportRun(ctx context.Context, run *domain.MatchRun, outcomes []domain.BillOutcome) (string, error)
}

// Orchestrator is component E: it bounds per-run concurrency across
// bills, drives the core engine (internal/match) once per bill, and
// aggregates the per-bill outcomes into a BatchMatchResult.
type Orchestrator struct {
	engine   *match.Engine
	runs     port.RunRepository
	bills    port.BillRepository
	skus     port.SKURepository
	cfg      OrchestratorConfig
	exporter Exporter
	notifier Notifier
}

// NewOrchestrator constructs an Orchestrator. exporter and notifier may
// be nil. bills and skus may also be nil, in which case Enqueue skips
// the advisory SKU check (the CLI's status-only paths construct the
// Orchestrator this way).
func NewOrchestrator(engine *match.Engine, runs port.RunRepository, cfg OrchestratorConfig, exporter Exporter, notifier Notifier, bills port.BillRepository, skus port.SKURepository) *Orchestrator {
	return &Orchestrator{engine: engine, runs: runs, bills: bills, skus: skus, cfg: cfg, exporter: exporter, notifier: notifier}
}

// Enqueue validates a batch match request and persists a queued
// MatchRun row, returning it so the caller can hand its id to the
// background dispatcher. It does not run any bill.
func (o *Orchestrator) Enqueue(ctx context.Context, tenantID, requestedBy string, billIDs []string) (*domain.MatchRun, error) {
	if len(billIDs) == 0 {
		return nil, domain.ErrValidationFailed
	}
	if o.cfg.MaxBatchSize > 0 && len(billIDs) > o.cfg.MaxBatchSize {
		return nil, fmt.Errorf("match: batch of %d bills exceeds max %d: %w", len(billIDs), o.cfg.MaxBatchSize, domain.ErrValidationFailed)
	}

	o.warnUnknownSKUs(ctx, tenantID, billIDs)

	run := &domain.MatchRun{
		ID:          uuid.New().String(),
		TenantID:    tenantID,
		RequestedBy: requestedBy,
		Status:      domain.MatchRunQueued,
		BillIDs:     billIDs,
		StartedAt:   time.Now().UTC(),
	}
	if err := o.runs.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("orchestrator: creating run: %w", err)
	}
	return run, nil
}

// Execute drives the matching engine over billIDs for a run already
// persisted by Enqueue, then aggregates and persists its outcome. It
// implements §4.E's algorithm: bounded parallel per-bill tasks, each
// with strictly local state, aggregated on completion.
func (o *Orchestrator) Execute(ctx context.Context, runID, tenantID, requestedBy string, billIDs []string) (*BatchMatchResult, error) {
	run := &domain.MatchRun{
		ID:          runID,
		TenantID:    tenantID,
		RequestedBy: requestedBy,
		Status:      domain.MatchRunRunning,
		BillIDs:     billIDs,
		StartedAt:   time.Now().UTC(),
	}
	if err := o.runs.UpdateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("orchestrator: marking run running: %w", err)
	}

	runCtx := ctx
	var cancel context.CancelFunc
	if o.cfg.RunTimeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, o.cfg.RunTimeout)
		defer cancel()
	}

	concurrency := o.cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 8
	}
	sem := make(chan struct{}, concurrency)

	var mu sync.Mutex
	outcomes := make([]domain.BillOutcome, 0, len(billIDs))
	successCount, failureCount := 0, 0
	shortfallTotal := decimal.Zero

	var wg sync.WaitGroup
	for _, billID := range billIDs {
		billID := billID
		sem <- struct{}{}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			res := o.matchOneBill(runCtx, tenantID, billID)
			outcome := domain.BillOutcome{
				RunID:           run.ID,
				BillID:          billID,
				Status:          res.Status,
				MatchedAmount:   res.MatchedAmount,
				ShortfallAmount: res.ShortfallAmount,
				FinishedAt:      time.Now().UTC(),
			}
			if res.Err != nil {
				outcome.FailureReason = res.Err.Error()
			}
			if err := o.runs.RecordOutcome(ctx, outcome); err != nil {
				outcome.FailureReason = fmt.Sprintf("%s (and outcome record failed: %v)", outcome.FailureReason, err)
			}

			mu.Lock()
			outcomes = append(outcomes, outcome)
			if res.Status == domain.BillStatusDone {
				successCount++
			} else {
				failureCount++
			}
			shortfallTotal = shortfallTotal.Add(res.ShortfallAmount)
			mu.Unlock()
		}()
	}
	wg.Wait()

	finished := time.Now().UTC()
	run.Status = domain.MatchRunCompleted
	if failureCount > 0 && successCount == 0 {
		run.Status = domain.MatchRunFailed
	}
	run.SuccessCount = successCount
	run.FailureCount = failureCount
	run.ShortfallTotal = shortfallTotal
	run.FinishedAt = &finished

	if o.exporter != nil {
		key, err := o.exporter.ExportRun(ctx, run, outcomes)
		if err != nil {
			log.Printf("orchestrator: exporting run %s: %v", run.ID, err)
		} else {
			run.ResultObjectKey = key
		}
	}

	if err := o.runs.UpdateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("orchestrator: updating run: %w", err)
	}

	if o.notifier != nil {
		o.notifier.NotifyRunCompleted(ctx, run, outcomes)
	}

	return &BatchMatchResult{
		RunID:          run.ID,
		SuccessCount:   successCount,
		FailureCount:   failureCount,
		ShortfallTotal: shortfallTotal,
		Outcomes:       outcomes,
	}, nil
}

// warnUnknownSKUs looks up every SKU referenced by billIDs against the
// SKU metadata table and logs the codes missing from it. It never
// returns an error: per §3, absence of a SKU from the reference table
// does not block matching or enqueueing, it is only surfaced.
func (o *Orchestrator) warnUnknownSKUs(ctx context.Context, tenantID string, billIDs []string) {
	if o.bills == nil || o.skus == nil {
		return
	}
	seen := make(map[string]bool)
	for _, billID := range billIDs {
		lines, err := o.bills.ListBillLines(ctx, tenantID, billID)
		if err != nil {
			log.Printf("orchestrator: checking sku metadata for bill %s: %v", billID, err)
			continue
		}
		for _, line := range lines {
			if seen[line.SKU] {
				continue
			}
			seen[line.SKU] = true
			if _, found, err := o.skus.Get(ctx, line.SKU); err != nil {
				log.Printf("orchestrator: looking up sku %s: %v", line.SKU, err)
			} else if !found {
				log.Printf("orchestrator: bill %s references unrecognized sku %s", billID, line.SKU)
			}
		}
	}
}

// GetRun returns a previously persisted run, for the HTTP status endpoint.
func (o *Orchestrator) GetRun(ctx context.Context, tenantID, runID string) (*domain.MatchRun, error) {
	return o.runs.GetRun(ctx, tenantID, runID)
}

// matchOneBill runs the core engine for a single bill and normalizes a
// run-level timeout into a domain.ErrRunTimeout failure, per §5's
// cancellation rule.
func (o *Orchestrator) matchOneBill(ctx context.Context, tenantID, billID string) match.BillResult {
	res := o.engine.MatchBill(ctx, tenantID, billID)
	if res.Err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		res.Status = domain.BillStatusFailed
		res.Err = domain.ErrRunTimeout
	}
	return res
}
