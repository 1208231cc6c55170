package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/qinqiang2000/RedBlueMatcher/internal/domain"
	"github.com/qinqiang2000/RedBlueMatcher/internal/port"
)

type runRepo struct {
	db *sqlx.DB
}

// NewRunRepo creates a new PostgreSQL-backed RunRepository.
func NewRunRepo(db *sqlx.DB) port.RunRepository {
	return &runRepo{db: db}
}

func (r *runRepo) CreateRun(ctx context.Context, run *domain.MatchRun) error {
	const query = `
		INSERT INTO match_runs (
			id, tenant_id, requested_by, status, bill_ids,
			success_count, failure_count, shortfall_total, result_object_key, started_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := r.db.ExecContext(ctx, query,
		run.ID, run.TenantID, run.RequestedBy, run.Status, pq.Array(run.BillIDs),
		run.SuccessCount, run.FailureCount, run.ShortfallTotal, run.ResultObjectKey, run.StartedAt)
	if err != nil {
		return fmt.Errorf("run_repo.CreateRun: %w", err)
	}
	return nil
}

func (r *runRepo) UpdateRun(ctx context.Context, run *domain.MatchRun) error {
	const query = `
		UPDATE match_runs
		SET status = $1, success_count = $2, failure_count = $3,
		    shortfall_total = $4, result_object_key = $5, finished_at = $6
		WHERE id = $7 AND tenant_id = $8`
	_, err := r.db.ExecContext(ctx, query,
		run.Status, run.SuccessCount, run.FailureCount,
		run.ShortfallTotal, run.ResultObjectKey, run.FinishedAt,
		run.ID, run.TenantID)
	if err != nil {
		return fmt.Errorf("run_repo.UpdateRun: %w", err)
	}
	return nil
}

func (r *runRepo) GetRun(ctx context.Context, tenantID, runID string) (*domain.MatchRun, error) {
	var run domain.MatchRun
	var billIDs pq.StringArray
	row := r.db.QueryRowxContext(ctx, `
		SELECT id, tenant_id, requested_by, status, bill_ids,
		       success_count, failure_count, shortfall_total, result_object_key, started_at, finished_at
		FROM match_runs WHERE tenant_id = $1 AND id = $2`, tenantID, runID)
	err := row.Scan(
		&run.ID, &run.TenantID, &run.RequestedBy, &run.Status, &billIDs,
		&run.SuccessCount, &run.FailureCount, &run.ShortfallTotal, &run.ResultObjectKey, &run.StartedAt, &run.FinishedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("run_repo.GetRun: %w", err)
	}
	run.BillIDs = billIDs
	return &run, nil
}

func (r *runRepo) RecordOutcome(ctx context.Context, outcome domain.BillOutcome) error {
	const query = `
		INSERT INTO bill_outcomes (run_id, bill_id, status, matched_amount, shortfall_amount, failure_reason, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.db.ExecContext(ctx, query,
		outcome.RunID, outcome.BillID, outcome.Status, outcome.MatchedAmount,
		outcome.ShortfallAmount, outcome.FailureReason, outcome.FinishedAt)
	if err != nil {
		return fmt.Errorf("run_repo.RecordOutcome: %w", err)
	}
	return nil
}

func (r *runRepo) ListOutcomes(ctx context.Context, runID string) ([]domain.BillOutcome, error) {
	var outcomes []domain.BillOutcome
	err := r.db.SelectContext(ctx, &outcomes, `
		SELECT run_id, bill_id, status, matched_amount, shortfall_amount, failure_reason, finished_at
		FROM bill_outcomes WHERE run_id = $1 ORDER BY finished_at`, runID)
	if err != nil {
		return nil, fmt.Errorf("run_repo.ListOutcomes: %w", err)
	}
	return outcomes, nil
}
