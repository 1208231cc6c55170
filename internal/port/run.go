package port

import (
	"context"

	"github.com/qinqiang2000/RedBlueMatcher/internal/domain"
)

// RunRepository persists MatchRun rows and their per-bill outcomes.
type RunRepository interface {
	CreateRun(ctx context.Context, run *domain.MatchRun) error
	UpdateRun(ctx context.Context, run *domain.MatchRun) error
	GetRun(ctx context.Context, tenantID, runID string) (*domain.MatchRun, error)
	RecordOutcome(ctx context.Context, outcome domain.BillOutcome) error
	ListOutcomes(ctx context.Context, runID string) ([]domain.BillOutcome, error)
}
