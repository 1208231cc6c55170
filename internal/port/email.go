package port

import (
	"context"

	"github.com/qinqiang2000/RedBlueMatcher/internal/domain"
)

// EmailSender defines the contract for sending emails.
type EmailSender interface {
	// SendRunCompletionEmail notifies toEmail that a batch match run has
	// finished, summarizing its per-bill outcomes.
	SendRunCompletionEmail(ctx context.Context, toEmail, toName string, run *domain.MatchRun, outcomes []domain.BillOutcome) error
}
