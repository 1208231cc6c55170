package noop

import (
	"context"
	"log"

	"github.com/qinqiang2000/RedBlueMatcher/internal/domain"
	"github.com/qinqiang2000/RedBlueMatcher/internal/port"
)

type noopSender struct{}

// NewNoopSender creates a no-op EmailSender that logs run summaries through the standard logger (stderr).
func NewNoopSender() port.EmailSender {
	return &noopSender{}
}

func (s *noopSender) SendRunCompletionEmail(_ context.Context, toEmail, toName string, run *domain.MatchRun, outcomes []domain.BillOutcome) error {
	log.Printf("[NOOP EMAIL] run %s for %s (%s): %d succeeded, %d failed, shortfall %s",
		run.ID, toName, toEmail, run.SuccessCount, run.FailureCount, run.ShortfallTotal.String())
	return nil
}
