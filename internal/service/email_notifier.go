package service

import (
	"context"
	"log"

	"github.com/google/uuid"

	"github.com/qinqiang2000/RedBlueMatcher/internal/domain"
	"github.com/qinqiang2000/RedBlueMatcher/internal/port"
)

// EmailNotifier notifies the requesting user by email once a run
// finishes. Lookup or send failures are logged, never propagated: per
// §6, notification failures must not fail the run.
type EmailNotifier struct {
	users  port.UserRepository
	sender port.EmailSender
}

// NewEmailNotifier constructs an EmailNotifier.
func NewEmailNotifier(users port.UserRepository, sender port.EmailSender) *EmailNotifier {
	return &EmailNotifier{users: users, sender: sender}
}

// NotifyRunCompleted implements Notifier.
func (n *EmailNotifier) NotifyRunCompleted(ctx context.Context, run *domain.MatchRun, outcomes []domain.BillOutcome) {
	tenantID, err := uuid.Parse(run.TenantID)
	if err != nil {
		log.Printf("notifier: run %s has non-uuid tenant id %q: %v", run.ID, run.TenantID, err)
		return
	}
	userID, err := uuid.Parse(run.RequestedBy)
	if err != nil {
		log.Printf("notifier: run %s has non-uuid requester id %q: %v", run.ID, run.RequestedBy, err)
		return
	}

	user, err := n.users.GetByID(ctx, tenantID, userID)
	if err != nil {
		log.Printf("notifier: looking up requester for run %s: %v", run.ID, err)
		return
	}

	if err := n.sender.SendRunCompletionEmail(ctx, user.Email, user.FullName, run, outcomes); err != nil {
		log.Printf("notifier: sending completion email for run %s: %v", run.ID, err)
	}
}
