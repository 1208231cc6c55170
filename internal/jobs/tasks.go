package jobs

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/qinqiang2000/RedBlueMatcher/internal/service"
)

const (
	// QueueBatchMatch is the queue that carries batch-match jobs.
	QueueBatchMatch = "batch_match"
	// TaskTypeBatchMatch is the task type for a BatchMatch run.
	TaskTypeBatchMatch = "match:batch"
)

// BatchMatchPayload carries the inputs for one TaskTypeBatchMatch job.
// The run row itself is already persisted by the handler that enqueues
// this task; the worker only needs enough to resume the orchestrator.
type BatchMatchPayload struct {
	TenantID    string   `json:"tenant_id"`
	RunID       string   `json:"run_id"`
	RequestedBy string   `json:"requested_by"`
	BillIDs     []string `json:"bill_ids"`
}

// NewBatchMatchTask constructs an Asynq task for a batch match run.
func NewBatchMatchTask(payload BatchMatchPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("jobs: marshaling batch match payload: %w", err)
	}
	return asynq.NewTask(TaskTypeBatchMatch, data), nil
}

// BatchMatchHandler processes TaskTypeBatchMatch tasks by driving the
// Run Orchestrator. The MatchRun row referenced by payload.RunID was
// already created by the HTTP handler before enqueue; Execute
// resumes that row rather than creating a new one.
type BatchMatchHandler struct {
	orchestrator *service.Orchestrator
}

// NewBatchMatchHandler creates a handler bound to an Orchestrator.
func NewBatchMatchHandler(orchestrator *service.Orchestrator) *BatchMatchHandler {
	return &BatchMatchHandler{orchestrator: orchestrator}
}

// HandleBatchMatchTask implements asynq.Handler via HandleFunc registration.
func (h *BatchMatchHandler) HandleBatchMatchTask(ctx context.Context, t *asynq.Task) error {
	var payload BatchMatchPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	_, err := h.orchestrator.Execute(ctx, payload.RunID, payload.TenantID, payload.RequestedBy, payload.BillIDs)
	if err != nil {
		return fmt.Errorf("jobs: batch match run %s: %w", payload.RunID, err)
	}
	return nil
}
