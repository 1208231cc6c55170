package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/qinqiang2000/RedBlueMatcher/internal/domain"
	"github.com/qinqiang2000/RedBlueMatcher/internal/jobs"
	"github.com/qinqiang2000/RedBlueMatcher/internal/port"
	"github.com/qinqiang2000/RedBlueMatcher/internal/service"
)

// createBatchMatchInput is the request body for POST .../batch-matches.
type createBatchMatchInput struct {
	BillIDs []string `json:"bill_ids" binding:"required,min=1"`
}

// batchMatchView is the response shape for both the create and status
// endpoints.
type batchMatchView struct {
	RunID          string  `json:"run_id"`
	Status         string  `json:"status"`
	SuccessCount   int     `json:"success_count"`
	FailureCount   int     `json:"failure_count"`
	ShortfallTotal string  `json:"shortfall_total"`
	ResultURL      *string `json:"result_url,omitempty"`
}

// BatchHandler exposes the batch-match trigger and status endpoints.
type BatchHandler struct {
	orchestrator *service.Orchestrator
	jobs         *jobs.Client
	storage      port.ObjectStorage
	bucket       string
	presignSecs  int64
}

// NewBatchHandler creates a new BatchHandler.
func NewBatchHandler(orchestrator *service.Orchestrator, jobsClient *jobs.Client, storage port.ObjectStorage, bucket string, presignSecs int64) *BatchHandler {
	return &BatchHandler{orchestrator: orchestrator, jobs: jobsClient, storage: storage, bucket: bucket, presignSecs: presignSecs}
}

// Create handles POST /api/v1/tenants/:tenant_id/batch-matches.
func (h *BatchHandler) Create(c *gin.Context) {
	tenantID, err := uuid.Parse(c.Param("tenant_id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid tenant id")
		return
	}

	ctxTenantID, userID, _, ok := extractAuthContext(c)
	if !ok {
		return
	}
	if tenantID != ctxTenantID {
		RespondError(c, http.StatusForbidden, "FORBIDDEN", "tenant id does not match authenticated tenant")
		return
	}

	var input createBatchMatchInput
	if err := c.ShouldBindJSON(&input); err != nil {
		RespondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	run, err := h.orchestrator.Enqueue(c.Request.Context(), tenantID.String(), userID.String(), input.BillIDs)
	if err != nil {
		HandleError(c, err)
		return
	}

	_, err = h.jobs.EnqueueBatchMatch(c.Request.Context(), jobs.BatchMatchPayload{
		TenantID:    run.TenantID,
		RunID:       run.ID,
		RequestedBy: run.RequestedBy,
		BillIDs:     run.BillIDs,
	})
	if err != nil {
		HandleError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, APIResponse{Success: true, Data: toBatchMatchView(run)})
}

// Status handles GET /api/v1/tenants/:tenant_id/batch-matches/:run_id.
func (h *BatchHandler) Status(c *gin.Context) {
	tenantID, err := uuid.Parse(c.Param("tenant_id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid tenant id")
		return
	}

	ctxTenantID, _, _, ok := extractAuthContext(c)
	if !ok {
		return
	}
	if tenantID != ctxTenantID {
		RespondError(c, http.StatusForbidden, "FORBIDDEN", "tenant id does not match authenticated tenant")
		return
	}

	run, err := h.orchestrator.GetRun(c.Request.Context(), tenantID.String(), c.Param("run_id"))
	if err != nil {
		HandleError(c, err)
		return
	}

	view := toBatchMatchView(run)
	if run.ResultObjectKey != "" {
		url, err := h.storage.GetPresignedURL(c.Request.Context(), h.bucket, run.ResultObjectKey, h.presignSecs)
		if err == nil {
			view.ResultURL = &url
		}
	}

	RespondOK(c, view)
}

func toBatchMatchView(run *domain.MatchRun) batchMatchView {
	return batchMatchView{
		RunID:          run.ID,
		Status:         string(run.Status),
		SuccessCount:   run.SuccessCount,
		FailureCount:   run.FailureCount,
		ShortfallTotal: run.ShortfallTotal.String(),
	}
}
