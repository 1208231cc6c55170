package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qinqiang2000/RedBlueMatcher/internal/domain"
	"github.com/qinqiang2000/RedBlueMatcher/internal/jobs"
	"github.com/qinqiang2000/RedBlueMatcher/internal/match"
	"github.com/qinqiang2000/RedBlueMatcher/internal/middleware"
	"github.com/qinqiang2000/RedBlueMatcher/internal/port"
	"github.com/qinqiang2000/RedBlueMatcher/internal/service"
)

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

type fakeBillRepo struct {
	ok map[string]bool
}

func (f *fakeBillRepo) GetBill(_ context.Context, tenantID, billID string) (*domain.BillHeader, error) {
	if !f.ok[billID] {
		return nil, domain.ErrBillNotFound
	}
	return &domain.BillHeader{ID: billID, TenantID: tenantID, BuyerTaxNo: "B1", SellerTaxNo: "S1"}, nil
}

func (f *fakeBillRepo) ListBillLines(context.Context, string, string) ([]domain.BillLine, error) {
	return nil, nil
}

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

type fakeStorage struct {
	presignedURL string
	presignErr   error
}

func (f *fakeStorage) Upload(context.Context, port.UploadInput) (*port.UploadOutput, error) {
	return &port.UploadOutput{}, nil
}
func (f *fakeStorage) Delete(context.Context, string, string) error { return nil }
func (f *fakeStorage) GetPresignedURL(context.Context, string, string, int64) (string, error) {
	return f.presignedURL, f.presignErr
}

func newTestBatchHandler(t *testing.T, ok map[string]bool, storage port.ObjectStorage) (*BatchHandler, *fakeRunRepo) {
	t.Helper()
	engine := match.New(&fakeBillRepo{ok: ok}, noopPool{}, noopRecords{}, func() time.Time { return time.Unix(0, 0) })
	runs := newFakeRunRepo()
	orchestrator := service.NewOrchestrator(engine, runs, service.OrchestratorConfig{}, nil, nil, nil, nil)

	mr := miniredis.RunT(t)
	jobsClient := jobs.NewClient(mr.Addr(), 0)
	t.Cleanup(func() { _ = jobsClient.Close() })

	return NewBatchHandler(orchestrator, jobsClient, storage, "results", 3600), runs
}

func testContext(tenantID, userID uuid.UUID, role domain.UserRole, method, path string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	var reqBody *bytes.Reader
	if body != nil {
		reqBody = bytes.NewReader(body)
	} else {
		reqBody = bytes.NewReader(nil)
	}
	c.Request, _ = http.NewRequest(method, path, reqBody)
	c.Request.Header.Set("Content-Type", "application/json")
	c.Set(middleware.ContextKeyTenantID, tenantID)
	c.Set(middleware.ContextKeyUserID, userID)
	c.Set(middleware.ContextKeyRole, string(role))
	return c, w
}

func TestBatchHandler_Create_Success(t *testing.T) {
	h, runs := newTestBatchHandler(t, map[string]bool{"b1": true}, &fakeStorage{})

	tenantID := uuid.New()
	userID := uuid.New()
	body, _ := json.Marshal(createBatchMatchInput{BillIDs: []string{"b1"}})

	c, w := testContext(tenantID, userID, domain.RoleAdmin,
		http.MethodPost, "/api/v1/tenants/"+tenantID.String()+"/batch-matches", body)
	c.Params = gin.Params{{Key: "tenant_id", Value: tenantID.String()}}

	h.Create(c)

	require.Equal(t, http.StatusAccepted, w.Code)

	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)

	_, _ = runs.ListOutcomes(context.Background(), "")
}

func TestBatchHandler_Create_TenantMismatch(t *testing.T) {
	h, _ := newTestBatchHandler(t, map[string]bool{"b1": true}, &fakeStorage{})

	pathTenant := uuid.New()
	ctxTenant := uuid.New()
	body, _ := json.Marshal(createBatchMatchInput{BillIDs: []string{"b1"}})

	c, w := testContext(ctxTenant, uuid.New(), domain.RoleAdmin,
		http.MethodPost, "/api/v1/tenants/"+pathTenant.String()+"/batch-matches", body)
	c.Params = gin.Params{{Key: "tenant_id", Value: pathTenant.String()}}

	h.Create(c)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestBatchHandler_Create_ValidationError(t *testing.T) {
	h, _ := newTestBatchHandler(t, map[string]bool{"b1": true}, &fakeStorage{})

	tenantID := uuid.New()
	body, _ := json.Marshal(createBatchMatchInput{BillIDs: nil})

	c, w := testContext(tenantID, uuid.New(), domain.RoleAdmin,
		http.MethodPost, "/api/v1/tenants/"+tenantID.String()+"/batch-matches", body)
	c.Params = gin.Params{{Key: "tenant_id", Value: tenantID.String()}}

	h.Create(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBatchHandler_Create_InvalidTenantID(t *testing.T) {
	h, _ := newTestBatchHandler(t, map[string]bool{"b1": true}, &fakeStorage{})

	c, w := testContext(uuid.New(), uuid.New(), domain.RoleAdmin,
		http.MethodPost, "/api/v1/tenants/not-a-uuid/batch-matches", []byte(`{}`))
	c.Params = gin.Params{{Key: "tenant_id", Value: "not-a-uuid"}}

	h.Create(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBatchHandler_Status_WithPresignedResult(t *testing.T) {
	h, runs := newTestBatchHandler(t, map[string]bool{"b1": true}, &fakeStorage{presignedURL: "https://example.test/result.xlsx"})

	tenantID := uuid.New()
	run := &domain.MatchRun{
		ID: "run-1", TenantID: tenantID.String(), RequestedBy: uuid.New().String(),
		Status: domain.MatchRunCompleted, ResultObjectKey: "tenant/batch-matches/run-1.xlsx",
	}
	require.NoError(t, runs.CreateRun(context.Background(), run))

	c, w := testContext(tenantID, uuid.New(), domain.RoleMember,
		http.MethodGet, "/api/v1/tenants/"+tenantID.String()+"/batch-matches/run-1", nil)
	c.Params = gin.Params{{Key: "tenant_id", Value: tenantID.String()}, {Key: "run_id", Value: "run-1"}}

	h.Status(c)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Success bool           `json:"success"`
		Data    batchMatchView `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Data.ResultURL)
	assert.Equal(t, "https://example.test/result.xlsx", *resp.Data.ResultURL)
}

func TestBatchHandler_Status_NotFound(t *testing.T) {
	h, _ := newTestBatchHandler(t, map[string]bool{}, &fakeStorage{})

	tenantID := uuid.New()
	c, w := testContext(tenantID, uuid.New(), domain.RoleMember,
		http.MethodGet, "/api/v1/tenants/"+tenantID.String()+"/batch-matches/missing", nil)
	c.Params = gin.Params{{Key: "tenant_id", Value: tenantID.String()}, {Key: "run_id", Value: "missing"}}

	h.Status(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
