package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ai-audit/backend/internal/audit"
	"github.com/ai-audit/backend/internal/models"
	"github.com/ai-audit/backend/internal/remediation"
	"github.com/ai-audit/backend/internal/storage/sqlite"
)

type stubRunner struct {
	report *models.AuditReport
	err    error
	gotReq audit.Request
}

func (s *stubRunner) RunAudit(ctx context.Context, req audit.Request, progress audit.ProgressFunc) (*models.AuditReport, error) {
	s.gotReq = req
	return s.report, s.err
}

type stubReportStore struct {
	reports   map[string]*models.AuditReport
	summaries []sqlite.ReportSummary
	actions   map[string]*models.RemediationAction
	inserted  []models.RemediationAction
}

func newStubReportStore() *stubReportStore {
	return &stubReportStore{
		reports: map[string]*models.AuditReport{},
		actions: map[string]*models.RemediationAction{},
	}
}

func (s *stubReportStore) GetReport(id string) (*models.AuditReport, error) {
	return s.reports[id], nil
}

func (s *stubReportStore) ListReports(userID string, limit int) ([]sqlite.ReportSummary, error) {
	return s.summaries, nil
}

func (s *stubReportStore) InsertAction(reportID string, action *models.RemediationAction) error {
	s.inserted = append(s.inserted, *action)
	s.actions[action.ActionID] = action
	return nil
}

func (s *stubReportStore) UpdateAction(action *models.RemediationAction) error {
	s.actions[action.ActionID] = action
	return nil
}

func (s *stubReportStore) GetAction(actionID string) (*models.RemediationAction, error) {
	return s.actions[actionID], nil
}

func (s *stubReportStore) ListActionsByReport(reportID string) ([]models.RemediationAction, error) {
	var out []models.RemediationAction
	for _, a := range s.actions {
		out = append(out, *a)
	}
	return out, nil
}

type stubActionRunner struct {
	execErr error
}

func (s *stubActionRunner) ExecuteAction(ctx context.Context, action *models.RemediationAction) error {
	if s.execErr != nil {
		return s.execErr
	}
	action.Status = models.ActionCompleted
	return nil
}

func (s *stubActionRunner) RollbackAction(ctx context.Context, action *models.RemediationAction) error {
	if action.Status != models.ActionCompleted {
		return remediation.ErrRollbackNotAllowed
	}
	action.Status = models.ActionRolledBack
	return nil
}

func sampleReport(id string) *models.AuditReport {
	return &models.AuditReport{
		ID:     id,
		UserID: "user-1",
		PrivacyRisk: models.PrivacyRisk{
			OverallScore: 4.2,
			CalculatedAt: time.Now(),
		},
		GeneratedAt:   time.Now(),
		ReportVersion: "1.0",
	}
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body interface{}) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestRunAudit_ReturnsReport(t *testing.T) {
	runner := &stubRunner{report: sampleReport("rpt-1")}
	h := NewAuditHandler(runner, newStubReportStore(), nil)

	app := fiber.New()
	app.Post("/audit", h.RunAudit)

	resp := doJSON(t, app, http.MethodPost, "/audit", audit.Request{
		UserID:    "user-1",
		Platforms: []models.Platform{models.PlatformGitHub},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, "rpt-1", body["id"])
	assert.Equal(t, "user-1", runner.gotReq.UserID)
}

func TestRunAudit_EngineError(t *testing.T) {
	runner := &stubRunner{err: errors.New("no profile data could be collected")}
	h := NewAuditHandler(runner, newStubReportStore(), nil)

	app := fiber.New()
	app.Post("/audit", h.RunAudit)

	resp := doJSON(t, app, http.MethodPost, "/audit", audit.Request{UserID: "user-1"})
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Contains(t, body["error"], "no profile data")
}

func TestGetHistory_RequiresUserID(t *testing.T) {
	h := NewAuditHandler(&stubRunner{}, newStubReportStore(), nil)

	app := fiber.New()
	app.Get("/audit/history", h.GetHistory)

	resp := doJSON(t, app, http.MethodGet, "/audit/history", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetHistory_EmptyIsNotNull(t *testing.T) {
	h := NewAuditHandler(&stubRunner{}, newStubReportStore(), nil)

	app := fiber.New()
	app.Get("/audit/history", h.GetHistory)

	resp := doJSON(t, app, http.MethodGet, "/audit/history?user_id=user-1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	history, ok := body["history"].([]interface{})
	require.True(t, ok)
	assert.Empty(t, history)
}

func TestGetReport_NotFound(t *testing.T) {
	h := NewAuditHandler(&stubRunner{}, newStubReportStore(), nil)

	app := fiber.New()
	app.Get("/audit/:id", h.GetReport)

	resp := doJSON(t, app, http.MethodGet, "/audit/missing", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetReport_FromStore(t *testing.T) {
	store := newStubReportStore()
	store.reports["rpt-1"] = sampleReport("rpt-1")
	h := NewAuditHandler(&stubRunner{}, store, nil)

	app := fiber.New()
	app.Get("/audit/:id", h.GetReport)

	resp := doJSON(t, app, http.MethodGet, "/audit/rpt-1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, "rpt-1", body["id"])
}

func TestPlanActions_MissingReport(t *testing.T) {
	h := NewActionsHandler(remediation.NewPlanner(), &stubActionRunner{}, newStubReportStore())

	app := fiber.New()
	app.Post("/actions/plan", h.PlanActions)

	resp := doJSON(t, app, http.MethodPost, "/actions/plan", fiber.Map{"report_id": "missing"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPlanActions_PersistsPlan(t *testing.T) {
	store := newStubReportStore()
	report := sampleReport("rpt-1")
	report.Snapshots = []models.ProfileSnapshot{
		{
			Platform: models.PlatformGitHub,
			Username: "octocat",
			Metadata: models.Metadata{"location": "Berlin"},
		},
	}
	report.Inferences = []models.Inference{
		{
			Type:            models.InferenceLocation,
			Value:           "Berlin",
			Confidence:      0.9,
			SourcePlatforms: []models.Platform{models.PlatformGitHub},
		},
	}
	store.reports["rpt-1"] = report

	h := NewActionsHandler(remediation.NewPlanner(), &stubActionRunner{}, store)

	app := fiber.New()
	app.Post("/actions/plan", h.PlanActions)

	resp := doJSON(t, app, http.MethodPost, "/actions/plan", fiber.Map{"report_id": "rpt-1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, "rpt-1", body["report_id"])
	assert.NotEmpty(t, store.inserted)
}

func TestExecuteAction_TransitionsAndPersists(t *testing.T) {
	store := newStubReportStore()
	store.actions["act-1"] = &models.RemediationAction{
		ActionID: "act-1",
		Status:   models.ActionPending,
	}

	h := NewActionsHandler(remediation.NewPlanner(), &stubActionRunner{}, store)

	app := fiber.New()
	app.Post("/actions/:id/execute", h.ExecuteAction)

	resp := doJSON(t, app, http.MethodPost, "/actions/act-1/execute", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, models.ActionCompleted, store.actions["act-1"].Status)
}

func TestExecuteAction_RejectionIsConflict(t *testing.T) {
	store := newStubReportStore()
	store.actions["act-1"] = &models.RemediationAction{
		ActionID: "act-1",
		Status:   models.ActionCompleted,
	}

	h := NewActionsHandler(remediation.NewPlanner(), &stubActionRunner{
		execErr: remediation.ErrInvalidTransition,
	}, store)

	app := fiber.New()
	app.Post("/actions/:id/execute", h.ExecuteAction)

	resp := doJSON(t, app, http.MethodPost, "/actions/act-1/execute", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

type deadConn struct{ writes int }

func (c *deadConn) WriteJSON(v interface{}) error {
	c.writes++
	return errors.New("connection reset by peer")
}

type cancelObservingRunner struct{}

func (r *cancelObservingRunner) RunAudit(ctx context.Context, req audit.Request, progress audit.ProgressFunc) (*models.AuditReport, error) {
	progress(audit.Progress{SessionID: "s1", Stage: "collecting", Percent: 10})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(time.Second):
		return nil, errors.New("audit kept running after the client disconnected")
	}
}

func TestStreamAudit_CancelsWhenClientGone(t *testing.T) {
	h := NewWebSocketHandler(&cancelObservingRunner{})
	conn := &deadConn{}

	err := h.streamAudit(context.Background(), conn, audit.Request{
		UserID:    "user-1",
		Platforms: []models.Platform{models.PlatformGitHub},
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, conn.writes)
}

func TestRollbackAction_OnlyFromCompleted(t *testing.T) {
	store := newStubReportStore()
	store.actions["done"] = &models.RemediationAction{
		ActionID: "done",
		Status:   models.ActionCompleted,
	}
	store.actions["pending"] = &models.RemediationAction{
		ActionID: "pending",
		Status:   models.ActionPending,
	}

	h := NewActionsHandler(remediation.NewPlanner(), &stubActionRunner{}, store)

	app := fiber.New()
	app.Post("/actions/:id/rollback", h.RollbackAction)

	resp := doJSON(t, app, http.MethodPost, "/actions/done/rollback", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, models.ActionRolledBack, store.actions["done"].Status)

	resp = doJSON(t, app, http.MethodPost, "/actions/pending/rollback", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}
