package sqlite

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ai-audit/backend/internal/models"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	client, err := NewClient(":memory:")
	require.NoError(t, err)
	require.NoError(t, client.InitSchema())
	t.Cleanup(func() { client.Close() })
	return client
}

func TestSnapshots_NewestWins(t *testing.T) {
	client := newTestClient(t)

	old := &models.ProfileSnapshot{
		Platform:    models.PlatformGitHub,
		Username:    "subject",
		ProfileText: "old bio",
		Metadata:    models.Metadata{"location": "Berlin"},
		CollectedAt: time.Now().Add(-2 * time.Hour),
	}
	current := &models.ProfileSnapshot{
		Platform:    models.PlatformGitHub,
		Username:    "subject",
		ProfileText: "new bio",
		Metadata:    models.Metadata{"location": "Munich"},
		CollectedAt: time.Now(),
	}

	require.NoError(t, client.InsertSnapshot(old))
	require.NoError(t, client.InsertSnapshot(current))

	got, err := client.GetLatestSnapshot(models.PlatformGitHub, "subject")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "new bio", got.ProfileText)
	assert.Equal(t, "Munich", got.Metadata.String("location"))
}

func TestGetLatestSnapshot_Missing(t *testing.T) {
	client := newTestClient(t)

	got, err := client.GetLatestSnapshot(models.PlatformTwitter, "nobody")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestReports_RoundTrip(t *testing.T) {
	client := newTestClient(t)

	report := &models.AuditReport{
		ID:                "report-1",
		UserID:            "subject",
		PlatformsAnalyzed: []models.Platform{models.PlatformGitHub},
		Inferences: []models.Inference{
			models.NewInference(models.InferenceLocation, "Berlin", 0.9, "", []models.Platform{models.PlatformGitHub}, "test"),
		},
		PrivacyRisk:   models.PrivacyRisk{OverallScore: 4.2},
		GeneratedAt:   time.Now().UTC(),
		ReportVersion: "1.0",
	}

	require.NoError(t, client.InsertReport(report))

	got, err := client.GetReport("report-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, report.ID, got.ID)
	assert.InDelta(t, 4.2, got.PrivacyRisk.OverallScore, 0.0001)
	require.Len(t, got.Inferences, 1)
	assert.Equal(t, models.InferenceLocation, got.Inferences[0].Type)

	summaries, err := client.ListReports("subject", 10)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "report-1", summaries[0].ID)
	assert.InDelta(t, 4.2, summaries[0].OverallScore, 0.0001)
}

func TestGetReport_Missing(t *testing.T) {
	client := newTestClient(t)

	got, err := client.GetReport("nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestActions_UpdateStatus(t *testing.T) {
	client := newTestClient(t)

	scheduled := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	action := &models.RemediationAction{
		ActionID:     "action-1",
		ActionType:   models.ActionRemoveData,
		Platform:     models.PlatformGitHub,
		Description:  "Remove location information from github profile",
		Status:       models.ActionPending,
		ScheduledFor: &scheduled,
		RollbackInfo: map[string]string{"field": "location"},
	}

	require.NoError(t, client.InsertAction("report-1", action))

	completed := time.Now().UTC().Truncate(time.Second)
	action.Status = models.ActionCompleted
	action.CompletedAt = &completed
	require.NoError(t, client.UpdateAction(action))

	got, err := client.GetAction("action-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, models.ActionCompleted, got.Status)
	require.NotNil(t, got.CompletedAt)
	assert.Equal(t, completed.Unix(), got.CompletedAt.Unix())
	assert.Equal(t, "location", got.RollbackInfo["field"])

	byReport, err := client.ListActionsByReport("report-1")
	require.NoError(t, err)
	require.Len(t, byReport, 1)
	assert.Equal(t, "action-1", byReport[0].ActionID)
}

func TestUpdateAction_Missing(t *testing.T) {
	client := newTestClient(t)

	err := client.UpdateAction(&models.RemediationAction{ActionID: "ghost", Status: models.ActionFailed})
	assert.Error(t, err)
}

func TestSessions_Lifecycle(t *testing.T) {
	client := newTestClient(t)

	session := &models.ScanSession{
		SessionID: "session-1",
		Platforms: []models.Platform{models.PlatformGitHub, models.PlatformTwitter},
		Status:    "running",
		StartedAt: time.Now().UTC(),
	}
	require.NoError(t, client.InsertSession(session))

	done := time.Now().UTC()
	session.Status = "completed"
	session.CompletedAt = &done
	require.NoError(t, client.UpdateSession(session))

	got, err := client.GetSession("session-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "completed", got.Status)
	assert.Len(t, got.Platforms, 2)
	assert.NotNil(t, got.CompletedAt)
}

func TestBreachAlerts_RoundTrip(t *testing.T) {
	client := newTestClient(t)

	alerts := []models.BreachAlert{
		{
			Email:           "victim@example.com",
			BreachName:      "Adobe",
			BreachDate:      time.Date(2013, 10, 4, 0, 0, 0, 0, time.UTC),
			CompromisedData: []string{"Email addresses", "Passwords"},
			Severity:        models.BreachSeverityCritical,
			DetectedAt:      time.Now().UTC(),
		},
	}
	require.NoError(t, client.InsertBreachAlerts("report-1", alerts))

	got, err := client.ListBreachAlerts("victim@example.com")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Adobe", got[0].BreachName)
	assert.Equal(t, models.BreachSeverityCritical, got[0].Severity)
	assert.Equal(t, []string{"Email addresses", "Passwords"}, got[0].CompromisedData)
}
