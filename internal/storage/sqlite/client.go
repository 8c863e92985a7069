package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/ai-audit/backend/internal/models"
	"github.com/ai-audit/backend/pkg/logger"
)

type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec("PRAGMA foreign_keys = ON")
	if err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	_, err = db.Exec("PRAGMA journal_mode = WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS snapshots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		platform TEXT NOT NULL,
		username TEXT NOT NULL,
		user_id TEXT,
		profile_text TEXT NOT NULL,
		metadata TEXT,
		collected_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_snapshots_lookup ON snapshots(platform, username, collected_at);

	CREATE TABLE IF NOT EXISTS audit_reports (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		overall_score REAL NOT NULL,
		report_json TEXT NOT NULL,
		generated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_reports_user ON audit_reports(user_id);
	CREATE INDEX IF NOT EXISTS idx_reports_generated ON audit_reports(generated_at);

	CREATE TABLE IF NOT EXISTS remediation_actions (
		action_id TEXT PRIMARY KEY,
		report_id TEXT,
		action_type TEXT NOT NULL,
		platform TEXT NOT NULL,
		description TEXT NOT NULL,
		status TEXT NOT NULL,
		scheduled_for INTEGER,
		completed_at INTEGER,
		error_message TEXT,
		rollback_info TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_actions_report ON remediation_actions(report_id);
	CREATE INDEX IF NOT EXISTS idx_actions_status ON remediation_actions(status);

	CREATE TABLE IF NOT EXISTS scan_sessions (
		session_id TEXT PRIMARY KEY,
		platforms TEXT NOT NULL,
		status TEXT NOT NULL,
		error_message TEXT,
		started_at INTEGER NOT NULL,
		completed_at INTEGER
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_started ON scan_sessions(started_at);

	CREATE TABLE IF NOT EXISTS breach_alerts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		report_id TEXT,
		email TEXT NOT NULL,
		breach_name TEXT NOT NULL,
		breach_date INTEGER,
		compromised_data TEXT,
		severity TEXT NOT NULL,
		detected_at INTEGER NOT NULL,
		resolved INTEGER DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_breach_email ON breach_alerts(email);
	CREATE INDEX IF NOT EXISTS idx_breach_report ON breach_alerts(report_id);
	`

	_, err := c.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

// InsertSnapshot appends a new snapshot row. Existing rows for the same
// (platform, username) are never mutated; readers take the newest.
func (c *Client) InsertSnapshot(snap *models.ProfileSnapshot) error {
	metadataJSON, err := json.Marshal(snap.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot metadata: %w", err)
	}

	query := `
		INSERT INTO snapshots (platform, username, user_id, profile_text, metadata, collected_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err = c.db.Exec(
		query,
		string(snap.Platform),
		snap.Username,
		snap.UserID,
		snap.ProfileText,
		string(metadataJSON),
		snap.CollectedAt.Unix(),
	)

	if err != nil {
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}

	logger.Debug("Snapshot stored",
		zap.String("platform", string(snap.Platform)),
		zap.String("username", snap.Username),
	)
	return nil
}

// GetLatestSnapshot returns the newest snapshot for the pair, or nil
// when none has ever been collected.
func (c *Client) GetLatestSnapshot(platform models.Platform, username string) (*models.ProfileSnapshot, error) {
	query := `
		SELECT platform, username, user_id, profile_text, metadata, collected_at
		FROM snapshots
		WHERE platform = ? AND username = ?
		ORDER BY collected_at DESC
		LIMIT 1
	`

	var snap models.ProfileSnapshot
	var metadataJSON string
	var collectedAt int64

	err := c.db.QueryRow(query, string(platform), username).Scan(
		&snap.Platform,
		&snap.Username,
		&snap.UserID,
		&snap.ProfileText,
		&metadataJSON,
		&collectedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}

	if err := json.Unmarshal([]byte(metadataJSON), &snap.Metadata); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot metadata: %w", err)
	}
	snap.CollectedAt = time.Unix(collectedAt, 0).UTC()

	return &snap, nil
}

func (c *Client) InsertReport(report *models.AuditReport) error {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	query := `
		INSERT INTO audit_reports (id, user_id, overall_score, report_json, generated_at)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err = c.db.Exec(
		query,
		report.ID,
		report.UserID,
		report.PrivacyRisk.OverallScore,
		string(reportJSON),
		report.GeneratedAt.Unix(),
	)

	if err != nil {
		return fmt.Errorf("failed to insert report: %w", err)
	}

	logger.Info("Audit report stored",
		zap.String("report_id", report.ID),
		zap.String("user_id", report.UserID),
		zap.Float64("score", report.PrivacyRisk.OverallScore),
	)
	return nil
}

func (c *Client) GetReport(id string) (*models.AuditReport, error) {
	query := `SELECT report_json FROM audit_reports WHERE id = ?`

	var reportJSON string
	err := c.db.QueryRow(query, id).Scan(&reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report: %w", err)
	}

	var report models.AuditReport
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}
	return &report, nil
}

// ReportSummary is the history view of a stored report.
type ReportSummary struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	OverallScore float64   `json:"overall_score"`
	GeneratedAt  time.Time `json:"generated_at"`
}

func (c *Client) ListReports(userID string, limit int) ([]ReportSummary, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, user_id, overall_score, generated_at
		FROM audit_reports
		WHERE user_id = ?
		ORDER BY generated_at DESC
		LIMIT ?
	`

	rows, err := c.db.Query(query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()

	var summaries []ReportSummary
	for rows.Next() {
		var s ReportSummary
		var generatedAt int64

		if err := rows.Scan(&s.ID, &s.UserID, &s.OverallScore, &generatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		s.GeneratedAt = time.Unix(generatedAt, 0).UTC()
		summaries = append(summaries, s)
	}

	return summaries, rows.Err()
}

func (c *Client) InsertAction(reportID string, action *models.RemediationAction) error {
	rollbackJSON, err := json.Marshal(action.RollbackInfo)
	if err != nil {
		return fmt.Errorf("failed to marshal rollback info: %w", err)
	}

	query := `
		INSERT INTO remediation_actions
			(action_id, report_id, action_type, platform, description, status, scheduled_for, completed_at, error_message, rollback_info)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = c.db.Exec(
		query,
		action.ActionID,
		reportID,
		string(action.ActionType),
		string(action.Platform),
		action.Description,
		string(action.Status),
		nullableUnix(action.ScheduledFor),
		nullableUnix(action.CompletedAt),
		action.ErrorMessage,
		string(rollbackJSON),
	)

	if err != nil {
		return fmt.Errorf("failed to insert action: %w", err)
	}
	return nil
}

// UpdateAction persists the mutable fields after a status transition.
func (c *Client) UpdateAction(action *models.RemediationAction) error {
	query := `
		UPDATE remediation_actions
		SET status = ?, completed_at = ?, error_message = ?
		WHERE action_id = ?
	`

	result, err := c.db.Exec(
		query,
		string(action.Status),
		nullableUnix(action.CompletedAt),
		action.ErrorMessage,
		action.ActionID,
	)
	if err != nil {
		return fmt.Errorf("failed to update action: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("action %s not found", action.ActionID)
	}
	return nil
}

func (c *Client) GetAction(actionID string) (*models.RemediationAction, error) {
	query := `
		SELECT action_id, action_type, platform, description, status, scheduled_for, completed_at, error_message, rollback_info
		FROM remediation_actions
		WHERE action_id = ?
	`

	var action models.RemediationAction
	var scheduledFor, completedAt sql.NullInt64
	var errorMessage sql.NullString
	var rollbackJSON string

	err := c.db.QueryRow(query, actionID).Scan(
		&action.ActionID,
		&action.ActionType,
		&action.Platform,
		&action.Description,
		&action.Status,
		&scheduledFor,
		&completedAt,
		&errorMessage,
		&rollbackJSON,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get action: %w", err)
	}

	action.ScheduledFor = unixPtr(scheduledFor)
	action.CompletedAt = unixPtr(completedAt)
	action.ErrorMessage = errorMessage.String
	if rollbackJSON != "" {
		if err := json.Unmarshal([]byte(rollbackJSON), &action.RollbackInfo); err != nil {
			return nil, fmt.Errorf("failed to parse rollback info: %w", err)
		}
	}

	return &action, nil
}

func (c *Client) ListActionsByReport(reportID string) ([]models.RemediationAction, error) {
	query := `
		SELECT action_id, action_type, platform, description, status, scheduled_for, completed_at, error_message, rollback_info
		FROM remediation_actions
		WHERE report_id = ?
		ORDER BY scheduled_for ASC
	`

	rows, err := c.db.Query(query, reportID)
	if err != nil {
		return nil, fmt.Errorf("failed to list actions: %w", err)
	}
	defer rows.Close()

	var actions []models.RemediationAction
	for rows.Next() {
		var action models.RemediationAction
		var scheduledFor, completedAt sql.NullInt64
		var errorMessage sql.NullString
		var rollbackJSON string

		err := rows.Scan(
			&action.ActionID,
			&action.ActionType,
			&action.Platform,
			&action.Description,
			&action.Status,
			&scheduledFor,
			&completedAt,
			&errorMessage,
			&rollbackJSON,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		action.ScheduledFor = unixPtr(scheduledFor)
		action.CompletedAt = unixPtr(completedAt)
		action.ErrorMessage = errorMessage.String
		if rollbackJSON != "" {
			if err := json.Unmarshal([]byte(rollbackJSON), &action.RollbackInfo); err != nil {
				return nil, fmt.Errorf("failed to parse rollback info: %w", err)
			}
		}
		actions = append(actions, action)
	}

	return actions, rows.Err()
}

func (c *Client) InsertSession(session *models.ScanSession) error {
	platformsJSON, err := json.Marshal(session.Platforms)
	if err != nil {
		return fmt.Errorf("failed to marshal session platforms: %w", err)
	}

	query := `
		INSERT INTO scan_sessions (session_id, platforms, status, error_message, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err = c.db.Exec(
		query,
		session.SessionID,
		string(platformsJSON),
		session.Status,
		session.ErrorMessage,
		session.StartedAt.Unix(),
		nullableUnix(session.CompletedAt),
	)

	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	return nil
}

func (c *Client) UpdateSession(session *models.ScanSession) error {
	query := `
		UPDATE scan_sessions
		SET status = ?, error_message = ?, completed_at = ?
		WHERE session_id = ?
	`

	_, err := c.db.Exec(
		query,
		session.Status,
		session.ErrorMessage,
		nullableUnix(session.CompletedAt),
		session.SessionID,
	)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	return nil
}

func (c *Client) GetSession(sessionID string) (*models.ScanSession, error) {
	query := `
		SELECT session_id, platforms, status, error_message, started_at, completed_at
		FROM scan_sessions
		WHERE session_id = ?
	`

	var session models.ScanSession
	var platformsJSON string
	var errorMessage sql.NullString
	var startedAt int64
	var completedAt sql.NullInt64

	err := c.db.QueryRow(query, sessionID).Scan(
		&session.SessionID,
		&platformsJSON,
		&session.Status,
		&errorMessage,
		&startedAt,
		&completedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	if err := json.Unmarshal([]byte(platformsJSON), &session.Platforms); err != nil {
		return nil, fmt.Errorf("failed to parse session platforms: %w", err)
	}
	session.ErrorMessage = errorMessage.String
	session.StartedAt = time.Unix(startedAt, 0).UTC()
	session.CompletedAt = unixPtr(completedAt)

	return &session, nil
}

func (c *Client) InsertBreachAlerts(reportID string, alerts []models.BreachAlert) error {
	query := `
		INSERT INTO breach_alerts (report_id, email, breach_name, breach_date, compromised_data, severity, detected_at, resolved)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	for _, alert := range alerts {
		compromisedJSON, err := json.Marshal(alert.CompromisedData)
		if err != nil {
			return fmt.Errorf("failed to marshal compromised data: %w", err)
		}

		resolved := 0
		if alert.Resolved {
			resolved = 1
		}

		_, err = c.db.Exec(
			query,
			reportID,
			alert.Email,
			alert.BreachName,
			alert.BreachDate.Unix(),
			string(compromisedJSON),
			string(alert.Severity),
			alert.DetectedAt.Unix(),
			resolved,
		)
		if err != nil {
			return fmt.Errorf("failed to insert breach alert: %w", err)
		}
	}

	return nil
}

func (c *Client) ListBreachAlerts(email string) ([]models.BreachAlert, error) {
	query := `
		SELECT email, breach_name, breach_date, compromised_data, severity, detected_at, resolved
		FROM breach_alerts
		WHERE email = ?
		ORDER BY breach_date DESC
	`

	rows, err := c.db.Query(query, email)
	if err != nil {
		return nil, fmt.Errorf("failed to list breach alerts: %w", err)
	}
	defer rows.Close()

	var alerts []models.BreachAlert
	for rows.Next() {
		var alert models.BreachAlert
		var breachDate, detectedAt int64
		var compromisedJSON string
		var resolved int

		err := rows.Scan(
			&alert.Email,
			&alert.BreachName,
			&breachDate,
			&compromisedJSON,
			&alert.Severity,
			&detectedAt,
			&resolved,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		if err := json.Unmarshal([]byte(compromisedJSON), &alert.CompromisedData); err != nil {
			return nil, fmt.Errorf("failed to parse compromised data: %w", err)
		}
		alert.BreachDate = time.Unix(breachDate, 0).UTC()
		alert.DetectedAt = time.Unix(detectedAt, 0).UTC()
		alert.Resolved = resolved == 1
		alerts = append(alerts, alert)
	}

	return alerts, rows.Err()
}

func nullableUnix(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.Unix()
}

func unixPtr(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(v.Int64, 0).UTC()
	return &t
}
