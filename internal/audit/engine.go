package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ai-audit/backend/internal/analysis"
	"github.com/ai-audit/backend/internal/connectors"
	"github.com/ai-audit/backend/internal/inference"
	"github.com/ai-audit/backend/internal/metrics"
	"github.com/ai-audit/backend/internal/models"
	"github.com/ai-audit/backend/internal/risk"
	"github.com/ai-audit/backend/pkg/logger"
)

const reportVersion = "1.0"

// SnapshotStore is the subset of the sqlite client the engine needs.
type SnapshotStore interface {
	InsertSnapshot(snap *models.ProfileSnapshot) error
	InsertReport(report *models.AuditReport) error
	InsertBreachAlerts(reportID string, alerts []models.BreachAlert) error
	InsertSession(session *models.ScanSession) error
	UpdateSession(session *models.ScanSession) error
}

// SnapshotCache is the subset of the redis client the engine needs.
// Nil cache disables caching entirely.
type SnapshotCache interface {
	GetSnapshot(ctx context.Context, platform models.Platform, username string) (*models.ProfileSnapshot, bool, error)
	SetSnapshot(ctx context.Context, snap *models.ProfileSnapshot, ttl time.Duration) error
	SetReport(ctx context.Context, report *models.AuditReport, ttl time.Duration) error
}

// BreachScanner checks collected snapshots against known breaches.
type BreachScanner interface {
	Configured() bool
	ScanSnapshots(ctx context.Context, snapshots []models.ProfileSnapshot) []models.BreachAlert
}

// Request describes one audit run.
type Request struct {
	UserID        string                     `json:"user_id"`
	Platforms     []models.Platform          `json:"platforms"`
	Usernames     map[models.Platform]string `json:"usernames,omitempty"`
	CheckBreaches bool                       `json:"check_breaches"`
}

// Progress is emitted as the audit advances through its stages.
type Progress struct {
	SessionID string          `json:"session_id"`
	Stage     string          `json:"stage"`
	Platform  models.Platform `json:"platform,omitempty"`
	Message   string          `json:"message"`
	Percent   int             `json:"percent"`
}

type ProgressFunc func(Progress)

// Engine runs the full audit pipeline: collect, infer, score,
// recommend, scan, persist.
type Engine struct {
	connectors   *connectors.Registry
	orchestrator *inference.Orchestrator
	aggregator   *risk.Aggregator
	generator    *risk.Generator
	extensions   *analysis.Registry
	breach       BreachScanner
	store        SnapshotStore
	cache        SnapshotCache
	snapshotTTL  time.Duration
	now          func() time.Time
}

type EngineConfig struct {
	Connectors   *connectors.Registry
	Orchestrator *inference.Orchestrator
	Extensions   *analysis.Registry
	Breach       BreachScanner
	Store        SnapshotStore
	Cache        SnapshotCache
	SnapshotTTL  time.Duration
}

func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.Connectors == nil {
		return nil, fmt.Errorf("connector registry is required")
	}
	if cfg.Orchestrator == nil {
		return nil, fmt.Errorf("orchestrator is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg.SnapshotTTL <= 0 {
		cfg.SnapshotTTL = 24 * time.Hour
	}
	if cfg.Extensions == nil {
		cfg.Extensions = analysis.NewRegistry()
	}

	return &Engine{
		connectors:   cfg.Connectors,
		orchestrator: cfg.Orchestrator,
		aggregator:   risk.NewAggregator(),
		generator:    risk.NewGenerator(),
		extensions:   cfg.Extensions,
		breach:       cfg.Breach,
		store:        cfg.Store,
		cache:        cfg.Cache,
		snapshotTTL:  cfg.SnapshotTTL,
		now:          time.Now,
	}, nil
}

func (e *Engine) validate(req Request) error {
	if req.UserID == "" {
		return fmt.Errorf("user_id is required")
	}
	if len(req.Platforms) == 0 {
		return fmt.Errorf("at least one platform is required")
	}
	for _, p := range req.Platforms {
		if !p.Valid() {
			return fmt.Errorf("unknown platform %q", p)
		}
	}
	return nil
}

// RunAudit executes the full pipeline. Configuration problems fail
// fast; a platform that cannot be collected degrades the audit instead
// of aborting it.
func (e *Engine) RunAudit(ctx context.Context, req Request, progress ProgressFunc) (*models.AuditReport, error) {
	if err := e.validate(req); err != nil {
		return nil, err
	}
	if progress == nil {
		progress = func(Progress) {}
	}

	started := e.now()
	session := &models.ScanSession{
		SessionID: uuid.New().String(),
		Platforms: req.Platforms,
		Status:    "running",
		StartedAt: started.UTC(),
	}
	if err := e.store.InsertSession(session); err != nil {
		return nil, fmt.Errorf("failed to record session: %w", err)
	}

	report, err := e.run(ctx, req, session, progress)

	completed := e.now().UTC()
	session.CompletedAt = &completed
	if err != nil {
		session.Status = "failed"
		session.ErrorMessage = err.Error()
		metrics.AuditTotal.WithLabelValues("failed").Inc()
		metrics.AuditDuration.WithLabelValues("failed").Observe(completed.Sub(started.UTC()).Seconds())
	} else {
		session.Status = "completed"
		metrics.AuditTotal.WithLabelValues("completed").Inc()
		metrics.AuditDuration.WithLabelValues("completed").Observe(completed.Sub(started.UTC()).Seconds())
	}
	if updateErr := e.store.UpdateSession(session); updateErr != nil {
		logger.Error("Failed to update session", zap.Error(updateErr))
	}

	return report, err
}

func (e *Engine) run(ctx context.Context, req Request, session *models.ScanSession, progress ProgressFunc) (*models.AuditReport, error) {
	snapshots := e.collectSnapshots(ctx, req, session.SessionID, progress)
	if len(snapshots) == 0 {
		return nil, fmt.Errorf("no profile data could be collected for any requested platform")
	}

	progress(Progress{
		SessionID: session.SessionID,
		Stage:     "inferring",
		Message:   fmt.Sprintf("Running inference over %d snapshots", len(snapshots)),
		Percent:   40,
	})

	inferences, err := e.orchestrator.AnalyzeProfiles(ctx, snapshots)
	if err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}
	for _, inf := range inferences {
		metrics.InferencesTotal.WithLabelValues(string(inf.Type), "accepted").Inc()
		metrics.ProducerConfidence.WithLabelValues(inf.ProducerID).Observe(inf.Confidence)
	}

	progress(Progress{
		SessionID: session.SessionID,
		Stage:     "scoring",
		Message:   fmt.Sprintf("Scoring %d inferences", len(inferences)),
		Percent:   60,
	})

	privacyRisk := e.aggregator.CalculatePrivacyRisk(inferences, snapshots)
	recommendations := e.generator.GenerateRecommendations(inferences, snapshots)
	metrics.RiskScore.Observe(privacyRisk.OverallScore)

	var alerts []models.BreachAlert
	if req.CheckBreaches && e.breach != nil && e.breach.Configured() {
		progress(Progress{
			SessionID: session.SessionID,
			Stage:     "breach_scan",
			Message:   "Checking exposed emails against known breaches",
			Percent:   75,
		})
		alerts = e.breach.ScanSnapshots(ctx, snapshots)
		metrics.BreachChecks.WithLabelValues("completed").Inc()
	}

	extras := make(map[string]map[string]interface{})
	for name, findings := range e.extensions.RunAll(snapshots, inferences) {
		extras[name] = findings
	}
	if len(extras) == 0 {
		extras = nil
	}

	report := &models.AuditReport{
		ID:                uuid.New().String(),
		UserID:            req.UserID,
		PlatformsAnalyzed: platformsOf(snapshots),
		Snapshots:         snapshots,
		Inferences:        inferences,
		PrivacyRisk:       privacyRisk,
		Recommendations:   recommendations,
		BreachAlerts:      alerts,
		Extras:            extras,
		GeneratedAt:       e.now().UTC(),
		ReportVersion:     reportVersion,
	}

	if err := e.store.InsertReport(report); err != nil {
		return nil, fmt.Errorf("failed to persist report: %w", err)
	}
	if len(alerts) > 0 {
		if err := e.store.InsertBreachAlerts(report.ID, alerts); err != nil {
			logger.Error("Failed to persist breach alerts", zap.Error(err))
		}
	}
	if e.cache != nil {
		if err := e.cache.SetReport(ctx, report, e.snapshotTTL); err != nil {
			logger.Warn("Failed to cache report", zap.Error(err))
		}
	}

	progress(Progress{
		SessionID: session.SessionID,
		Stage:     "complete",
		Message:   fmt.Sprintf("Audit complete, risk score %.1f", privacyRisk.OverallScore),
		Percent:   100,
	})

	logger.Info("Audit completed",
		zap.String("report_id", report.ID),
		zap.String("user_id", req.UserID),
		zap.Int("snapshots", len(snapshots)),
		zap.Int("inferences", len(inferences)),
		zap.Float64("risk_score", privacyRisk.OverallScore),
	)

	return report, nil
}

// collectSnapshots gathers one snapshot per requested platform, taking
// the cache first. Per-platform failures are logged and skipped.
func (e *Engine) collectSnapshots(ctx context.Context, req Request, sessionID string, progress ProgressFunc) []models.ProfileSnapshot {
	var snapshots []models.ProfileSnapshot

	for i, platform := range req.Platforms {
		if ctx.Err() != nil {
			break
		}

		username := req.UserID
		if override, ok := req.Usernames[platform]; ok && override != "" {
			username = override
		}

		progress(Progress{
			SessionID: sessionID,
			Stage:     "collecting",
			Platform:  platform,
			Message:   fmt.Sprintf("Collecting %s profile", platform),
			Percent:   (i + 1) * 30 / len(req.Platforms),
		})

		if e.cache != nil {
			cached, hit, err := e.cache.GetSnapshot(ctx, platform, username)
			if err != nil {
				logger.Warn("Snapshot cache lookup failed", zap.Error(err))
			} else if hit {
				metrics.CacheHits.WithLabelValues("snapshot").Inc()
				metrics.SnapshotsCollected.WithLabelValues(string(platform), "cache").Inc()
				snapshots = append(snapshots, *cached)
				continue
			}
			metrics.CacheMisses.WithLabelValues("snapshot").Inc()
		}

		connector, err := e.connectors.Lookup(platform)
		if err != nil {
			logger.Warn("No connector for platform",
				zap.String("platform", string(platform)),
			)
			continue
		}
		if !connector.Configured() {
			logger.Warn("Connector not configured",
				zap.String("platform", string(platform)),
			)
			continue
		}

		snap, err := connector.FetchProfile(ctx, username)
		if err != nil {
			logger.Warn("Profile collection failed",
				zap.String("platform", string(platform)),
				zap.String("username", username),
				zap.Error(err),
			)
			continue
		}

		if err := e.store.InsertSnapshot(snap); err != nil {
			logger.Error("Failed to persist snapshot", zap.Error(err))
		}
		if e.cache != nil {
			if err := e.cache.SetSnapshot(ctx, snap, e.snapshotTTL); err != nil {
				logger.Warn("Failed to cache snapshot", zap.Error(err))
			}
		}

		metrics.SnapshotsCollected.WithLabelValues(string(platform), "live").Inc()
		snapshots = append(snapshots, *snap)
	}

	return snapshots
}

func platformsOf(snapshots []models.ProfileSnapshot) []models.Platform {
	seen := make(map[models.Platform]struct{})
	var out []models.Platform
	for _, snap := range snapshots {
		if _, dup := seen[snap.Platform]; dup {
			continue
		}
		seen[snap.Platform] = struct{}{}
		out = append(out, snap.Platform)
	}
	return out
}
