package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	AuditDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ai_audit_duration_seconds",
			Help:    "End-to-end audit duration in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"status"},
	)

	AuditTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_audit_total",
			Help: "Total number of audits run",
		},
		[]string{"status"},
	)

	SnapshotsCollected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_audit_snapshots_collected_total",
			Help: "Profile snapshots collected per platform",
		},
		[]string{"platform", "source"},
	)

	InferencesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_audit_inferences_total",
			Help: "Inferences produced, by type and outcome",
		},
		[]string{"type", "status"},
	)

	RiskScore = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ai_audit_risk_score",
			Help:    "Distribution of computed privacy risk scores",
			Buckets: []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10},
		},
	)

	ProducerConfidence = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ai_audit_producer_confidence",
			Help:    "Confidence of accepted inferences",
			Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		},
		[]string{"producer"},
	)

	ActionsExecuted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_audit_actions_executed_total",
			Help: "Remediation actions executed",
		},
		[]string{"platform", "action_type", "status"},
	)

	BreachChecks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_audit_breach_checks_total",
			Help: "Breach lookups performed",
		},
		[]string{"status"},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_audit_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_audit_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"cache_type"},
	)
)

func Init() {
	prometheus.MustRegister(AuditDuration)
	prometheus.MustRegister(AuditTotal)
	prometheus.MustRegister(SnapshotsCollected)
	prometheus.MustRegister(InferencesTotal)
	prometheus.MustRegister(RiskScore)
	prometheus.MustRegister(ProducerConfidence)
	prometheus.MustRegister(ActionsExecuted)
	prometheus.MustRegister(BreachChecks)
	prometheus.MustRegister(CacheHits)
	prometheus.MustRegister(CacheMisses)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
