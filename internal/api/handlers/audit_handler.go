package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/ai-audit/backend/internal/audit"
	"github.com/ai-audit/backend/internal/models"
	"github.com/ai-audit/backend/internal/storage/sqlite"
	"github.com/ai-audit/backend/pkg/logger"
)

// AuditRunner runs the audit pipeline. Satisfied by *audit.Engine.
type AuditRunner interface {
	RunAudit(ctx context.Context, req audit.Request, progress audit.ProgressFunc) (*models.AuditReport, error)
}

// ReportStore reads persisted reports. Satisfied by *sqlite.Client.
type ReportStore interface {
	GetReport(id string) (*models.AuditReport, error)
	ListReports(userID string, limit int) ([]sqlite.ReportSummary, error)
}

// ReportCache serves recent reports without a database read. May be
// nil when caching is disabled.
type ReportCache interface {
	GetReport(ctx context.Context, reportID string) (*models.AuditReport, bool, error)
}

type AuditHandler struct {
	engine AuditRunner
	store  ReportStore
	cache  ReportCache
}

func NewAuditHandler(engine AuditRunner, store ReportStore, cache ReportCache) *AuditHandler {
	return &AuditHandler{
		engine: engine,
		store:  store,
		cache:  cache,
	}
}

func (h *AuditHandler) RunAudit(c *fiber.Ctx) error {
	var req audit.Request
	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	report, err := h.engine.RunAudit(c.Context(), req, nil)
	if err != nil {
		logger.Error("Audit failed", zap.Error(err), zap.String("user_id", req.UserID))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(report)
}

func (h *AuditHandler) GetHistory(c *fiber.Ctx) error {
	userID := c.Query("user_id")
	if userID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "user_id is required",
		})
	}
	limit := c.QueryInt("limit", 20)

	summaries, err := h.store.ListReports(userID, limit)
	if err != nil {
		logger.Error("Failed to list reports", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load report history",
		})
	}

	if summaries == nil {
		summaries = []sqlite.ReportSummary{}
	}
	return c.JSON(fiber.Map{
		"history": summaries,
	})
}

func (h *AuditHandler) GetReport(c *fiber.Ctx) error {
	reportID := c.Params("id")

	if h.cache != nil {
		report, hit, err := h.cache.GetReport(c.Context(), reportID)
		if err != nil {
			logger.Warn("Report cache lookup failed", zap.Error(err))
		} else if hit {
			return c.JSON(report)
		}
	}

	report, err := h.store.GetReport(reportID)
	if err != nil {
		logger.Error("Failed to load report", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load report",
		})
	}
	if report == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Report not found",
		})
	}

	return c.JSON(report)
}

func (h *AuditHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "ok",
	})
}
