package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/ai-audit/backend/internal/models"
	"github.com/ai-audit/backend/internal/remediation"
	"github.com/ai-audit/backend/pkg/logger"
)

// ActionStore persists remediation actions. Satisfied by *sqlite.Client.
type ActionStore interface {
	GetReport(id string) (*models.AuditReport, error)
	InsertAction(reportID string, action *models.RemediationAction) error
	UpdateAction(action *models.RemediationAction) error
	GetAction(actionID string) (*models.RemediationAction, error)
	ListActionsByReport(reportID string) ([]models.RemediationAction, error)
}

// ActionRunner drives executor state transitions. Satisfied by
// *remediation.Runner.
type ActionRunner interface {
	ExecuteAction(ctx context.Context, action *models.RemediationAction) error
	RollbackAction(ctx context.Context, action *models.RemediationAction) error
}

type ActionsHandler struct {
	planner *remediation.Planner
	runner  ActionRunner
	store   ActionStore
}

func NewActionsHandler(planner *remediation.Planner, runner ActionRunner, store ActionStore) *ActionsHandler {
	return &ActionsHandler{
		planner: planner,
		runner:  runner,
		store:   store,
	}
}

// PlanActions derives and persists a remediation plan from a stored
// audit report.
func (h *ActionsHandler) PlanActions(c *fiber.Ctx) error {
	var req struct {
		ReportID string `json:"report_id"`
	}
	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.ReportID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "report_id is required",
		})
	}

	report, err := h.store.GetReport(req.ReportID)
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

	actions := h.planner.PlanActions(report.Snapshots, report.Inferences)
	for i := range actions {
		if err := h.store.InsertAction(report.ID, &actions[i]); err != nil {
			logger.Error("Failed to persist action", zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to persist plan",
			})
		}
	}

	logger.Info("Remediation plan created",
		zap.String("report_id", report.ID),
		zap.Int("actions", len(actions)),
	)

	return c.JSON(fiber.Map{
		"report_id": report.ID,
		"actions":   actions,
	})
}

func (h *ActionsHandler) ListActions(c *fiber.Ctx) error {
	reportID := c.Query("report_id")
	if reportID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "report_id is required",
		})
	}

	actions, err := h.store.ListActionsByReport(reportID)
	if err != nil {
		logger.Error("Failed to list actions", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list actions",
		})
	}

	if actions == nil {
		actions = []models.RemediationAction{}
	}
	return c.JSON(fiber.Map{
		"actions": actions,
	})
}

func (h *ActionsHandler) ExecuteAction(c *fiber.Ctx) error {
	action, errResp := h.loadAction(c)
	if action == nil {
		return errResp
	}

	if err := h.runner.ExecuteAction(c.Context(), action); err != nil {
		logger.Error("Action execution rejected",
			zap.String("action_id", action.ActionID),
			zap.Error(err),
		)
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	if err := h.store.UpdateAction(action); err != nil {
		logger.Error("Failed to persist action state", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to persist action state",
		})
	}

	return c.JSON(action)
}

func (h *ActionsHandler) RollbackAction(c *fiber.Ctx) error {
	action, errResp := h.loadAction(c)
	if action == nil {
		return errResp
	}

	if err := h.runner.RollbackAction(c.Context(), action); err != nil {
		logger.Error("Action rollback rejected",
			zap.String("action_id", action.ActionID),
			zap.Error(err),
		)
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	if err := h.store.UpdateAction(action); err != nil {
		logger.Error("Failed to persist action state", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to persist action state",
		})
	}

	return c.JSON(action)
}

func (h *ActionsHandler) loadAction(c *fiber.Ctx) (*models.RemediationAction, error) {
	actionID := c.Params("id")

	action, err := h.store.GetAction(actionID)
	if err != nil {
		logger.Error("Failed to load action", zap.Error(err))
		return nil, c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load action",
		})
	}
	if action == nil {
		return nil, c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Action not found",
		})
	}
	return action, nil
}
