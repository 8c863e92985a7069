package handlers

import (
	"context"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/ai-audit/backend/internal/audit"
	"github.com/ai-audit/backend/pkg/logger"
)

// WebSocketHandler streams audit progress to a connected client while
// the pipeline runs.
type WebSocketHandler struct {
	engine AuditRunner
}

func NewWebSocketHandler(engine AuditRunner) *WebSocketHandler {
	return &WebSocketHandler{
		engine: engine,
	}
}

func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	logger.Info("WebSocket connection established")

	defer func() {
		c.Close()
		logger.Info("WebSocket connection closed")
	}()

	for {
		var msg struct {
			Type    string        `json:"type"`
			Request audit.Request `json:"request"`
		}

		if err := c.ReadJSON(&msg); err != nil {
			logger.Debug("WebSocket read ended", zap.Error(err))
			break
		}

		if msg.Type != "audit" {
			continue
		}

		logger.Info("Processing WebSocket audit",
			zap.String("user_id", msg.Request.UserID),
		)

		if err := h.streamAudit(context.Background(), c, msg.Request); err != nil {
			logger.Error("Failed to stream audit", zap.Error(err))
			h.sendError(c, err.Error())
		}
	}
}

// progressConn is the slice of the websocket connection streamAudit
// writes to.
type progressConn interface {
	WriteJSON(v interface{}) error
}

func (h *WebSocketHandler) streamAudit(ctx context.Context, conn progressConn, req audit.Request) error {
	// A failed progress write means the client is gone; cancel the
	// audit instead of running it to completion for nobody.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	progress := func(p audit.Progress) {
		msg := map[string]interface{}{
			"type":       "progress",
			"session_id": p.SessionID,
			"stage":      p.Stage,
			"message":    p.Message,
			"percent":    p.Percent,
		}
		if p.Platform != "" {
			msg["platform"] = string(p.Platform)
		}
		if err := conn.WriteJSON(msg); err != nil {
			logger.Warn("Failed to write progress message, abandoning audit", zap.Error(err))
			cancel()
		}
	}

	report, err := h.engine.RunAudit(ctx, req, progress)
	if err != nil {
		return err
	}

	return conn.WriteJSON(map[string]interface{}{
		"type":              "complete",
		"report_id":         report.ID,
		"overall_score":     report.PrivacyRisk.OverallScore,
		"inference_count":   len(report.Inferences),
		"recommendations":   len(report.Recommendations),
		"platforms_scanned": report.PlatformsAnalyzed,
	})
}

func (h *WebSocketHandler) sendError(c *websocket.Conn, errorMsg string) {
	msg := map[string]interface{}{
		"type":  "error",
		"error": errorMsg,
	}

	c.WriteJSON(msg)
}
