package handlers

import (
	"context"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/theorygraph/backend/internal/aggregation"
	"github.com/theorygraph/backend/internal/resolver"
	"github.com/theorygraph/backend/internal/storage/models"
	"github.com/theorygraph/backend/pkg/logger"
)

type WebSocketHandler struct {
	resolver       *resolver.Resolver
	aggregator     *aggregation.Aggregator
	requireConfirm bool
}

func NewWebSocketHandler(res *resolver.Resolver, agg *aggregation.Aggregator, requireConfirm bool) *WebSocketHandler {
	return &WebSocketHandler{
		resolver:       res,
		aggregator:     agg,
		requireConfirm: requireConfirm,
	}
}

// HandleConnection serves maintenance actions over one socket. A duplicate
// scan over a large kind can run for minutes, so progress streams back as
// it happens instead of the client staring at a hung POST.
func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	logger.Info("WebSocket connection established")

	defer func() {
		c.Close()
		logger.Info("WebSocket connection closed")
	}()

	for {
		var msg struct {
			Action  string `json:"action"`
			Kind    string `json:"kind"`
			Confirm bool   `json:"confirm"`
		}

		err := c.ReadJSON(&msg)
		if err != nil {
			logger.Error("Failed to read WebSocket message", zap.Error(err))
			break
		}

		logger.Info("Processing WebSocket action", zap.String("action", msg.Action))

		switch msg.Action {
		case "scan_duplicates":
			h.runScan(c, msg.Kind, true)
		case "apply_merges":
			if h.requireConfirm && !msg.Confirm {
				h.sendError(c, "Merging is irreversible; set confirm to true")
				continue
			}
			h.runScan(c, msg.Kind, false)
		case "recompute_aggregates":
			h.runRecompute(c)
		default:
			h.sendError(c, "Unknown action")
		}
	}
}

func (h *WebSocketHandler) runScan(c *websocket.Conn, rawKind string, dryRun bool) {
	kind, ok := models.ParseEntityKind(rawKind)
	if !ok {
		h.sendError(c, "Unknown entity kind")
		return
	}

	report, err := h.resolver.Report(context.Background(), kind, dryRun, h.progressFunc(c))
	if err != nil {
		logger.Error("Duplicate scan failed", zap.String("kind", string(kind)), zap.Error(err))
		h.sendError(c, "Duplicate scan failed")
		return
	}

	err = c.WriteJSON(map[string]interface{}{
		"type":   "report",
		"report": report,
	})
	if err != nil {
		logger.Error("Failed to send report", zap.Error(err))
	}
}

func (h *WebSocketHandler) runRecompute(c *websocket.Conn) {
	recomputed, err := h.aggregator.RecomputeAll(context.Background(), h.progressFunc(c))
	if err != nil {
		logger.Error("Aggregate recompute failed", zap.Error(err))
		h.sendError(c, "Aggregate recompute failed")
		return
	}

	err = c.WriteJSON(map[string]interface{}{
		"type":             "complete",
		"pairs_recomputed": recomputed,
	})
	if err != nil {
		logger.Error("Failed to send completion", zap.Error(err))
	}
}

// progressFunc adapts socket writes to the progress callbacks the engines
// accept. Write failures are logged and swallowed; a slow client must not
// abort a half-applied maintenance pass.
func (h *WebSocketHandler) progressFunc(c *websocket.Conn) func(stage string, done, total int) {
	return func(stage string, done, total int) {
		msg := map[string]interface{}{
			"type":  "progress",
			"stage": stage,
			"done":  done,
			"total": total,
		}
		if err := c.WriteJSON(msg); err != nil {
			logger.Warn("Failed to send progress", zap.Error(err))
		}
	}
}

func (h *WebSocketHandler) sendError(c *websocket.Conn, errorMsg string) {
	msg := map[string]interface{}{
		"type":  "error",
		"error": errorMsg,
	}

	c.WriteJSON(msg)
}
