package handlers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/theorygraph/backend/internal/ingestion"
	"github.com/theorygraph/backend/internal/storage/models"
	"github.com/theorygraph/backend/pkg/logger"
)

// MetaReader is the slice of the relational store the listing endpoints read.
type MetaReader interface {
	ListPapers(limit int) ([]models.Paper, error)
	ListIngestRuns(paperID string, limit int) ([]models.IngestRun, error)
	ListQuarantined(paperID string, limit int) ([]models.QuarantinedMention, error)
}

type IngestHandler struct {
	pipeline *ingestion.Pipeline
	meta     MetaReader
}

func NewIngestHandler(pipeline *ingestion.Pipeline, meta MetaReader) *IngestHandler {
	return &IngestHandler{
		pipeline: pipeline,
		meta:     meta,
	}
}

// SubmitPaper ingests one paper's extracted mentions and relationship claims.
// Malformed individual records quarantine inside the pipeline and come back
// in the per-record outcomes; only a malformed envelope fails the request.
func (h *IngestHandler) SubmitPaper(c *fiber.Ctx) error {
	var sub ingestion.PaperSubmission

	if err := c.BodyParser(&sub); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	result, err := h.pipeline.IngestPaper(c.Context(), sub)
	if err != nil {
		var inputErr *ingestion.InputError
		if errors.As(err, &inputErr) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": inputErr.Error(),
			})
		}
		logger.Error("Failed to ingest paper", zap.String("paper_id", sub.PaperID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to ingest paper",
		})
	}

	return c.JSON(result)
}

func (h *IngestHandler) SubmitBatch(c *fiber.Ctx) error {
	var req struct {
		Papers []ingestion.PaperSubmission `json:"papers"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if len(req.Papers) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "papers is required",
		})
	}

	results := h.pipeline.IngestBatch(c.Context(), req.Papers)

	succeeded := 0
	for _, item := range results {
		if item.Error == "" {
			succeeded++
		}
	}

	return c.JSON(fiber.Map{
		"results":   results,
		"submitted": len(results),
		"succeeded": succeeded,
	})
}

func (h *IngestHandler) ListPapers(c *fiber.Ctx) error {
	limit := parseLimit(c.Query("limit"), 50)

	papers, err := h.meta.ListPapers(limit)
	if err != nil {
		logger.Error("Failed to list papers", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list papers",
		})
	}

	return c.JSON(fiber.Map{
		"papers": papers,
		"count":  len(papers),
	})
}

func (h *IngestHandler) ListRuns(c *fiber.Ctx) error {
	limit := parseLimit(c.Query("limit"), 50)

	runs, err := h.meta.ListIngestRuns(c.Query("paper_id"), limit)
	if err != nil {
		logger.Error("Failed to list ingest runs", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list ingest runs",
		})
	}

	return c.JSON(fiber.Map{
		"runs":  runs,
		"count": len(runs),
	})
}

func (h *IngestHandler) ListQuarantined(c *fiber.Ctx) error {
	limit := parseLimit(c.Query("limit"), 50)

	mentions, err := h.meta.ListQuarantined(c.Query("paper_id"), limit)
	if err != nil {
		logger.Error("Failed to list quarantined mentions", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list quarantined mentions",
		})
	}

	return c.JSON(fiber.Map{
		"quarantined": mentions,
		"count":       len(mentions),
	})
}

func parseLimit(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}

	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return fallback
	}
	if limit > 500 {
		return 500
	}

	return limit
}
