package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/theorygraph/backend/internal/aggregation"
	"github.com/theorygraph/backend/internal/embedding"
	"github.com/theorygraph/backend/internal/resolver"
	"github.com/theorygraph/backend/internal/storage/models"
	"github.com/theorygraph/backend/pkg/logger"
)

// NameIndex is the vector index slice the reindex endpoint writes.
type NameIndex interface {
	InsertNames(ctx context.Context, kind models.EntityKind, names []string, vectors [][]float32) error
}

type MaintenanceHandler struct {
	resolver       *resolver.Resolver
	aggregator     *aggregation.Aggregator
	graph          GraphReader
	embedder       *embedding.Client
	index          NameIndex
	requireConfirm bool
}

func NewMaintenanceHandler(res *resolver.Resolver, agg *aggregation.Aggregator, graph GraphReader, embedder *embedding.Client, index NameIndex, requireConfirm bool) *MaintenanceHandler {
	return &MaintenanceHandler{
		resolver:       res,
		aggregator:     agg,
		graph:          graph,
		embedder:       embedder,
		index:          index,
		requireConfirm: requireConfirm,
	}
}

// ScanDuplicates reports entities of a kind that now canonicalize to the
// same name. Always a dry run; nothing in the graph changes.
func (h *MaintenanceHandler) ScanDuplicates(c *fiber.Ctx) error {
	var req struct {
		Kind string `json:"kind"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	kind, ok := models.ParseEntityKind(req.Kind)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unknown entity kind",
		})
	}

	report, err := h.resolver.Report(c.Context(), kind, true, nil)
	if err != nil {
		logger.Error("Duplicate scan failed", zap.String("kind", string(kind)), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Duplicate scan failed",
		})
	}

	return c.JSON(report)
}

// ApplyMerges scans and then merges every duplicate group it finds. Merges
// rewrite relationship ownership and cannot be undone, so the request must
// carry confirm unless confirmation is disabled in config.
func (h *MaintenanceHandler) ApplyMerges(c *fiber.Ctx) error {
	var req struct {
		Kind    string `json:"kind"`
		Confirm bool   `json:"confirm"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	kind, ok := models.ParseEntityKind(req.Kind)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unknown entity kind",
		})
	}

	if h.requireConfirm && !req.Confirm {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Merging is irreversible; set confirm to true, or use scan-duplicates for a dry run",
		})
	}

	report, err := h.resolver.Report(c.Context(), kind, false, nil)
	if err != nil {
		logger.Error("Merge pass failed", zap.String("kind", string(kind)), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Merge pass failed",
		})
	}

	return c.JSON(report)
}

func (h *MaintenanceHandler) RecomputeAggregates(c *fiber.Ctx) error {
	recomputed, err := h.aggregator.RecomputeAll(c.Context(), nil)
	if err != nil {
		logger.Error("Aggregate recompute failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Aggregate recompute failed",
		})
	}

	return c.JSON(fiber.Map{
		"pairs_recomputed": recomputed,
	})
}

// ReindexVectors rebuilds the name index from the graph for every kind that
// resolves through embeddings. Upserts by name key, so re-running is safe.
func (h *MaintenanceHandler) ReindexVectors(c *fiber.Ctx) error {
	if h.embedder == nil || h.index == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Vector index is not configured",
		})
	}

	indexed := make(map[string]int)
	for _, kind := range []models.EntityKind{models.KindTheory, models.KindMethod, models.KindSoftware} {
		entities, err := h.graph.FetchEntitiesByKind(c.Context(), kind)
		if err != nil {
			logger.Error("Failed to fetch entities for reindex", zap.String("kind", string(kind)), zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to fetch entities",
			})
		}

		if len(entities) == 0 {
			indexed[string(kind)] = 0
			continue
		}

		names := make([]string, len(entities))
		for i, entity := range entities {
			names[i] = entity.CanonicalName
		}

		vectors, err := h.embedder.EmbedBatch(c.Context(), names)
		if err != nil {
			logger.Error("Failed to embed names for reindex", zap.String("kind", string(kind)), zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to embed canonical names",
			})
		}

		if err := h.index.InsertNames(c.Context(), kind, names, vectors); err != nil {
			logger.Error("Failed to write name index", zap.String("kind", string(kind)), zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to write name index",
			})
		}

		indexed[string(kind)] = len(names)
	}

	return c.JSON(fiber.Map{
		"indexed": indexed,
	})
}
