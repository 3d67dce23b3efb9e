package handlers

import (
	"context"
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/theorygraph/backend/internal/aggregation"
	"github.com/theorygraph/backend/internal/metrics"
	"github.com/theorygraph/backend/internal/storage/models"
	"github.com/theorygraph/backend/pkg/logger"
)

// GraphReader is the slice of the graph store the read endpoints need.
type GraphReader interface {
	FetchEntity(ctx context.Context, kind models.EntityKind, canonicalName string) (*models.CanonicalEntity, error)
	FetchEntitiesByKind(ctx context.Context, kind models.EntityKind) ([]models.CanonicalEntity, error)
	FetchScoredRelationships(ctx context.Context, sourceCanonical, targetCanonical string) ([]models.ScoredRelationship, error)
	FetchScoredPairs(ctx context.Context) ([]aggregation.Pair, error)
	FetchAggregatedRelationship(ctx context.Context, sourceCanonical, targetCanonical string) (*models.AggregatedRelationship, error)
}

type EntityHandler struct {
	graph GraphReader
}

func NewEntityHandler(graph GraphReader) *EntityHandler {
	return &EntityHandler{
		graph: graph,
	}
}

func (h *EntityHandler) ListEntities(c *fiber.Ctx) error {
	kind, ok := models.ParseEntityKind(c.Params("kind"))
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unknown entity kind",
		})
	}

	entities, err := h.graph.FetchEntitiesByKind(c.Context(), kind)
	if err != nil {
		logger.Error("Failed to fetch entities", zap.String("kind", string(kind)), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch entities",
		})
	}

	metrics.EntitiesKnown.WithLabelValues(string(kind)).Set(float64(len(entities)))

	return c.JSON(fiber.Map{
		"kind":     kind,
		"entities": entities,
		"count":    len(entities),
	})
}

// GetEntity looks an entity up by canonical name. Case differences are
// folded by the graph key, so "Social Cognitive Theory" and "social
// cognitive theory" hit the same node.
func (h *EntityHandler) GetEntity(c *fiber.Ctx) error {
	kind, ok := models.ParseEntityKind(c.Params("kind"))
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unknown entity kind",
		})
	}

	name := pathParam(c, "name")
	if name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "name is required",
		})
	}

	entity, err := h.graph.FetchEntity(c.Context(), kind, name)
	if err != nil {
		logger.Error("Failed to fetch entity", zap.String("name", name), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch entity",
		})
	}

	if entity == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Entity not found",
		})
	}

	return c.JSON(entity)
}

// GetRelationship returns the cross-paper rollup for a theory/phenomenon
// pair together with the per-paper scored edges behind it.
func (h *EntityHandler) GetRelationship(c *fiber.Ctx) error {
	theory := strings.TrimSpace(c.Query("theory"))
	phenomenon := strings.TrimSpace(c.Query("phenomenon"))

	if theory == "" || phenomenon == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "theory and phenomenon are required",
		})
	}

	aggregate, err := h.graph.FetchAggregatedRelationship(c.Context(), theory, phenomenon)
	if err != nil {
		logger.Error("Failed to fetch aggregated relationship", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch relationship",
		})
	}

	scored, err := h.graph.FetchScoredRelationships(c.Context(), theory, phenomenon)
	if err != nil {
		logger.Error("Failed to fetch scored relationships", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch relationship",
		})
	}

	if aggregate == nil && len(scored) == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Relationship not found",
		})
	}

	return c.JSON(fiber.Map{
		"theory":     theory,
		"phenomenon": phenomenon,
		"aggregate":  aggregate,
		"papers":     scored,
	})
}

func (h *EntityHandler) ListPairs(c *fiber.Ctx) error {
	pairs, err := h.graph.FetchScoredPairs(c.Context())
	if err != nil {
		logger.Error("Failed to list scored pairs", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list scored pairs",
		})
	}

	return c.JSON(fiber.Map{
		"pairs": pairs,
		"count": len(pairs),
	})
}

// pathParam unescapes a route parameter. Canonical names carry spaces, so
// they arrive percent-encoded.
func pathParam(c *fiber.Ctx, key string) string {
	raw := c.Params(key)
	if unescaped, err := url.PathUnescape(raw); err == nil {
		raw = unescaped
	}
	return strings.TrimSpace(raw)
}
