package handlers

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/theorygraph/backend/internal/canonical"
	"github.com/theorygraph/backend/internal/storage/models"
	"github.com/theorygraph/backend/pkg/logger"
)

// SynonymStore persists dictionary entries so they survive restarts.
type SynonymStore interface {
	AddSynonym(entry *models.SynonymEntry) error
}

// ResolutionInvalidator drops cached resolutions after the vocabulary
// changes. Stale cache entries would keep resolving a variant to its old
// canonical form.
type ResolutionInvalidator interface {
	InvalidateResolutions(ctx context.Context) error
}

type DictionaryHandler struct {
	dict      *canonical.Dictionary
	registrar *canonical.Registrar
	store     SynonymStore
	cache     ResolutionInvalidator
}

func NewDictionaryHandler(dict *canonical.Dictionary, registrar *canonical.Registrar, store SynonymStore, cache ResolutionInvalidator) *DictionaryHandler {
	return &DictionaryHandler{
		dict:      dict,
		registrar: registrar,
		store:     store,
		cache:     cache,
	}
}

// AddSynonym maps a variant spelling to a canonical name. The entry is
// persisted first; the in-memory dictionary and the name index follow only
// after the write sticks.
func (h *DictionaryHandler) AddSynonym(c *fiber.Ctx) error {
	var req struct {
		Kind      string `json:"kind"`
		Variant   string `json:"variant"`
		Canonical string `json:"canonical"`
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

	variant := strings.TrimSpace(req.Variant)
	canonicalName := strings.TrimSpace(req.Canonical)
	if variant == "" || canonicalName == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "variant and canonical are required",
		})
	}

	if h.store != nil {
		entry := &models.SynonymEntry{Kind: kind, Variant: variant, Canonical: canonicalName}
		if err := h.store.AddSynonym(entry); err != nil {
			logger.Error("Failed to persist synonym", zap.String("variant", variant), zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to persist synonym",
			})
		}
	}

	h.dict.Add(kind, variant, canonicalName)
	if h.registrar != nil {
		h.registrar.Register(c.Context(), kind, canonicalName)
	}

	if h.cache != nil {
		if err := h.cache.InvalidateResolutions(c.Context()); err != nil {
			logger.Warn("Failed to invalidate cached resolutions", zap.Error(err))
		}
	}

	logger.Info("Dictionary entry added",
		zap.String("kind", string(kind)),
		zap.String("variant", variant),
		zap.String("canonical", canonicalName),
	)

	return c.JSON(fiber.Map{
		"kind":      kind,
		"variant":   variant,
		"canonical": canonicalName,
	})
}

func (h *DictionaryHandler) ListDictionary(c *fiber.Ctx) error {
	kind, ok := models.ParseEntityKind(c.Params("kind"))
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unknown entity kind",
		})
	}

	variants := h.dict.Keys(kind)

	return c.JSON(fiber.Map{
		"kind":     kind,
		"variants": variants,
		"count":    len(variants),
	})
}
