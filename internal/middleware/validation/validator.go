package validation

import (
	"regexp"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Paper ids must be URL-safe identifier text: DOIs, arXiv ids and plain
// slugs all pass, control characters and quoting tricks do not.
var paperIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._:/()-]{0,127}$`)

type Config struct {
	MaxBodyBytes int
	Logger       *zap.Logger
}

// Middleware rejects malformed requests before a handler parses them: wrong
// content type, oversized bodies, and submissions whose paper_id is missing
// or unusable as a graph key. Per-mention problems are not handled here;
// those quarantine individually inside the pipeline.
func Middleware(cfg Config) fiber.Handler {
	if cfg.MaxBodyBytes == 0 {
		cfg.MaxBodyBytes = 10 * 1024 * 1024
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return func(c *fiber.Ctx) error {
		if c.Method() == "POST" || c.Method() == "PUT" {
			contentType := c.Get("Content-Type")
			if contentType != "" && !strings.Contains(contentType, "application/json") {
				return c.Status(fiber.StatusUnsupportedMediaType).JSON(fiber.Map{
					"error": "Unsupported content type",
				})
			}

			if len(c.Body()) > cfg.MaxBodyBytes {
				return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{
					"error": "Request body exceeds maximum size",
				})
			}
		}

		path := c.Path()

		if c.Method() == "POST" && strings.HasSuffix(path, "/papers/batch") {
			var req map[string]interface{}
			if err := c.BodyParser(&req); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Invalid JSON format",
				})
			}

			papers, ok := req["papers"].([]interface{})
			if !ok || len(papers) == 0 {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "papers must be a non-empty array",
				})
			}

			return c.Next()
		}

		if c.Method() == "POST" && strings.HasSuffix(path, "/papers") {
			var req map[string]interface{}
			if err := c.BodyParser(&req); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Invalid JSON format",
				})
			}

			paperID, ok := req["paper_id"].(string)
			if !ok || strings.TrimSpace(paperID) == "" {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "paper_id is required and must be a string",
				})
			}

			if !paperIDPattern.MatchString(sanitizeString(paperID)) {
				cfg.Logger.Warn("Rejected malformed paper id",
					zap.String("ip", c.IP()),
					zap.String("paper_id", paperID),
				)
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "paper_id contains unsupported characters",
				})
			}
		}

		return c.Next()
	}
}

func sanitizeString(input string) string {
	input = strings.TrimSpace(input)
	input = strings.ReplaceAll(input, "\x00", "")
	return input
}
