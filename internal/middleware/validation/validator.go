package validation

import (
	"regexp"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/ai-audit/backend/internal/models"
)

// usernamePattern covers handles on every supported platform.
var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]{1,64}$`)

type Config struct {
	MaxBodySize         int
	AllowedContentTypes []string
	Logger              *zap.Logger
}

func Middleware(cfg Config) fiber.Handler {
	if cfg.MaxBodySize == 0 {
		cfg.MaxBodySize = 1024 * 1024
	}
	if len(cfg.AllowedContentTypes) == 0 {
		cfg.AllowedContentTypes = []string{"application/json"}
	}

	return func(c *fiber.Ctx) error {
		if c.Method() == "POST" || c.Method() == "PUT" {
			contentType := c.Get("Content-Type")
			if contentType != "" {
				allowed := false
				for _, allowedType := range cfg.AllowedContentTypes {
					if strings.Contains(contentType, allowedType) {
						allowed = true
						break
					}
				}
				if !allowed {
					return c.Status(fiber.StatusUnsupportedMediaType).JSON(fiber.Map{
						"error": "Unsupported content type",
					})
				}
			}

			if len(c.Body()) > cfg.MaxBodySize {
				return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{
					"error": "Request body exceeds maximum size",
				})
			}
		}

		if strings.HasSuffix(c.Path(), "/audit") && c.Method() == "POST" {
			var req struct {
				UserID    string            `json:"user_id"`
				Platforms []string          `json:"platforms"`
				Usernames map[string]string `json:"usernames"`
			}
			if err := c.BodyParser(&req); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Invalid JSON format",
				})
			}

			if !ValidUsername(req.UserID) {
				if cfg.Logger != nil {
					cfg.Logger.Warn("Rejected audit request",
						zap.String("ip", c.IP()),
						zap.String("reason", "invalid user_id"),
					)
				}
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "user_id must be 1-64 characters of letters, digits, dot, dash or underscore",
				})
			}

			for _, p := range req.Platforms {
				if !models.Platform(p).Valid() {
					return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
						"error": "Unknown platform: " + p,
					})
				}
			}

			for _, username := range req.Usernames {
				if !ValidUsername(username) {
					return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
						"error": "Invalid username override",
					})
				}
			}
		}

		return c.Next()
	}
}

func ValidUsername(username string) bool {
	return usernamePattern.MatchString(username)
}
