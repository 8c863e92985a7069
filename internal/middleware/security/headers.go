package security

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

type HeadersConfig struct {
	// FrameAncestors widens frame-ancestors beyond 'none' for embedded
	// report viewers. Empty means no embedding.
	FrameAncestors []string
	IsDevelopment  bool
}

// HeadersMiddleware sets the response headers for a JSON API surface.
// The policy assumes no server-rendered HTML; everything the service
// returns is data.
func HeadersMiddleware(cfg HeadersConfig) fiber.Handler {
	frameAncestors := "'none'"
	if len(cfg.FrameAncestors) > 0 {
		frameAncestors = strings.Join(cfg.FrameAncestors, " ")
	}
	csp := "default-src 'none'; frame-ancestors " + frameAncestors

	return func(c *fiber.Ctx) error {
		c.Set("X-Frame-Options", "DENY")
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("Referrer-Policy", "no-referrer")
		c.Set("Cache-Control", "no-store")
		c.Set("Content-Security-Policy", csp)

		if !cfg.IsDevelopment {
			c.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		return c.Next()
	}
}
