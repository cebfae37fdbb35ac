package middleware

import (
	"crypto/subtle"
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
)

const InternalTokenHeader = "X-Internal-Token"

// InternalToken guards service-to-service routes. With no token configured
// every request is refused.
func InternalToken(token string) fiber.Handler {
	token = strings.TrimSpace(token)
	if token == "" {
		log.Print("[Middleware] INTERNAL_API_TOKEN is empty, internal API is disabled")
	}

	return func(c *fiber.Ctx) error {
		if token == "" {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "internal_api_disabled", "message": "Internal API is not configured"})
		}

		provided := extractInternalToken(c)
		if provided == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing internal token"})
		}
		if subtle.ConstantTimeCompare([]byte(provided), []byte(token)) != 1 {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Invalid internal token"})
		}

		return c.Next()
	}
}

func extractInternalToken(c *fiber.Ctx) string {
	if v := strings.TrimSpace(c.Get(InternalTokenHeader)); v != "" {
		return v
	}
	auth := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
	if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}
