package middleware

import (
	"log"

	"github.com/gofiber/fiber/v2"

	"aiassist/pkg/auth"
)

// BearerAuth guards /api and /ws with a shared-secret token. When tokens
// is nil (no AUTH_TOKEN_SECRET configured) every request passes; this is
// the normal mode for a server bound to localhost.
func BearerAuth(tokens *auth.TokenAuth) fiber.Handler {
	if tokens == nil {
		return func(c *fiber.Ctx) error { return c.Next() }
	}

	return func(c *fiber.Ctx) error {
		header := c.Get("Authorization")
		// Browsers cannot set headers on WebSocket upgrades; accept the
		// token as a query parameter there.
		if header == "" {
			if t := c.Query("token"); t != "" {
				header = "Bearer " + t
			}
		}

		tokenString, err := auth.ExtractToken(header)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing or malformed token"})
		}

		claims, err := tokens.Verify(tokenString)
		if err != nil {
			log.Printf("🔒 [AUTH] Rejected token from %s: %v", c.IP(), err)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid token"})
		}

		c.Locals("subject", claims.Subject)
		return c.Next()
	}
}
