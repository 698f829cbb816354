package middleware

import (
	"errors"

	"github.com/go-pkgz/auth/v2/token"
	"github.com/gofiber/fiber/v2"
	"github.com/pixgrove/pixgrove/auth"
)

func AuthMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		var tokenStr string

		if authHeader != "" && len(authHeader) > 7 && authHeader[:7] == "Bearer " {
			tokenStr = authHeader[7:]
		} else {
			tokenStr = c.Cookies("JWT")
		}

		if tokenStr == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
		}

		// Validate token using go-pkgz/auth
		claims, err := auth.GetAuthService().TokenService().Parse(tokenStr)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
		}

		// Store user and claims in context
		c.Locals("user", *claims.User)
		c.Locals("claims", claims)

		return c.Next()
	}
}

// UserID returns the authenticated user's identifier. IDs are opaque strings
// issued by the identity provider.
func UserID(c *fiber.Ctx) (string, error) {
	user, ok := c.Locals("user").(token.User)
	if !ok || user.ID == "" {
		return "", errors.New("no authenticated user in request context")
	}

	return user.ID, nil
}
