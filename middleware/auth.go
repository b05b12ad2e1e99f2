package middleware

import (
	"slices"
	"strings"

	"github.com/gofiber/fiber/v2"
)

const (
	RoleLeader = "leader"
	RoleAdmin  = "admin"
)

// UserContextMiddleware extracts the caller identity and roles set by the gateway.
func UserContextMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := strings.TrimSpace(c.Get("X-User-ID"))
		if userID == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing X-User-ID: request must come through gateway with auth context",
			})
		}

		var roles []string
		for _, r := range strings.Split(c.Get("X-User-Roles"), ",") {
			r = strings.ToLower(strings.TrimSpace(r))
			if r != "" {
				roles = append(roles, r)
			}
		}

		c.Locals("user_id", userID)
		c.Locals("user_roles", roles)
		return c.Next()
	}
}

// UserID returns the caller set by UserContextMiddleware.
func UserID(c *fiber.Ctx) string {
	id, _ := c.Locals("user_id").(string)
	return id
}

// HasRole reports whether the caller carries any of the given roles. Admins pass every check.
func HasRole(c *fiber.Ctx, roles ...string) bool {
	held, _ := c.Locals("user_roles").([]string)
	for _, r := range held {
		if r == RoleAdmin || slices.Contains(roles, r) {
			return true
		}
	}
	return false
}

// RequireRole rejects callers without one of the roles. It must run after UserContextMiddleware.
func RequireRole(roles ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !HasRole(c, roles...) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "insufficient role",
				"cause": "requires one of: " + strings.Join(roles, ", "),
			})
		}
		return c.Next()
	}
}
