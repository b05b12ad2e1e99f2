package middleware

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"badge-progress-system/utils"
)

func newApp() *fiber.App {
	app := fiber.New()
	app.Use(GatewayAuthMiddleware("s3cret", utils.NopLogger()))
	secured := app.Group("/", UserContextMiddleware())
	secured.Get("/whoami", func(c *fiber.Ctx) error {
		return c.SendString(UserID(c))
	})
	secured.Get("/leaders", RequireRole(RoleLeader), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})
	return app
}

func TestGatewayAndUserContext(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		auth   string
		user   string
		roles  string
		status int
	}{
		{"no token", "/whoami", "", "u1", "", fiber.StatusUnauthorized},
		{"wrong token", "/whoami", "Bearer nope", "u1", "", fiber.StatusUnauthorized},
		{"raw token accepted", "/whoami", "s3cret", "u1", "", fiber.StatusOK},
		{"missing user", "/whoami", "Bearer s3cret", "", "", fiber.StatusUnauthorized},
		{"member on leader route", "/leaders", "Bearer s3cret", "u1", "member", fiber.StatusForbidden},
		{"leader", "/leaders", "Bearer s3cret", "u1", "member, Leader", fiber.StatusNoContent},
		{"admin passes", "/leaders", "Bearer s3cret", "u1", "admin", fiber.StatusNoContent},
	}

	app := newApp()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(fiber.MethodGet, tt.path, nil)
			if tt.auth != "" {
				req.Header.Set(fiber.HeaderAuthorization, tt.auth)
			}
			if tt.user != "" {
				req.Header.Set("X-User-ID", tt.user)
			}
			if tt.roles != "" {
				req.Header.Set("X-User-Roles", tt.roles)
			}

			resp, err := app.Test(req)
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}
