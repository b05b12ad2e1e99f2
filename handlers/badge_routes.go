package handlers

import (
	"github.com/gofiber/fiber/v2"

	"badge-progress-system/middleware"
	"badge-progress-system/services"
)

// SetupBadgeRoutes registers the catalog and award administration routes under /admin.
func SetupBadgeRoutes(r fiber.Router, catalog *services.CatalogService, badges *services.BadgeService, catalogKey string) {
	admin := r.Group("/admin", middleware.RequireRole(middleware.RoleLeader))

	admin.Get("/catalog", func(c *fiber.Ctx) error {
		cat, err := catalog.LoadCatalog(c.UserContext())
		if err != nil {
			return serviceError(c, "failed to load catalog", err)
		}
		return c.JSON(cat)
	})

	admin.Post("/catalog/import", func(c *fiber.Ctx) error {
		if len(c.Body()) == 0 {
			return fail(c, fiber.StatusBadRequest, "empty catalog document", nil)
		}
		sum, err := catalog.ImportCatalog(c.UserContext(), c.Body())
		if err != nil {
			return serviceError(c, "catalog import failed", err)
		}
		return c.JSON(sum)
	})

	admin.Post("/catalog/import/r2", func(c *fiber.Ctx) error {
		type Req struct {
			Key string `json:"key" validate:"omitempty,max=512"`
		}
		var req Req
		if err := bindJSON(c, &req); err != nil {
			return fail(c, fiber.StatusBadRequest, "invalid request", err)
		}
		if req.Key == "" {
			req.Key = catalogKey
		}

		sum, err := catalog.ImportCatalogFromR2(c.UserContext(), req.Key)
		if err != nil {
			return serviceError(c, "catalog import failed", err)
		}
		return c.JSON(fiber.Map{"key": req.Key, "summary": sum})
	})

	admin.Post("/badges/:badge_id/award", func(c *fiber.Ctx) error {
		type Req struct {
			MemberIDs []string `json:"member_ids" validate:"required,min=1,max=500,dive,required"`
		}
		var req Req
		if err := bindJSON(c, &req); err != nil {
			return fail(c, fiber.StatusBadRequest, "invalid request", err)
		}

		res, err := badges.AwardToAttendees(c.UserContext(), c.Params("badge_id"), req.MemberIDs, middleware.UserID(c))
		if err != nil {
			return serviceError(c, "award failed", err)
		}
		return c.JSON(res)
	})

	admin.Post("/cache/rebuild", func(c *fiber.Ctx) error {
		if memberID := c.Query("member_id"); memberID != "" {
			n, err := badges.RebuildCache(c.UserContext(), memberID)
			if err != nil {
				return serviceError(c, "cache rebuild failed", err)
			}
			return c.JSON(fiber.Map{"member_id": memberID, "rows": n})
		}

		stats, err := badges.RebuildAllCaches(c.UserContext())
		if err != nil {
			return serviceError(c, "cache rebuild failed", err)
		}
		return c.JSON(stats)
	})
}
