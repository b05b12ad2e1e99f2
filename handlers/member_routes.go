package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"badge-progress-system/middleware"
	"badge-progress-system/models"
	"badge-progress-system/services"
)

// SetupMemberRoutes registers the member-facing progress routes on a router that already carries
// the user context.
func SetupMemberRoutes(
	r fiber.Router,
	members *services.MemberService,
	badges *services.BadgeService,
	progression *services.ProgressionService,
	roster *services.RosterService,
) {
	leader := middleware.RequireRole(middleware.RoleLeader)

	r.Get("/members/search", func(c *fiber.Ctx) error {
		res, err := members.SearchMembers(c.UserContext(), c.Query("q"), c.Query("section"), c.QueryInt("limit", 50))
		if err != nil {
			return serviceError(c, "failed to search members", err)
		}
		return c.JSON(res)
	})

	r.Get("/members/:id/badges", func(c *fiber.Ctx) error {
		rep, err := badges.MemberReport(c.UserContext(), c.Params("id"))
		if err != nil {
			return serviceError(c, "failed to evaluate badges", err)
		}
		return c.JSON(rep)
	})

	r.Get("/members/:id/badges/:badge_id", func(c *fiber.Ctx) error {
		rep, err := badges.MemberReport(c.UserContext(), c.Params("id"))
		if err != nil {
			return serviceError(c, "failed to evaluate badges", err)
		}
		bp, ok := rep.Badge(c.Params("badge_id"))
		if !ok {
			return fail(c, fiber.StatusNotFound, "badge not available to member", nil)
		}
		return c.JSON(bp)
	})

	r.Get("/members/:id/families/:family_id", func(c *fiber.Ctx) error {
		rep, err := badges.MemberReport(c.UserContext(), c.Params("id"))
		if err != nil {
			return serviceError(c, "failed to evaluate badges", err)
		}
		fp, ok := rep.Family(c.Params("family_id"))
		if !ok {
			return fail(c, fiber.StatusNotFound, "family not available to member", nil)
		}
		return c.JSON(fp)
	})

	r.Get("/members/:id/counters", func(c *fiber.Ctx) error {
		rep, err := badges.MemberReport(c.UserContext(), c.Params("id"))
		if err != nil {
			return serviceError(c, "failed to evaluate badges", err)
		}
		return c.JSON(fiber.Map{"member_id": rep.MemberID, "counters": rep.Counters})
	})

	r.Get("/members/:id/activity", func(c *fiber.Ctx) error {
		kind := models.ActivityKind(c.Query("kind"))
		if kind != "" && !kind.Valid() {
			return fail(c, fiber.StatusBadRequest, "unknown activity kind", nil)
		}
		page, err := progression.GetActivityHistory(c.UserContext(), c.Params("id"), kind, c.QueryInt("page", 1), c.QueryInt("size", 20))
		if err != nil {
			return serviceError(c, "failed to get activity history", err)
		}
		return c.JSON(page)
	})

	r.Get("/members/:id/awards", func(c *fiber.Ctx) error {
		awards, err := badges.MemberAwards(c.UserContext(), c.Params("id"))
		if err != nil {
			return serviceError(c, "failed to get awards", err)
		}
		return c.JSON(awards)
	})

	r.Post("/members/:id/requirements/:requirement_id/complete", leader, func(c *fiber.Ctx) error {
		type Req struct {
			Increment *int `json:"increment" validate:"omitempty,ne=0"`
		}
		var req Req
		if err := bindJSON(c, &req); err != nil {
			return fail(c, fiber.StatusBadRequest, "invalid request", err)
		}
		increment := 1
		if req.Increment != nil {
			increment = *req.Increment
		}

		prog, err := progression.RecordRequirementCompletion(c.UserContext(), c.Params("id"), c.Params("requirement_id"), increment)
		if err != nil {
			return serviceError(c, "failed to record completion", err)
		}
		return c.JSON(prog)
	})

	r.Post("/members/:id/activity", leader, func(c *fiber.Ctx) error {
		type Req struct {
			Kind      string  `json:"kind" validate:"required,oneof=nights_away hikes_away"`
			StartDate string  `json:"start_date" validate:"required,datetime=2006-01-02"`
			Count     int     `json:"count" validate:"required,min=1"`
			Location  *string `json:"location" validate:"omitempty,max=255"`
		}
		var req Req
		if err := bindJSON(c, &req); err != nil {
			return fail(c, fiber.StatusBadRequest, "invalid request", err)
		}
		start, _ := time.Parse(time.DateOnly, req.StartDate)

		entry, err := progression.RecordActivity(c.UserContext(), c.Params("id"), services.ActivityInput{
			Kind:      models.ActivityKind(req.Kind),
			StartDate: start,
			Count:     req.Count,
			Location:  req.Location,
		})
		if err != nil {
			return serviceError(c, "failed to record activity", err)
		}
		return c.Status(fiber.StatusCreated).JSON(entry)
	})

	r.Post("/members/:id/awards/sync", leader, func(c *fiber.Ctx) error {
		n, err := badges.SyncPendingAwards(c.UserContext(), c.Params("id"))
		if err != nil {
			return serviceError(c, "failed to sync awards", err)
		}
		return c.JSON(fiber.Map{"member_id": c.Params("id"), "pending_created": n})
	})

	r.Get("/sections/:section/roster", leader, func(c *fiber.Ctx) error {
		entries, err := roster.RosterReport(c.UserContext(), c.Params("section"))
		if err != nil {
			return serviceError(c, "failed to build roster", err)
		}
		return c.JSON(fiber.Map{"section": c.Params("section"), "members": entries})
	})
}
