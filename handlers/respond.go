package handlers

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"badge-progress-system/services"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

func fail(c *fiber.Ctx, status int, msg string, err error) error {
	body := fiber.Map{"error": msg}
	if err != nil {
		body["cause"] = err.Error()
	}
	return c.Status(status).JSON(body)
}

// serviceError maps service sentinels onto HTTP statuses.
func serviceError(c *fiber.Ctx, msg string, err error) error {
	switch {
	case errors.Is(err, services.ErrMemberNotFound),
		errors.Is(err, services.ErrBadgeNotFound),
		errors.Is(err, services.ErrRequirementNotFound):
		return fail(c, fiber.StatusNotFound, msg, err)
	case errors.Is(err, services.ErrInvalidCatalog),
		errors.Is(err, services.ErrInvalidActivity):
		return fail(c, fiber.StatusUnprocessableEntity, msg, err)
	case errors.Is(err, services.ErrCatalogStoreMissing):
		return fail(c, fiber.StatusServiceUnavailable, msg, err)
	}
	return fail(c, fiber.StatusInternalServerError, msg, err)
}

// bindJSON parses the body into dst and runs struct validation. An empty body leaves dst as is.
func bindJSON(c *fiber.Ctx, dst interface{}) error {
	if len(c.Body()) > 0 {
		if err := c.BodyParser(dst); err != nil {
			return err
		}
	}
	return validate.Struct(dst)
}
