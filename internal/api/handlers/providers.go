package handlers

import (
	"github.com/gofiber/fiber/v2"
)

// GetProviders lists every configured backend with its pricing and
// whether a credential resolved.
func GetProviders(deps *Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(deps.Registry.Descriptors(c.UserContext()))
	}
}

// GetUsage returns the newest usage entries.
func GetUsage(deps *Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit := c.QueryInt("limit", 50)
		entries, err := deps.Usage.Recent(c.UserContext(), limit)
		if err != nil {
			deps.Log.WithError(err).Error("failed to list usage entries")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to list usage entries",
			})
		}
		return c.JSON(entries)
	}
}
