package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/shire602-cyber/alainbcenter-crm-sub005/internal/ai/complexity"
	"github.com/shire602-cyber/alainbcenter-crm-sub005/internal/ai/reply"
	"github.com/shire602-cyber/alainbcenter-crm-sub005/internal/ai/routing"
	"github.com/shire602-cyber/alainbcenter-crm-sub005/internal/providers"
)

type replyRequest struct {
	Messages []providers.Message `json:"messages"`
	Options  providers.Options   `json:"options"`
	Hints    *complexity.Hints   `json:"hints"`
	Query    string              `json:"query"`
}

// GenerateReply runs the full pipeline for one conversational turn.
func GenerateReply(deps *Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req replyRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid request body",
			})
		}
		if len(req.Messages) == 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "messages are required",
			})
		}

		result, err := deps.Reply.Generate(c.UserContext(), reply.Request{
			Messages:       req.Messages,
			Options:        req.Options,
			Hints:          req.Hints,
			GroundingQuery: req.Query,
		})
		if err != nil {
			// Terminal routing failures mean a human has to take over.
			var allFailed *routing.AllProvidersFailedError
			if errors.As(err, &allFailed) || errors.Is(err, routing.ErrNoProvidersAvailable) {
				return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
					"error":       err.Error(),
					"needs_human": true,
				})
			}
			deps.Log.WithError(err).Error("reply generation failed")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": err.Error(),
			})
		}

		return c.JSON(result)
	}
}
