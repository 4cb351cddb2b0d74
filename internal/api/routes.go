package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/shire602-cyber/alainbcenter-crm-sub005/internal/api/handlers"
)

// SetupRoutes wires the engine's HTTP surface. This is the generic
// engine API; channel transports (chat-platform webhooks) and the web
// UI live elsewhere and consume it.
func SetupRoutes(app *fiber.App, deps *handlers.Deps) {
	api := app.Group("/api/v1")

	// Reply generation
	api.Post("/reply", handlers.GenerateReply(deps))

	// Knowledge base (retrieval index mutation + search)
	api.Post("/knowledge", handlers.IndexDocument(deps))
	api.Post("/knowledge/search", handlers.SearchKnowledge(deps))
	api.Delete("/knowledge/:id", handlers.RemoveDocument(deps))
	api.Delete("/knowledge", handlers.ClearKnowledge(deps))

	// Provider availability and usage accounting
	api.Get("/providers", handlers.GetProviders(deps))
	api.Get("/usage", handlers.GetUsage(deps))

	// Health check
	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"service": "ai-reply-core",
		})
	})
}
