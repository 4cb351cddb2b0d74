package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/shire602-cyber/alainbcenter-crm-sub005/internal/ai/retrieval"
)

type indexRequest struct {
	ID       string             `json:"id"`
	Content  string             `json:"content"`
	Metadata retrieval.Metadata `json:"metadata"`
}

// IndexDocument embeds and stores one document; re-indexing an id
// replaces it.
func IndexDocument(deps *Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req indexRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid request body",
			})
		}
		if req.Content == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "content is required",
			})
		}
		if req.ID == "" {
			req.ID = uuid.NewString()
		}

		doc := retrieval.Document{ID: req.ID, Content: req.Content, Metadata: req.Metadata}
		if err := deps.Store.Index(c.UserContext(), doc); err != nil {
			// Index-time embedding failures surface: an operator is
			// present to react.
			deps.Log.WithError(err).Error("failed to index document")
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
				"error": err.Error(),
			})
		}

		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"id": req.ID})
	}
}

type searchRequest struct {
	Query     string  `json:"query"`
	TopK      int     `json:"top_k"`
	Threshold float64 `json:"threshold"`
	Type      string  `json:"type"`
}

// SearchKnowledge runs a similarity query over the index.
func SearchKnowledge(deps *Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req searchRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid request body",
			})
		}
		if req.Query == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "query is required",
			})
		}

		result := deps.Store.Search(c.UserContext(), req.Query, retrieval.SearchOptions{
			TopK:                req.TopK,
			SimilarityThreshold: req.Threshold,
			TypeFilter:          req.Type,
		})
		return c.JSON(result)
	}
}

// RemoveDocument deletes one document by id.
func RemoveDocument(deps *Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		deps.Store.Remove(c.Params("id"))
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// ClearKnowledge empties the index.
func ClearKnowledge(deps *Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		deps.Store.Clear()
		return c.SendStatus(fiber.StatusNoContent)
	}
}
