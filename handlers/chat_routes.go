package handlers

import (
	"errors"
	"os"

	"learnsphere-backend/middleware"
	"learnsphere-backend/models"
	"learnsphere-backend/services"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// SetupChatRoutes wires the thin proxy to the local inference daemon.
// The model is resolved per request against the persisted served-model
// mirror — there is no process-global "current model" to race on.
func SetupChatRoutes(app *fiber.App, db *gorm.DB, inference *services.InferenceClient) {
	securedGroup := app.Group("/chat", middleware.UserContextMiddleware())

	securedGroup.Post("/", func(c *fiber.Ctx) error {
		type Req struct {
			Model    string                 `json:"model,omitempty"`
			Messages []services.ChatMessage `json:"messages"`
		}
		var req Req
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "cause": err.Error()})
		}
		if len(req.Messages) == 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "messages are required"})
		}

		model := req.Model
		if model == "" {
			model = os.Getenv("INFERENCE_DEFAULT_MODEL")
		}
		var mirror models.ServedModelMirror
		if model == "" {
			if err := db.Where("is_default = ?", true).First(&mirror).Error; err != nil {
				return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
					"error": "no model available — inference daemon not yet mirrored",
				})
			}
			model = mirror.Name
		} else if err := db.Where("name = ?", model).First(&mirror).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "unknown model " + model,
				})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error", "cause": err.Error()})
		}

		resp, err := inference.Chat(c.Context(), model, req.Messages)
		if err != nil {
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
				"error": "inference request failed",
				"cause": err.Error(),
			})
		}
		return c.JSON(resp)
	})

	securedGroup.Get("/models", func(c *fiber.Ctx) error {
		var mirrors []models.ServedModelMirror
		if err := db.Order("name ASC").Find(&mirrors).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error", "cause": err.Error()})
		}
		return c.JSON(mirrors)
	})
}
