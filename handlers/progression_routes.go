// handlers/progression_routes.go
package handlers

import (
	"path/filepath"
	"strconv"

	"learnsphere-backend/middleware"
	"learnsphere-backend/models"
	"learnsphere-backend/services"
	"learnsphere-backend/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

func SetupProgressionRoutes(
	app *fiber.App,
	progressionService *services.ProgressionService,
	achievementService *services.AchievementService,
	leaderboardService *services.LeaderboardService,
	authClient *services.AuthServiceClient,
) {
	// SSE stream authenticates via query token (EventSource can't set
	// headers), so it must stay out of the user-context group below.
	app.Get("/user/progress/stream",
		middleware.SSEAuthMiddleware(authClient),
		progressionService.StreamProgressSSE,
	)

	// Internal trigger interface: collaborator services (quiz engine, login
	// handler, community service) decide *when*; this subsystem owns *what
	// happens*. Covered by the global gateway token only — no user context.
	app.Post("/internal/progress/award", func(c *fiber.Ctx) error {
		type Req struct {
			UserID   string                 `json:"user_id"`
			Action   string                 `json:"action"`
			Metadata services.AwardMetadata `json:"metadata"`
		}
		var req Req
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid JSON",
				"cause": err.Error(),
			})
		}

		result, err := progressionService.AwardAction(req.UserID, req.Action, req.Metadata)
		if err != nil {
			return c.Status(services.StatusForError(err)).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		return c.JSON(result)
	})

	// 🔐 Secured routes — require user context (userID, roles) from the
	// gateway. Scoped to /user so the routes above stay header-free.
	securedGroup := app.Group("/user", middleware.UserContextMiddleware())

	securedGroup.Get("/profile", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		prof, err := progressionService.EnsureProfile(userID)
		if err != nil {
			return c.Status(services.StatusForError(err)).JSON(fiber.Map{
				"error": "failed to load profile",
				"cause": err.Error(),
			})
		}

		overview, err := achievementService.OverviewForUser(userID)
		if err != nil {
			return c.Status(services.StatusForError(err)).JSON(fiber.Map{
				"error": "failed to load achievements",
				"cause": err.Error(),
			})
		}

		return c.JSON(fiber.Map{
			"profile":          prof,
			"unlocked":         overview.Unlocked,
			"in_progress":      overview.InProgress,
			"new_achievements": overview.New,
		})
	})

	// Idempotent acknowledgment of an unlock modal. 200 with no body needed.
	securedGroup.Put("/achievements/:code/view", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		code := c.Params("code")

		if err := achievementService.MarkViewed(userID, code); err != nil {
			return c.Status(services.StatusForError(err)).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		return c.SendStatus(fiber.StatusOK)
	})

	app.Get("/leaderboard", middleware.UserContextMiddleware(), func(c *fiber.Ctx) error {
		limit, _ := strconv.Atoi(c.Query("limit", "50"))
		entries, err := leaderboardService.TopN(limit)
		if err != nil {
			return c.Status(services.StatusForError(err)).JSON(fiber.Map{
				"error": "failed to build leaderboard",
				"cause": err.Error(),
			})
		}
		return c.JSON(entries)
	})

	securedGroup.Get("/activity", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		limit, _ := strconv.Atoi(c.Query("limit", "20"))
		if limit <= 0 || limit > 100 {
			limit = 20
		}
		var events []models.ActivityEvent
		if err := progressionService.DB.Where("external_user_id = ?", userID).
			Order("created_at DESC").Limit(limit).Find(&events).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to load activity",
				"cause": err.Error(),
			})
		}
		return c.JSON(events)
	})

	// Admin endpoints
	adminGroup := app.Group("/s/admin", middleware.UserContextMiddleware())

	adminGroup.Post("/xp/grant", func(c *fiber.Ctx) error {
		type Req struct {
			UserID string `json:"user_id"`
			Action string `json:"action"`
			Reason string `json:"reason"`
		}
		var req Req
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid JSON",
				"cause": err.Error(),
			})
		}

		result, err := progressionService.AwardAction(req.UserID, req.Action, services.AwardMetadata{
			Reference: "admin-grant:" + req.Reason,
		})
		if err != nil {
			return c.Status(services.StatusForError(err)).JSON(fiber.Map{
				"error": "XP award failed",
				"cause": err.Error(),
			})
		}

		return c.JSON(fiber.Map{
			"message":     "XP granted successfully",
			"user_id":     req.UserID,
			"progression": result,
		})
	})

	adminGroup.Post("/achievements", func(c *fiber.Ctx) error {
		var def models.AchievementDefinition
		if err := c.BodyParser(&def); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid JSON",
				"cause": err.Error(),
			})
		}
		if err := achievementService.CreateDefinition(&def); err != nil {
			return c.Status(services.StatusForError(err)).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		return c.Status(fiber.StatusCreated).JSON(def)
	})

	adminGroup.Patch("/achievements/:code", func(c *fiber.Ctx) error {
		var updates map[string]interface{}
		if err := c.BodyParser(&updates); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid JSON",
				"cause": err.Error(),
			})
		}
		if err := achievementService.UpdateDefinition(c.Params("code"), updates); err != nil {
			return c.Status(services.StatusForError(err)).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		return c.SendStatus(fiber.StatusOK)
	})

	// Badge imagery lives in R2; presentation only, so allowed even for
	// referenced definitions.
	adminGroup.Post("/achievements/:code/badge-image", func(c *fiber.Ctx) error {
		imageFile, err := c.FormFile("image")
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "image is required"})
		}
		ext := filepath.Ext(imageFile.Filename)
		if ext == "" {
			ext = ".png"
		}
		key := "badges/" + uuid.NewString() + ext
		url, err := utils.StoreAsset(imageFile, key)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to store badge image",
			})
		}
		if err := achievementService.SetBadgeImage(c.Params("code"), url); err != nil {
			return c.Status(services.StatusForError(err)).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		return c.JSON(fiber.Map{"badge_image_url": url})
	})
}
