package handlers

import (
	"learnsphere-backend/middleware"
	"learnsphere-backend/services"

	"github.com/gofiber/fiber/v2"
)

func SetupGoalRoutes(app *fiber.App, goalService *services.GoalService) {
	securedGroup := app.Group("/goals", middleware.UserContextMiddleware())

	securedGroup.Get("/", goalService.ListGoals)
	securedGroup.Get("/:slug", goalService.GetGoal)
	securedGroup.Post("/:slug/modules/:moduleId/complete", goalService.CompleteModule)

	adminGroup := app.Group("/s/admin", middleware.UserContextMiddleware())
	adminGroup.Post("/goals", goalService.CreateGoal)
	adminGroup.Post("/goals/:slug/cover", goalService.UploadGoalCover)
	adminGroup.Post("/goals/:slug/publish", goalService.PublishGoal)
}
