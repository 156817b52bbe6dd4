package handlers

import (
	"learnsphere-backend/middleware"
	"learnsphere-backend/services"

	"github.com/gofiber/fiber/v2"
)

func SetupQuizRoutes(app *fiber.App, quizService *services.QuizService) {
	securedGroup := app.Group("/quizzes", middleware.UserContextMiddleware())

	securedGroup.Get("/:slug", quizService.GetQuiz)
	securedGroup.Post("/:slug/attempts", quizService.SubmitAttempt)

	app.Get("/user/quiz-attempts", middleware.UserContextMiddleware(), quizService.RecentAttempts)

	adminGroup := app.Group("/s/admin", middleware.UserContextMiddleware())
	adminGroup.Post("/quizzes", quizService.CreateQuiz)
}
