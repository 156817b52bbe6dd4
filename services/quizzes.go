package services

import (
	"errors"
	"log"
	"strconv"

	"learnsphere-backend/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

type QuizService struct {
	DB          *gorm.DB
	Progression *ProgressionService
}

func NewQuizService(db *gorm.DB, progression *ProgressionService) *QuizService {
	return &QuizService{DB: db, Progression: progression}
}

// CreateQuiz creates a quiz with its questions (admin).
func (s *QuizService) CreateQuiz(c *fiber.Ctx) error {
	type QuestionReq struct {
		Prompt       string   `json:"prompt"`
		Options      []string `json:"options"`
		CorrectIndex int      `json:"correct_index"`
	}
	type Req struct {
		Title     string        `json:"title"`
		GoalID    *string       `json:"goal_id,omitempty"`
		PassScore int           `json:"pass_score"`
		Questions []QuestionReq `json:"questions"`
	}
	var req Req
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "cause": err.Error()})
	}
	if req.Title == "" || len(req.Questions) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "title and questions are required"})
	}
	for i, q := range req.Questions {
		if len(q.Options) < 2 || q.CorrectIndex < 0 || q.CorrectIndex >= len(q.Options) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "question " + strconv.Itoa(i+1) + " needs >=2 options and a valid correct_index",
			})
		}
	}
	if req.PassScore <= 0 || req.PassScore > 100 {
		req.PassScore = 70
	}

	quiz := &models.Quiz{
		ID:        uuid.NewString(),
		GoalID:    req.GoalID,
		Title:     req.Title,
		Slug:      slug.Make(req.Title),
		PassScore: req.PassScore,
	}
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(quiz).Error; err != nil {
			return err
		}
		for i, q := range req.Questions {
			question := models.QuizQuestion{
				ID:           uuid.NewString(),
				QuizID:       quiz.ID,
				Position:     i + 1,
				Prompt:       q.Prompt,
				Options:      q.Options,
				CorrectIndex: q.CorrectIndex,
			}
			if err := tx.Create(&question).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to create quiz", "cause": err.Error()})
	}

	log.Printf("📝 Quiz created: %s (%d questions, pass >= %d%%)", quiz.Title, len(req.Questions), quiz.PassScore)
	return c.Status(fiber.StatusCreated).JSON(quiz)
}

// GetQuiz returns a quiz with its questions, answers withheld.
func (s *QuizService) GetQuiz(c *fiber.Ctx) error {
	quizSlug := c.Params("slug")

	var quiz models.Quiz
	if err := s.DB.Preload("Questions", func(db *gorm.DB) *gorm.DB {
		return db.Order("position ASC")
	}).Where("slug = ?", quizSlug).First(&quiz).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "quiz not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error", "cause": err.Error()})
	}
	return c.JSON(quiz)
}

// SubmitAttempt grades a submission server-side. A passing score triggers a
// quiz-passed award keyed on the attempt id, so a client retry of the same
// submission cannot double-award.
func (s *QuizService) SubmitAttempt(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	quizSlug := c.Params("slug")

	type Req struct {
		Answers []int `json:"answers"`
	}
	var req Req
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "cause": err.Error()})
	}

	var quiz models.Quiz
	if err := s.DB.Preload("Questions", func(db *gorm.DB) *gorm.DB {
		return db.Order("position ASC")
	}).Where("slug = ?", quizSlug).First(&quiz).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "quiz not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error", "cause": err.Error()})
	}
	if len(req.Answers) != len(quiz.Questions) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "expected " + strconv.Itoa(len(quiz.Questions)) + " answers",
		})
	}

	correct := 0
	for i, q := range quiz.Questions {
		if req.Answers[i] == q.CorrectIndex {
			correct++
		}
	}
	score := correct * 100 / len(quiz.Questions)
	passed := score >= quiz.PassScore

	attempt := models.QuizAttempt{
		ID:             uuid.NewString(),
		ExternalUserID: userID,
		QuizID:         quiz.ID,
		Score:          score,
		Passed:         passed,
	}
	if err := s.DB.Create(&attempt).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to save attempt", "cause": err.Error()})
	}

	resp := fiber.Map{
		"attempt_id": attempt.ID,
		"score":      score,
		"passed":     passed,
		"pass_score": quiz.PassScore,
	}
	if passed {
		result, err := s.Progression.AwardAction(userID, models.ActionQuizPassed, AwardMetadata{
			Score:          score,
			Reference:      attempt.ID,
			IdempotencyKey: "quiz-attempt:" + attempt.ID,
		})
		if err != nil {
			return respondProgressionError(c, err)
		}
		resp["progression"] = result
	}
	return c.JSON(resp)
}

// RecentAttempts lists the caller's attempts, newest first.
func (s *QuizService) RecentAttempts(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	limit, _ := strconv.Atoi(c.Query("limit", "20"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	var attempts []models.QuizAttempt
	if err := s.DB.Where("external_user_id = ?", userID).
		Order("created_at DESC").Limit(limit).Find(&attempts).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to list attempts", "cause": err.Error()})
	}
	return c.JSON(attempts)
}
