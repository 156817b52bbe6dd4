package services

import (
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strconv"
	"time"

	"learnsphere-backend/models"
	"learnsphere-backend/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

type GoalService struct {
	DB          *gorm.DB
	Progression *ProgressionService
}

func NewGoalService(db *gorm.DB, progression *ProgressionService) *GoalService {
	return &GoalService{DB: db, Progression: progression}
}

// MinimalGoal struct for lightweight listing
type MinimalGoal struct {
	ID               string `json:"id"`
	Title            string `json:"title"`
	Slug             string `json:"slug"`
	Category         string `json:"category"`
	ShortDescription string `json:"short_description"`
	CoverImageURL    string `json:"cover_image_url,omitempty"`
	ModuleCount      int64  `json:"module_count"`
}

// CreateGoal creates a new **draft** goal with its modules and optional cover image.
func (s *GoalService) CreateGoal(c *fiber.Ctx) error {
	type ModuleReq struct {
		Title       string `json:"title"`
		Content     string `json:"content"`
		DurationMin int    `json:"duration_min"`
	}
	type Req struct {
		Title            string      `json:"title"`
		ShortDescription string      `json:"short_description"`
		LongDescription  string      `json:"long_description"`
		Category         string      `json:"category"`
		PublishAt        *time.Time  `json:"publish_at,omitempty"`
		Modules          []ModuleReq `json:"modules"`
	}
	var req Req
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "cause": err.Error()})
	}
	if req.Title == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "title is required"})
	}

	goal := &models.LearningGoal{
		ID:               uuid.NewString(),
		Title:            req.Title,
		Slug:             slug.Make(req.Title),
		ShortDescription: req.ShortDescription,
		LongDescription:  req.LongDescription,
		Category:         req.Category,
		Status:           models.GoalStatusDraft,
	}
	if req.PublishAt != nil {
		goal.Status = models.GoalStatusScheduled
		goal.PublishAt = req.PublishAt
	}

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(goal).Error; err != nil {
			return err
		}
		for i, m := range req.Modules {
			mod := models.GoalModule{
				ID:          uuid.NewString(),
				GoalID:      goal.ID,
				Position:    i + 1,
				Title:       m.Title,
				Content:     m.Content,
				DurationMin: m.DurationMin,
			}
			if err := tx.Create(&mod).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to create goal", "cause": err.Error()})
	}

	log.Printf("📚 Goal created: %s (%s, %d modules)", goal.Title, goal.Slug, len(req.Modules))
	return c.Status(fiber.StatusCreated).JSON(goal)
}

// UploadGoalCover uploads a cover image to R2 and attaches it to the goal.
func (s *GoalService) UploadGoalCover(c *fiber.Ctx) error {
	goalSlug := c.Params("slug")

	var goal models.LearningGoal
	if err := s.DB.Where("slug = ?", goalSlug).First(&goal).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "goal not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error", "cause": err.Error()})
	}

	coverFile, err := c.FormFile("cover")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "cover is required"})
	}
	ext := filepath.Ext(coverFile.Filename)
	if ext == "" {
		ext = ".png"
	}
	key := "goal-covers/" + uuid.NewString() + ext
	url, err := utils.StoreAsset(coverFile, key)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to store cover image"})
	}

	if err := s.DB.Model(&goal).Update("cover_image_url", url).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to save cover URL"})
	}
	return c.JSON(fiber.Map{"cover_image_url": url})
}

// ListGoals returns published goals (lightweight projection).
func (s *GoalService) ListGoals(c *fiber.Ctx) error {
	limit, _ := strconv.Atoi(c.Query("limit", "50"))
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	category := c.Query("category", "")

	q := s.DB.Model(&models.LearningGoal{}).Where("status = ?", models.GoalStatusPublished)
	if category != "" {
		q = q.Where("category = ?", category)
	}

	var goals []models.LearningGoal
	if err := q.Order("created_at DESC").Limit(limit).Find(&goals).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to list goals", "cause": err.Error()})
	}

	res := make([]MinimalGoal, 0, len(goals))
	for _, g := range goals {
		var count int64
		s.DB.Model(&models.GoalModule{}).Where("goal_id = ?", g.ID).Count(&count)
		res = append(res, MinimalGoal{
			ID:               g.ID,
			Title:            g.Title,
			Slug:             g.Slug,
			Category:         g.Category,
			ShortDescription: g.ShortDescription,
			CoverImageURL:    g.CoverImageURL,
			ModuleCount:      count,
		})
	}
	return c.JSON(res)
}

// GetGoal returns one published goal with its modules and the caller's
// completion state.
func (s *GoalService) GetGoal(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	goalSlug := c.Params("slug")

	var goal models.LearningGoal
	if err := s.DB.Preload("Modules", func(db *gorm.DB) *gorm.DB {
		return db.Order("position ASC")
	}).Where("slug = ? AND status = ?", goalSlug, models.GoalStatusPublished).
		First(&goal).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "goal not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error", "cause": err.Error()})
	}

	var completions []models.UserModuleCompletion
	if err := s.DB.Where("external_user_id = ? AND goal_id = ?", userID, goal.ID).
		Find(&completions).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error", "cause": err.Error()})
	}
	done := make(map[string]bool, len(completions))
	for _, comp := range completions {
		done[comp.ModuleID] = true
	}

	type ModuleView struct {
		models.GoalModule
		Completed bool `json:"completed"`
	}
	modules := make([]ModuleView, 0, len(goal.Modules))
	for _, m := range goal.Modules {
		modules = append(modules, ModuleView{GoalModule: m, Completed: done[m.ID]})
	}

	return c.JSON(fiber.Map{
		"goal":              goal,
		"modules":           modules,
		"completed_modules": len(completions),
		"total_modules":     len(goal.Modules),
	})
}

// CompleteModule records a module completion for the caller and feeds the
// progression engine. Safe to replay: the unique (user, module) index makes
// a second call a no-op and no second award is issued.
func (s *GoalService) CompleteModule(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	moduleID := c.Params("moduleId")

	var mod models.GoalModule
	if err := s.DB.Where("id = ?", moduleID).First(&mod).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "module not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error", "cause": err.Error()})
	}

	completion := models.UserModuleCompletion{
		ID:             uuid.NewString(),
		ExternalUserID: userID,
		ModuleID:       mod.ID,
		GoalID:         mod.GoalID,
	}
	if err := s.DB.Create(&completion).Error; err != nil {
		// Already completed — idempotent success, no new award.
		var existing models.UserModuleCompletion
		if ferr := s.DB.Where("external_user_id = ? AND module_id = ?", userID, mod.ID).
			First(&existing).Error; ferr == nil {
			return c.JSON(fiber.Map{"status": "already_completed", "completed_at": existing.CompletedAt})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to record completion", "cause": err.Error()})
	}

	result, err := s.Progression.AwardAction(userID, models.ActionModuleCompleted, AwardMetadata{
		Reference:      mod.ID,
		IdempotencyKey: "module:" + userID + ":" + mod.ID,
	})
	if err != nil {
		return respondProgressionError(c, err)
	}

	// Finishing the last module completes the goal.
	goalDone, gerr := s.goalFullyCompleted(userID, mod.GoalID)
	if gerr != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to check goal completion", "cause": gerr.Error()})
	}
	var goalResult *ProgressionResult
	if goalDone {
		goalResult, err = s.Progression.AwardAction(userID, models.ActionGoalCompleted, AwardMetadata{
			Reference:      mod.GoalID,
			IdempotencyKey: "goal:" + userID + ":" + mod.GoalID,
		})
		if err != nil {
			return respondProgressionError(c, err)
		}
	}

	resp := fiber.Map{
		"status":      "completed",
		"progression": result,
	}
	if goalResult != nil {
		resp["goal_completed"] = true
		resp["goal_progression"] = goalResult
	}
	return c.JSON(resp)
}

func (s *GoalService) goalFullyCompleted(userID, goalID string) (bool, error) {
	var total, done int64
	if err := s.DB.Model(&models.GoalModule{}).Where("goal_id = ?", goalID).Count(&total).Error; err != nil {
		return false, err
	}
	if total == 0 {
		return false, nil
	}
	if err := s.DB.Model(&models.UserModuleCompletion{}).
		Where("external_user_id = ? AND goal_id = ?", userID, goalID).Count(&done).Error; err != nil {
		return false, err
	}
	return done >= total, nil
}

// PublishGoal flips a draft straight to published (admin shortcut; scheduled
// goals are handled by the publish job).
func (s *GoalService) PublishGoal(c *fiber.Ctx) error {
	goalSlug := c.Params("slug")
	res := s.DB.Model(&models.LearningGoal{}).
		Where("slug = ? AND status <> ?", goalSlug, models.GoalStatusPublished).
		Updates(map[string]interface{}{"status": models.GoalStatusPublished, "publish_at": nil})
	if res.Error != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to publish goal", "cause": res.Error.Error()})
	}
	if res.RowsAffected == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": fmt.Sprintf("no unpublished goal with slug %s", goalSlug)})
	}
	return c.JSON(fiber.Map{"status": models.GoalStatusPublished})
}
