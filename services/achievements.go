package services

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"learnsphere-backend/models"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AchievementService struct {
	DB *gorm.DB
}

func NewAchievementService(db *gorm.DB) *AchievementService {
	return &AchievementService{DB: db}
}

// SeedCatalog inserts the built-in definitions, skipping codes that already
// exist so referenced entries are never rewritten.
func (s *AchievementService) SeedCatalog() error {
	for _, def := range models.AchievementCatalog {
		d := def
		d.ID = uuid.NewString()
		if err := s.DB.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "code"}},
			DoNothing: true,
		}).Create(&d).Error; err != nil {
			return storageErr("seed achievement catalog", err)
		}
	}
	log.Printf("🏅 Achievement catalog seeded (%d definitions)", len(models.AchievementCatalog))
	return nil
}

// metricValue reads the predicate input off the (already updated) profile.
func metricValue(prof *models.GamificationProfile, metric string) int64 {
	switch metric {
	case models.MetricQuizzesPassed:
		return prof.QuizzesPassed
	case models.MetricModulesCompleted:
		return prof.ModulesCompleted
	case models.MetricDailyLogins:
		return prof.DailyLogins
	case models.MetricPeerHelpGiven:
		return prof.PeerHelpGiven
	case models.MetricGoalsCompleted:
		return prof.GoalsCompleted
	case models.MetricLevel:
		return int64(prof.Level)
	case models.MetricStreakDays:
		return int64(prof.StreakDays)
	case models.MetricTotalXP:
		return prof.TotalXP
	}
	return 0
}

// evaluateAchievements runs inside the award transaction: for every catalog
// definition whose category matches the action, recompute progress against
// the new profile state and upsert the UserAchievement row. Progress never
// decreases; crossing 100 stamps the unlock exactly once.
func evaluateAchievements(tx *gorm.DB, prof *models.GamificationProfile, action string, now time.Time) ([]models.AchievementDefinition, error) {
	var defs []models.AchievementDefinition
	if err := tx.Where("category IN ?", actionCategories(action)).Find(&defs).Error; err != nil {
		return nil, storageErr("load achievement catalog", err)
	}
	if len(defs) == 0 {
		return nil, nil
	}

	defIDs := make([]string, 0, len(defs))
	for _, d := range defs {
		defIDs = append(defIDs, d.ID)
	}

	var existing []models.UserAchievement
	if err := tx.Where("external_user_id = ? AND achievement_id IN ?", prof.ExternalUserID, defIDs).
		Find(&existing).Error; err != nil {
		return nil, storageErr("load user achievements", err)
	}
	byDef := make(map[string]*models.UserAchievement, len(existing))
	for i := range existing {
		byDef[existing[i].AchievementID] = &existing[i]
	}

	var unlocked []models.AchievementDefinition
	for _, def := range defs {
		if def.Threshold <= 0 {
			continue
		}
		progress := int(metricValue(prof, def.Metric) * 100 / def.Threshold)
		if progress > 100 {
			progress = 100
		}
		if progress <= 0 {
			continue
		}

		ua := byDef[def.ID]
		if ua == nil {
			row := models.UserAchievement{
				ID:             uuid.NewString(),
				ExternalUserID: prof.ExternalUserID,
				AchievementID:  def.ID,
				Progress:       progress,
			}
			if progress >= 100 {
				row.IsCompleted = true
				row.UnlockedAt = &now
				unlocked = append(unlocked, def)
			}
			if err := tx.Create(&row).Error; err != nil {
				return nil, storageErr("create user achievement", err)
			}
			continue
		}

		if progress <= ua.Progress {
			continue
		}
		updates := map[string]interface{}{"progress": progress}
		if progress >= 100 && !ua.IsCompleted {
			updates["is_completed"] = true
			updates["unlocked_at"] = now
			unlocked = append(unlocked, def)
		}
		if err := tx.Model(&models.UserAchievement{}).Where("id = ?", ua.ID).
			Updates(updates).Error; err != nil {
			return nil, storageErr("update user achievement", err)
		}
	}

	for _, def := range unlocked {
		log.Printf("🎖️ Achievement unlocked: %s → %s", def.Code, prof.ExternalUserID)
	}
	return unlocked, nil
}

// MarkViewed acknowledges an unlock client-side. Idempotent: already viewed
// or never started are both fine; only an unknown catalog code is an error.
func (s *AchievementService) MarkViewed(externalUserID, code string) error {
	var def models.AchievementDefinition
	if err := s.DB.Where("code = ?", code).First(&def).Error; err != nil {
		return notFoundOrStorage("achievement "+code, err)
	}

	res := s.DB.Model(&models.UserAchievement{}).
		Where("external_user_id = ? AND achievement_id = ? AND is_viewed = ?", externalUserID, def.ID, false).
		Update("is_viewed", true)
	if res.Error != nil {
		return storageErr("mark achievement viewed", res.Error)
	}
	return nil
}

// UserAchievementView pairs a progress row with its catalog definition.
type UserAchievementView struct {
	Definition models.AchievementDefinition `json:"definition"`
	Progress   int                          `json:"progress"`
	IsViewed   bool                         `json:"is_viewed"`
	UnlockedAt *time.Time                   `json:"unlocked_at,omitempty"`
}

// AchievementOverview splits a user's rows for the profile endpoint.
type AchievementOverview struct {
	Unlocked   []UserAchievementView `json:"unlocked"`
	InProgress []UserAchievementView `json:"in_progress"`
	New        []UserAchievementView `json:"new_achievements"` // completed but not yet acknowledged
}

func (s *AchievementService) OverviewForUser(externalUserID string) (*AchievementOverview, error) {
	var rows []models.UserAchievement
	if err := s.DB.Where("external_user_id = ?", externalUserID).
		Order("updated_at DESC").Find(&rows).Error; err != nil {
		return nil, storageErr("load user achievements", err)
	}

	overview := &AchievementOverview{
		Unlocked:   []UserAchievementView{},
		InProgress: []UserAchievementView{},
		New:        []UserAchievementView{},
	}
	if len(rows) == 0 {
		return overview, nil
	}

	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.AchievementID)
	}
	var defs []models.AchievementDefinition
	if err := s.DB.Where("id IN ?", ids).Find(&defs).Error; err != nil {
		return nil, storageErr("load achievement catalog", err)
	}
	defByID := make(map[string]models.AchievementDefinition, len(defs))
	for _, d := range defs {
		defByID[d.ID] = d
	}

	for _, r := range rows {
		def, ok := defByID[r.AchievementID]
		if !ok {
			continue // catalog row vanished out-of-band; skip rather than 500
		}
		view := UserAchievementView{
			Definition: def,
			Progress:   r.Progress,
			IsViewed:   r.IsViewed,
			UnlockedAt: r.UnlockedAt,
		}
		if r.IsCompleted {
			overview.Unlocked = append(overview.Unlocked, view)
			if !r.IsViewed {
				overview.New = append(overview.New, view)
			}
		} else {
			overview.InProgress = append(overview.InProgress, view)
		}
	}
	return overview, nil
}

// CreateDefinition adds an admin-managed catalog entry. The code is derived
// from the title when not provided.
func (s *AchievementService) CreateDefinition(def *models.AchievementDefinition) error {
	if def.Title == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	if !validCategory(def.Category) {
		return fmt.Errorf("%w: unknown category %q", ErrValidation, def.Category)
	}
	if !validRarity(def.Rarity) {
		return fmt.Errorf("%w: unknown rarity %q", ErrValidation, def.Rarity)
	}
	if def.Category != models.CategorySpecial {
		if !validMetric(def.Metric) {
			return fmt.Errorf("%w: unknown metric %q", ErrValidation, def.Metric)
		}
		if def.Threshold <= 0 {
			return fmt.Errorf("%w: threshold must be positive", ErrValidation)
		}
	}
	for i, d := range def.Details {
		switch d.Kind {
		case models.DetailKindLabel:
			if d.Label == "" {
				return fmt.Errorf("%w: detail %d: label entries need a label", ErrValidation, i+1)
			}
		case models.DetailKindStep:
			if d.Title == "" {
				return fmt.Errorf("%w: detail %d: step entries need a title", ErrValidation, i+1)
			}
		default:
			return fmt.Errorf("%w: detail %d: unknown kind %q", ErrValidation, i+1, d.Kind)
		}
	}
	if def.Code == "" {
		def.Code = strings.ToUpper(strings.ReplaceAll(slug.Make(def.Title), "-", "_"))
	}
	if def.ID == "" {
		def.ID = uuid.NewString()
	}

	if err := s.DB.Create(def).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("%w: achievement code %s already exists", ErrConflict, def.Code)
		}
		return storageErr("create achievement definition", err)
	}
	return nil
}

// Columns an admin may edit. Identity (id, code) and unlock bookkeeping are
// never updatable.
var updatableDefinitionColumns = map[string]bool{
	"title":       true,
	"description": true,
	"category":    true,
	"rarity":      true,
	"metric":      true,
	"threshold":   true,
	"points":      true,
	"icon_url":    true,
}

// validateDefinitionUpdates holds updates to the same rules CreateDefinition
// enforces, so an unreferenced entry cannot be edited into a state the
// create path would have rejected.
func validateDefinitionUpdates(updates map[string]interface{}) error {
	for col, val := range updates {
		if !updatableDefinitionColumns[col] {
			return fmt.Errorf("%w: field %q is not updatable", ErrValidation, col)
		}
		switch col {
		case "title":
			if s, ok := val.(string); !ok || s == "" {
				return fmt.Errorf("%w: title must be a non-empty string", ErrValidation)
			}
		case "category":
			if s, ok := val.(string); !ok || !validCategory(s) {
				return fmt.Errorf("%w: unknown category %v", ErrValidation, val)
			}
		case "rarity":
			if s, ok := val.(string); !ok || !validRarity(s) {
				return fmt.Errorf("%w: unknown rarity %v", ErrValidation, val)
			}
		case "metric":
			if s, ok := val.(string); !ok || !validMetric(s) {
				return fmt.Errorf("%w: unknown metric %v", ErrValidation, val)
			}
		case "threshold":
			// JSON numbers decode as float64
			switch n := val.(type) {
			case float64:
				if n <= 0 || n != float64(int64(n)) {
					return fmt.Errorf("%w: threshold must be a positive integer", ErrValidation)
				}
			case int:
				if n <= 0 {
					return fmt.Errorf("%w: threshold must be a positive integer", ErrValidation)
				}
			case int64:
				if n <= 0 {
					return fmt.Errorf("%w: threshold must be a positive integer", ErrValidation)
				}
			default:
				return fmt.Errorf("%w: threshold must be a positive integer", ErrValidation)
			}
		}
	}
	return nil
}

// UpdateDefinition edits a catalog entry — refused once any UserAchievement
// references it, since rewriting reference data would corrupt the meaning of
// historical unlocks. Fields are whitelisted and validated like creates.
func (s *AchievementService) UpdateDefinition(code string, updates map[string]interface{}) error {
	if err := validateDefinitionUpdates(updates); err != nil {
		return err
	}

	var def models.AchievementDefinition
	if err := s.DB.Where("code = ?", code).First(&def).Error; err != nil {
		return notFoundOrStorage("achievement "+code, err)
	}

	var refs int64
	if err := s.DB.Model(&models.UserAchievement{}).
		Where("achievement_id = ?", def.ID).Count(&refs).Error; err != nil {
		return storageErr("count achievement references", err)
	}
	if refs > 0 {
		return fmt.Errorf("%w: achievement %s is referenced by %d user records and is immutable", ErrConflict, code, refs)
	}

	if err := s.DB.Model(&def).Updates(updates).Error; err != nil {
		return storageErr("update achievement definition", err)
	}
	return nil
}

// SetBadgeImage attaches an uploaded badge image URL. Allowed even for
// referenced definitions: imagery is presentation, not unlock semantics.
func (s *AchievementService) SetBadgeImage(code, url string) error {
	res := s.DB.Model(&models.AchievementDefinition{}).
		Where("code = ?", code).Update("badge_image_url", url)
	if res.Error != nil {
		return storageErr("set badge image", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: achievement %s", ErrNotFound, code)
	}
	return nil
}

func validCategory(c string) bool {
	switch c {
	case models.CategoryLearning, models.CategoryEngagement, models.CategoryMilestone, models.CategorySpecial:
		return true
	}
	return false
}

func validRarity(r string) bool {
	switch r {
	case models.RarityCommon, models.RarityUncommon, models.RarityRare, models.RarityEpic, models.RarityLegendary:
		return true
	}
	return false
}

func validMetric(m string) bool {
	switch m {
	case models.MetricQuizzesPassed, models.MetricModulesCompleted, models.MetricDailyLogins,
		models.MetricPeerHelpGiven, models.MetricGoalsCompleted, models.MetricLevel,
		models.MetricStreakDays, models.MetricTotalXP:
		return true
	}
	return false
}
