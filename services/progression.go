package services

import (
	"errors"
	"fmt"
	"log"
	"math"
	"os"
	"strconv"
	"time"

	"learnsphere-backend/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// XPWeights define relative values per action kind (tunable via env)
type XPWeights struct {
	QuizPassedXP      int64
	ModuleCompletedXP int64
	DailyLoginXP      int64
	PeerHelpXP        int64
	GoalCompletedXP   int64
}

var DefaultXPWeights = XPWeights{
	QuizPassedXP:      50,
	ModuleCompletedXP: 75,
	DailyLoginXP:      10,
	PeerHelpXP:        25,
	GoalCompletedXP:   150,
}

// LoadXPWeights reads env overrides (XP_QUIZ_PASSED etc.) on top of defaults.
func LoadXPWeights() XPWeights {
	w := DefaultXPWeights
	override := func(key string, dst *int64) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil && n >= 0 {
				*dst = n
			}
		}
	}
	override("XP_QUIZ_PASSED", &w.QuizPassedXP)
	override("XP_MODULE_COMPLETED", &w.ModuleCompletedXP)
	override("XP_DAILY_LOGIN", &w.DailyLoginXP)
	override("XP_PEER_HELP_GIVEN", &w.PeerHelpXP)
	override("XP_GOAL_COMPLETED", &w.GoalCompletedXP)
	return w
}

// For returns the XP value for an action kind; ok=false for unknown kinds.
func (w XPWeights) For(action string) (int64, bool) {
	switch action {
	case models.ActionQuizPassed:
		return w.QuizPassedXP, true
	case models.ActionModuleCompleted:
		return w.ModuleCompletedXP, true
	case models.ActionDailyLogin:
		return w.DailyLoginXP, true
	case models.ActionPeerHelpGiven:
		return w.PeerHelpXP, true
	case models.ActionGoalCompleted:
		return w.GoalCompletedXP, true
	}
	return 0, false
}

// Level curve: level 1 requires BaseRequiredXP, each level after requires
// 1.5× the previous (rounded). Strictly increasing, so level-ups terminate.
const BaseRequiredXP = 100

func nextRequiredXP(current int64) int64 {
	return int64(math.Round(float64(current) * 1.5))
}

// rankThresholds: min level per rank label, highest first.
var rankThresholds = []struct {
	MinLevel int
	Label    string
}{
	{75, "Luminary"},
	{50, "Sage"},
	{35, "Expert"},
	{20, "Mentor"},
	{10, "Scholar"},
	{5, "Apprentice"},
	{1, "Novice"},
}

func determineRank(level int) string {
	for _, t := range rankThresholds {
		if level >= t.MinLevel {
			return t.Label
		}
	}
	return "Novice"
}

// actionCategories maps an action kind to the catalog categories evaluated
// after it. Milestone definitions are evaluated on every action; special
// ones never auto-evaluate (they are granted by admins).
func actionCategories(action string) []string {
	switch action {
	case models.ActionQuizPassed, models.ActionModuleCompleted, models.ActionGoalCompleted:
		return []string{models.CategoryLearning, models.CategoryMilestone}
	case models.ActionDailyLogin, models.ActionPeerHelpGiven:
		return []string{models.CategoryEngagement, models.CategoryMilestone}
	}
	return []string{models.CategoryMilestone}
}

// AwardMetadata carries action-specific fields used by achievement
// predicates and the idempotency ledger.
type AwardMetadata struct {
	Score          int    `json:"score,omitempty"`
	DurationSec    int    `json:"duration_sec,omitempty"`
	Reference      string `json:"reference,omitempty"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

// LevelUpEvent — one per level gained, so the client can queue one modal each.
type LevelUpEvent struct {
	FromLevel int    `json:"from_level"`
	ToLevel   int    `json:"to_level"`
	RankLabel string `json:"rank"`
}

// ProgressionResult is the outcome of one awarded action.
type ProgressionResult struct {
	Profile   models.GamificationProfile     `json:"profile"`
	XPAwarded int64                          `json:"xp_awarded"`
	LevelUps  []LevelUpEvent                 `json:"level_ups,omitempty"`
	Unlocked  []models.AchievementDefinition `json:"unlocked,omitempty"`
	Replayed  bool                           `json:"replayed,omitempty"`
}

// errVersionRace: internal CAS-miss signal, retried inside AwardAction.
var errVersionRace = errors.New("profile version race")

const maxAwardAttempts = 3

type ProgressionService struct {
	DB      *gorm.DB
	Weights XPWeights
}

func NewProgressionService(db *gorm.DB) *ProgressionService {
	return &ProgressionService{DB: db, Weights: LoadXPWeights()}
}

// EnsureProfile ensures a GamificationProfile row exists (idempotent,
// first-touch initialization with defaults).
func (s *ProgressionService) EnsureProfile(externalUserID string) (*models.GamificationProfile, error) {
	var prof models.GamificationProfile
	err := s.DB.Where("external_user_id = ?", externalUserID).First(&prof).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		prof = models.GamificationProfile{
			ID:             uuid.NewString(),
			ExternalUserID: externalUserID,
			Level:          1,
			RequiredXP:     BaseRequiredXP,
			RankLabel:      determineRank(1),
		}
		if cerr := s.DB.Create(&prof).Error; cerr != nil {
			// Lost a first-touch race: another award created the row.
			if errors.Is(cerr, gorm.ErrDuplicatedKey) {
				if rerr := s.DB.Where("external_user_id = ?", externalUserID).First(&prof).Error; rerr == nil {
					return &prof, nil
				}
			}
			return nil, storageErr("create profile", cerr)
		}
		return &prof, nil
	}
	if err != nil {
		return nil, storageErr("load profile", err)
	}
	return &prof, nil
}

// AwardAction converts one user action into XP, level transitions and
// achievement progress, atomically. Concurrent awards for the same user are
// serialized by an optimistic version check with a bounded retry; exhausting
// the retries surfaces ErrConflict with nothing persisted.
func (s *ProgressionService) AwardAction(externalUserID, action string, meta AwardMetadata) (*ProgressionResult, error) {
	if externalUserID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrValidation)
	}
	xp, ok := s.Weights.For(action)
	if !ok {
		return nil, fmt.Errorf("%w: unknown action kind %q", ErrValidation, action)
	}

	if meta.IdempotencyKey != "" {
		if res, replayed, err := s.replayByKey(externalUserID, meta.IdempotencyKey); err != nil {
			return nil, err
		} else if replayed {
			return res, nil
		}
	}

	for attempt := 1; attempt <= maxAwardAttempts; attempt++ {
		res, err := s.tryAward(externalUserID, action, xp, meta)
		if errors.Is(err, errVersionRace) {
			log.Printf("⚠️ [PROGRESSION] version race for %s on %s (attempt %d/%d)",
				externalUserID, action, attempt, maxAwardAttempts)
			continue
		}
		if err != nil {
			return nil, err
		}
		log.Printf("🎮 XP awarded: %s +%d via %s → Lvl=%d, XP=%d/%d, Rank=%s",
			externalUserID, res.XPAwarded, action,
			res.Profile.Level, res.Profile.CurrentXP, res.Profile.RequiredXP, res.Profile.RankLabel)
		return res, nil
	}
	return nil, fmt.Errorf("%w: award for %s retried %d times", ErrConflict, externalUserID, maxAwardAttempts)
}

// replayByKey returns the recorded outcome of a previously processed award
// by this user carrying the same idempotency key, without mutating anything.
// Keys are per-user: another user reusing the key is an unrelated award.
func (s *ProgressionService) replayByKey(externalUserID, key string) (*ProgressionResult, bool, error) {
	var event models.ActivityEvent
	err := s.DB.Where("external_user_id = ? AND idempotency_key = ?", externalUserID, key).
		First(&event).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, storageErr("idempotency lookup", err)
	}

	prof, perr := s.EnsureProfile(externalUserID)
	if perr != nil {
		return nil, false, perr
	}
	log.Printf("🔁 [PROGRESSION] replayed award %s for %s (key=%s)", event.Action, externalUserID, key)
	return &ProgressionResult{
		Profile:   *prof,
		XPAwarded: event.XPAwarded,
		Replayed:  true,
	}, true, nil
}

func (s *ProgressionService) tryAward(externalUserID, action string, xp int64, meta AwardMetadata) (*ProgressionResult, error) {
	prof, err := s.EnsureProfile(externalUserID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	result := &ProgressionResult{}

	txErr := s.DB.Transaction(func(tx *gorm.DB) error {
		// Streak upkeep: any scored action counts as activity.
		streak, activeToday := nextStreak(prof.LastActivityAt, prof.StreakDays, now)

		// A repeated daily-login on an already-active day refreshes the
		// streak anchor but awards nothing and counts no new login day.
		awarded := xp
		countLoginDay := true
		if action == models.ActionDailyLogin && activeToday {
			awarded = 0
			countLoginDay = false
		}

		next := *prof
		next.StreakDays = streak
		next.LastActivityAt = &now
		next.CurrentXP += awarded
		next.TotalXP += awarded

		// Level-up loop: carry the remainder, one event per level gained.
		var ups []LevelUpEvent
		for next.CurrentXP >= next.RequiredXP {
			next.CurrentXP -= next.RequiredXP
			next.Level++
			next.RequiredXP = nextRequiredXP(next.RequiredXP)
			next.LastLevelUpAt = &now
			ups = append(ups, LevelUpEvent{
				FromLevel: next.Level - 1,
				ToLevel:   next.Level,
				RankLabel: determineRank(next.Level),
			})
		}

		oldRank := next.RankLabel
		next.RankLabel = determineRank(next.Level)
		if next.RankLabel != oldRank {
			next.LastRankUpAt = &now
		}

		bumpCounter(&next, action, countLoginDay)

		// Optimistic write: only wins if nobody else advanced the version.
		res := tx.Model(&models.GamificationProfile{}).
			Where("id = ? AND version = ?", prof.ID, prof.Version).
			Updates(map[string]interface{}{
				"current_xp":        next.CurrentXP,
				"total_xp":          next.TotalXP,
				"level":             next.Level,
				"required_xp":       next.RequiredXP,
				"rank_label":        next.RankLabel,
				"streak_days":       next.StreakDays,
				"last_activity_at":  next.LastActivityAt,
				"quizzes_passed":    next.QuizzesPassed,
				"modules_completed": next.ModulesCompleted,
				"daily_logins":      next.DailyLogins,
				"peer_help_given":   next.PeerHelpGiven,
				"goals_completed":   next.GoalsCompleted,
				"last_level_up_at":  next.LastLevelUpAt,
				"last_rank_up_at":   next.LastRankUpAt,
				"version":           prof.Version + 1,
			})
		if res.Error != nil {
			return storageErr("update profile", res.Error)
		}
		if res.RowsAffected == 0 {
			return errVersionRace
		}
		next.Version = prof.Version + 1

		unlocked, aerr := evaluateAchievements(tx, &next, action, now)
		if aerr != nil {
			return aerr
		}

		event := models.ActivityEvent{
			ID:             uuid.NewString(),
			ExternalUserID: externalUserID,
			Action:         action,
			XPAwarded:      awarded,
			LevelAfter:     next.Level,
			LevelsGained:   len(ups),
			Reference:      meta.Reference,
		}
		if meta.IdempotencyKey != "" {
			key := meta.IdempotencyKey
			event.IdempotencyKey = &key
		}
		if err := tx.Create(&event).Error; err != nil {
			return storageErr("record activity", err)
		}

		result.Profile = next
		result.XPAwarded = awarded
		result.LevelUps = ups
		result.Unlocked = unlocked
		return nil
	})

	if txErr != nil {
		if errors.Is(txErr, errVersionRace) {
			return nil, errVersionRace
		}
		// Two racing calls with the same idempotency key: the loser hits the
		// unique index — resolve it as a replay rather than a failure.
		if meta.IdempotencyKey != "" {
			if res, replayed, rerr := s.replayByKey(externalUserID, meta.IdempotencyKey); rerr == nil && replayed {
				return res, nil
			}
		}
		if errors.Is(txErr, ErrStorageUnavailable) || errors.Is(txErr, ErrValidation) || errors.Is(txErr, ErrNotFound) {
			return nil, txErr
		}
		return nil, storageErr("award transaction", txErr)
	}
	return result, nil
}

// nextStreak computes the consecutive-day counter. Same calendar day keeps
// it, the day after extends it, anything older restarts at 1.
func nextStreak(last *time.Time, current int, now time.Time) (streak int, activeToday bool) {
	if last == nil {
		return 1, false
	}
	switch daysBetween(*last, now) {
	case 0:
		if current < 1 {
			current = 1
		}
		return current, true
	case 1:
		return current + 1, false
	default:
		return 1, false
	}
}

func daysBetween(a, b time.Time) int {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	start := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	end := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(end.Sub(start).Hours() / 24)
}

func bumpCounter(prof *models.GamificationProfile, action string, countLoginDay bool) {
	switch action {
	case models.ActionQuizPassed:
		prof.QuizzesPassed++
	case models.ActionModuleCompleted:
		prof.ModulesCompleted++
	case models.ActionDailyLogin:
		if countLoginDay {
			prof.DailyLogins++
		}
	case models.ActionPeerHelpGiven:
		prof.PeerHelpGiven++
	case models.ActionGoalCompleted:
		prof.GoalsCompleted++
	}
}
