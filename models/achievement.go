package models

import (
	"encoding/json"
	"time"
)

// Achievement categories — each catalog entry belongs to exactly one.
const (
	CategoryLearning   = "learning"
	CategoryEngagement = "engagement"
	CategoryMilestone  = "milestone"
	CategorySpecial    = "special"
)

// Rarity tiers (cosmetic, drives card styling client-side)
const (
	RarityCommon    = "common"
	RarityUncommon  = "uncommon"
	RarityRare      = "rare"
	RarityEpic      = "epic"
	RarityLegendary = "legendary"
)

// Metrics an achievement predicate can read off a GamificationProfile.
const (
	MetricQuizzesPassed    = "quizzes_passed"
	MetricModulesCompleted = "modules_completed"
	MetricDailyLogins      = "daily_logins"
	MetricPeerHelpGiven    = "peer_help_given"
	MetricGoalsCompleted   = "goals_completed"
	MetricLevel            = "level"
	MetricStreakDays       = "streak_days"
	MetricTotalXP          = "total_xp"
)

// Detail entry kinds. Legacy payloads mixed bare strings and objects in the
// same list; the wire decoder maps both onto this tagged form so nothing
// downstream inspects runtime types.
const (
	DetailKindLabel = "label"
	DetailKindStep  = "step"
)

// AchievementDetail is one entry of a definition's how-to-earn list: either
// a plain label or a structured step with a title.
type AchievementDetail struct {
	Kind  string `json:"kind"`
	Label string `json:"label,omitempty"` // kind=label
	Title string `json:"title,omitempty"` // kind=step
	Body  string `json:"body,omitempty"`
}

// UnmarshalJSON accepts a bare string as a label entry and an object as a
// step entry.
func (d *AchievementDetail) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*d = AchievementDetail{Kind: DetailKindLabel, Label: s}
		return nil
	}
	type plain AchievementDetail
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	if p.Kind == "" {
		p.Kind = DetailKindStep
	}
	*d = AchievementDetail(p)
	return nil
}

// AchievementDefinition: catalog reference data, keyed by Code.
// Immutable once any UserAchievement references it — editing in place would
// corrupt the semantics of historical unlocks.
type AchievementDefinition struct {
	ID            string `gorm:"primaryKey;type:uuid" json:"id"`
	Code          string `gorm:"uniqueIndex;not null" json:"code"` // e.g., "FIRST_QUIZ", "STREAK_7"
	Title         string `gorm:"not null" json:"title"`
	Description   string `json:"description"`
	Category      string `gorm:"type:varchar(16);not null" json:"category"`
	IconURL       string `gorm:"type:text" json:"icon_url"`
	BadgeImageURL string `gorm:"type:text" json:"badge_image_url,omitempty"` // optional R2 URL
	Points        int64  `gorm:"default:0" json:"points"`
	Rarity        string `gorm:"type:varchar(16);default:'common'" json:"rarity"`

	// Completion predicate: profile metric >= threshold.
	Metric    string `gorm:"type:varchar(32)" json:"metric"`
	Threshold int64  `gorm:"default:1" json:"threshold"`

	// How-to-earn list rendered on the card, if any.
	Details []AchievementDetail `gorm:"serializer:json" json:"details,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// UserAchievement: per-(user, achievement) progress row, created lazily on
// the first qualifying action. Progress is clamped 0–100 and never decreases.
type UserAchievement struct {
	ID             string     `gorm:"primaryKey;type:uuid" json:"id"`
	ExternalUserID string     `gorm:"index:idx_user_achievement,unique;not null" json:"external_user_id"`
	AchievementID  string     `gorm:"index:idx_user_achievement,unique;not null" json:"achievement_id"`
	Progress       int        `gorm:"default:0" json:"progress"` // 0–100
	IsCompleted    bool       `gorm:"default:false" json:"is_completed"`
	UnlockedAt     *time.Time `json:"unlocked_at,omitempty"` // set exactly once, on completion
	IsViewed       bool       `gorm:"default:false" json:"is_viewed"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// AchievementCatalog: seeded on startup (upsert by code, insert-only so
// referenced entries are never rewritten).
var AchievementCatalog = []AchievementDefinition{
	{
		Code:        "FIRST_QUIZ",
		Title:       "Quiz Rookie",
		Description: "Passed your first quiz",
		Category:    CategoryLearning,
		Rarity:      RarityCommon,
		Points:      10,
		Metric:      MetricQuizzesPassed,
		Threshold:   1,
	},
	{
		Code:        "QUIZ_10",
		Title:       "Quiz Whiz",
		Description: "Passed 10 quizzes",
		Category:    CategoryLearning,
		Rarity:      RarityUncommon,
		Points:      50,
		Metric:      MetricQuizzesPassed,
		Threshold:   10,
	},
	{
		Code:        "MODULE_5",
		Title:       "Module Marathon",
		Description: "Completed 5 learning modules",
		Category:    CategoryLearning,
		Rarity:      RarityUncommon,
		Points:      50,
		Metric:      MetricModulesCompleted,
		Threshold:   5,
	},
	{
		Code:        "FIRST_GOAL",
		Title:       "Goal Getter",
		Description: "Completed your first learning goal",
		Category:    CategoryLearning,
		Rarity:      RarityCommon,
		Points:      25,
		Metric:      MetricGoalsCompleted,
		Threshold:   1,
	},
	{
		Code:        "GOAL_5",
		Title:       "Pathfinder",
		Description: "Completed 5 learning goals",
		Category:    CategoryLearning,
		Rarity:      RarityEpic,
		Points:      200,
		Metric:      MetricGoalsCompleted,
		Threshold:   5,
	},
	{
		Code:        "STREAK_7",
		Title:       "Week Streak",
		Description: "Learned 7 days in a row",
		Category:    CategoryEngagement,
		Rarity:      RarityUncommon,
		Points:      50,
		Metric:      MetricStreakDays,
		Threshold:   7,
		Details: []AchievementDetail{
			{Kind: DetailKindLabel, Label: "Any scored activity counts toward the day"},
			{Kind: DetailKindStep, Title: "Keep it alive", Body: "Come back before midnight UTC the next day"},
		},
	},
	{
		Code:        "STREAK_30",
		Title:       "Habit Builder",
		Description: "Learned 30 days in a row",
		Category:    CategoryEngagement,
		Rarity:      RarityRare,
		Points:      150,
		Metric:      MetricStreakDays,
		Threshold:   30,
	},
	{
		Code:        "HELPER_10",
		Title:       "Good Samaritan",
		Description: "Helped 10 fellow learners",
		Category:    CategoryEngagement,
		Rarity:      RarityRare,
		Points:      100,
		Metric:      MetricPeerHelpGiven,
		Threshold:   10,
	},
	{
		Code:        "LEVEL_10",
		Title:       "Rising Scholar",
		Description: "Reached level 10",
		Category:    CategoryMilestone,
		Rarity:      RarityRare,
		Points:      100,
		Metric:      MetricLevel,
		Threshold:   10,
	},
	{
		Code:        "LEVEL_50",
		Title:       "Halfway to Legend",
		Description: "Reached level 50",
		Category:    CategoryMilestone,
		Rarity:      RarityEpic,
		Points:      500,
		Metric:      MetricLevel,
		Threshold:   50,
	},
	{
		Code:        "XP_10000",
		Title:       "Ten Thousand Club",
		Description: "Earned 10,000 lifetime XP",
		Category:    CategoryMilestone,
		Rarity:      RarityLegendary,
		Points:      1000,
		Metric:      MetricTotalXP,
		Threshold:   10000,
	},
}
