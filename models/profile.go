package models

import (
	"time"

	"gorm.io/gorm"
)

// GamificationProfile tracks gamified progression for each user (denormalized for performance)
type GamificationProfile struct {
	ID             string `gorm:"primaryKey;type:uuid" json:"id"`
	ExternalUserID string `gorm:"uniqueIndex;not null" json:"external_user_id"` // links to profile service

	// Core progression
	Level      int    `json:"level" gorm:"default:1"`
	CurrentXP  int64  `json:"current_xp" gorm:"default:0"` // XP accumulated toward the next level; always < RequiredXP at rest
	TotalXP    int64  `json:"total_xp" gorm:"default:0"`   // lifetime sum, never decreases
	RequiredXP int64  `json:"required_xp" gorm:"default:100"`
	RankLabel  string `json:"rank" gorm:"default:'Novice'"`

	// Streak
	StreakDays     int        `json:"streak_days" gorm:"default:0"`
	LastActivityAt *time.Time `json:"last_activity_at,omitempty"`

	// Activity counters (achievement predicates read these)
	QuizzesPassed    int64 `json:"quizzes_passed" gorm:"default:0"`
	ModulesCompleted int64 `json:"modules_completed" gorm:"default:0"`
	DailyLogins      int64 `json:"daily_logins" gorm:"default:0"`
	PeerHelpGiven    int64 `json:"peer_help_given" gorm:"default:0"`
	GoalsCompleted   int64 `json:"goals_completed" gorm:"default:0"`

	// Milestones
	LastLevelUpAt *time.Time `json:"last_level_up_at,omitempty"`
	LastRankUpAt  *time.Time `json:"last_rank_up_at,omitempty"`

	// Optimistic concurrency token; bumped on every successful award
	Version int64 `json:"-" gorm:"default:0"`

	Timestamps
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}
