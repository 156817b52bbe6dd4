package models

import (
	"time"
)

// Goal publication lifecycle (mirrors the draft → scheduled → published flow)
const (
	GoalStatusDraft     = "draft"
	GoalStatusScheduled = "scheduled"
	GoalStatusPublished = "published"
)

// LearningGoal: a course-like unit of content made of ordered modules.
type LearningGoal struct {
	ID               string     `gorm:"primaryKey;type:uuid" json:"id"`
	Title            string     `gorm:"not null" json:"title"`
	Slug             string     `gorm:"uniqueIndex;not null" json:"slug"`
	ShortDescription string     `json:"short_description"`
	LongDescription  string     `gorm:"type:text" json:"long_description"`
	Category         string     `gorm:"index" json:"category"` // e.g., "programming", "languages"
	CoverImageURL    string     `gorm:"type:text" json:"cover_image_url,omitempty"`
	Status           string     `gorm:"type:varchar(16);default:'draft';index" json:"status"`
	PublishAt        *time.Time `json:"publish_at,omitempty"`

	Modules []GoalModule `gorm:"foreignKey:GoalID" json:"modules,omitempty"`

	Timestamps
}

// GoalModule: one lesson inside a goal. Content is markdown.
type GoalModule struct {
	ID          string `gorm:"primaryKey;type:uuid" json:"id"`
	GoalID      string `gorm:"index;not null" json:"goal_id"`
	Position    int    `gorm:"not null" json:"position"`
	Title       string `gorm:"not null" json:"title"`
	Content     string `gorm:"type:text" json:"content,omitempty"`
	DurationMin int    `json:"duration_min"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// UserModuleCompletion: one row per (user, module), created the first time a
// user finishes a module. The unique index is what stops double-award when
// the client replays the completion call.
type UserModuleCompletion struct {
	ID             string    `gorm:"primaryKey;type:uuid" json:"id"`
	ExternalUserID string    `gorm:"index:idx_user_module,unique;not null" json:"external_user_id"`
	ModuleID       string    `gorm:"index:idx_user_module,unique;not null" json:"module_id"`
	GoalID         string    `gorm:"index;not null" json:"goal_id"`
	CompletedAt    time.Time `gorm:"autoCreateTime" json:"completed_at"`
}
