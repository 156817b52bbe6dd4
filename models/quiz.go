package models

import (
	"time"
)

// Quiz: an assessment attached to a learning goal. PassScore is a percentage.
type Quiz struct {
	ID        string  `gorm:"primaryKey;type:uuid" json:"id"`
	GoalID    *string `gorm:"index" json:"goal_id,omitempty"` // optional: standalone quizzes allowed
	Title     string  `gorm:"not null" json:"title"`
	Slug      string  `gorm:"uniqueIndex;not null" json:"slug"`
	PassScore int     `gorm:"default:70" json:"pass_score"`

	Questions []QuizQuestion `gorm:"foreignKey:QuizID" json:"questions,omitempty"`

	Timestamps
}

// QuizQuestion: multiple choice. CorrectIndex is never serialized to clients.
type QuizQuestion struct {
	ID           string   `gorm:"primaryKey;type:uuid" json:"id"`
	QuizID       string   `gorm:"index;not null" json:"quiz_id"`
	Position     int      `gorm:"not null" json:"position"`
	Prompt       string   `gorm:"type:text;not null" json:"prompt"`
	Options      []string `gorm:"serializer:json" json:"options"`
	CorrectIndex int      `json:"-"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// QuizAttempt: one graded submission. Score is a percentage 0–100.
type QuizAttempt struct {
	ID             string    `gorm:"primaryKey;type:uuid" json:"id"`
	ExternalUserID string    `gorm:"index;not null" json:"external_user_id"`
	QuizID         string    `gorm:"index;not null" json:"quiz_id"`
	Score          int       `json:"score"`
	Passed         bool      `json:"passed"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
}
