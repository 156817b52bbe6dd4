package models

import (
	"time"
)

// Action kinds the progression engine scores. Closed set — anything else is
// rejected as a validation error.
const (
	ActionQuizPassed      = "quiz-passed"
	ActionModuleCompleted = "module-completed"
	ActionDailyLogin      = "daily-login"
	ActionPeerHelpGiven   = "peer-help-given"
	ActionGoalCompleted   = "goal-completed"
)

// ActivityEvent: append-only log row per scored action. Doubles as the
// idempotency ledger and the cursor source for the SSE stream. Keys are
// scoped per user — the same key from two users is two distinct awards.
type ActivityEvent struct {
	ID             string  `gorm:"primaryKey;type:uuid" json:"id"`
	ExternalUserID string  `gorm:"index;index:idx_user_idempotency,unique;not null" json:"external_user_id"`
	Action         string  `gorm:"type:varchar(32);not null" json:"action"`
	XPAwarded      int64   `json:"xp_awarded"`
	LevelAfter     int     `json:"level_after"`
	LevelsGained   int     `json:"levels_gained"`
	Reference      string  `json:"reference,omitempty"` // e.g., quiz attempt id, module id
	IdempotencyKey *string `gorm:"index:idx_user_idempotency,unique" json:"-"` // nil when the caller sent none

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}
