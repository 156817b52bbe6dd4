package models

import (
	"time"

	"gorm.io/gorm"
)

// PlatformUser is a local snapshot of user data needed for display
// (leaderboard names, avatars). Owned solely by this service and populated
// via the sync worker from the profile service.
type PlatformUser struct {
	ID                string     `gorm:"primaryKey;type:uuid" json:"id"`
	ExternalUserID    string     `gorm:"uniqueIndex;not null" json:"external_user_id"` // the profile service's UUID
	Username          string     `gorm:"index;not null" json:"username"`
	Email             string     `json:"email,omitempty"`
	DisplayName       *string    `json:"display_name,omitempty"`
	ProfilePictureURL *string    `json:"profile_picture_url,omitempty"`
	Bio               *string    `json:"bio,omitempty"`
	PreferredLanguage *string    `json:"preferred_language,omitempty"`
	LastSeen          *time.Time `json:"last_seen,omitempty"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`

	// Soft delete keeps leaderboard history resolvable
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// LeaderboardEntry is a derived projection over all profiles — computed on
// read, never stored.
type LeaderboardEntry struct {
	Position       int    `json:"position"`
	ExternalUserID string `json:"external_user_id"`
	DisplayName    string `json:"display_name"`
	Level          int    `json:"level"`
	TotalXP        int64  `json:"total_xp"`
	RankLabel      string `json:"rank"`
}
