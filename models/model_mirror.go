package models

import (
	"time"
)

// ServedModelMirror is a local, read-mostly mirror of the models the local
// inference daemon currently serves. Populated by the model sync worker;
// the chat proxy resolves the per-request model against it instead of any
// in-process mutable setting, so concurrent requests cannot race on it.
type ServedModelMirror struct {
	Name       string    `gorm:"primaryKey" json:"name"` // e.g., "llama3.1:8b"
	SizeBytes  int64     `json:"size_bytes,omitempty"`
	Digest     string    `json:"digest,omitempty"`
	IsDefault  bool      `gorm:"default:false" json:"is_default"`
	LastSeenAt time.Time `json:"last_seen_at"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
