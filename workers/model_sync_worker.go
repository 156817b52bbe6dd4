// workers/model_sync_worker.go
package workers

import (
	"context"
	"log"
	"os"
	"time"

	"learnsphere-backend/models"
	"learnsphere-backend/services"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ModelSyncClient mirrors the inference daemon's served models into the DB.
// The chat proxy resolves per-request models against this mirror instead of
// any in-process mutable setting.
type ModelSyncClient struct {
	db        *gorm.DB
	inference *services.InferenceClient
}

func NewModelSyncClient(db *gorm.DB, inference *services.InferenceClient) *ModelSyncClient {
	return &ModelSyncClient{db: db, inference: inference}
}

// PollModels keeps the served-model mirror fresh until ctx is cancelled.
func PollModels(ctx context.Context, client *ModelSyncClient, interval time.Duration) {
	log.Println("🔁 Starting model mirror polling…")

	// Prime the mirror once so /chat works right after boot.
	if err := client.syncOnce(ctx); err != nil {
		log.Printf("⚠️ Initial model sync failed: %v", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := client.syncOnce(ctx); err != nil {
				log.Printf("❌ Model sync failed: %v", err)
			}
		case <-ctx.Done():
			log.Println("⏹️ Model mirror polling stopped")
			return
		}
	}
}

func (c *ModelSyncClient) syncOnce(ctx context.Context) error {
	served, err := c.inference.ListModels(ctx)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	defaultName := os.Getenv("INFERENCE_DEFAULT_MODEL")

	for _, m := range served {
		mirror := models.ServedModelMirror{
			Name:       m.Name,
			SizeBytes:  m.Size,
			Digest:     m.Digest,
			IsDefault:  m.Name == defaultName,
			LastSeenAt: now,
		}
		if err := c.db.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"size_bytes", "digest", "is_default", "last_seen_at",
			}),
		}).Create(&mirror).Error; err != nil {
			log.Printf("⚠️ Failed to upsert model mirror %s: %v", m.Name, err)
		}
	}

	// Drop models the daemon no longer serves — requests for them would 404
	// at the daemon anyway.
	if len(served) > 0 {
		if err := c.db.Where("last_seen_at < ?", now).
			Delete(&models.ServedModelMirror{}).Error; err != nil {
			log.Printf("⚠️ Failed to prune stale model mirrors: %v", err)
		}
	}
	return nil
}
