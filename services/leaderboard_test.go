package services

import (
	"fmt"
	"testing"
	"time"

	"learnsphere-backend/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

func seedProfile(t *testing.T, db *gorm.DB, userID string, totalXP int64, createdAt time.Time) {
	t.Helper()
	prof := models.GamificationProfile{
		ID:             uuid.NewString(),
		ExternalUserID: userID,
		Level:          1,
		TotalXP:        totalXP,
		RequiredXP:     BaseRequiredXP,
		RankLabel:      "Novice",
	}
	if err := db.Create(&prof).Error; err != nil {
		t.Fatalf("seed profile %s: %v", userID, err)
	}
	if err := db.Model(&models.GamificationProfile{}).Where("id = ?", prof.ID).
		Update("created_at", createdAt).Error; err != nil {
		t.Fatalf("backdate profile %s: %v", userID, err)
	}
}

func seedUser(t *testing.T, db *gorm.DB, userID, username string, displayName *string) {
	t.Helper()
	u := models.PlatformUser{
		ID:             uuid.NewString(),
		ExternalUserID: userID,
		Username:       username,
		DisplayName:    displayName,
	}
	if err := db.Create(&u).Error; err != nil {
		t.Fatalf("seed user %s: %v", userID, err)
	}
}

func TestLeaderboard_OrdersByTotalXPDescending(t *testing.T) {
	db := newTestDB(t)
	lb := NewLeaderboardService(db)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	seedProfile(t, db, "low", 100, base)
	seedProfile(t, db, "high", 900, base.Add(time.Hour))
	seedProfile(t, db, "mid", 500, base.Add(2*time.Hour))
	for _, id := range []string{"low", "high", "mid"} {
		seedUser(t, db, id, id, nil)
	}

	entries, err := lb.TopN(10)
	if err != nil {
		t.Fatalf("topN: %v", err)
	}
	want := []string{"high", "mid", "low"}
	if len(entries) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(entries))
	}
	for i, id := range want {
		if entries[i].ExternalUserID != id {
			t.Fatalf("position %d: expected %s, got %s", i+1, id, entries[i].ExternalUserID)
		}
		if entries[i].Position != i+1 {
			t.Fatalf("expected position %d, got %d", i+1, entries[i].Position)
		}
	}
}

func TestLeaderboard_TiesBreakByOlderAccount(t *testing.T) {
	db := newTestDB(t)
	lb := NewLeaderboardService(db)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	seedProfile(t, db, "newer", 500, base.Add(time.Hour))
	seedProfile(t, db, "older", 500, base)
	seedUser(t, db, "newer", "newer", nil)
	seedUser(t, db, "older", "older", nil)

	for run := 0; run < 3; run++ {
		entries, err := lb.TopN(10)
		if err != nil {
			t.Fatalf("topN: %v", err)
		}
		if entries[0].ExternalUserID != "older" || entries[1].ExternalUserID != "newer" {
			t.Fatalf("run %d: tie should rank older account first: %+v", run, entries)
		}
	}
}

func TestLeaderboard_DanglingOwnerGetsPlaceholderName(t *testing.T) {
	db := newTestDB(t)
	lb := NewLeaderboardService(db)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	seedProfile(t, db, "ghost", 300, base)
	display := "ada lovelace"
	seedProfile(t, db, "known", 200, base)
	seedUser(t, db, "known", "ada", &display)

	entries, err := lb.TopN(10)
	if err != nil {
		t.Fatalf("topN: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("orphaned profiles must stay listed, got %d entries", len(entries))
	}
	if entries[0].DisplayName != "Unknown User" {
		t.Fatalf("expected placeholder for dangling owner, got %q", entries[0].DisplayName)
	}
	if entries[1].DisplayName != "Ada Lovelace" {
		t.Fatalf("expected title-cased display name, got %q", entries[1].DisplayName)
	}
}

func TestLeaderboard_ClampsRequestedSize(t *testing.T) {
	db := newTestDB(t)
	lb := NewLeaderboardService(db)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 120; i++ {
		id := fmt.Sprintf("user-%03d", i)
		seedProfile(t, db, id, int64(i), base.Add(time.Duration(i)*time.Minute))
		seedUser(t, db, id, id, nil)
	}

	entries, err := lb.TopN(500)
	if err != nil {
		t.Fatalf("topN: %v", err)
	}
	if len(entries) != maxLeaderboardSize {
		t.Fatalf("expected clamp at %d, got %d", maxLeaderboardSize, len(entries))
	}

	entries, err = lb.TopN(0)
	if err != nil {
		t.Fatalf("topN default: %v", err)
	}
	if len(entries) != defaultLeaderboardSize {
		t.Fatalf("expected default size %d, got %d", defaultLeaderboardSize, len(entries))
	}
}
