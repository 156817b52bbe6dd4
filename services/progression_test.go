package services

import (
	"errors"
	"sync"
	"testing"
	"time"

	"learnsphere-backend/models"
)

func TestAwardAction_LevelUpCarriesRemainder(t *testing.T) {
	db := newTestDB(t)
	svc := newTestProgression(db)
	svc.Weights.QuizPassedXP = 120

	res, err := svc.AwardAction("user-1", models.ActionQuizPassed, AwardMetadata{})
	if err != nil {
		t.Fatalf("award: %v", err)
	}

	if res.Profile.Level != 2 {
		t.Fatalf("expected level 2, got %d", res.Profile.Level)
	}
	if res.Profile.CurrentXP != 20 {
		t.Fatalf("expected current XP 20, got %d", res.Profile.CurrentXP)
	}
	if res.Profile.RequiredXP != 150 {
		t.Fatalf("expected required XP 150, got %d", res.Profile.RequiredXP)
	}
	if res.Profile.TotalXP != 120 {
		t.Fatalf("expected total XP 120, got %d", res.Profile.TotalXP)
	}
	if len(res.LevelUps) != 1 {
		t.Fatalf("expected 1 level-up event, got %d", len(res.LevelUps))
	}
	if res.LevelUps[0].FromLevel != 1 || res.LevelUps[0].ToLevel != 2 {
		t.Fatalf("unexpected level-up event: %+v", res.LevelUps[0])
	}
}

func TestAwardAction_MultipleLevelsOneEventEach(t *testing.T) {
	db := newTestDB(t)
	svc := newTestProgression(db)
	svc.Weights.GoalCompletedXP = 260 // 100 + 150 + 10 → two level-ups

	res, err := svc.AwardAction("user-1", models.ActionGoalCompleted, AwardMetadata{})
	if err != nil {
		t.Fatalf("award: %v", err)
	}
	if res.Profile.Level != 3 {
		t.Fatalf("expected level 3, got %d", res.Profile.Level)
	}
	if res.Profile.CurrentXP != 10 {
		t.Fatalf("expected current XP 10, got %d", res.Profile.CurrentXP)
	}
	if len(res.LevelUps) != 2 {
		t.Fatalf("expected 2 level-up events, got %d", len(res.LevelUps))
	}
}

func TestAwardAction_UnknownKindRejected(t *testing.T) {
	db := newTestDB(t)
	svc := newTestProgression(db)

	_, err := svc.AwardAction("user-1", "coffee-brewed", AwardMetadata{})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}

	// Nothing persisted for the rejected action.
	var count int64
	db.Model(&models.GamificationProfile{}).Count(&count)
	if count != 0 {
		t.Fatalf("expected no profiles, got %d", count)
	}
}

func TestAwardAction_TotalXPEqualsSumOfAwards(t *testing.T) {
	db := newTestDB(t)
	svc := newTestProgression(db)

	actions := []string{
		models.ActionQuizPassed,      // 50
		models.ActionModuleCompleted, // 75
		models.ActionPeerHelpGiven,   // 25
		models.ActionQuizPassed,      // 50
		models.ActionGoalCompleted,   // 150
	}
	var want int64
	for _, a := range actions {
		xp, _ := svc.Weights.For(a)
		want += xp
		if _, err := svc.AwardAction("user-1", a, AwardMetadata{}); err != nil {
			t.Fatalf("award %s: %v", a, err)
		}
	}

	prof, err := svc.EnsureProfile("user-1")
	if err != nil {
		t.Fatalf("load profile: %v", err)
	}
	if prof.TotalXP != want {
		t.Fatalf("expected total XP %d, got %d", want, prof.TotalXP)
	}
}

func TestAwardAction_CurrentXPAlwaysBelowRequired(t *testing.T) {
	db := newTestDB(t)
	svc := newTestProgression(db)

	for i := 0; i < 30; i++ {
		res, err := svc.AwardAction("user-1", models.ActionModuleCompleted, AwardMetadata{})
		if err != nil {
			t.Fatalf("award %d: %v", i, err)
		}
		if res.Profile.CurrentXP >= res.Profile.RequiredXP {
			t.Fatalf("overflow state after award %d: current=%d required=%d",
				i, res.Profile.CurrentXP, res.Profile.RequiredXP)
		}
	}
}

func TestAwardAction_MonotonicLevelAndTotalXP(t *testing.T) {
	db := newTestDB(t)
	svc := newTestProgression(db)

	lastLevel, lastTotal := 0, int64(-1)
	for i := 0; i < 20; i++ {
		res, err := svc.AwardAction("user-1", models.ActionQuizPassed, AwardMetadata{})
		if err != nil {
			t.Fatalf("award %d: %v", i, err)
		}
		if res.Profile.Level < lastLevel {
			t.Fatalf("level decreased: %d → %d", lastLevel, res.Profile.Level)
		}
		if res.Profile.TotalXP < lastTotal {
			t.Fatalf("total XP decreased: %d → %d", lastTotal, res.Profile.TotalXP)
		}
		lastLevel, lastTotal = res.Profile.Level, res.Profile.TotalXP
	}
}

func TestAwardAction_ConcurrentAwardsNoLostUpdate(t *testing.T) {
	db := newTestDB(t)
	svc := newTestProgression(db)
	svc.Weights.QuizPassedXP = 50

	// Frame the scenario: fresh profile far from leveling.
	prof, err := svc.EnsureProfile("user-1")
	if err != nil {
		t.Fatalf("ensure profile: %v", err)
	}
	if err := db.Model(prof).Update("required_xp", 1000).Error; err != nil {
		t.Fatalf("prep profile: %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.AwardAction("user-1", models.ActionQuizPassed, AwardMetadata{}); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent award: %v", err)
	}

	final, err := svc.EnsureProfile("user-1")
	if err != nil {
		t.Fatalf("load profile: %v", err)
	}
	if final.CurrentXP != 100 {
		t.Fatalf("lost update: expected current XP 100, got %d", final.CurrentXP)
	}
	if final.TotalXP != 100 {
		t.Fatalf("lost update: expected total XP 100, got %d", final.TotalXP)
	}
}

func TestAwardAction_IdempotencyKeyReplaysWithoutDoubleAward(t *testing.T) {
	db := newTestDB(t)
	svc := newTestProgression(db)

	meta := AwardMetadata{IdempotencyKey: "attempt-42"}
	first, err := svc.AwardAction("user-1", models.ActionQuizPassed, meta)
	if err != nil {
		t.Fatalf("first award: %v", err)
	}
	if first.Replayed {
		t.Fatalf("first award must not be a replay")
	}

	second, err := svc.AwardAction("user-1", models.ActionQuizPassed, meta)
	if err != nil {
		t.Fatalf("replayed award: %v", err)
	}
	if !second.Replayed {
		t.Fatalf("expected replay on duplicate key")
	}
	if second.Profile.TotalXP != first.Profile.TotalXP {
		t.Fatalf("replay mutated XP: %d → %d", first.Profile.TotalXP, second.Profile.TotalXP)
	}
}

func TestAwardAction_IdempotencyKeysScopedPerUser(t *testing.T) {
	db := newTestDB(t)
	svc := newTestProgression(db)

	// Keys collide across users when collaborators derive them from shared
	// context (e.g., a lesson id). Each user still gets their own award.
	meta := AwardMetadata{IdempotencyKey: "lesson-7"}
	if _, err := svc.AwardAction("user-a", models.ActionQuizPassed, meta); err != nil {
		t.Fatalf("user-a award: %v", err)
	}

	res, err := svc.AwardAction("user-b", models.ActionQuizPassed, meta)
	if err != nil {
		t.Fatalf("user-b award: %v", err)
	}
	if res.Replayed {
		t.Fatalf("user-b's first award treated as a replay of user-a's")
	}
	if res.XPAwarded != svc.Weights.QuizPassedXP {
		t.Fatalf("expected %d XP for user-b, got %d", svc.Weights.QuizPassedXP, res.XPAwarded)
	}

	profB, err := svc.EnsureProfile("user-b")
	if err != nil {
		t.Fatalf("load user-b: %v", err)
	}
	if profB.TotalXP != svc.Weights.QuizPassedXP {
		t.Fatalf("user-b total XP %d, want %d", profB.TotalXP, svc.Weights.QuizPassedXP)
	}

	// The key still deduplicates within each user.
	res, err = svc.AwardAction("user-b", models.ActionQuizPassed, meta)
	if err != nil {
		t.Fatalf("user-b replay: %v", err)
	}
	if !res.Replayed {
		t.Fatalf("expected replay for user-b's duplicate key")
	}
}

func TestAwardAction_DailyLoginRepeatAwardsNothing(t *testing.T) {
	db := newTestDB(t)
	svc := newTestProgression(db)

	first, err := svc.AwardAction("user-1", models.ActionDailyLogin, AwardMetadata{})
	if err != nil {
		t.Fatalf("first login: %v", err)
	}
	if first.XPAwarded != svc.Weights.DailyLoginXP {
		t.Fatalf("expected %d XP, got %d", svc.Weights.DailyLoginXP, first.XPAwarded)
	}
	if first.Profile.StreakDays != 1 || first.Profile.DailyLogins != 1 {
		t.Fatalf("unexpected streak state: %+v", first.Profile)
	}

	second, err := svc.AwardAction("user-1", models.ActionDailyLogin, AwardMetadata{})
	if err != nil {
		t.Fatalf("second login: %v", err)
	}
	if second.XPAwarded != 0 {
		t.Fatalf("same-day login awarded %d XP, want 0", second.XPAwarded)
	}
	if second.Profile.StreakDays != 1 || second.Profile.DailyLogins != 1 {
		t.Fatalf("same-day login changed streak state: %+v", second.Profile)
	}
}

func TestAwardAction_StreakExtendsAcrossConsecutiveDays(t *testing.T) {
	db := newTestDB(t)
	svc := newTestProgression(db)

	if _, err := svc.AwardAction("user-1", models.ActionDailyLogin, AwardMetadata{}); err != nil {
		t.Fatalf("login: %v", err)
	}

	// Rewind the activity anchor to yesterday.
	yesterday := time.Now().UTC().AddDate(0, 0, -1)
	if err := db.Model(&models.GamificationProfile{}).
		Where("external_user_id = ?", "user-1").
		Update("last_activity_at", yesterday).Error; err != nil {
		t.Fatalf("rewind: %v", err)
	}

	res, err := svc.AwardAction("user-1", models.ActionDailyLogin, AwardMetadata{})
	if err != nil {
		t.Fatalf("next-day login: %v", err)
	}
	if res.Profile.StreakDays != 2 {
		t.Fatalf("expected streak 2, got %d", res.Profile.StreakDays)
	}

	// A gap resets to 1.
	lastWeek := time.Now().UTC().AddDate(0, 0, -7)
	if err := db.Model(&models.GamificationProfile{}).
		Where("external_user_id = ?", "user-1").
		Update("last_activity_at", lastWeek).Error; err != nil {
		t.Fatalf("rewind: %v", err)
	}
	res, err = svc.AwardAction("user-1", models.ActionDailyLogin, AwardMetadata{})
	if err != nil {
		t.Fatalf("post-gap login: %v", err)
	}
	if res.Profile.StreakDays != 1 {
		t.Fatalf("expected streak reset to 1, got %d", res.Profile.StreakDays)
	}
}

func TestAwardAction_RankFollowsLevelTable(t *testing.T) {
	if got := determineRank(1); got != "Novice" {
		t.Fatalf("level 1: %s", got)
	}
	if got := determineRank(7); got != "Apprentice" {
		t.Fatalf("level 7: %s", got)
	}
	if got := determineRank(10); got != "Scholar" {
		t.Fatalf("level 10: %s", got)
	}
	if got := determineRank(120); got != "Luminary" {
		t.Fatalf("level 120: %s", got)
	}
}

func TestNextRequiredXP_StrictlyIncreasing(t *testing.T) {
	required := int64(BaseRequiredXP)
	for i := 0; i < 40; i++ {
		next := nextRequiredXP(required)
		if next <= required {
			t.Fatalf("curve not increasing at %d: next=%d", required, next)
		}
		required = next
	}
}
