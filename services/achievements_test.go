package services

import (
	"encoding/json"
	"errors"
	"testing"

	"learnsphere-backend/models"
)

func moduleMarathonRow(t *testing.T, svc *AchievementService, userID string) *models.UserAchievement {
	t.Helper()
	var def models.AchievementDefinition
	if err := svc.DB.Where("code = ?", "MODULE_5").First(&def).Error; err != nil {
		t.Fatalf("load definition: %v", err)
	}
	var ua models.UserAchievement
	if err := svc.DB.Where("external_user_id = ? AND achievement_id = ?", userID, def.ID).
		First(&ua).Error; err != nil {
		return nil
	}
	return &ua
}

func TestAchievementUnlock_CrossesThresholdOnFifthModule(t *testing.T) {
	db := newTestDB(t)
	prog := newTestProgression(db)
	ach := NewAchievementService(db)

	for i := 0; i < 4; i++ {
		if _, err := prog.AwardAction("user-1", models.ActionModuleCompleted, AwardMetadata{}); err != nil {
			t.Fatalf("award %d: %v", i, err)
		}
	}

	ua := moduleMarathonRow(t, ach, "user-1")
	if ua == nil {
		t.Fatalf("expected lazily created progress row after first module")
	}
	if ua.Progress != 80 {
		t.Fatalf("expected progress 80 after 4 modules, got %d", ua.Progress)
	}
	if ua.IsCompleted || ua.UnlockedAt != nil {
		t.Fatalf("not yet unlockable: %+v", ua)
	}

	res, err := prog.AwardAction("user-1", models.ActionModuleCompleted, AwardMetadata{})
	if err != nil {
		t.Fatalf("fifth module: %v", err)
	}

	ua = moduleMarathonRow(t, ach, "user-1")
	if ua.Progress != 100 || !ua.IsCompleted {
		t.Fatalf("expected completion at 100, got %+v", ua)
	}
	if ua.UnlockedAt == nil {
		t.Fatalf("unlockedAt not stamped")
	}
	if ua.IsViewed {
		t.Fatalf("fresh unlock must start unviewed")
	}

	found := false
	for _, def := range res.Unlocked {
		if def.Code == "MODULE_5" {
			found = true
		}
	}
	if !found {
		t.Fatalf("MODULE_5 missing from unlocked list: %+v", res.Unlocked)
	}
}

func TestAchievementProgress_NeverDecreases(t *testing.T) {
	db := newTestDB(t)
	prog := newTestProgression(db)
	ach := NewAchievementService(db)

	last := 0
	for i := 0; i < 7; i++ {
		if _, err := prog.AwardAction("user-1", models.ActionModuleCompleted, AwardMetadata{}); err != nil {
			t.Fatalf("award %d: %v", i, err)
		}
		ua := moduleMarathonRow(t, ach, "user-1")
		if ua.Progress < last {
			t.Fatalf("progress decreased: %d → %d", last, ua.Progress)
		}
		last = ua.Progress
	}
	if last != 100 {
		t.Fatalf("expected clamp at 100, got %d", last)
	}
}

func TestMarkViewed_Idempotent(t *testing.T) {
	db := newTestDB(t)
	prog := newTestProgression(db)
	ach := NewAchievementService(db)

	// FIRST_QUIZ unlocks on the first passed quiz.
	if _, err := prog.AwardAction("user-1", models.ActionQuizPassed, AwardMetadata{}); err != nil {
		t.Fatalf("award: %v", err)
	}

	if err := ach.MarkViewed("user-1", "FIRST_QUIZ"); err != nil {
		t.Fatalf("first markViewed: %v", err)
	}
	if err := ach.MarkViewed("user-1", "FIRST_QUIZ"); err != nil {
		t.Fatalf("second markViewed: %v", err)
	}

	overview, err := ach.OverviewForUser("user-1")
	if err != nil {
		t.Fatalf("overview: %v", err)
	}
	if len(overview.New) != 0 {
		t.Fatalf("acknowledged unlock still listed as new: %+v", overview.New)
	}
}

func TestMarkViewed_NoRecordIsStillSuccess(t *testing.T) {
	db := newTestDB(t)
	ach := NewAchievementService(db)

	// Known catalog code, user never made progress: no-op, not an error.
	if err := ach.MarkViewed("user-1", "STREAK_30"); err != nil {
		t.Fatalf("expected no-op success, got %v", err)
	}
}

func TestMarkViewed_UnknownCodeIsNotFound(t *testing.T) {
	db := newTestDB(t)
	ach := NewAchievementService(db)

	err := ach.MarkViewed("user-1", "NO_SUCH_BADGE")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateDefinition_RefusedOnceReferenced(t *testing.T) {
	db := newTestDB(t)
	prog := newTestProgression(db)
	ach := NewAchievementService(db)

	if _, err := prog.AwardAction("user-1", models.ActionQuizPassed, AwardMetadata{}); err != nil {
		t.Fatalf("award: %v", err)
	}

	err := ach.UpdateDefinition("FIRST_QUIZ", map[string]interface{}{"threshold": 3})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for referenced definition, got %v", err)
	}
}

func TestUpdateDefinition_WhitelistsAndValidatesFields(t *testing.T) {
	db := newTestDB(t)
	ach := NewAchievementService(db)

	def := &models.AchievementDefinition{
		Title:     "Editable Badge",
		Category:  models.CategoryLearning,
		Rarity:    models.RarityCommon,
		Metric:    models.MetricQuizzesPassed,
		Threshold: 3,
	}
	if err := ach.CreateDefinition(def); err != nil {
		t.Fatalf("create: %v", err)
	}

	// Unreferenced entries stay editable, but only into valid states.
	if err := ach.UpdateDefinition(def.Code, map[string]interface{}{
		"rarity": "mythic",
	}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for bogus rarity, got %v", err)
	}
	if err := ach.UpdateDefinition(def.Code, map[string]interface{}{
		"threshold": float64(0),
	}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for zero threshold, got %v", err)
	}

	// Identity is never updatable.
	if err := ach.UpdateDefinition(def.Code, map[string]interface{}{
		"code": "HIJACKED",
	}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for code rewrite, got %v", err)
	}
	if err := ach.UpdateDefinition(def.Code, map[string]interface{}{
		"id": "not-a-real-id",
	}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for id rewrite, got %v", err)
	}

	// A well-formed update lands.
	if err := ach.UpdateDefinition(def.Code, map[string]interface{}{
		"rarity":    models.RarityRare,
		"threshold": float64(5),
	}); err != nil {
		t.Fatalf("valid update: %v", err)
	}
	var got models.AchievementDefinition
	if err := db.Where("code = ?", def.Code).First(&got).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.Rarity != models.RarityRare || got.Threshold != 5 {
		t.Fatalf("update did not apply: %+v", got)
	}
}

func TestCreateDefinition_DerivesCodeAndValidates(t *testing.T) {
	db := newTestDB(t)
	ach := NewAchievementService(db)

	def := &models.AchievementDefinition{
		Title:     "Night Owl Scholar",
		Category:  models.CategoryEngagement,
		Rarity:    models.RarityRare,
		Metric:    models.MetricDailyLogins,
		Threshold: 20,
	}
	if err := ach.CreateDefinition(def); err != nil {
		t.Fatalf("create: %v", err)
	}
	if def.Code != "NIGHT_OWL_SCHOLAR" {
		t.Fatalf("unexpected derived code: %s", def.Code)
	}

	bad := &models.AchievementDefinition{
		Title:     "Broken",
		Category:  "mystery",
		Rarity:    models.RarityCommon,
		Metric:    models.MetricLevel,
		Threshold: 1,
	}
	if err := ach.CreateDefinition(bad); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for bad category, got %v", err)
	}
}

func TestAchievementDetails_DecodeMixedShapes(t *testing.T) {
	// Legacy payloads mix bare strings and objects in the same list.
	raw := []byte(`["Pass any quiz", {"title": "Score well", "body": "70% or better"}]`)

	var details []models.AchievementDetail
	if err := json.Unmarshal(raw, &details); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(details) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(details))
	}
	if details[0].Kind != models.DetailKindLabel || details[0].Label != "Pass any quiz" {
		t.Fatalf("bare string should decode as label: %+v", details[0])
	}
	if details[1].Kind != models.DetailKindStep || details[1].Title != "Score well" {
		t.Fatalf("object should decode as step: %+v", details[1])
	}
}

func TestCreateDefinition_RejectsMalformedDetails(t *testing.T) {
	db := newTestDB(t)
	ach := NewAchievementService(db)

	def := &models.AchievementDefinition{
		Title:     "Detail Check",
		Category:  models.CategoryLearning,
		Rarity:    models.RarityCommon,
		Metric:    models.MetricQuizzesPassed,
		Threshold: 1,
		Details:   []models.AchievementDetail{{Kind: models.DetailKindStep}}, // no title
	}
	if err := ach.CreateDefinition(def); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for step without title, got %v", err)
	}
}

func TestOverviewForUser_SplitsUnlockedAndInProgress(t *testing.T) {
	db := newTestDB(t)
	prog := newTestProgression(db)
	ach := NewAchievementService(db)

	// One passed quiz: FIRST_QUIZ unlocked, QUIZ_10 at 10%.
	if _, err := prog.AwardAction("user-1", models.ActionQuizPassed, AwardMetadata{}); err != nil {
		t.Fatalf("award: %v", err)
	}

	overview, err := ach.OverviewForUser("user-1")
	if err != nil {
		t.Fatalf("overview: %v", err)
	}
	if len(overview.Unlocked) != 1 || overview.Unlocked[0].Definition.Code != "FIRST_QUIZ" {
		t.Fatalf("unexpected unlocked set: %+v", overview.Unlocked)
	}
	if len(overview.New) != 1 {
		t.Fatalf("fresh unlock should be new: %+v", overview.New)
	}
	foundQuiz10 := false
	for _, v := range overview.InProgress {
		if v.Definition.Code == "QUIZ_10" && v.Progress == 10 {
			foundQuiz10 = true
		}
	}
	if !foundQuiz10 {
		t.Fatalf("QUIZ_10 at 10%% missing from in-progress: %+v", overview.InProgress)
	}
}
