package services

import (
	"fmt"
	"testing"

	"learnsphere-backend/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens an isolated in-memory sqlite database with the full schema
// and the seeded achievement catalog.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap sql.DB: %v", err)
	}
	// One connection keeps the shared in-memory DB alive and serializes
	// concurrent transactions the way a real store would.
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&models.PlatformUser{},
		&models.GamificationProfile{},
		&models.AchievementDefinition{},
		&models.UserAchievement{},
		&models.ActivityEvent{},
		&models.LearningGoal{},
		&models.GoalModule{},
		&models.UserModuleCompletion{},
		&models.Quiz{},
		&models.QuizQuestion{},
		&models.QuizAttempt{},
		&models.ServedModelMirror{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	if err := NewAchievementService(db).SeedCatalog(); err != nil {
		t.Fatalf("seed catalog: %v", err)
	}
	return db
}

func newTestProgression(db *gorm.DB) *ProgressionService {
	return &ProgressionService{DB: db, Weights: DefaultXPWeights}
}
