// services/scheduler.go
package services

import (
	"log"
	"time"

	"learnsphere-backend/models"

	"github.com/go-co-op/gocron/v2"
)

// StartPublishScheduler publishes scheduled goals as their publish time
// arrives and lapses streaks of users idle for more than a day.
func (s *GoalService) StartPublishScheduler() {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	// Every minute: publish scheduled goals
	_, _ = sched.NewJob(
		gocron.DurationJob(1*time.Minute),
		gocron.NewTask(func() {
			var goals []models.LearningGoal
			now := time.Now()
			err := s.DB.Where("status = ? AND publish_at <= ?", models.GoalStatusScheduled, now).
				Find(&goals).Error
			if err != nil {
				log.Printf("[Scheduler] DB error: %v", err)
				return
			}

			for _, g := range goals {
				g.Status = models.GoalStatusPublished
				g.PublishAt = nil
				if err := s.DB.Save(&g).Error; err != nil {
					log.Printf("[Scheduler] Failed to publish goal %s: %v", g.ID, err)
				} else {
					log.Printf("✅ Auto-published goal: %s", g.Title)
				}
			}
		}),
	)

	// Nightly: zero out streaks that lapsed (no activity yesterday or today).
	// Awards never read the zeroed value wrongly — AwardAction recomputes the
	// streak from last_activity_at on its own.
	_, _ = sched.NewJob(
		gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(0, 10, 0))),
		gocron.NewTask(func() {
			cutoff := time.Now().UTC().AddDate(0, 0, -1).Truncate(24 * time.Hour)
			res := s.DB.Model(&models.GamificationProfile{}).
				Where("streak_days > 0 AND (last_activity_at IS NULL OR last_activity_at < ?)", cutoff).
				Update("streak_days", 0)
			if res.Error != nil {
				log.Printf("[Scheduler] Streak lapse failed: %v", res.Error)
				return
			}
			if res.RowsAffected > 0 {
				log.Printf("🕛 Lapsed streaks for %d idle profile(s)", res.RowsAffected)
			}
		}),
	)
}
