package services

import (
	"learnsphere-backend/models"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"
)

const (
	defaultLeaderboardSize = 50
	maxLeaderboardSize     = 100
)

// placeholderName is rendered for profiles whose owning user snapshot is
// gone (account deleted upstream). Entries are kept, never excluded.
const placeholderName = "Unknown User"

type LeaderboardService struct {
	DB *gorm.DB
}

func NewLeaderboardService(db *gorm.DB) *LeaderboardService {
	return &LeaderboardService{DB: db}
}

// TopN ranks all profiles by lifetime XP, descending. Ties break on profile
// creation time (older account first), so repeated calls over unchanged data
// return identical ordering.
func (s *LeaderboardService) TopN(n int) ([]models.LeaderboardEntry, error) {
	if n <= 0 {
		n = defaultLeaderboardSize
	}
	if n > maxLeaderboardSize {
		n = maxLeaderboardSize
	}

	var profiles []models.GamificationProfile
	if err := s.DB.Order("total_xp DESC, created_at ASC").Limit(n).
		Find(&profiles).Error; err != nil {
		return nil, storageErr("load leaderboard profiles", err)
	}
	if len(profiles) == 0 {
		return []models.LeaderboardEntry{}, nil
	}

	ids := make([]string, 0, len(profiles))
	for _, p := range profiles {
		ids = append(ids, p.ExternalUserID)
	}
	var users []models.PlatformUser
	if err := s.DB.Where("external_user_id IN ?", ids).Find(&users).Error; err != nil {
		return nil, storageErr("load leaderboard users", err)
	}
	nameByID := make(map[string]string, len(users))
	titler := cases.Title(language.English)
	for _, u := range users {
		name := u.Username
		if u.DisplayName != nil && *u.DisplayName != "" {
			name = titler.String(*u.DisplayName)
		}
		nameByID[u.ExternalUserID] = name
	}

	entries := make([]models.LeaderboardEntry, 0, len(profiles))
	for i, p := range profiles {
		name, ok := nameByID[p.ExternalUserID]
		if !ok || name == "" {
			name = placeholderName
		}
		entries = append(entries, models.LeaderboardEntry{
			Position:       i + 1,
			ExternalUserID: p.ExternalUserID,
			DisplayName:    name,
			Level:          p.Level,
			TotalXP:        p.TotalXP,
			RankLabel:      p.RankLabel,
		})
	}
	return entries, nil
}
