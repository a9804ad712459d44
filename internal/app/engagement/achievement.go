package engagement

import (
	"time"

	"github.com/studyquest/studyquest/internal/domain"
)

// evaluateBadges flips every badge whose predicate is newly true.
// Already-earned badges are skipped, so re-running is a no-op.
func evaluateBadges(s *domain.ProgressSnapshot, defs []domain.BadgeDef, now time.Time) []domain.Unlock {
	var unlocked []domain.Unlock
	for _, def := range defs {
		i := findBadge(s, def)
		if s.Badges[i].Earned {
			continue
		}
		if def.Predicate != nil && def.Predicate(*s) {
			at := now
			s.Badges[i].Earned = true
			s.Badges[i].EarnedAt = &at
			unlocked = append(unlocked, domain.Unlock{Kind: domain.UnlockBadge, ID: def.ID})
		}
	}
	return unlocked
}

// evaluateAchievements is evaluateBadges plus the one-time points reward.
func evaluateAchievements(s *domain.ProgressSnapshot, defs []domain.AchievementDef, now time.Time) []domain.Unlock {
	var unlocked []domain.Unlock
	for _, def := range defs {
		i := findAchievement(s, def)
		if s.Achievements[i].Earned {
			continue
		}
		if def.Predicate != nil && def.Predicate(*s) {
			at := now
			s.Achievements[i].Earned = true
			s.Achievements[i].EarnedAt = &at
			addPoints(s, def.Points)
			unlocked = append(unlocked, domain.Unlock{
				Kind:   domain.UnlockAchievement,
				ID:     def.ID,
				Reward: def.Points,
			})
		}
	}
	return unlocked
}

// findBadge returns the index of def's badge, appending it if a catalog
// entry was added after the snapshot was created.
func findBadge(s *domain.ProgressSnapshot, def domain.BadgeDef) int {
	for i := range s.Badges {
		if s.Badges[i].ID == def.ID {
			return i
		}
	}
	s.Badges = append(s.Badges, domain.Badge{ID: def.ID, Name: def.Name})
	return len(s.Badges) - 1
}

func findAchievement(s *domain.ProgressSnapshot, def domain.AchievementDef) int {
	for i := range s.Achievements {
		if s.Achievements[i].ID == def.ID {
			return i
		}
	}
	s.Achievements = append(s.Achievements, domain.Achievement{
		ID:     def.ID,
		Name:   def.Name,
		Points: def.Points,
	})
	return len(s.Achievements) - 1
}

// ─── Badge Definitions ──────────────────────────────────────────────────────

// AllBadges returns the badge catalog.
func AllBadges() []domain.BadgeDef {
	return []domain.BadgeDef{
		{
			ID: "first-steps", Name: "First Steps",
			Predicate: func(s domain.ProgressSnapshot) bool { return s.Stats.SessionsCompleted >= 1 },
		},
		{
			ID: "quiz-taker", Name: "Quiz Taker",
			Predicate: func(s domain.ProgressSnapshot) bool { return s.Stats.QuizzesCompleted >= 1 },
		},
		{
			ID: "on-a-roll", Name: "On a Roll",
			Predicate: func(s domain.ProgressSnapshot) bool { return s.Streak >= 3 },
		},
		{
			ID: "scholar", Name: "Scholar",
			Predicate: func(s domain.ProgressSnapshot) bool { return s.TotalStudyTime >= 300 },
		},
		{
			ID: "perfectionist", Name: "Perfectionist",
			Predicate: func(s domain.ProgressSnapshot) bool { return s.Stats.PerfectQuizzes >= 3 },
		},
		{
			ID: "powered-up", Name: "Powered Up",
			Predicate: func(s domain.ProgressSnapshot) bool { return s.Stats.PowerUpsPurchased >= 1 },
		},
		{
			ID: "goal-getter", Name: "Goal Getter",
			Predicate: func(s domain.ProgressSnapshot) bool { return s.DailyGoalHits >= 1 },
		},
	}
}

// ─── Achievement Definitions ────────────────────────────────────────────────

// AllAchievements returns the achievement catalog.
func AllAchievements() []domain.AchievementDef {
	return []domain.AchievementDef{
		// Study
		{
			ID: "first-session", Name: "Opening Chapter", Points: 50,
			Predicate: func(s domain.ProgressSnapshot) bool { return s.Stats.SessionsCompleted >= 1 },
		},
		{
			ID: "study-hour", Name: "Hour of Focus", Points: 100,
			Predicate: func(s domain.ProgressSnapshot) bool { return s.TotalStudyTime >= 60 },
		},
		{
			ID: "study-marathon", Name: "Marathon", Points: 250,
			Predicate: func(s domain.ProgressSnapshot) bool { return s.TotalStudyTime >= 600 },
		},

		// Streaks
		{
			ID: "week-streak", Name: "Seven Days Strong", Points: 150,
			Predicate: func(s domain.ProgressSnapshot) bool { return s.Streak >= 7 },
		},

		// Quizzes
		{
			ID: "quiz-ten", Name: "Quiz Regular", Points: 100,
			Predicate: func(s domain.ProgressSnapshot) bool { return s.Stats.QuizzesCompleted >= 10 },
		},
		{
			ID: "perfect-score", Name: "Flawless", Points: 75,
			Predicate: func(s domain.ProgressSnapshot) bool { return s.Stats.PerfectQuizzes >= 1 },
		},

		// Mastery
		{
			ID: "level-five", Name: "Rising Star", Points: 200,
			Predicate: func(s domain.ProgressSnapshot) bool { return s.Level >= 5 },
		},
		{
			ID: "curious-mind", Name: "Curious Mind", Points: 100,
			Predicate: func(s domain.ProgressSnapshot) bool { return s.Stats.AIQuestionsAsked >= 25 },
		},
	}
}
