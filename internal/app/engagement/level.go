package engagement

import (
	"strconv"

	"github.com/studyquest/studyquest/internal/domain"
)

// LevelUpBonus is granted once for every newly reached level.
const LevelUpBonus int64 = 100

// PointsForLevel returns the cumulative points required to reach a level.
// Advancing from L to L+1 costs 100 + (L-1)*50, so thresholds run
// 0, 100, 250, 450, 700, ...
func PointsForLevel(level int) int64 {
	if level <= 1 {
		return 0
	}
	n := int64(level - 1)
	return 100*n + 25*n*(n-1)
}

// LevelForPoints returns the level for a given points total.
// Iterates upward until the next threshold exceeds the total.
func LevelForPoints(points int64) int {
	level := 1
	for points >= PointsForLevel(level+1) {
		level++
	}
	return level
}

// PointsToNextLevel returns points remaining until the next level.
func PointsToNextLevel(points int64) int64 {
	next := PointsForLevel(LevelForPoints(points) + 1)
	return next - max(points, 0)
}

// LevelProgressPct returns progress toward the next level (0.0–100.0).
func LevelProgressPct(points int64) float64 {
	level := LevelForPoints(points)
	thisLevel := PointsForLevel(level)
	span := PointsForLevel(level+1) - thisLevel
	if span <= 0 {
		return 100.0
	}
	progress := float64(points-thisLevel) / float64(span) * 100.0
	return min(max(progress, 0), 100)
}

// applyLevelUps recomputes level from points and pays the bonus for every
// level above the highest one already paid. The bonus can cross further
// thresholds, so it loops until the level is stable.
func applyLevelUps(s *domain.ProgressSnapshot) []domain.Unlock {
	if s.HighestLevel < 1 {
		s.HighestLevel = 1
	}

	var unlocks []domain.Unlock
	for {
		level := LevelForPoints(s.Points)
		if level <= s.HighestLevel {
			break
		}
		for l := s.HighestLevel + 1; l <= level; l++ {
			s.Points += LevelUpBonus
			unlocks = append(unlocks, domain.Unlock{
				Kind:   domain.UnlockLevel,
				ID:     levelID(l),
				Reward: LevelUpBonus,
			})
		}
		s.HighestLevel = level
	}

	s.Level = LevelForPoints(s.Points)
	return unlocks
}

// syncLevel derives the level from points for snapshots written with a
// stale level. Bonuses up to the derived level count as paid.
func syncLevel(s *domain.ProgressSnapshot) bool {
	level := LevelForPoints(s.Points)
	changed := s.Level != level
	s.Level = level
	if s.HighestLevel < level {
		s.HighestLevel = level
		changed = true
	}
	return changed
}

func levelID(level int) string {
	return "level-" + strconv.Itoa(level)
}
