package engagement

import "github.com/studyquest/studyquest/internal/domain"

// Point rules.
const (
	PointsPerStudyMinute    int64 = 5
	StudyAbortPenalty       int64 = -25
	PointsPerCorrect        int64 = 5
	PointsPerIncorrect      int64 = -1
	PointsPerReveal         int64 = -10
	MaxRevealsPerQuiz             = 3
	MaxSessionMinutes             = 24 * 60
	DefaultDailyGoal              = 30
	DailyGoalDeltaThreshold int64 = 50
)

// StudyPoints is the base delta for a completed session of minutes.
func StudyPoints(minutes int) int64 {
	return PointsPerStudyMinute * int64(minutes)
}

// QuizPoints is the base delta for a graded quiz.
func QuizPoints(correct, incorrect, revealed int) int64 {
	return PointsPerCorrect*int64(correct) +
		PointsPerIncorrect*int64(incorrect) +
		PointsPerReveal*int64(revealed)
}

// addPoints applies delta and clamps the total at zero.
// Returns the change actually applied.
func addPoints(s *domain.ProgressSnapshot, delta int64) int64 {
	before := s.Points
	s.Points = max(s.Points+delta, 0)
	return s.Points - before
}

// multiplied scales an event's base delta by the active power-up
// multiplier. A net loss is scaled too; the total is clamped afterwards.
func multiplied(delta, multiplier int64) int64 {
	if multiplier <= 1 {
		return delta
	}
	return delta * multiplier
}
