package domain

import "time"

// DateLayout is the calendar-day format used for lastStudyDate and
// dailyProgressDate.
const DateLayout = "2006-01-02"

// ProgressSnapshot is the full aggregate gamification state for one user.
// Its field set is the serialization contract between clients and stores.
type ProgressSnapshot struct {
	UserID string `json:"userId" bson:"_id"`

	Points       int64 `json:"points" bson:"points"`
	Level        int   `json:"level" bson:"level"`
	HighestLevel int   `json:"highestLevel" bson:"highestLevel"`

	Streak         int    `json:"streak" bson:"streak"`
	LastStudyDate  string `json:"lastStudyDate,omitempty" bson:"lastStudyDate,omitempty"`
	TotalStudyTime int    `json:"totalStudyTime" bson:"totalStudyTime"`

	DailyGoal         int    `json:"dailyGoal" bson:"dailyGoal"`
	DailyProgress     int    `json:"dailyProgress" bson:"dailyProgress"`
	DailyProgressDate string `json:"dailyProgressDate,omitempty" bson:"dailyProgressDate,omitempty"`
	DailyGoalHits     int    `json:"dailyGoalHits" bson:"dailyGoalHits"`

	Badges       []Badge       `json:"badges" bson:"badges"`
	Achievements []Achievement `json:"achievements" bson:"achievements"`
	Quests       []Quest       `json:"quests" bson:"quests"`
	Challenges   []Quest       `json:"challenges" bson:"challenges"`
	PowerUps     []PowerUp     `json:"powerUps" bson:"powerUps"`

	Stats Stats       `json:"stats" bson:"stats"`
	Quiz  QuizAttempt `json:"quiz" bson:"quiz"`

	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}

// Badge is a one-time boolean unlock.
type Badge struct {
	ID       string     `json:"id" bson:"id"`
	Name     string     `json:"name" bson:"name"`
	Earned   bool       `json:"earned" bson:"earned"`
	EarnedAt *time.Time `json:"earnedAt,omitempty" bson:"earnedAt,omitempty"`
}

// Achievement is a badge that also grants Points once, when earned.
type Achievement struct {
	ID       string     `json:"id" bson:"id"`
	Name     string     `json:"name" bson:"name"`
	Points   int64      `json:"points" bson:"points"`
	Earned   bool       `json:"earned" bson:"earned"`
	EarnedAt *time.Time `json:"earnedAt,omitempty" bson:"earnedAt,omitempty"`
}

// QuestCategory is the kind of event a quest or challenge subscribes to.
type QuestCategory string

const (
	QuestStudyMinutes QuestCategory = "study_minutes"
	QuestQuizzes      QuestCategory = "quizzes"
	QuestAIQuestions  QuestCategory = "ai_questions"
	QuestStreak       QuestCategory = "streak"
	QuestDailyGoal    QuestCategory = "daily_goal"
)

// Quest is a progress-bar goal. Challenges share the same shape.
type Quest struct {
	ID          string        `json:"id" bson:"id"`
	Name        string        `json:"name" bson:"name"`
	Category    QuestCategory `json:"category" bson:"category"`
	Progress    int           `json:"progress" bson:"progress"`
	Target      int           `json:"target" bson:"target"`
	Reward      int64         `json:"reward" bson:"reward"`
	Completed   bool          `json:"completed" bson:"completed"`
	CompletedAt *time.Time    `json:"completedAt,omitempty" bson:"completedAt,omitempty"`
}

// ProgressPct returns completion percentage (0–100).
func (q Quest) ProgressPct() float64 {
	if q.Target <= 0 {
		return 0
	}
	pct := float64(q.Progress) / float64(q.Target) * 100
	if pct > 100 {
		pct = 100
	}
	return pct
}

// PointCategory groups point deltas for power-up multipliers.
type PointCategory string

const (
	CategoryStudy PointCategory = "study"
	CategoryQuiz  PointCategory = "quiz"
)

// PowerUp is a time-boxed multiplier. Active is a cached flag; the
// authoritative state is ActivatedAt plus the fixed duration.
type PowerUp struct {
	Type        string        `json:"type" bson:"type"`
	Category    PointCategory `json:"category" bson:"category"`
	Multiplier  int64         `json:"multiplier" bson:"multiplier"`
	Active      bool          `json:"active" bson:"active"`
	ActivatedAt *time.Time    `json:"activatedAt,omitempty" bson:"activatedAt,omitempty"`
	ExpiresAt   *time.Time    `json:"expiresAt,omitempty" bson:"expiresAt,omitempty"`
}

// Stats holds the aggregate counters badge and achievement predicates read.
type Stats struct {
	SessionsCompleted int `json:"sessionsCompleted" bson:"sessionsCompleted"`
	SessionsAborted   int `json:"sessionsAborted" bson:"sessionsAborted"`
	QuizzesCompleted  int `json:"quizzesCompleted" bson:"quizzesCompleted"`
	PerfectQuizzes    int `json:"perfectQuizzes" bson:"perfectQuizzes"`
	AIQuestionsAsked  int `json:"aiQuestionsAsked" bson:"aiQuestionsAsked"`
	PowerUpsPurchased int `json:"powerUpsPurchased" bson:"powerUpsPurchased"`
}

// QuizAttempt tracks the answer reveals used in the current quiz.
type QuizAttempt struct {
	ID          string     `json:"id,omitempty" bson:"id,omitempty"`
	StartedAt   *time.Time `json:"startedAt,omitempty" bson:"startedAt,omitempty"`
	RevealsUsed int        `json:"revealsUsed" bson:"revealsUsed"`
}

// Clone returns a deep copy so callers can mutate without aliasing.
func (s ProgressSnapshot) Clone() ProgressSnapshot {
	c := s
	c.Badges = cloneSlice(s.Badges)
	c.Achievements = cloneSlice(s.Achievements)
	c.Quests = cloneSlice(s.Quests)
	c.Challenges = cloneSlice(s.Challenges)
	c.PowerUps = cloneSlice(s.PowerUps)
	return c
}

func cloneSlice[T any](in []T) []T {
	if in == nil {
		return nil
	}
	out := make([]T, len(in))
	copy(out, in)
	return out
}

// FindPowerUp returns the index of the power-up with the given type, or -1.
func (s *ProgressSnapshot) FindPowerUp(typ string) int {
	for i := range s.PowerUps {
		if s.PowerUps[i].Type == typ {
			return i
		}
	}
	return -1
}
