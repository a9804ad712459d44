package engagement

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/studyquest/studyquest/internal/domain"
)

// DailyGoalPolicy decides when a study day counts as a daily-goal hit.
type DailyGoalPolicy string

const (
	// DailyGoalSingleDelta counts a hit whenever a single positive point
	// delta reaches DailyGoalDeltaThreshold. Several sessions in one day can
	// each count, and many short sessions never do.
	DailyGoalSingleDelta DailyGoalPolicy = "single_delta"

	// DailyGoalCumulative counts one hit per day, when dailyProgress first
	// reaches dailyGoal.
	DailyGoalCumulative DailyGoalPolicy = "cumulative"
)

// maxSettlePasses bounds the level/achievement fixpoint loop.
const maxSettlePasses = 32

// Engine applies events to snapshots. It holds only static configuration
// and is safe for concurrent use.
type Engine struct {
	loc          *time.Location
	goalPolicy   DailyGoalPolicy
	badges       []domain.BadgeDef
	achievements []domain.AchievementDef
}

// Option configures an Engine.
type Option func(*Engine)

// WithLocation sets the time zone used for calendar-day boundaries.
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) {
		if loc != nil {
			e.loc = loc
		}
	}
}

// WithDailyGoalPolicy selects how daily-goal hits are counted.
func WithDailyGoalPolicy(p DailyGoalPolicy) Option {
	return func(e *Engine) {
		if p != "" {
			e.goalPolicy = p
		}
	}
}

// WithBadges replaces the badge catalog.
func WithBadges(defs []domain.BadgeDef) Option {
	return func(e *Engine) { e.badges = defs }
}

// WithAchievements replaces the achievement catalog.
func WithAchievements(defs []domain.AchievementDef) Option {
	return func(e *Engine) { e.achievements = defs }
}

// NewEngine creates an engine with the default catalogs, local time and the
// single-delta daily goal policy.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		loc:          time.Local,
		goalPolicy:   DailyGoalSingleDelta,
		badges:       AllBadges(),
		achievements: AllAchievements(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ParseDailyGoalPolicy validates a policy name from configuration.
func ParseDailyGoalPolicy(s string) (DailyGoalPolicy, error) {
	switch p := DailyGoalPolicy(s); p {
	case "", DailyGoalSingleDelta:
		return DailyGoalSingleDelta, nil
	case DailyGoalCumulative:
		return p, nil
	default:
		return "", fmt.Errorf("%w: unknown daily goal policy %q", domain.ErrValidation, s)
	}
}

// Location returns the engine's calendar time zone.
func (e *Engine) Location() *time.Location { return e.loc }

// Outcome describes the effect of one applied event.
type Outcome struct {
	Kind domain.EventKind `json:"kind"`

	// Delta is the net change in points, rewards and level bonuses included.
	Delta int64 `json:"delta"`

	// EventDelta is the event's own delta after multiplier and clamping.
	EventDelta int64 `json:"eventDelta"`
	Multiplier int64 `json:"multiplier"`

	Points      int64           `json:"points"`
	Level       int             `json:"level"`
	LeveledUp   bool            `json:"leveledUp"`
	Unlocks     []domain.Unlock `json:"unlocks,omitempty"`
	RevealsLeft int             `json:"revealsLeft"`
}

// NewSnapshot returns the all-default snapshot for a new user.
func (e *Engine) NewSnapshot(userID string, now time.Time) domain.ProgressSnapshot {
	s := domain.ProgressSnapshot{
		UserID:            userID,
		Level:             1,
		HighestLevel:      1,
		DailyGoal:         DefaultDailyGoal,
		DailyProgressDate: dayKey(now, e.loc),
		Badges:            []domain.Badge{},
		Achievements:      []domain.Achievement{},
		Quests:            []domain.Quest{},
		Challenges:        []domain.Quest{},
		PowerUps:          []domain.PowerUp{},
		UpdatedAt:         now,
	}
	e.ensureCatalog(&s)
	return s
}

// Refresh applies the time-driven transitions (day rollover, power-up
// expiry, catalog additions) without an event. Reports whether s changed.
func (e *Engine) Refresh(s *domain.ProgressSnapshot, now time.Time) bool {
	changed := e.ensureCatalog(s)
	if syncLevel(s) {
		changed = true
	}
	if e.rollDay(s, now) {
		changed = true
	}
	if len(RefreshPowerUps(s, now)) > 0 {
		changed = true
	}
	return changed
}

// Apply routes ev to its rule and settles levels and unlocks.
// The snapshot is only modified when Apply returns a nil error.
func (e *Engine) Apply(s *domain.ProgressSnapshot, ev domain.Event, now time.Time) (Outcome, error) {
	if s == nil || ev == nil {
		return Outcome{}, fmt.Errorf("%w: nil snapshot or event", domain.ErrValidation)
	}

	next := s.Clone()
	e.normalize(&next, now)
	startPoints := s.Points
	startLevel := next.Level

	out := Outcome{Kind: ev.Kind(), Multiplier: 1}
	var err error
	switch ev := ev.(type) {
	case domain.StudyCompleted:
		err = e.studyCompleted(&next, ev, now, &out)
	case domain.StudyAborted:
		err = e.studyAborted(&next, ev, &out)
	case domain.QuizStarted:
		next.Quiz = domain.QuizAttempt{ID: uuid.NewString(), StartedAt: &now}
	case domain.RevealUsed:
		err = e.revealUsed(&next)
	case domain.QuizSubmitted:
		err = e.quizSubmitted(&next, ev, now, &out)
	case domain.PowerUpPurchased:
		if err = purchasePowerUp(&next, ev.Type, now); err == nil {
			out.EventDelta = -PowerUpCost
		}
	case domain.AIQuestionAsked:
		next.Stats.AIQuestionsAsked++
		out.Unlocks = append(out.Unlocks, recordCategory(&next, domain.QuestAIQuestions, 1, now)...)
	case domain.QuestProgressed:
		var unlocks []domain.Unlock
		unlocks, err = checkQuestProgress(&next, ev.QuestID, ev.Amount, now)
		out.Unlocks = append(out.Unlocks, unlocks...)
	case domain.DailyGoalChanged:
		err = e.dailyGoalChanged(&next, ev)
	default:
		err = fmt.Errorf("%w: unsupported event %T", domain.ErrValidation, ev)
	}
	if err != nil {
		return Outcome{Kind: ev.Kind()}, err
	}

	out.Unlocks = append(out.Unlocks, e.settle(&next, now)...)
	next.UpdatedAt = now

	out.Delta = next.Points - startPoints
	out.Points = next.Points
	out.Level = next.Level
	out.LeveledUp = next.Level > startLevel
	out.RevealsLeft = max(MaxRevealsPerQuiz-next.Quiz.RevealsUsed, 0)

	*s = next
	return out, nil
}

// ─── Event Rules ────────────────────────────────────────────────────────────

func (e *Engine) studyCompleted(s *domain.ProgressSnapshot, ev domain.StudyCompleted, now time.Time, out *Outcome) error {
	if err := validateMinutes(ev.Minutes); err != nil {
		return err
	}

	out.Multiplier = Multiplier(s, domain.CategoryStudy, now)
	delta := multiplied(StudyPoints(ev.Minutes), out.Multiplier)
	out.EventDelta = addPoints(s, delta)

	s.TotalStudyTime += ev.Minutes
	s.Stats.SessionsCompleted++
	recordStudyDay(s, dayKey(now, e.loc))

	belowGoal := s.DailyProgress < s.DailyGoal
	s.DailyProgress = min(s.DailyProgress+ev.Minutes, s.DailyGoal)
	reachedGoal := belowGoal && s.DailyProgress >= s.DailyGoal

	out.Unlocks = append(out.Unlocks, recordCategory(s, domain.QuestStudyMinutes, ev.Minutes, now)...)
	out.Unlocks = append(out.Unlocks, recordCategory(s, domain.QuestStreak, s.Streak, now)...)
	out.Unlocks = append(out.Unlocks, e.recordGoalHit(s, delta, reachedGoal, now)...)
	return nil
}

func (e *Engine) studyAborted(s *domain.ProgressSnapshot, ev domain.StudyAborted, out *Outcome) error {
	if err := validateMinutes(ev.Minutes); err != nil {
		return err
	}
	out.EventDelta = addPoints(s, StudyAbortPenalty)
	s.Stats.SessionsAborted++
	return nil
}

func (e *Engine) revealUsed(s *domain.ProgressSnapshot) error {
	if s.Quiz.RevealsUsed >= MaxRevealsPerQuiz {
		return fmt.Errorf("%w: %d of %d used", domain.ErrLimitReached, s.Quiz.RevealsUsed, MaxRevealsPerQuiz)
	}
	s.Quiz.RevealsUsed++
	return nil
}

func (e *Engine) quizSubmitted(s *domain.ProgressSnapshot, ev domain.QuizSubmitted, now time.Time, out *Outcome) error {
	if ev.Correct < 0 || ev.Incorrect < 0 || ev.Revealed < 0 {
		return fmt.Errorf("%w: quiz counts must not be negative", domain.ErrValidation)
	}
	if ev.Revealed > MaxRevealsPerQuiz {
		return fmt.Errorf("%w: at most %d reveals per quiz, got %d", domain.ErrValidation, MaxRevealsPerQuiz, ev.Revealed)
	}

	out.Multiplier = Multiplier(s, domain.CategoryQuiz, now)
	delta := multiplied(QuizPoints(ev.Correct, ev.Incorrect, ev.Revealed), out.Multiplier)
	out.EventDelta = addPoints(s, delta)

	s.Stats.QuizzesCompleted++
	if ev.Correct > 0 && ev.Incorrect == 0 && ev.Revealed == 0 {
		s.Stats.PerfectQuizzes++
	}
	s.Quiz = domain.QuizAttempt{}

	out.Unlocks = append(out.Unlocks, recordCategory(s, domain.QuestQuizzes, 1, now)...)
	out.Unlocks = append(out.Unlocks, e.recordGoalHit(s, delta, false, now)...)
	return nil
}

func (e *Engine) dailyGoalChanged(s *domain.ProgressSnapshot, ev domain.DailyGoalChanged) error {
	if ev.Minutes <= 0 || ev.Minutes > MaxSessionMinutes {
		return fmt.Errorf("%w: daily goal must be between 1 and %d minutes, got %d",
			domain.ErrValidation, MaxSessionMinutes, ev.Minutes)
	}
	s.DailyGoal = ev.Minutes
	s.DailyProgress = min(s.DailyProgress, s.DailyGoal)
	return nil
}

// recordGoalHit counts a daily-goal hit according to the engine's policy.
func (e *Engine) recordGoalHit(s *domain.ProgressSnapshot, delta int64, reachedGoal bool, now time.Time) []domain.Unlock {
	hit := reachedGoal
	if e.goalPolicy == DailyGoalSingleDelta {
		hit = delta > DailyGoalDeltaThreshold
	}
	if !hit {
		return nil
	}
	s.DailyGoalHits++
	return recordCategory(s, domain.QuestDailyGoal, 1, now)
}

func validateMinutes(m int) error {
	if m < 0 || m > MaxSessionMinutes {
		return fmt.Errorf("%w: duration must be between 0 and %d minutes, got %d",
			domain.ErrValidation, MaxSessionMinutes, m)
	}
	return nil
}

// ─── Settling ───────────────────────────────────────────────────────────────

// settle pays level bonuses and evaluates badges and achievements until
// nothing changes. Achievement rewards can cross levels and level-based
// achievements can then unlock, hence the loop.
func (e *Engine) settle(s *domain.ProgressSnapshot, now time.Time) []domain.Unlock {
	var all []domain.Unlock
	for pass := 0; pass < maxSettlePasses; pass++ {
		var round []domain.Unlock
		round = append(round, applyLevelUps(s)...)
		round = append(round, evaluateAchievements(s, e.achievements, now)...)
		round = append(round, evaluateBadges(s, e.badges, now)...)
		if len(round) == 0 {
			break
		}
		all = append(all, round...)
	}
	return all
}

// normalize repairs snapshots that came from older clients or stores
// before an event is applied.
func (e *Engine) normalize(s *domain.ProgressSnapshot, now time.Time) {
	if s.Points < 0 {
		s.Points = 0
	}
	if s.DailyGoal <= 0 {
		s.DailyGoal = DefaultDailyGoal
	}
	if s.HighestLevel < max(s.Level, 1) {
		// Bonuses up to the stored level were paid by whoever wrote it.
		s.HighestLevel = max(s.Level, 1)
	}
	e.Refresh(s, now)
}

// rollDay resets dailyProgress when now falls on a new calendar day.
func (e *Engine) rollDay(s *domain.ProgressSnapshot, now time.Time) bool {
	today := dayKey(now, e.loc)
	if s.DailyProgressDate == today {
		return false
	}
	s.DailyProgress = 0
	s.DailyProgressDate = today
	return true
}

// ensureCatalog adds any catalog entries missing from s.
func (e *Engine) ensureCatalog(s *domain.ProgressSnapshot) bool {
	n := len(s.Badges) + len(s.Achievements) + len(s.Quests) + len(s.Challenges) + len(s.PowerUps)

	for _, def := range e.badges {
		findBadge(s, def)
	}
	for _, def := range e.achievements {
		findAchievement(s, def)
	}
	s.Quests = mergeQuests(s.Quests, questPool)
	s.Challenges = mergeQuests(s.Challenges, challengePool)
	for _, def := range powerUpPool {
		if s.FindPowerUp(def.Type) < 0 {
			s.PowerUps = append(s.PowerUps, def.PowerUp())
		}
	}

	return len(s.Badges)+len(s.Achievements)+len(s.Quests)+len(s.Challenges)+len(s.PowerUps) != n
}

func mergeQuests(have []domain.Quest, pool []domain.QuestTemplate) []domain.Quest {
	for _, t := range pool {
		found := false
		for _, q := range have {
			if q.ID == t.ID {
				found = true
				break
			}
		}
		if !found {
			have = append(have, t.Quest())
		}
	}
	return have
}
