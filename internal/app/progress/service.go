// Package progress exposes the progress engine's public operations.
// Each operation turns a caller request into one rule-engine event,
// commits the result through a Workspace and records history.
package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/studyquest/studyquest/internal/app/engagement"
	"github.com/studyquest/studyquest/internal/domain"
	"github.com/studyquest/studyquest/internal/infra/metrics"
)

// ErrNoGenerator is returned by GenerateQuiz when no AI generator is wired.
var ErrNoGenerator = errors.New("ai generator not configured")

// Service implements the progress operations for any Workspace.
type Service struct {
	engine    *engagement.Engine
	ws        Workspace
	history   domain.HistoryLog
	generator domain.Generator
	now       func() time.Time
	log       *log.Entry
}

// Option configures a Service.
type Option func(*Service)

// WithHistory sets the history log. Without one nothing is recorded.
func WithHistory(h domain.HistoryLog) Option {
	return func(s *Service) { s.history = h }
}

// WithGenerator sets the AI generator used by GenerateQuiz.
func WithGenerator(g domain.Generator) Option {
	return func(s *Service) { s.generator = g }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a service over ws.
func NewService(engine *engagement.Engine, ws Workspace, opts ...Option) *Service {
	s := &Service{
		engine: engine,
		ws:     ws,
		now:    time.Now,
		log:    log.WithField("component", "progress"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Engine returns the rule engine the service applies events with.
func (s *Service) Engine() *engagement.Engine { return s.engine }

// ─── Public Operations ──────────────────────────────────────────────────────

// ApplyStudySessionCompletion records a finished or aborted study session.
func (s *Service) ApplyStudySessionCompletion(ctx context.Context, userID string, minutes int, succeeded bool) (engagement.Outcome, error) {
	if succeeded {
		return s.Apply(ctx, userID, domain.StudyCompleted{Minutes: minutes})
	}
	return s.Apply(ctx, userID, domain.StudyAborted{Minutes: minutes})
}

// StartQuiz opens a new quiz attempt, resetting the reveal counter.
func (s *Service) StartQuiz(ctx context.Context, userID string) (engagement.Outcome, error) {
	return s.Apply(ctx, userID, domain.QuizStarted{})
}

// ApplyQuizResult records a graded quiz.
func (s *Service) ApplyQuizResult(ctx context.Context, userID string, correct, incorrect, revealed int) (engagement.Outcome, error) {
	return s.Apply(ctx, userID, domain.QuizSubmitted{Correct: correct, Incorrect: incorrect, Revealed: revealed})
}

// UseAnswerReveal grants one reveal or fails with domain.ErrLimitReached.
func (s *Service) UseAnswerReveal(ctx context.Context, userID string) (engagement.Outcome, error) {
	return s.Apply(ctx, userID, domain.RevealUsed{})
}

// PurchasePowerUp buys and activates a power-up. Fails with
// domain.ErrInsufficientPoints or domain.ErrAlreadyActive.
func (s *Service) PurchasePowerUp(ctx context.Context, userID, typ string) (engagement.Outcome, error) {
	return s.Apply(ctx, userID, domain.PowerUpPurchased{Type: typ})
}

// AdvanceQuest adds amount to one quest or challenge.
func (s *Service) AdvanceQuest(ctx context.Context, userID, questID string, amount int) (engagement.Outcome, error) {
	return s.Apply(ctx, userID, domain.QuestProgressed{QuestID: questID, Amount: amount})
}

// SetDailyGoal changes the user's daily study goal in minutes.
func (s *Service) SetDailyGoal(ctx context.Context, userID string, minutes int) (engagement.Outcome, error) {
	return s.Apply(ctx, userID, domain.DailyGoalChanged{Minutes: minutes})
}

// GetSnapshot returns the user's snapshot with time-driven transitions
// (power-up expiry, day rollover) applied for display.
func (s *Service) GetSnapshot(ctx context.Context, userID string) (domain.ProgressSnapshot, error) {
	if err := validateUser(userID); err != nil {
		return domain.ProgressSnapshot{}, err
	}
	snap, err := s.ws.Snapshot(ctx, userID)
	if err != nil {
		return domain.ProgressSnapshot{}, err
	}
	s.engine.Refresh(&snap, s.now())
	return snap, nil
}

// PushSnapshot overwrites the user's snapshot with a client copy.
func (s *Service) PushSnapshot(ctx context.Context, snap domain.ProgressSnapshot) error {
	if err := validateUser(snap.UserID); err != nil {
		return err
	}
	if snap.Points < 0 {
		return fmt.Errorf("%w: points must not be negative", domain.ErrValidation)
	}
	// Level is always derived from points; the pushed value is ignored.
	snap.Level = engagement.LevelForPoints(snap.Points)
	snap.HighestLevel = max(snap.HighestLevel, snap.Level)
	return s.ws.Replace(ctx, snap)
}

// Apply is the single entry point every operation goes through.
func (s *Service) Apply(ctx context.Context, userID string, ev domain.Event) (engagement.Outcome, error) {
	if err := validateUser(userID); err != nil {
		return engagement.Outcome{}, err
	}

	now := s.now()
	var out engagement.Outcome
	_, err := s.ws.Update(ctx, userID, func(snap *domain.ProgressSnapshot) error {
		o, err := s.engine.Apply(snap, ev, now)
		if err != nil {
			return err
		}
		out = o
		return nil
	})
	if err != nil {
		metrics.EventsApplied.WithLabelValues(string(ev.Kind()), domain.ErrorCode(err)).Inc()
		return engagement.Outcome{Kind: ev.Kind()}, err
	}

	observe(out)
	s.log.WithFields(log.Fields{
		"user":   userID,
		"kind":   ev.Kind(),
		"delta":  out.Delta,
		"points": out.Points,
		"level":  out.Level,
	}).Debug("event applied")
	if out.LeveledUp {
		s.log.WithFields(log.Fields{"user": userID, "level": out.Level}).Info("level up")
	}

	s.record(ctx, userID, ev, out, now)
	return out, nil
}

// GenerateQuiz asks the AI generator for quiz content and counts the
// request toward AI-question quests once it succeeds.
func (s *Service) GenerateQuiz(ctx context.Context, userID, prompt, content string) (json.RawMessage, engagement.Outcome, error) {
	if s.generator == nil {
		return nil, engagement.Outcome{}, ErrNoGenerator
	}
	if err := validateUser(userID); err != nil {
		return nil, engagement.Outcome{}, err
	}
	if strings.TrimSpace(prompt) == "" {
		return nil, engagement.Outcome{}, fmt.Errorf("%w: prompt is required", domain.ErrValidation)
	}

	raw, err := s.generator.Generate(ctx, prompt, content)
	if err != nil {
		return nil, engagement.Outcome{}, fmt.Errorf("generate: %w", err)
	}

	out, err := s.Apply(ctx, userID, domain.AIQuestionAsked{})
	if err != nil {
		return raw, out, err
	}
	return raw, out, nil
}

func observe(out engagement.Outcome) {
	kind := string(out.Kind)
	metrics.EventsApplied.WithLabelValues(kind, "ok").Inc()
	if out.Delta > 0 {
		metrics.PointsAwarded.WithLabelValues(kind).Add(float64(out.Delta))
	} else if out.Delta < 0 {
		metrics.PointsDeducted.WithLabelValues(kind).Add(float64(-out.Delta))
	}
	for _, u := range out.Unlocks {
		metrics.Unlocks.WithLabelValues(string(u.Kind)).Inc()
	}
}

func validateUser(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("%w: user id is required", domain.ErrValidation)
	}
	return nil
}
