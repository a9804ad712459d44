package progress

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/studyquest/studyquest/internal/app/engagement"
	"github.com/studyquest/studyquest/internal/domain"
	"github.com/studyquest/studyquest/internal/infra/metrics"
)

// ─── History ────────────────────────────────────────────────────────────────

// History lists the user's history entries, newest first.
func (s *Service) History(ctx context.Context, userID string, f domain.HistoryFilter) ([]domain.HistoryEntry, error) {
	if err := validateUser(userID); err != nil {
		return nil, err
	}
	if s.history == nil {
		return []domain.HistoryEntry{}, nil
	}
	return s.history.ListHistory(ctx, userID, f)
}

// AppendHistory stores an externally recorded entry. Missing ID and
// OccurredAt are filled in.
func (s *Service) AppendHistory(ctx context.Context, e domain.HistoryEntry) (domain.HistoryEntry, error) {
	if err := validateUser(e.UserID); err != nil {
		return e, err
	}
	if e.Kind == "" {
		return e, fmt.Errorf("%w: history kind is required", domain.ErrValidation)
	}
	if s.history == nil {
		return e, fmt.Errorf("%w: history log not configured", domain.ErrValidation)
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = s.now()
	}
	return e, s.history.AppendHistory(ctx, e)
}

// record appends the history entry for an applied event. Failures are
// logged and counted; the committed snapshot stays.
func (s *Service) record(ctx context.Context, userID string, ev domain.Event, out engagement.Outcome, now time.Time) {
	if s.history == nil {
		return
	}
	entry := historyEntry(userID, ev, out, now)
	if err := s.history.AppendHistory(ctx, entry); err != nil {
		metrics.HistoryAppendFailures.Inc()
		s.log.WithFields(log.Fields{
			"user": userID,
			"kind": entry.Kind,
		}).WithError(err).Warn("history append failed")
	}
}

func historyEntry(userID string, ev domain.Event, out engagement.Outcome, now time.Time) domain.HistoryEntry {
	e := domain.HistoryEntry{
		ID:          uuid.NewString(),
		UserID:      userID,
		Kind:        ev.Kind(),
		OccurredAt:  now,
		PointsDelta: out.Delta,
	}
	switch ev := ev.(type) {
	case domain.StudyCompleted:
		e.DurationMinutes = ev.Minutes
	case domain.StudyAborted:
		e.DurationMinutes = ev.Minutes
	case domain.QuizSubmitted:
		e.Correct, e.Incorrect, e.Revealed = ev.Correct, ev.Incorrect, ev.Revealed
		e.Score = ScorePercent(ev.Correct, ev.Incorrect)
	case domain.PowerUpPurchased:
		e.Detail = ev.Type
	case domain.QuestProgressed:
		e.Detail = ev.QuestID
	case domain.DailyGoalChanged:
		e.DurationMinutes = ev.Minutes
	}
	if len(out.Unlocks) > 0 && e.Detail == "" {
		e.Detail = unlockSummary(out.Unlocks)
	}
	return e
}

// ScorePercent returns correct answers as a percentage of all answers,
// rounded to one decimal. An empty quiz scores 0.
func ScorePercent(correct, incorrect int) float64 {
	total := correct + incorrect
	if total <= 0 {
		return 0
	}
	return math.Round(float64(correct)*1000/float64(total)) / 10
}

func unlockSummary(unlocks []domain.Unlock) string {
	parts := make([]string, 0, len(unlocks))
	for _, u := range unlocks {
		parts = append(parts, string(u.Kind)+":"+u.ID)
	}
	return strings.Join(parts, ",")
}
