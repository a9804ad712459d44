// Package storetest holds contract tests shared by every ProgressStore and
// HistoryLog backend.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/studyquest/studyquest/internal/domain"
)

// Sample returns a snapshot with every nested collection populated.
func Sample(userID string, points int64) domain.ProgressSnapshot {
	at := time.Date(2025, 7, 1, 10, 0, 0, 0, time.UTC)
	exp := at.Add(time.Hour)
	return domain.ProgressSnapshot{
		UserID:            userID,
		Points:            points,
		Level:             3,
		HighestLevel:      3,
		Streak:            4,
		LastStudyDate:     "2025-07-01",
		TotalStudyTime:    95,
		DailyGoal:         30,
		DailyProgress:     25,
		DailyProgressDate: "2025-07-01",
		DailyGoalHits:     2,
		Badges:            []domain.Badge{{ID: "first-steps", Name: "First Steps", Earned: true, EarnedAt: &at}},
		Achievements:      []domain.Achievement{{ID: "first-session", Name: "First Session", Points: 50, Earned: true, EarnedAt: &at}},
		Quests:            []domain.Quest{{ID: "study-30", Name: "Study 30 minutes", Category: domain.QuestStudyMinutes, Target: 30, Progress: 25, Reward: 50}},
		Challenges:        []domain.Quest{{ID: "marathon-300", Name: "Marathon", Category: domain.QuestStudyMinutes, Target: 300, Progress: 95, Reward: 300}},
		PowerUps:          []domain.PowerUp{{Type: "double_points", Category: domain.CategoryStudy, Multiplier: 2, Active: true, ActivatedAt: &at, ExpiresAt: &exp}},
		Stats:             domain.Stats{SessionsCompleted: 3, QuizzesCompleted: 1},
		UpdatedAt:         at,
	}
}

// RunProgressStore checks get/upsert semantics against s, which must start empty.
func RunProgressStore(t *testing.T, s domain.ProgressStore) {
	ctx := context.Background()

	t.Run("NotFound", func(t *testing.T) {
		_, err := s.GetSnapshot(ctx, "missing")
		if !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("err = %v, want ErrNotFound", err)
		}
	})

	t.Run("RoundTrip", func(t *testing.T) {
		want := Sample("rt", 320)
		if err := s.UpsertSnapshot(ctx, want); err != nil {
			t.Fatalf("UpsertSnapshot() error: %v", err)
		}
		got, err := s.GetSnapshot(ctx, "rt")
		if err != nil {
			t.Fatalf("GetSnapshot() error: %v", err)
		}
		if got.Points != 320 || got.Level != 3 || got.Streak != 4 || got.DailyGoalHits != 2 {
			t.Errorf("scalars = %+v", got)
		}
		if len(got.Badges) != 1 || !got.Badges[0].Earned || got.Badges[0].EarnedAt == nil {
			t.Errorf("badges = %+v", got.Badges)
		}
		if len(got.Quests) != 1 || got.Quests[0].Progress != 25 {
			t.Errorf("quests = %+v", got.Quests)
		}
		if len(got.PowerUps) != 1 || got.PowerUps[0].ExpiresAt == nil ||
			!got.PowerUps[0].ExpiresAt.Equal(*want.PowerUps[0].ExpiresAt) {
			t.Errorf("powerups = %+v", got.PowerUps)
		}
	})

	t.Run("LastWriteWins", func(t *testing.T) {
		for _, pts := range []int64{10, 500, 42} {
			if err := s.UpsertSnapshot(ctx, Sample("lww", pts)); err != nil {
				t.Fatalf("UpsertSnapshot(%d) error: %v", pts, err)
			}
		}
		got, err := s.GetSnapshot(ctx, "lww")
		if err != nil {
			t.Fatalf("GetSnapshot() error: %v", err)
		}
		if got.Points != 42 {
			t.Errorf("Points = %d, want 42", got.Points)
		}
	})

	t.Run("RequiresUser", func(t *testing.T) {
		err := s.UpsertSnapshot(ctx, domain.ProgressSnapshot{Points: 1})
		if !errors.Is(err, domain.ErrValidation) {
			t.Errorf("err = %v, want ErrValidation", err)
		}
	})
}

// RunHistoryLog checks append/list semantics against h, which must start empty.
func RunHistoryLog(t *testing.T, h domain.HistoryLog) {
	ctx := context.Background()
	base := time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)

	entries := []domain.HistoryEntry{
		{ID: "c1", UserID: "hist", Kind: domain.EventStudyCompleted, OccurredAt: base, DurationMinutes: 25, PointsDelta: 125},
		{ID: "c2", UserID: "hist", Kind: domain.EventQuizSubmitted, OccurredAt: base.Add(time.Hour), Correct: 4, Incorrect: 1, Score: 80, PointsDelta: 19},
		{ID: "c3", UserID: "hist", Kind: domain.EventStudyAborted, OccurredAt: base.Add(2 * time.Hour), DurationMinutes: 3, PointsDelta: -25},
		{ID: "c4", UserID: "other", Kind: domain.EventStudyCompleted, OccurredAt: base},
	}
	for _, e := range entries {
		if err := h.AppendHistory(ctx, e); err != nil {
			t.Fatalf("AppendHistory(%s) error: %v", e.ID, err)
		}
	}

	t.Run("NewestFirst", func(t *testing.T) {
		got, err := h.ListHistory(ctx, "hist", domain.HistoryFilter{})
		if err != nil {
			t.Fatalf("ListHistory() error: %v", err)
		}
		if len(got) != 3 {
			t.Fatalf("len = %d, want 3", len(got))
		}
		if got[0].ID != "c3" || got[2].ID != "c1" {
			t.Errorf("order = %s,%s,%s", got[0].ID, got[1].ID, got[2].ID)
		}
		if got[1].Score != 80 || got[1].Correct != 4 {
			t.Errorf("quiz entry = %+v", got[1])
		}
		if !got[2].OccurredAt.Equal(base) {
			t.Errorf("OccurredAt = %v, want %v", got[2].OccurredAt, base)
		}
	})

	t.Run("Filters", func(t *testing.T) {
		tests := []struct {
			name   string
			filter domain.HistoryFilter
			want   int
		}{
			{"kind", domain.HistoryFilter{Kind: domain.EventQuizSubmitted}, 1},
			{"since", domain.HistoryFilter{Since: base.Add(time.Hour)}, 2},
			{"until", domain.HistoryFilter{Until: base.Add(time.Hour)}, 1},
			{"limit", domain.HistoryFilter{Limit: 2}, 2},
		}
		for _, tt := range tests {
			got, err := h.ListHistory(ctx, "hist", tt.filter)
			if err != nil {
				t.Fatalf("%s: ListHistory() error: %v", tt.name, err)
			}
			if len(got) != tt.want {
				t.Errorf("%s: len = %d, want %d", tt.name, len(got), tt.want)
			}
		}
	})

	t.Run("Immutable", func(t *testing.T) {
		dup := entries[0]
		dup.PointsDelta = 9999
		if err := h.AppendHistory(ctx, dup); err == nil {
			t.Error("re-appending an existing id should fail")
		}
	})

	t.Run("RequiresIDs", func(t *testing.T) {
		err := h.AppendHistory(ctx, domain.HistoryEntry{UserID: "hist", Kind: domain.EventStudyCompleted})
		if !errors.Is(err, domain.ErrValidation) {
			t.Errorf("err = %v, want ErrValidation", err)
		}
	})
}
