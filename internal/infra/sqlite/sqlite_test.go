package sqlite

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/studyquest/studyquest/internal/domain"
	"github.com/studyquest/studyquest/internal/infra/storetest"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	dir := t.TempDir()
	db, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// ─── Database Lifecycle ─────────────────────────────────────────────────────

func TestOpen_CreatesDatabase(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(filepath.Join(dir, "state.db")); os.IsNotExist(err) {
		t.Error("state.db should exist")
	}
}

func TestOpen_Reopen(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	ctx := context.Background()
	if err := db.UpsertSnapshot(ctx, domain.ProgressSnapshot{UserID: "u1", Points: 7, Level: 1}); err != nil {
		t.Fatalf("UpsertSnapshot() error: %v", err)
	}
	db.Close()

	// Migrations are idempotent and data survives.
	db, err = Open(dir)
	if err != nil {
		t.Fatalf("reopen error: %v", err)
	}
	defer db.Close()
	s, err := db.GetSnapshot(ctx, "u1")
	if err != nil {
		t.Fatalf("GetSnapshot() error: %v", err)
	}
	if s.Points != 7 {
		t.Errorf("Points = %d, want 7", s.Points)
	}
}

func TestOpen_Ping(t *testing.T) {
	db := newTestDB(t)
	if err := db.Ping(context.Background()); err != nil {
		t.Fatalf("Ping() error: %v", err)
	}
}

// ─── Progress Snapshots ─────────────────────────────────────────────────────

func TestGetSnapshot_NotFound(t *testing.T) {
	db := newTestDB(t)
	_, err := db.GetSnapshot(context.Background(), "ghost")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestUpsertSnapshot_RoundTrip(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	at := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)
	exp := at.Add(time.Hour)

	in := domain.ProgressSnapshot{
		UserID:        "u1",
		Points:        240,
		Level:         2,
		HighestLevel:  2,
		Streak:        3,
		LastStudyDate: "2025-07-01",
		DailyGoal:     30,
		Badges:        []domain.Badge{{ID: "first-steps", Earned: true, EarnedAt: &at}},
		Quests:        []domain.Quest{{ID: "quiz-3", Category: domain.QuestQuizzes, Progress: 2, Target: 3, Reward: 40}},
		PowerUps: []domain.PowerUp{{
			Type: "double_points", Category: domain.CategoryStudy, Multiplier: 2,
			Active: true, ActivatedAt: &at, ExpiresAt: &exp,
		}},
		UpdatedAt: at,
	}
	if err := db.UpsertSnapshot(ctx, in); err != nil {
		t.Fatalf("UpsertSnapshot() error: %v", err)
	}

	got, err := db.GetSnapshot(ctx, "u1")
	if err != nil {
		t.Fatalf("GetSnapshot() error: %v", err)
	}
	if got.Points != 240 || got.Level != 2 || got.Streak != 3 {
		t.Errorf("got %+v", got)
	}
	if len(got.Badges) != 1 || !got.Badges[0].Earned || !got.Badges[0].EarnedAt.Equal(at) {
		t.Errorf("badges = %+v", got.Badges)
	}
	if len(got.PowerUps) != 1 || !got.PowerUps[0].ExpiresAt.Equal(exp) {
		t.Errorf("powerUps = %+v", got.PowerUps)
	}
	if got.Quests[0].Progress != 2 {
		t.Errorf("quest progress = %d, want 2", got.Quests[0].Progress)
	}
}

func TestUpsertSnapshot_LastWriteWins(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	for _, pts := range []int64{10, 500, 20} {
		if err := db.UpsertSnapshot(ctx, domain.ProgressSnapshot{UserID: "u1", Points: pts}); err != nil {
			t.Fatalf("UpsertSnapshot(%d) error: %v", pts, err)
		}
	}
	got, err := db.GetSnapshot(ctx, "u1")
	if err != nil {
		t.Fatalf("GetSnapshot() error: %v", err)
	}
	if got.Points != 20 {
		t.Errorf("Points = %d, want 20", got.Points)
	}
}

func TestUpsertSnapshot_RequiresUser(t *testing.T) {
	db := newTestDB(t)
	err := db.UpsertSnapshot(context.Background(), domain.ProgressSnapshot{Points: 1})
	if !errors.Is(err, domain.ErrValidation) {
		t.Errorf("err = %v, want ErrValidation", err)
	}
}

func TestListUserIDs(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	for _, id := range []string{"carol", "alice", "bob"} {
		if err := db.UpsertSnapshot(ctx, domain.ProgressSnapshot{UserID: id}); err != nil {
			t.Fatal(err)
		}
	}
	ids, err := db.ListUserIDs(ctx)
	if err != nil {
		t.Fatalf("ListUserIDs() error: %v", err)
	}
	want := []string{"alice", "bob", "carol"}
	if len(ids) != len(want) {
		t.Fatalf("ids = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("ids[%d] = %q, want %q", i, ids[i], want[i])
		}
	}
}

// ─── History Log ────────────────────────────────────────────────────────────

func TestHistory_AppendAndList(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	base := time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)

	entries := []domain.HistoryEntry{
		{ID: "h1", UserID: "u1", Kind: domain.EventStudyCompleted, OccurredAt: base, DurationMinutes: 25, PointsDelta: 125},
		{ID: "h2", UserID: "u1", Kind: domain.EventQuizSubmitted, OccurredAt: base.Add(time.Hour), Correct: 4, Incorrect: 1, Revealed: 1, Score: 80, PointsDelta: 9},
		{ID: "h3", UserID: "u1", Kind: domain.EventStudyAborted, OccurredAt: base.Add(2 * time.Hour), DurationMinutes: 3, PointsDelta: -25},
		{ID: "h4", UserID: "u2", Kind: domain.EventStudyCompleted, OccurredAt: base, DurationMinutes: 5, PointsDelta: 25},
	}
	for _, e := range entries {
		if err := db.AppendHistory(ctx, e); err != nil {
			t.Fatalf("AppendHistory(%s) error: %v", e.ID, err)
		}
	}

	got, err := db.ListHistory(ctx, "u1", domain.HistoryFilter{})
	if err != nil {
		t.Fatalf("ListHistory() error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	if got[0].ID != "h3" || got[2].ID != "h1" {
		t.Errorf("order = %s,%s,%s, want newest first", got[0].ID, got[1].ID, got[2].ID)
	}
	if got[1].Score != 80 || got[1].Revealed != 1 {
		t.Errorf("quiz entry = %+v", got[1])
	}
	if !got[2].OccurredAt.Equal(base) {
		t.Errorf("OccurredAt = %v, want %v", got[2].OccurredAt, base)
	}
}

func TestHistory_Filters(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	base := time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		kind := domain.EventStudyCompleted
		if i%2 == 1 {
			kind = domain.EventQuizSubmitted
		}
		e := domain.HistoryEntry{
			ID:         "h" + string(rune('a'+i)),
			UserID:     "u1",
			Kind:       kind,
			OccurredAt: base.Add(time.Duration(i) * time.Hour),
		}
		if err := db.AppendHistory(ctx, e); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		name   string
		filter domain.HistoryFilter
		want   int
	}{
		{"kind", domain.HistoryFilter{Kind: domain.EventQuizSubmitted}, 2},
		{"since", domain.HistoryFilter{Since: base.Add(3 * time.Hour)}, 2},
		{"until", domain.HistoryFilter{Until: base.Add(time.Hour)}, 1},
		{"limit", domain.HistoryFilter{Limit: 2}, 2},
		{"combined", domain.HistoryFilter{Kind: domain.EventStudyCompleted, Since: base.Add(time.Hour)}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := db.ListHistory(ctx, "u1", tt.filter)
			if err != nil {
				t.Fatalf("ListHistory() error: %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("len = %d, want %d", len(got), tt.want)
			}
		})
	}
}

func TestHistory_Immutable(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	e := domain.HistoryEntry{ID: "h1", UserID: "u1", Kind: domain.EventStudyCompleted, OccurredAt: time.Now()}
	if err := db.AppendHistory(ctx, e); err != nil {
		t.Fatal(err)
	}
	e.PointsDelta = 9999
	if err := db.AppendHistory(ctx, e); err == nil {
		t.Error("re-appending an existing id should fail")
	}
}

func TestContract(t *testing.T) {
	t.Run("ProgressStore", func(t *testing.T) { storetest.RunProgressStore(t, newTestDB(t)) })
	t.Run("HistoryLog", func(t *testing.T) { storetest.RunHistoryLog(t, newTestDB(t)) })
}
