package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/studyquest/studyquest/internal/app/engagement"
	"github.com/studyquest/studyquest/internal/app/progress"
	"github.com/studyquest/studyquest/internal/domain"
	"github.com/studyquest/studyquest/internal/infra/sqlite"
)

var (
	yesterday = time.Date(2025, 7, 1, 18, 0, 0, 0, time.UTC)
	today     = time.Date(2025, 7, 2, 0, 5, 0, 0, time.UTC)
)

func newTestScheduler(t *testing.T) (*Scheduler, *sqlite.DB, *engagement.Engine) {
	t.Helper()
	db, err := sqlite.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	engine := engagement.NewEngine(engagement.WithLocation(time.UTC))
	s := NewScheduler(engine, db, progress.NewStoreWorkspace(db, engine.NewSnapshot))
	s.now = func() time.Time { return today }
	return s, db, engine
}

func TestRunRollover_ResetsStaleDays(t *testing.T) {
	s, db, engine := newTestScheduler(t)
	ctx := context.Background()

	stale := engine.NewSnapshot("stale", yesterday)
	stale.DailyProgress = 20
	fresh := engine.NewSnapshot("fresh", today)
	fresh.DailyProgress = 10
	for _, snap := range []domain.ProgressSnapshot{stale, fresh} {
		if err := db.UpsertSnapshot(ctx, snap); err != nil {
			t.Fatalf("seed %s: %v", snap.UserID, err)
		}
	}

	n, err := s.RunRollover(ctx)
	if err != nil {
		t.Fatalf("RunRollover() error: %v", err)
	}
	if n != 1 {
		t.Errorf("rewritten = %d, want 1", n)
	}

	got, _ := db.GetSnapshot(ctx, "stale")
	if got.DailyProgress != 0 || got.DailyProgressDate != "2025-07-02" {
		t.Errorf("stale after rollover = progress %d date %s", got.DailyProgress, got.DailyProgressDate)
	}
	got, _ = db.GetSnapshot(ctx, "fresh")
	if got.DailyProgress != 10 {
		t.Errorf("fresh DailyProgress = %d, want 10", got.DailyProgress)
	}
}

func TestRunRollover_ExpiresPowerUps(t *testing.T) {
	s, db, engine := newTestScheduler(t)
	ctx := context.Background()

	snap := engine.NewSnapshot("u1", today)
	i := snap.FindPowerUp("double_points")
	expired := today.Add(-time.Minute)
	snap.PowerUps[i].Active = true
	snap.PowerUps[i].ExpiresAt = &expired
	if err := db.UpsertSnapshot(ctx, snap); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if n, err := s.RunRollover(ctx); err != nil || n != 1 {
		t.Fatalf("RunRollover() = %d, %v", n, err)
	}
	got, _ := db.GetSnapshot(ctx, "u1")
	if p := got.PowerUps[got.FindPowerUp("double_points")]; p.Active || p.ExpiresAt != nil {
		t.Errorf("power-up after rollover = %+v", p)
	}
}

func TestRunRollover_Empty(t *testing.T) {
	s, _, _ := newTestScheduler(t)
	n, err := s.RunRollover(context.Background())
	if err != nil || n != 0 {
		t.Errorf("RunRollover() = %d, %v", n, err)
	}
}

func TestStart_RejectsBadSpec(t *testing.T) {
	s, _, _ := newTestScheduler(t)
	if err := s.Start(context.Background(), "not a cron spec"); err == nil {
		s.Stop()
		t.Fatal("expected error for invalid spec")
	}
}

func TestStartStop(t *testing.T) {
	s, _, _ := newTestScheduler(t)
	if err := s.Start(context.Background(), ""); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	s.Stop()
}
