package cli

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/studyquest/studyquest/internal/api"
	"github.com/studyquest/studyquest/internal/app/engagement"
	"github.com/studyquest/studyquest/internal/app/progress"
	"github.com/studyquest/studyquest/internal/app/replica"
	"github.com/studyquest/studyquest/internal/domain"
	"github.com/studyquest/studyquest/internal/infra/sqlite"
	"github.com/studyquest/studyquest/internal/security"
)

// newTestSession starts an API server over sqlite and opens a client
// session for alice that pulls every 10ms.
func newTestSession(t *testing.T) (*session, *sqlite.DB, *engagement.Engine) {
	t.Helper()
	db, err := sqlite.Open(t.TempDir())
	if err != nil {
		t.Fatalf("sqlite.Open() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	engine := engagement.NewEngine(engagement.WithLocation(time.UTC))
	svc := progress.NewService(engine, progress.NewStoreWorkspace(db, engine.NewSnapshot), progress.WithHistory(db))
	tokens, _ := security.NewTokens("test-secret", time.Hour)
	token, _ := tokens.Issue("alice")

	srv := httptest.NewServer(api.NewServer(svc, tokens).Handler())
	t.Cleanup(srv.Close)

	s, err := newSession(context.Background(), srv.URL, token, engine, replica.Config{
		Debounce:     time.Hour,
		PullInterval: 10 * time.Millisecond,
		Defaults:     engine.NewSnapshot,
	})
	if err != nil {
		t.Fatalf("newSession() error: %v", err)
	}
	return s, db, engine
}

func TestFocus_CompletesAndSyncs(t *testing.T) {
	s, db, _ := newTestSession(t)

	out, err := s.focus(context.Background(), "alice", 2, 5*time.Millisecond, io.Discard)
	if err != nil {
		t.Fatalf("focus() error: %v", err)
	}
	if out.Kind != domain.EventStudyCompleted || out.EventDelta != 10 {
		t.Errorf("outcome = %s %+d, want study_completed +10", out.Kind, out.EventDelta)
	}

	stored, err := db.GetSnapshot(context.Background(), "alice")
	if err != nil {
		t.Fatalf("GetSnapshot() error: %v", err)
	}
	if stored.Points != out.Points || stored.TotalStudyTime != 2 {
		t.Errorf("stored points %d minutes %d, want %d/2", stored.Points, stored.TotalStudyTime, out.Points)
	}
	if s.replica.Status().Pending {
		t.Error("session left unpushed changes")
	}
}

func TestFocus_PullsWhileRunningAndAbortsOnCancel(t *testing.T) {
	s, db, engine := newTestSession(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	type result struct {
		out engagement.Outcome
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, err := s.focus(ctx, "alice", 30, time.Hour, io.Discard)
		done <- result{out, err}
	}()

	// Another device records progress while the timer runs.
	other := engine.NewSnapshot("alice", time.Now())
	other.Points = 400
	other.Level = engagement.LevelForPoints(400)
	other.HighestLevel = other.Level
	if err := db.UpsertSnapshot(context.Background(), other); err != nil {
		t.Fatalf("UpsertSnapshot() error: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		snap, _ := s.replica.Snapshot(context.Background(), "alice")
		if snap.Points == 400 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("replica never pulled the server copy, points = %d", snap.Points)
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	var r result
	select {
	case r = <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("focus did not return after cancel")
	}
	if r.err != nil {
		t.Fatalf("focus() error: %v", r.err)
	}
	if r.out.Kind != domain.EventStudyAborted || r.out.Points != 375 {
		t.Errorf("outcome = %s points %d, want study_aborted at 375", r.out.Kind, r.out.Points)
	}

	stored, _ := db.GetSnapshot(context.Background(), "alice")
	if stored.Points != 375 {
		t.Errorf("stored points = %d, want 375", stored.Points)
	}
}
