package replica

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/studyquest/studyquest/internal/domain"
)

// memStore is an in-memory ProgressStore that can be told to fail.
type memStore struct {
	mu       sync.Mutex
	snaps    map[string]domain.ProgressSnapshot
	upserts   int
	failNext  int
	upsertErr error // returned by every upsert when set
	getErr    error
}

func newMemStore() *memStore {
	return &memStore{snaps: make(map[string]domain.ProgressSnapshot)}
}

func (m *memStore) GetSnapshot(_ context.Context, userID string) (domain.ProgressSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return domain.ProgressSnapshot{}, m.getErr
	}
	s, ok := m.snaps[userID]
	if !ok {
		return domain.ProgressSnapshot{}, domain.ErrNotFound
	}
	return s.Clone(), nil
}

func (m *memStore) UpsertSnapshot(_ context.Context, s domain.ProgressSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserts++
	if m.upsertErr != nil {
		return m.upsertErr
	}
	if m.failNext > 0 {
		m.failNext--
		return errors.New("connection refused")
	}
	m.snaps[s.UserID] = s.Clone()
	return nil
}

func (m *memStore) get(userID string) (domain.ProgressSnapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.snaps[userID]
	return s, ok
}

func (m *memStore) upsertCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.upserts
}

func testConfig() Config {
	return Config{
		Debounce:     20 * time.Millisecond,
		PullInterval: time.Hour,
		MaxAttempts:  3,
		BaseDelay:    time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
	}
}

func addPoints(n int64) func(*domain.ProgressSnapshot) error {
	return func(s *domain.ProgressSnapshot) error {
		s.Points += n
		return nil
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

// ═══════════════════════════════════════════════════════════════════════════
// Load / Update Tests
// ═══════════════════════════════════════════════════════════════════════════

func TestLoad_NotFoundUsesDefaults(t *testing.T) {
	store := newMemStore()
	r := New("u1", store, testConfig())

	snap, err := r.Snapshot(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Snapshot() error: %v", err)
	}
	if snap.UserID != "u1" || snap.Level != 1 {
		t.Errorf("defaults = %+v", snap)
	}
	if store.upsertCount() != 0 {
		t.Error("defaults were pushed on load")
	}
}

func TestLoad_UsesStoredSnapshot(t *testing.T) {
	store := newMemStore()
	store.snaps["u1"] = domain.ProgressSnapshot{UserID: "u1", Points: 300, Level: 3}
	r := New("u1", store, testConfig())

	if err := r.Load(context.Background()); err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	snap, _ := r.Snapshot(context.Background(), "u1")
	if snap.Points != 300 {
		t.Errorf("Points = %d, want 300", snap.Points)
	}
	if r.Status().LastPull.IsZero() {
		t.Error("LastPull not recorded")
	}
}

func TestLoad_StoreErrorSurfaces(t *testing.T) {
	store := newMemStore()
	store.getErr = errors.New("timeout")
	r := New("u1", store, testConfig())

	if _, err := r.Snapshot(context.Background(), "u1"); err == nil {
		t.Fatal("expected error")
	}
}

func TestUpdate_CommitsLocallyBeforePush(t *testing.T) {
	store := newMemStore()
	cfg := testConfig()
	cfg.Debounce = time.Hour
	r := New("u1", store, cfg)
	defer r.Close(context.Background())

	snap, err := r.Update(context.Background(), "u1", addPoints(40))
	if err != nil {
		t.Fatalf("Update() error: %v", err)
	}
	if snap.Points != 40 {
		t.Errorf("Points = %d, want 40", snap.Points)
	}
	if _, ok := store.get("u1"); ok {
		t.Error("pushed before debounce elapsed")
	}
	if !r.Status().Pending {
		t.Error("Pending = false after local update")
	}
}

func TestUpdate_ErrorLeavesSnapshot(t *testing.T) {
	r := New("u1", newMemStore(), testConfig())
	ctx := context.Background()

	r.Update(ctx, "u1", addPoints(10))
	_, err := r.Update(ctx, "u1", func(s *domain.ProgressSnapshot) error {
		s.Points = 9999
		return domain.ErrValidation
	})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("err = %v", err)
	}
	snap, _ := r.Snapshot(ctx, "u1")
	if snap.Points != 10 {
		t.Errorf("Points = %d, want 10", snap.Points)
	}
}

func TestUpdate_WrongUser(t *testing.T) {
	r := New("u1", newMemStore(), testConfig())
	_, err := r.Update(context.Background(), "u2", addPoints(1))
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("err = %v, want ErrUnauthorized", err)
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Push Tests
// ═══════════════════════════════════════════════════════════════════════════

func TestDebounce_CoalescesPushes(t *testing.T) {
	store := newMemStore()
	r := New("u1", store, testConfig())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := r.Update(ctx, "u1", addPoints(10)); err != nil {
			t.Fatalf("Update() error: %v", err)
		}
	}

	waitFor(t, func() bool {
		s, ok := store.get("u1")
		return ok && s.Points == 50
	})
	time.Sleep(50 * time.Millisecond)
	if n := store.upsertCount(); n != 1 {
		t.Errorf("upserts = %d, want 1", n)
	}
	if r.Status().Pending {
		t.Error("Pending = true after push")
	}
}

func TestFlush_RetriesTransientFailure(t *testing.T) {
	store := newMemStore()
	store.failNext = 2
	cfg := testConfig()
	cfg.Debounce = time.Hour
	r := New("u1", store, cfg)

	r.Update(context.Background(), "u1", addPoints(25))
	if err := r.Flush(context.Background()); err != nil {
		t.Fatalf("Flush() error: %v", err)
	}
	if n := store.upsertCount(); n != 3 {
		t.Errorf("upserts = %d, want 3", n)
	}
	if s, _ := store.get("u1"); s.Points != 25 {
		t.Errorf("stored Points = %d, want 25", s.Points)
	}
}

func TestFlush_FailureKeepsLocalState(t *testing.T) {
	store := newMemStore()
	store.failNext = 10
	cfg := testConfig()
	cfg.Debounce = time.Hour
	r := New("u1", store, cfg)
	ctx := context.Background()

	r.Update(ctx, "u1", addPoints(70))
	err := r.Flush(ctx)
	if !errors.Is(err, domain.ErrSyncFailure) {
		t.Fatalf("err = %v, want ErrSyncFailure", err)
	}

	snap, _ := r.Snapshot(ctx, "u1")
	if snap.Points != 70 {
		t.Errorf("local Points = %d, want 70 (no rollback)", snap.Points)
	}
	st := r.Status()
	if st.Failures != 1 || st.LastError == "" || !st.Pending {
		t.Errorf("status = %+v", st)
	}

	// The next flush retries the same snapshot.
	store.failNext = 0
	if err := r.Flush(ctx); err != nil {
		t.Fatalf("second Flush() error: %v", err)
	}
	if r.Status().Pending || r.Status().LastError != "" {
		t.Errorf("status after recovery = %+v", r.Status())
	}
}

func TestFlush_NothingPending(t *testing.T) {
	store := newMemStore()
	r := New("u1", store, testConfig())
	if err := r.Flush(context.Background()); err != nil {
		t.Fatalf("Flush() error: %v", err)
	}
	if store.upsertCount() != 0 {
		t.Error("flushed with nothing pending")
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Pull Tests
// ═══════════════════════════════════════════════════════════════════════════

func TestPull_LastWriteWins(t *testing.T) {
	store := newMemStore()
	cfg := testConfig()
	cfg.Debounce = time.Hour
	r := New("u1", store, cfg)
	ctx := context.Background()

	r.Update(ctx, "u1", addPoints(10))
	store.snaps["u1"] = domain.ProgressSnapshot{UserID: "u1", Points: 500, Level: 4}

	if err := r.Pull(ctx); err != nil {
		t.Fatalf("Pull() error: %v", err)
	}
	snap, _ := r.Snapshot(ctx, "u1")
	if snap.Points != 500 {
		t.Errorf("Points = %d, want 500", snap.Points)
	}
}

func TestPull_NotFoundKeepsLocal(t *testing.T) {
	cfg := testConfig()
	cfg.Debounce = time.Hour
	r := New("u1", newMemStore(), cfg)
	ctx := context.Background()

	r.Update(ctx, "u1", addPoints(15))
	if err := r.Pull(ctx); err != nil {
		t.Fatalf("Pull() error: %v", err)
	}
	snap, _ := r.Snapshot(ctx, "u1")
	if snap.Points != 15 {
		t.Errorf("Points = %d, want 15", snap.Points)
	}
}

func TestPull_ErrorIsSyncFailure(t *testing.T) {
	store := newMemStore()
	store.getErr = errors.New("unreachable")
	r := New("u1", store, testConfig())

	if err := r.Pull(context.Background()); !errors.Is(err, domain.ErrSyncFailure) {
		t.Errorf("err = %v, want ErrSyncFailure", err)
	}
}

func TestRun_PullsAfterRejectedFlush(t *testing.T) {
	store := newMemStore()
	store.snaps["u1"] = domain.ProgressSnapshot{UserID: "u1", Points: 500, Level: 4}
	cfg := testConfig()
	cfg.Debounce = time.Hour
	cfg.PullInterval = 10 * time.Millisecond
	r := New("u1", store, cfg)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := r.Load(ctx); err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	r.Update(ctx, "u1", addPoints(10))

	store.mu.Lock()
	store.upsertErr = domain.ErrValidation
	store.mu.Unlock()

	go r.Run(ctx)
	waitFor(t, func() bool {
		snap, _ := r.Snapshot(context.Background(), "u1")
		return snap.Points == 500 && !r.Status().Pending
	})
	if r.Status().Failures == 0 {
		t.Error("rejected flush not counted")
	}
}

func TestRun_FlushesOnCancel(t *testing.T) {
	store := newMemStore()
	cfg := testConfig()
	cfg.Debounce = time.Hour
	r := New("u1", store, cfg)

	r.Update(context.Background(), "u1", addPoints(5))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if s, ok := store.get("u1"); !ok || s.Points != 5 {
		t.Errorf("stored = %+v, %v", s, ok)
	}
}
