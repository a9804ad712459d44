package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/studyquest/studyquest/internal/infra/storetest"
)

// newTestStore connects to STUDYQUEST_TEST_POSTGRES_DSN and empties both
// tables. Tests skip when the variable is unset.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("STUDYQUEST_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("STUDYQUEST_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	s, err := Open(ctx, dsn, 4)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	if _, err := s.pool.Exec(ctx, `TRUNCATE progress_snapshots, history`); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestContract(t *testing.T) {
	t.Run("ProgressStore", func(t *testing.T) { storetest.RunProgressStore(t, newTestStore(t)) })
	t.Run("HistoryLog", func(t *testing.T) { storetest.RunHistoryLog(t, newTestStore(t)) })
}

func TestListUserIDs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	for _, id := range []string{"b", "a", "c"} {
		if err := s.UpsertSnapshot(ctx, storetest.Sample(id, 1)); err != nil {
			t.Fatal(err)
		}
	}
	ids, err := s.ListUserIDs(ctx)
	if err != nil {
		t.Fatalf("ListUserIDs() error: %v", err)
	}
	if len(ids) != 3 || ids[0] != "a" || ids[2] != "c" {
		t.Errorf("ids = %v", ids)
	}
}

func TestPing(t *testing.T) {
	s := newTestStore(t)
	if err := s.Ping(context.Background()); err != nil {
		t.Errorf("Ping() error: %v", err)
	}
}
