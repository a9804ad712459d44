package progress

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/studyquest/studyquest/internal/domain"
)

// Workspace is where the service reads and commits snapshots.
// StoreWorkspace writes straight to a ProgressStore; replica.Replica keeps
// an optimistic local copy and syncs it in the background.
type Workspace interface {
	// Snapshot returns the user's current snapshot, or defaults for a new user.
	Snapshot(ctx context.Context, userID string) (domain.ProgressSnapshot, error)

	// Update runs fn on a copy of the snapshot and commits the copy only
	// if fn returns nil.
	Update(ctx context.Context, userID string, fn func(*domain.ProgressSnapshot) error) (domain.ProgressSnapshot, error)

	// Replace overwrites the whole snapshot (last write wins).
	Replace(ctx context.Context, s domain.ProgressSnapshot) error
}

// DefaultsFunc builds the snapshot for a user with no stored record.
type DefaultsFunc func(userID string, now time.Time) domain.ProgressSnapshot

// StoreWorkspace commits every update synchronously to a ProgressStore.
// Read-modify-write cycles are serialized within the process; writers in
// other processes race with last-write-wins.
type StoreWorkspace struct {
	mu       sync.Mutex
	store    domain.ProgressStore
	defaults DefaultsFunc
	now      func() time.Time
}

// NewStoreWorkspace creates a workspace over store.
func NewStoreWorkspace(store domain.ProgressStore, defaults DefaultsFunc) *StoreWorkspace {
	return &StoreWorkspace{store: store, defaults: defaults, now: time.Now}
}

// Snapshot loads the stored snapshot. NotFound yields defaults, which are
// not persisted until the first update.
func (w *StoreWorkspace) Snapshot(ctx context.Context, userID string) (domain.ProgressSnapshot, error) {
	s, err := w.store.GetSnapshot(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return w.defaults(userID, w.now()), nil
	}
	if err != nil {
		return domain.ProgressSnapshot{}, err
	}
	return s, nil
}

// Update loads, mutates and upserts under the workspace lock.
func (w *StoreWorkspace) Update(ctx context.Context, userID string, fn func(*domain.ProgressSnapshot) error) (domain.ProgressSnapshot, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	current, err := w.Snapshot(ctx, userID)
	if err != nil {
		return domain.ProgressSnapshot{}, fmt.Errorf("load snapshot: %w", err)
	}

	next := current.Clone()
	if err := fn(&next); err != nil {
		return current, err
	}
	next.UserID = userID

	if err := w.store.UpsertSnapshot(ctx, next); err != nil {
		return current, fmt.Errorf("save snapshot: %w", err)
	}
	return next, nil
}

// Replace upserts s as-is.
func (w *StoreWorkspace) Replace(ctx context.Context, s domain.ProgressSnapshot) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.store.UpsertSnapshot(ctx, s)
}
