// Package replica keeps an optimistic local copy of one user's progress
// snapshot and synchronizes it with an authoritative ProgressStore.
//
// Local changes commit immediately. Pushes are debounced and always send
// the full snapshot; pulls overwrite local state (last write wins). A failed
// push is logged, counted and reported by Status, and never rolls back the
// local copy.
package replica

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/studyquest/studyquest/internal/domain"
	"github.com/studyquest/studyquest/internal/infra/metrics"
)

// Config tunes synchronization timing.
type Config struct {
	Debounce     time.Duration // quiet period before a push
	PullInterval time.Duration // Run's periodic pull
	MaxAttempts  int           // push attempts per flush
	BaseDelay    time.Duration // first retry delay, doubles each attempt
	MaxDelay     time.Duration // cap on retry delay

	// Defaults builds the snapshot used when the store has none.
	Defaults func(userID string, now time.Time) domain.ProgressSnapshot
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		Debounce:     2 * time.Second,
		PullInterval: 5 * time.Minute,
		MaxAttempts:  3,
		BaseDelay:    500 * time.Millisecond,
		MaxDelay:     5 * time.Second,
	}
}

// Status reports the replica's synchronization state.
type Status struct {
	UserID    string    `json:"userId"`
	Pending   bool      `json:"pending"`
	LastPush  time.Time `json:"lastPush,omitzero"`
	LastPull  time.Time `json:"lastPull,omitzero"`
	LastError string    `json:"lastError,omitempty"`
	Failures  int       `json:"failures"`
}

// Replica is a progress.Workspace for a single user.
type Replica struct {
	userID string
	store  domain.ProgressStore
	cfg    Config
	now    func() time.Time
	log    *log.Entry

	mu        sync.Mutex
	snap      domain.ProgressSnapshot
	loaded    bool
	gen       uint64 // bumped on every local change
	pushedGen uint64
	timer     *time.Timer
	status    Status
}

// New creates a replica for userID over store. Zero Config fields take
// DefaultConfig values.
func New(userID string, store domain.ProgressStore, cfg Config) *Replica {
	def := DefaultConfig()
	if cfg.Debounce <= 0 {
		cfg.Debounce = def.Debounce
	}
	if cfg.PullInterval <= 0 {
		cfg.PullInterval = def.PullInterval
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = def.BaseDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = def.MaxDelay
	}
	if cfg.Defaults == nil {
		cfg.Defaults = func(id string, now time.Time) domain.ProgressSnapshot {
			return domain.ProgressSnapshot{UserID: id, Level: 1, HighestLevel: 1, UpdatedAt: now}
		}
	}
	return &Replica{
		userID: userID,
		store:  store,
		cfg:    cfg,
		now:    time.Now,
		log:    log.WithFields(log.Fields{"component": "replica", "user": userID}),
		status: Status{UserID: userID},
	}
}

// ─── Workspace ──────────────────────────────────────────────────────────────

// Load performs the initial pull. NotFound initializes defaults locally
// without pushing them.
func (r *Replica) Load(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loadLocked(ctx)
}

func (r *Replica) loadLocked(ctx context.Context) error {
	if r.loaded {
		return nil
	}
	s, err := r.fetch(ctx)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		r.snap = r.cfg.Defaults(r.userID, r.now())
	case err != nil:
		return err
	default:
		r.snap = s
		r.status.LastPull = r.now()
	}
	r.loaded = true
	return nil
}

// Snapshot returns a copy of the local snapshot, loading it on first use.
func (r *Replica) Snapshot(ctx context.Context, userID string) (domain.ProgressSnapshot, error) {
	if err := r.checkUser(userID); err != nil {
		return domain.ProgressSnapshot{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.loadLocked(ctx); err != nil {
		return domain.ProgressSnapshot{}, err
	}
	return r.snap.Clone(), nil
}

// Update applies fn to a local copy, commits it and schedules a push.
func (r *Replica) Update(ctx context.Context, userID string, fn func(*domain.ProgressSnapshot) error) (domain.ProgressSnapshot, error) {
	if err := r.checkUser(userID); err != nil {
		return domain.ProgressSnapshot{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.loadLocked(ctx); err != nil {
		return domain.ProgressSnapshot{}, err
	}

	next := r.snap.Clone()
	if err := fn(&next); err != nil {
		return r.snap.Clone(), err
	}
	next.UserID = r.userID
	r.commitLocked(next)
	return next.Clone(), nil
}

// Replace overwrites the local snapshot and schedules a push.
func (r *Replica) Replace(_ context.Context, s domain.ProgressSnapshot) error {
	if err := r.checkUser(s.UserID); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loaded = true
	r.commitLocked(s.Clone())
	return nil
}

func (r *Replica) commitLocked(s domain.ProgressSnapshot) {
	r.snap = s
	r.gen++
	r.status.Pending = true
	if r.timer != nil {
		r.timer.Stop()
	}
	r.timer = time.AfterFunc(r.cfg.Debounce, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_ = r.Flush(ctx)
	})
}

func (r *Replica) checkUser(userID string) error {
	if userID != r.userID {
		return fmt.Errorf("%w: replica holds %q, not %q", domain.ErrUnauthorized, r.userID, userID)
	}
	return nil
}

// ─── Synchronization ────────────────────────────────────────────────────────

// Flush pushes pending local changes now. Transient failures are retried
// with exponential backoff; the final failure wraps domain.ErrSyncFailure.
func (r *Replica) Flush(ctx context.Context) error {
	r.mu.Lock()
	if r.gen == r.pushedGen {
		r.mu.Unlock()
		return nil
	}
	snap := r.snap.Clone()
	gen := r.gen
	r.mu.Unlock()

	err := r.pushWithRetry(ctx, snap)

	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.status.Failures++
		r.status.LastError = err.Error()
		r.log.WithError(err).Warn("push failed, keeping local snapshot")
		return fmt.Errorf("%w: %v", domain.ErrSyncFailure, err)
	}
	if gen > r.pushedGen {
		r.pushedGen = gen
	}
	r.status.Pending = r.gen != r.pushedGen
	r.status.LastPush = r.now()
	r.status.LastError = ""
	return nil
}

func (r *Replica) pushWithRetry(ctx context.Context, snap domain.ProgressSnapshot) error {
	delay := r.cfg.BaseDelay
	var err error
	for attempt := 1; attempt <= r.cfg.MaxAttempts; attempt++ {
		start := time.Now()
		err = r.store.UpsertSnapshot(ctx, snap)
		metrics.SyncLatency.WithLabelValues("push").Observe(time.Since(start).Seconds())
		if err == nil {
			metrics.SyncOperations.WithLabelValues("push", "ok").Inc()
			return nil
		}
		metrics.SyncOperations.WithLabelValues("push", "error").Inc()
		if errors.Is(err, domain.ErrValidation) || errors.Is(err, domain.ErrUnauthorized) || attempt == r.cfg.MaxAttempts {
			break
		}

		r.log.WithFields(log.Fields{"attempt": attempt, "retry_in": delay}).WithError(err).Debug("push retry")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay = min(delay*2, r.cfg.MaxDelay)
	}
	return err
}

// Pull fetches the authoritative snapshot and overwrites local state,
// dropping any unpushed change. NotFound keeps local state.
func (r *Replica) Pull(ctx context.Context) error {
	s, err := r.fetch(ctx)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		r.mu.Lock()
		r.status.Failures++
		r.status.LastError = err.Error()
		r.mu.Unlock()
		return fmt.Errorf("%w: %v", domain.ErrSyncFailure, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.snap = s
	r.loaded = true
	r.pushedGen = r.gen
	r.status.Pending = false
	r.status.LastPull = r.now()
	return nil
}

func (r *Replica) fetch(ctx context.Context) (domain.ProgressSnapshot, error) {
	start := time.Now()
	s, err := r.store.GetSnapshot(ctx, r.userID)
	metrics.SyncLatency.WithLabelValues("pull").Observe(time.Since(start).Seconds())
	switch {
	case err == nil:
		metrics.SyncOperations.WithLabelValues("pull", "ok").Inc()
	case errors.Is(err, domain.ErrNotFound):
		metrics.SyncOperations.WithLabelValues("pull", "not_found").Inc()
	default:
		metrics.SyncOperations.WithLabelValues("pull", "error").Inc()
	}
	return s, err
}

// Run pulls every PullInterval until ctx is cancelled, then flushes any
// pending changes. Pending changes are flushed before each pull so local
// writes are not overwritten by an older server copy. A failed flush does
// not block the pull: when the store is reachable its copy wins.
func (r *Replica) Run(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.PullInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			_ = r.Close(flushCtx)
			cancel()
			return
		case <-ticker.C:
			if err := r.Flush(ctx); err != nil {
				r.log.WithError(err).Warn("flush before pull failed")
			}
			if err := r.Pull(ctx); err != nil {
				r.log.WithError(err).Warn("pull failed")
			}
		}
	}
}

// Close stops the debounce timer and flushes pending changes.
func (r *Replica) Close(ctx context.Context) error {
	r.mu.Lock()
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	r.mu.Unlock()
	return r.Flush(ctx)
}

// Status returns the current synchronization state.
func (r *Replica) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}
