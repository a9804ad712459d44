// Package jobs runs background maintenance on stored snapshots (cron).
// The nightly rollover resets daily progress and persists power-up expiry
// for users who have not been active since the day changed.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"github.com/studyquest/studyquest/internal/app/engagement"
	"github.com/studyquest/studyquest/internal/app/progress"
	"github.com/studyquest/studyquest/internal/domain"
	"github.com/studyquest/studyquest/internal/infra/metrics"
)

// DefaultRolloverSpec runs the rollover a few minutes after midnight.
const DefaultRolloverSpec = "5 0 * * *"

var errUnchanged = errors.New("snapshot unchanged")

// Scheduler owns the cron instance and the maintenance jobs.
type Scheduler struct {
	cron   *cron.Cron
	engine *engagement.Engine
	users  domain.SnapshotScanner
	ws     progress.Workspace
	now    func() time.Time
}

// NewScheduler creates a scheduler in the engine's calendar time zone.
func NewScheduler(engine *engagement.Engine, users domain.SnapshotScanner, ws progress.Workspace) *Scheduler {
	return &Scheduler{
		cron:   cron.New(cron.WithLocation(engine.Location())),
		engine: engine,
		users:  users,
		ws:     ws,
		now:    time.Now,
	}
}

// Start registers the rollover under spec and starts the cron loop.
func (s *Scheduler) Start(ctx context.Context, spec string) error {
	if spec == "" {
		spec = DefaultRolloverSpec
	}
	_, err := s.cron.AddFunc(spec, func() {
		log.Info("[CRON] daily rollover")
		n, err := s.RunRollover(ctx)
		if err != nil {
			log.WithError(err).Error("[CRON] rollover failed")
			return
		}
		log.WithField("snapshots", n).Info("[CRON] rollover done")
	})
	if err != nil {
		return fmt.Errorf("schedule rollover %q: %w", spec, err)
	}

	s.cron.Start()
	log.WithField("spec", spec).Info("job scheduler started")
	return nil
}

// Stop halts the cron loop and waits for a running job to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info("job scheduler stopped")
}

// RunRollover refreshes every stored snapshot and writes back the ones
// that changed. It returns how many were rewritten. A failing user is
// logged and skipped.
func (s *Scheduler) RunRollover(ctx context.Context) (int, error) {
	ids, err := s.users.ListUserIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("list users: %w", err)
	}

	now := s.now()
	rewritten := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return rewritten, err
		}
		_, err := s.ws.Update(ctx, id, func(snap *domain.ProgressSnapshot) error {
			if !s.engine.Refresh(snap, now) {
				return errUnchanged
			}
			return nil
		})
		switch {
		case errors.Is(err, errUnchanged):
		case err != nil:
			log.WithField("user", id).WithError(err).Warn("rollover skipped")
		default:
			rewritten++
			metrics.RolloverSnapshots.Inc()
		}
	}
	return rewritten, nil
}
