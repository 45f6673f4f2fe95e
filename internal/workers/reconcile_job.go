package workers

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"zapmenu/internal/services"
)

const sweepTimeout = 10 * time.Minute

// Sweeper runs one reconciliation pass over the billing store.
type Sweeper interface {
	Sweep(ctx context.Context) (services.SweepReport, error)
}

// SessionEvicter drops finished payment sessions from memory.
type SessionEvicter interface {
	EvictFinished() int
}

// ReconcileJob schedules the periodic reconciliation sweep so status stays
// fresh for merchants that never open the app.
type ReconcileJob struct {
	cron     *cron.Cron
	sweeper  Sweeper
	sessions SessionEvicter
	schedule string
}

func NewReconcileJob(sweeper Sweeper, sessions SessionEvicter, schedule string) *ReconcileJob {
	return &ReconcileJob{
		cron:     cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger), cron.SkipIfStillRunning(cron.DefaultLogger))),
		sweeper:  sweeper,
		sessions: sessions,
		schedule: schedule,
	}
}

func (j *ReconcileJob) Start() error {
	if _, err := j.cron.AddFunc(j.schedule, j.RunOnce); err != nil {
		return fmt.Errorf("schedule reconciliation %q: %w", j.schedule, err)
	}
	if j.sessions != nil {
		if _, err := j.cron.AddFunc("@every 10m", func() {
			if n := j.sessions.EvictFinished(); n > 0 {
				log.Debug().Int("evicted", n).Msg("payment sessions evicted")
			}
		}); err != nil {
			return err
		}
	}

	j.cron.Start()
	log.Info().Str("schedule", j.schedule).Msg("reconciliation job scheduled")
	return nil
}

// RunOnce performs a single sweep with its own deadline.
func (j *ReconcileJob) RunOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	if _, err := j.sweeper.Sweep(ctx); err != nil {
		log.Error().Err(err).Msg("reconciliation sweep failed")
	}
}

// Stop waits for a running sweep to finish or ctx to end.
func (j *ReconcileJob) Stop(ctx context.Context) error {
	done := j.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
