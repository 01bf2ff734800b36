// Package retention runs the periodic job that trims old confirmation history.
package retention

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

const runTimeout = 5 * time.Minute

// HistoryPurger is satisfied by *service.Ledger.
type HistoryPurger interface {
	PurgeHistory(ctx context.Context) (int64, error)
}

// Job calls PurgeHistory on a cron schedule.
type Job struct {
	target   HistoryPurger
	schedule string
	cron     *cron.Cron
	logger   *slog.Logger
}

// NewJob builds a job that fires on schedule, a standard five-field cron spec
// evaluated in loc.
func NewJob(target HistoryPurger, schedule string, loc *time.Location, logger *slog.Logger) *Job {
	if loc == nil {
		loc = time.Local
	}
	return &Job{
		target:   target,
		schedule: schedule,
		cron:     cron.New(cron.WithLocation(loc)),
		logger:   logger,
	}
}

func (j *Job) Start() error {
	if _, err := j.cron.AddFunc(j.schedule, j.run); err != nil {
		return fmt.Errorf("retention: invalid schedule %q: %w", j.schedule, err)
	}
	j.cron.Start()
	j.logger.Info("history purge job started", slog.String("schedule", j.schedule))
	return nil
}

// Stop waits for a running purge to finish.
func (j *Job) Stop() {
	<-j.cron.Stop().Done()
	j.logger.Info("history purge job stopped")
}

func (j *Job) run() {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	removed, err := j.target.PurgeHistory(ctx)
	if err != nil {
		j.logger.Error("history purge failed", slog.String("error", err.Error()))
		return
	}
	j.logger.Debug("history purge finished", slog.Int64("removed", removed))
}
