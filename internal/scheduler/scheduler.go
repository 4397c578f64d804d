// Package scheduler runs the pipeline as a daemon, firing once a day at
// the accounting-day boundary (14:30 UTC, 22:30 SGT).
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// misfireGrace is how late a missed daily run may still be started,
// matching the deployed scheduler's one-hour grace period.
const misfireGrace = time.Hour

// Scheduler triggers a job daily at 14:30 UTC.
type Scheduler struct {
	job    func(ctx context.Context) error
	logger zerolog.Logger
}

// New creates a scheduler around the given job.
func New(job func(ctx context.Context) error) *Scheduler {
	return &Scheduler{
		job:    job,
		logger: log.With().Str("component", "scheduler").Logger(),
	}
}

// Run blocks until the context is cancelled. If the daemon starts within
// the grace window after today's trigger time, the missed run is fired
// immediately.
func (s *Scheduler) Run(ctx context.Context) error {
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithChain(cron.SkipIfStillRunning(cron.VerbosePrintfLogger(&s.logger))),
	)

	run := func() {
		if err := s.job(ctx); err != nil {
			s.logger.Error().Err(err).Msg("Scheduled prediction failed")
		}
	}

	if _, err := c.AddFunc("30 14 * * *", run); err != nil {
		return fmt.Errorf("registering cron job: %w", err)
	}

	if late, ok := missedToday(time.Now().UTC()); ok {
		s.logger.Info().Dur("late_by", late).Msg("Within misfire grace, running missed prediction now")
		go run()
	}

	s.logger.Info().Msg("Daemon started, prediction scheduled at 14:30 UTC daily")
	c.Start()
	<-ctx.Done()

	stopped := c.Stop()
	<-stopped.Done()
	s.logger.Info().Msg("Daemon stopped")
	return ctx.Err()
}

// missedToday reports whether now falls inside the grace window after
// today's trigger time, and by how much.
func missedToday(now time.Time) (time.Duration, bool) {
	trigger := time.Date(now.Year(), now.Month(), now.Day(), 14, 30, 0, 0, time.UTC)
	late := now.Sub(trigger)
	return late, late > 0 && late <= misfireGrace
}
