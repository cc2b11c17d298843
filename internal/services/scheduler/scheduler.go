package scheduler

import (
	"context"
	"sync/atomic"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/talenttrek/applink/internal/services/resolver"
)

// Scheduler runs the resolution pipeline on a recurring cron schedule.
// Overlapping runs are skipped; a run that is still chewing through
// categories keeps its slot.
type Scheduler struct {
	pipeline *resolver.Pipeline
	cron     *cron.Cron
	logger   arbor.ILogger
	running  atomic.Bool
}

// NewScheduler creates a scheduler around the pipeline.
func NewScheduler(pipeline *resolver.Pipeline, logger arbor.ILogger) *Scheduler {
	return &Scheduler{
		pipeline: pipeline,
		cron:     cron.New(cron.WithSeconds()),
		logger:   logger,
	}
}

// Start begins scheduled runs. The schedule uses cron format with seconds.
func (s *Scheduler) Start(ctx context.Context, schedule string) error {
	if schedule == "" {
		// Default: every 6 hours
		schedule = "0 0 */6 * * *"
	}

	_, err := s.cron.AddFunc(schedule, func() {
		s.runPipeline(ctx)
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info().
		Str("schedule", schedule).
		Msg("Resolution scheduler started")

	return nil
}

// Stop stops the scheduler. In-flight runs finish on their own.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	s.logger.Info().Msg("Resolution scheduler stopped")
}

func (s *Scheduler) runPipeline(ctx context.Context) {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Warn().Msg("Previous resolution run still in progress, skipping this slot")
		return
	}
	defer s.running.Store(false)

	s.logger.Info().Msg("Starting scheduled resolution run")

	report, err := s.pipeline.Run(ctx)
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("Scheduled resolution run failed")
		return
	}

	s.logger.Info().
		Str("run_id", report.RunID).
		Int("attempted", report.Attempted).
		Int("resolved", report.Resolved).
		Int("remaining", report.Remaining).
		Dur("duration", report.Duration).
		Msg("Scheduled resolution run completed")
}
