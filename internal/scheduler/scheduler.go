package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog"

	"ambient-sync/internal/services"
)

// Scheduler reruns the sync pass at a fixed interval. Runs are
// serialized; a tick firing while the previous pass is still going is
// skipped instead of stacking.
type Scheduler struct {
	scheduler *gocron.Scheduler
	service   *services.SyncService
	interval  time.Duration
	logger    zerolog.Logger
}

func New(service *services.SyncService, interval time.Duration, logger zerolog.Logger) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()

	return &Scheduler{
		scheduler: s,
		service:   service,
		interval:  interval,
		logger:    logger,
	}
}

// Start schedules the recurring sync pass, runs the first one right
// away and returns. The given context flows into every run, so
// canceling it aborts an in-flight pass.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.scheduler.Every(s.interval).StartImmediately().Do(func() {
		if _, err := s.service.Run(ctx); err != nil {
			s.logger.Error().Err(err).Msg("Scheduled sync run failed")
		}
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()

	s.logger.Info().
		Dur("interval", s.interval).
		Msg("Scheduler started")

	return nil
}

func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
