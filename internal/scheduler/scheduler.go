package scheduler

import (
	"context"
	"fmt"
	"time"

	"tour-booking/internal/usecase"
	"tour-booking/pkg/utils"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const (
	// setiap jam di menit ke-7
	sessionCleanupSchedule = "0 7 * * * *"
	jobTimeout             = 2 * time.Minute
)

// Scheduler runs the background jobs of the booking workflow in-process.
type Scheduler struct {
	cron   *cron.Cron
	expiry usecase.ExpiryService
	auth   usecase.AuthService
	config utils.JobsConfig
	log    *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

func New(expiry usecase.ExpiryService, auth usecase.AuthService, config utils.JobsConfig, log *zap.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		// cron format dengan detik: second minute hour day month weekday
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		expiry: expiry,
		auth:   auth,
		config: config,
		log:    log.With(zap.String("component", "scheduler")),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start registers the jobs and starts the cron loop
func (s *Scheduler) Start() error {
	schedule := s.config.SweepSchedule
	if schedule == "" {
		schedule = "0 */2 * * * *"
	}

	if _, err := s.cron.AddFunc(schedule, s.sweepJob); err != nil {
		return fmt.Errorf("schedule expiry sweep %q: %w", schedule, err)
	}
	if s.auth != nil {
		if _, err := s.cron.AddFunc(sessionCleanupSchedule, s.sessionCleanupJob); err != nil {
			return fmt.Errorf("schedule session cleanup: %w", err)
		}
	}

	s.cron.Start()
	s.log.Info("Scheduler started", zap.String("sweep_schedule", schedule))
	return nil
}

// Stop waits for running jobs, up to ctx
func (s *Scheduler) Stop(ctx context.Context) {
	stopped := s.cron.Stop()
	s.cancel()

	select {
	case <-stopped.Done():
		s.log.Info("Scheduler stopped")
	case <-ctx.Done():
		s.log.Warn("Scheduler stop timed out", zap.Error(ctx.Err()))
	}
}

func (s *Scheduler) sweepJob() {
	ctx, cancel := context.WithTimeout(s.ctx, jobTimeout)
	defer cancel()

	if _, err := s.runSweep(ctx); err != nil {
		s.log.Error("Scheduled expiry sweep failed", zap.Error(err))
	}
}

func (s *Scheduler) runSweep(ctx context.Context) (int, error) {
	start := time.Now()

	result, err := s.expiry.Sweep(ctx)
	if err != nil {
		return 0, err
	}

	if result.Expired > 0 || result.Failed > 0 {
		s.log.Info("Expiry sweep ran",
			zap.Int("expired", result.Expired),
			zap.Int("failed", result.Failed),
			zap.Duration("duration", time.Since(start)),
		)
	}
	return result.Expired, nil
}

func (s *Scheduler) sessionCleanupJob() {
	ctx, cancel := context.WithTimeout(s.ctx, jobTimeout)
	defer cancel()

	removed, err := s.auth.CleanExpiredSessions(ctx)
	if err != nil {
		s.log.Error("Session cleanup failed", zap.Error(err))
		return
	}
	if removed > 0 {
		s.log.Info("Expired sessions removed", zap.Int64("removed", removed))
	}
}
