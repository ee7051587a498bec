// Package scheduler triggers periodic sales synchronization runs.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	domain "github.com/possync/backend/internal/domain/sync"
)

// ErrSchedulerAlreadyStarted is returned when Start is called twice.
var ErrSchedulerAlreadyStarted = errors.New("scheduler: already started")

// SyncRunner is the single entry point the scheduler drives. It is the
// orchestrator's Sync method; lock contention inside it makes overlapping
// ticks harmless.
type SyncRunner interface {
	Sync(ctx context.Context, integrationID uuid.UUID, overrideStoreID string, start, end time.Time) domain.Summary
}

// Config holds scheduling parameters.
type Config struct {
	// CronSchedule is a standard 5-field cron expression, evaluated in the
	// business timezone
	CronSchedule string
	// DefaultWindowDays is the window size for integrations that do not
	// configure their own
	DefaultWindowDays int
	// RunTimeout bounds one integration's run
	RunTimeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.CronSchedule == "" {
		c.CronSchedule = "0 5 * * *"
	}
	if c.DefaultWindowDays <= 0 {
		c.DefaultWindowDays = 3
	}
	if c.RunTimeout <= 0 {
		c.RunTimeout = 30 * time.Minute
	}
}

// SyncScheduler fans a cron tick out to every due integration, sequentially.
// Runs for different integrations do not contend with each other, but a
// sequential fan-out keeps this process within the upstream rate limits.
type SyncScheduler struct {
	config       Config
	runner       SyncRunner
	integrations domain.IntegrationRepository
	logger       *zap.Logger

	cron *cron.Cron

	mu      sync.Mutex
	started bool

	// now is injectable for deterministic tests
	now func() time.Time
}

// NewSyncScheduler creates a scheduler over the given runner.
func NewSyncScheduler(
	config Config,
	runner SyncRunner,
	integrations domain.IntegrationRepository,
	logger *zap.Logger,
) *SyncScheduler {
	config.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SyncScheduler{
		config:       config,
		runner:       runner,
		integrations: integrations,
		logger:       logger,
		cron:         cron.New(cron.WithLocation(domain.BusinessLocation())),
		now:          time.Now,
	}
}

// Start registers the cron entry and begins ticking. It returns an error for
// an invalid cron expression.
func (s *SyncScheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return ErrSchedulerAlreadyStarted
	}

	if _, err := s.cron.AddFunc(s.config.CronSchedule, s.tick); err != nil {
		return err
	}
	s.cron.Start()
	s.started = true

	s.logger.Info("Sync scheduler started",
		zap.String("schedule", s.config.CronSchedule),
		zap.String("timezone", domain.BusinessTimezone),
		zap.Int("default_window_days", s.config.DefaultWindowDays),
	)
	return nil
}

// Stop halts ticking and waits for an in-flight tick to finish, bounded by
// the given context.
func (s *SyncScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return nil
	}
	s.started = false

	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
		s.logger.Info("Sync scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *SyncScheduler) tick() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.RunDue(ctx)
}

// RunDue synchronizes every due integration once, sequentially. It is called
// by the cron tick and may also be invoked directly as a manual trigger.
func (s *SyncScheduler) RunDue(ctx context.Context) {
	integrations, err := s.integrations.FindDue(ctx)
	if err != nil {
		s.logger.Error("Failed to list due integrations", zap.Error(err))
		return
	}
	if len(integrations) == 0 {
		s.logger.Debug("No integrations due for sync")
		return
	}

	s.logger.Info("Scheduled sync tick", zap.Int("due", len(integrations)))

	for i := range integrations {
		integration := &integrations[i]
		if ctx.Err() != nil {
			s.logger.Warn("Scheduled sync tick interrupted", zap.Error(ctx.Err()))
			return
		}
		s.runOne(ctx, integration)
	}
}

func (s *SyncScheduler) runOne(ctx context.Context, integration *domain.Integration) {
	days := integration.WindowDays
	if days <= 0 {
		days = s.config.DefaultWindowDays
	}

	window, err := domain.ComputeWindow(s.now(), days)
	if err != nil {
		s.logger.Error("Failed to compute sync window",
			zap.String("integration_id", integration.ID.String()),
			zap.Int("days", days),
			zap.Error(err),
		)
		return
	}

	runCtx, cancel := context.WithTimeout(ctx, s.config.RunTimeout)
	defer cancel()

	summary := s.runner.Sync(runCtx, integration.ID, "", window.Start, window.End)
	if summary.Success {
		s.logger.Info("Scheduled sync completed",
			zap.String("integration_id", integration.ID.String()),
			zap.Int("synced", summary.Synced),
			zap.Int("total_requests", summary.TotalRequests),
		)
		return
	}
	s.logger.Warn("Scheduled sync did not complete",
		zap.String("integration_id", integration.ID.String()),
		zap.String("message", summary.Message),
		zap.Int("errors", summary.Errors),
	)
}
