// Package scheduler provides unified scheduler management using gocron v2.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"chatdesk/internal/shared/biztime"
	"chatdesk/internal/shared/logger"
)

const (
	defaultSweepInterval  = 15 * time.Minute
	defaultRelayInterval  = 30 * time.Second
	DefaultRetentionDays  = 30
	sweepTimeout          = 10 * time.Minute
	relayTimeout          = time.Minute
	pruneTimeout          = 5 * time.Minute
	processedEventPruneAt = "0 4 * * *"
)

// BatchJob defines the interface for a scheduled batch processing job.
// Each Execute call processes a batch and returns the number of items processed.
type BatchJob interface {
	Execute(ctx context.Context) (int, error)
}

// ProcessedEventPruner deletes webhook idempotency rows older than cutoff.
type ProcessedEventPruner interface {
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// SchedulerManager owns the single gocron scheduler shared by all background jobs.
type SchedulerManager struct {
	scheduler gocron.Scheduler
	logger    logger.Interface

	started   bool
	startedMu sync.RWMutex
}

// NewSchedulerManager creates a new SchedulerManager instance.
// It initializes gocron with the business timezone for cron expressions.
func NewSchedulerManager(log logger.Interface) (*SchedulerManager, error) {
	scheduler, err := gocron.NewScheduler(
		gocron.WithLocation(biztime.Location()),
	)
	if err != nil {
		return nil, err
	}

	return &SchedulerManager{
		scheduler: scheduler,
		logger:    log,
	}, nil
}

// ========================================
// Grace Period Jobs (interval, start immediately)
// ========================================

// RegisterGracePeriodJobs registers the sweeper that expires subscriptions
// whose grace period has ended. Overlapping runs are rescheduled, never stacked.
func (m *SchedulerManager) RegisterGracePeriodJobs(sweeper BatchJob, interval time.Duration) error {
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	_, err := m.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
			defer cancel()
			m.runBatch(ctx, "grace period sweep", sweeper)
		}),
		gocron.WithStartAt(gocron.WithStartImmediately()),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithTags("subscription", "grace-period"),
		gocron.WithName("grace-period-sweeper"),
	)
	if err != nil {
		return err
	}

	m.logger.Infow("registered grace period jobs", "interval", interval.String())
	return nil
}

// ========================================
// Outbox Jobs (interval)
// ========================================

// RegisterOutboxJobs registers the relay that republishes outbox rows whose
// post-commit publish failed.
func (m *SchedulerManager) RegisterOutboxJobs(relay BatchJob, interval time.Duration) error {
	if interval <= 0 {
		interval = defaultRelayInterval
	}
	_, err := m.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), relayTimeout)
			defer cancel()
			m.runBatch(ctx, "outbox relay", relay)
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithTags("outbox", "relay"),
		gocron.WithName("outbox-relay"),
	)
	if err != nil {
		return err
	}

	m.logger.Infow("registered outbox jobs", "interval", interval.String())
	return nil
}

// ========================================
// Maintenance Jobs (cron-based)
// ========================================

// RegisterMaintenanceJobs prunes processed webhook events daily at 04:00
// business timezone. Provider redelivery windows are far shorter than retention.
func (m *SchedulerManager) RegisterMaintenanceJobs(pruner ProcessedEventPruner, retentionDays int) error {
	if retentionDays <= 0 {
		retentionDays = DefaultRetentionDays
	}
	_, err := m.scheduler.NewJob(
		gocron.CronJob(processedEventPruneAt, false),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), pruneTimeout)
			defer cancel()
			m.pruneProcessedEvents(ctx, pruner, retentionDays)
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithTags("webhook", "cleanup"),
		gocron.WithName("processed-event-prune"),
	)
	if err != nil {
		return err
	}

	m.logger.Infow("registered maintenance jobs",
		"processed_event_prune", "04:00",
		"retention_days", retentionDays,
	)
	return nil
}

func (m *SchedulerManager) runBatch(ctx context.Context, name string, job BatchJob) {
	m.logger.Debugw("batch job started", "job", name)

	startTime := biztime.NowUTC()
	count, err := job.Execute(ctx)
	if err != nil {
		// graceful shutdown
		if ctx.Err() != nil && count == 0 {
			return
		}
		m.logger.Errorw("batch job failed",
			"job", name,
			"processed", count,
			"error", err,
			"duration", time.Since(startTime),
		)
		return
	}

	if count > 0 {
		m.logger.Infow("batch job processed items",
			"job", name,
			"count", count,
			"duration", time.Since(startTime),
		)
	} else {
		m.logger.Debugw("batch job found nothing to process",
			"job", name,
			"duration", time.Since(startTime),
		)
	}
}

func (m *SchedulerManager) pruneProcessedEvents(ctx context.Context, pruner ProcessedEventPruner, retentionDays int) {
	cutoff := biztime.NowUTC().AddDate(0, 0, -retentionDays)
	deleted, err := pruner.DeleteBefore(ctx, cutoff)
	if err != nil {
		m.logger.Errorw("failed to prune processed webhook events",
			"error", err,
			"retention_days", retentionDays,
		)
		return
	}

	m.logger.Infow("processed webhook events pruned",
		"deleted", deleted,
		"cutoff", cutoff,
	)
}

// ========================================
// Scheduler Lifecycle Methods
// ========================================

// Start starts the scheduler and all registered jobs.
func (m *SchedulerManager) Start() {
	m.startedMu.Lock()
	defer m.startedMu.Unlock()

	if m.started {
		return
	}

	m.scheduler.Start()
	m.started = true
	m.logger.Infow("scheduler manager started", "job_count", len(m.scheduler.Jobs()))
}

// Stop gracefully stops the scheduler.
// It waits for all running jobs to complete before returning.
func (m *SchedulerManager) Stop() error {
	m.startedMu.Lock()
	defer m.startedMu.Unlock()

	if !m.started {
		return nil
	}

	m.logger.Infow("stopping scheduler manager")

	err := m.scheduler.Shutdown()
	m.started = false

	if err != nil {
		m.logger.Errorw("scheduler manager shutdown with error", "error", err)
		return err
	}

	m.logger.Infow("scheduler manager stopped")
	return nil
}

// IsStarted returns whether the scheduler is running.
func (m *SchedulerManager) IsStarted() bool {
	m.startedMu.RLock()
	defer m.startedMu.RUnlock()
	return m.started
}

// Jobs returns all registered jobs for inspection.
func (m *SchedulerManager) Jobs() []gocron.Job {
	return m.scheduler.Jobs()
}
