// Package scheduler runs periodic maintenance on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mikestefanello/backlite"
	"github.com/robfig/cron/v3"

	"github.com/mrlokans/library/internal/logger"
	"github.com/mrlokans/library/internal/tasks"
)

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Job is one maintenance run.
type Job func(ctx context.Context) error

// Enqueuer saves background tasks. *tasks.Client implements it.
type Enqueuer interface {
	Enqueue(ctx context.Context, tasks ...backlite.Task) error
}

// EnqueueJob queues the audit cleanup and reset purge tasks.
func EnqueueJob(q Enqueuer, retentionDays int) Job {
	return func(ctx context.Context) error {
		return q.Enqueue(ctx,
			tasks.CleanupAuditEventsTask{RetentionDays: retentionDays},
			tasks.PurgeResetTokensTask{},
		)
	}
}

// InlineJob runs the audit cleanup and reset purge directly. It is used when
// the task queue is disabled.
func InlineJob(cleaner tasks.AuditEventCleaner, purger tasks.ResetPurger, retentionDays int, log *slog.Logger) Job {
	cleanup := tasks.CleanupAuditEventsProcessor(cleaner, log)
	purge := tasks.PurgeResetTokensProcessor(purger, log)
	return func(ctx context.Context) error {
		return errors.Join(
			cleanup(ctx, tasks.CleanupAuditEventsTask{RetentionDays: retentionDays}),
			purge(ctx, tasks.PurgeResetTokensTask{}),
		)
	}
}

// ValidateSchedule checks a five-field cron expression.
func ValidateSchedule(schedule string) error {
	_, err := parser.Parse(schedule)
	return err
}

// MaintenanceScheduler runs a Job on a cron schedule.
type MaintenanceScheduler struct {
	schedule string
	job      Job
	timeout  time.Duration
	log      *slog.Logger

	cron      *cron.Cron
	entryID   cron.EntryID
	mu        sync.RWMutex
	isRunning bool
	isWorking bool
	ctx       context.Context
}

func NewMaintenanceScheduler(schedule string, job Job, log *slog.Logger) *MaintenanceScheduler {
	return &MaintenanceScheduler{
		schedule: schedule,
		job:      job,
		timeout:  5 * time.Minute,
		log:      logger.OrDiscard(log).With("component", "scheduler"),
		cron:     cron.New(cron.WithParser(parser)),
	}
}

// Start schedules the job. Cancelling ctx stops the scheduler.
func (s *MaintenanceScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return nil
	}
	if err := ValidateSchedule(s.schedule); err != nil {
		return fmt.Errorf("invalid cron schedule '%s': %w", s.schedule, err)
	}

	entryID, err := s.cron.AddFunc(s.schedule, func() {
		_ = s.RunNow()
	})
	if err != nil {
		return fmt.Errorf("failed to schedule maintenance job: %w", err)
	}
	s.entryID = entryID
	s.ctx = ctx

	s.cron.Start()
	s.isRunning = true
	s.log.Info("maintenance scheduler started", "schedule", s.schedule, "next_run", s.nextRunLocked())

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

// Stop waits for a running job and stops the scheduler.
func (s *MaintenanceScheduler) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	s.mu.Unlock()

	// A running job takes s.mu when it finishes, so wait without holding it.
	done := s.cron.Stop()
	<-done.Done()
	s.cron.Remove(s.entryID)

	s.log.Info("maintenance scheduler stopped")
}

// RunNow runs the job once, unless a run is already in progress.
func (s *MaintenanceScheduler) RunNow() error {
	s.mu.Lock()
	if s.isWorking {
		s.mu.Unlock()
		s.log.Info("maintenance skipped, already running")
		return nil
	}
	s.isWorking = true
	parent := s.ctx
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.isWorking = false
		s.mu.Unlock()
	}()

	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithTimeout(parent, s.timeout)
	defer cancel()

	start := time.Now()
	if err := s.job(ctx); err != nil {
		s.log.Error("maintenance failed", "error", err)
		return err
	}
	s.log.Info("maintenance finished", "duration", time.Since(start).Round(time.Millisecond))
	return nil
}

// IsRunning returns whether the scheduler is active.
func (s *MaintenanceScheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// NextRun returns when the job runs next, or nil when stopped.
func (s *MaintenanceScheduler) NextRun() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.isRunning {
		return nil
	}
	return s.nextRunLocked()
}

func (s *MaintenanceScheduler) nextRunLocked() *time.Time {
	for _, entry := range s.cron.Entries() {
		if entry.ID == s.entryID {
			t := entry.Next
			return &t
		}
	}
	return nil
}
