package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"questions/internal/config"
	"questions/internal/notify"
	"questions/internal/repository"
	"questions/internal/telemetry"
)

// NotificationDeliverer drains the notification outbox
type NotificationDeliverer interface {
	DeliverPending(ctx context.Context) (notify.DeliveryStats, error)
}

// CounterReconciler repairs drifted counter caches
type CounterReconciler interface {
	ReconcileCounters(ctx context.Context) ([]repository.CounterDrift, error)
}

// Scheduler handles periodic tasks
type Scheduler struct {
	deliverer  NotificationDeliverer
	reconciler CounterReconciler
	telemetry  *telemetry.Commands
	config     *config.SchedulerConfig
	stopChan   chan struct{}
	wg         sync.WaitGroup
}

// NewScheduler creates a new scheduler
func NewScheduler(
	deliverer NotificationDeliverer,
	reconciler CounterReconciler,
	commands *telemetry.Commands,
	cfg *config.SchedulerConfig,
) *Scheduler {
	return &Scheduler{
		deliverer:  deliverer,
		reconciler: reconciler,
		telemetry:  commands,
		config:     cfg,
		stopChan:   make(chan struct{}),
	}
}

// Start starts all scheduled tasks
func (s *Scheduler) Start(ctx context.Context) {
	slog.Info("Starting scheduler",
		"delivery_enabled", s.config.EnableDelivery,
		"reconcile_enabled", s.config.EnableReconcile)

	if s.config.EnableDelivery {
		if err := s.startCronTask(ctx, s.config.DeliveryCron, "deliver_notifications", s.deliverNotifications); err != nil {
			slog.Error("Failed to start notification delivery", "error", err)
		}
	}

	if s.config.EnableReconcile {
		if err := s.startCronTask(ctx, s.config.ReconcileCron, "reconcile_counters", s.reconcileCounters); err != nil {
			slog.Error("Failed to start counter reconciliation", "error", err)
		}
	}

	slog.Info("Scheduler started")
}

// Stop stops the scheduler and waits for running tasks to return
func (s *Scheduler) Stop() {
	slog.Info("Stopping scheduler")
	close(s.stopChan)
	s.wg.Wait()
}

type task func(ctx context.Context) error

// startCronTask parses a cron expression and starts the task
// Supports simple cron format: "minute hour day month weekday"
// Examples: "0 9 * * 1" = Monday 9 AM, "0 8 * * *" = Daily 8 AM, "*/5 * * * *" = Every 5 minutes
func (s *Scheduler) startCronTask(ctx context.Context, cronExpr, taskName string, run task) error {
	next, err := parseCron(cronExpr)
	if err != nil {
		return err
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop(ctx, taskName, next, run)
	}()
	return nil
}

// nextRun returns the next run after from. Interval schedules also run
// once at start.
type nextRun struct {
	interval time.Duration
	at       func(from time.Time) time.Time
}

func parseCron(cronExpr string) (nextRun, error) {
	parts := strings.Fields(cronExpr)
	if len(parts) != 5 {
		return nextRun{}, fmt.Errorf("invalid cron expression: %s (expected 5 fields)", cronExpr)
	}

	// Interval notation: */5 = every 5 minutes
	if strings.HasPrefix(parts[0], "*/") {
		interval, err := strconv.Atoi(parts[0][2:])
		if err != nil || interval < 1 || interval > 59 {
			return nextRun{}, fmt.Errorf("invalid minute interval in cron: %s", parts[0])
		}
		return nextRun{interval: time.Duration(interval) * time.Minute}, nil
	}

	minute, err := strconv.Atoi(parts[0])
	if err != nil || minute < 0 || minute > 59 {
		return nextRun{}, fmt.Errorf("invalid minute in cron: %s", parts[0])
	}

	// Interval notation: */2 = every 2 hours at the given minute
	if strings.HasPrefix(parts[1], "*/") {
		interval, err := strconv.Atoi(parts[1][2:])
		if err != nil || interval < 1 || interval > 23 {
			return nextRun{}, fmt.Errorf("invalid hour interval in cron: %s", parts[1])
		}
		return nextRun{at: func(from time.Time) time.Time { return nextHourlyInterval(from, interval, minute) }}, nil
	}

	hour, err := strconv.Atoi(parts[1])
	if err != nil || hour < 0 || hour > 23 {
		return nextRun{}, fmt.Errorf("invalid hour in cron: %s", parts[1])
	}

	if parts[4] == "*" {
		return nextRun{at: func(from time.Time) time.Time { return nextDailyRun(from, hour, minute) }}, nil
	}

	weekday, err := strconv.Atoi(parts[4])
	if err != nil || weekday < 0 || weekday > 6 {
		return nextRun{}, fmt.Errorf("invalid weekday in cron: %s (0-6, 0=Sunday)", parts[4])
	}
	return nextRun{at: func(from time.Time) time.Time {
		return nextWeekday(from, time.Weekday(weekday), hour, minute)
	}}, nil
}

func (s *Scheduler) loop(ctx context.Context, taskName string, next nextRun, run task) {
	if next.interval > 0 {
		slog.Info("Starting interval task", "task", taskName, "interval", next.interval)

		ticker := time.NewTicker(next.interval)
		defer ticker.Stop()

		s.runTask(ctx, taskName, run)
		for {
			select {
			case <-ticker.C:
				s.runTask(ctx, taskName, run)
			case <-s.stopChan:
				return
			case <-ctx.Done():
				return
			}
		}
	}

	for {
		now := time.Now()
		at := next.at(now)
		slog.Info("Next task scheduled", "task", taskName, "next_run", at.Format("2006-01-02 15:04:05"))

		timer := time.NewTimer(at.Sub(now))
		select {
		case <-timer.C:
			s.runTask(ctx, taskName, run)
		case <-s.stopChan:
			timer.Stop()
			return
		case <-ctx.Done():
			timer.Stop()
			return
		}
	}
}

func (s *Scheduler) runTask(ctx context.Context, taskName string, run task) {
	ctx, end := s.telemetry.Start(ctx, "scheduler."+taskName, attribute.String("task", taskName))

	slog.Debug("Running task", "task", taskName)
	err := run(ctx)
	end(err)

	if err != nil {
		slog.Error("Scheduled task failed", "task", taskName, "error", err)
	}
}

// nextHourlyInterval calculates the next run time for hourly intervals
func nextHourlyInterval(from time.Time, hourInterval, minute int) time.Time {
	next := time.Date(from.Year(), from.Month(), from.Day(), from.Hour(), minute, 0, 0, from.Location())

	// If the time has passed in this hour, move to next hour
	if !next.After(from) {
		next = next.Add(time.Hour)
	}

	for next.Hour()%hourInterval != 0 {
		next = next.Add(time.Hour)
	}

	return next
}

// nextWeekday calculates the next occurrence of a specific weekday and time
func nextWeekday(from time.Time, weekday time.Weekday, hour, minute int) time.Time {
	next := time.Date(from.Year(), from.Month(), from.Day(), hour, minute, 0, 0, from.Location())

	daysUntil := int(weekday - from.Weekday())
	if daysUntil < 0 {
		daysUntil += 7
	}

	next = next.AddDate(0, 0, daysUntil)

	// If the calculated time has already passed today, add 7 days
	if !next.After(from) {
		next = next.AddDate(0, 0, 7)
	}

	return next
}

// nextDailyRun calculates the next daily run time
func nextDailyRun(from time.Time, hour, minute int) time.Time {
	next := time.Date(from.Year(), from.Month(), from.Day(), hour, minute, 0, 0, from.Location())

	if !next.After(from) {
		next = next.AddDate(0, 0, 1)
	}

	return next
}

// deliverNotifications sends the pending outbox events by email
func (s *Scheduler) deliverNotifications(ctx context.Context) error {
	stats, err := s.deliverer.DeliverPending(ctx)
	if err != nil {
		return fmt.Errorf("deliver notifications: %w", err)
	}

	if stats.Claimed > 0 {
		slog.Info("Notifications delivered",
			"claimed", stats.Claimed,
			"sent", stats.Sent,
			"failed", stats.Failed,
		)
	}
	return nil
}

// reconcileCounters repairs counter caches that drifted from their tables
func (s *Scheduler) reconcileCounters(ctx context.Context) error {
	drifts, err := s.reconciler.ReconcileCounters(ctx)
	if err != nil {
		return fmt.Errorf("reconcile counters: %w", err)
	}

	slog.Info("Counter reconciliation completed", "repaired", len(drifts))
	return nil
}
