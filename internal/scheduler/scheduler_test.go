package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"questions/internal/config"
	"questions/internal/notify"
	"questions/internal/repository"
)

func TestParseCron(t *testing.T) {
	tests := []struct {
		expr     string
		wantErr  bool
		interval time.Duration
	}{
		{"*/5 * * * *", false, 5 * time.Minute},
		{"0 3 * * *", false, 0},
		{"30 */2 * * *", false, 0},
		{"0 9 * * 1", false, 0},
		{"* * *", true, 0},
		{"*/0 * * * *", true, 0},
		{"61 3 * * *", true, 0},
		{"0 25 * * *", true, 0},
		{"0 9 * * 8", true, 0},
	}

	for _, tt := range tests {
		next, err := parseCron(tt.expr)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parseCron(%q) expected error", tt.expr)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseCron(%q) unexpected error: %v", tt.expr, err)
			continue
		}
		if next.interval != tt.interval {
			t.Errorf("parseCron(%q) interval = %v, want %v", tt.expr, next.interval, tt.interval)
		}
		if tt.interval == 0 && next.at == nil {
			t.Errorf("parseCron(%q) has no next run function", tt.expr)
		}
	}
}

func TestNextRuns(t *testing.T) {
	// Saturday
	from := time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)

	if got, want := nextDailyRun(from, 3, 0), time.Date(2026, 3, 15, 3, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Errorf("nextDailyRun = %v, want %v", got, want)
	}
	if got, want := nextDailyRun(from, 11, 0), time.Date(2026, 3, 14, 11, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Errorf("nextDailyRun = %v, want %v", got, want)
	}
	if got, want := nextWeekday(from, time.Monday, 9, 0), time.Date(2026, 3, 16, 9, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Errorf("nextWeekday = %v, want %v", got, want)
	}
	if got, want := nextWeekday(from, time.Saturday, 9, 0), time.Date(2026, 3, 21, 9, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Errorf("nextWeekday = %v, want %v", got, want)
	}
	if got, want := nextHourlyInterval(from, 4, 15), time.Date(2026, 3, 14, 12, 15, 0, 0, time.UTC); !got.Equal(want) {
		t.Errorf("nextHourlyInterval = %v, want %v", got, want)
	}
}

type fakeDeliverer struct {
	runs atomic.Int32
	err  error
}

func (f *fakeDeliverer) DeliverPending(context.Context) (notify.DeliveryStats, error) {
	f.runs.Add(1)
	return notify.DeliveryStats{Claimed: 2, Sent: 2}, f.err
}

type fakeReconciler struct {
	runs atomic.Int32
}

func (f *fakeReconciler) ReconcileCounters(context.Context) ([]repository.CounterDrift, error) {
	f.runs.Add(1)
	return []repository.CounterDrift{{QuestionID: 1, Counter: "votes_count", Cached: 3, Actual: 2}}, nil
}

func TestIntervalTaskRunsAtStart(t *testing.T) {
	deliverer := &fakeDeliverer{}
	reconciler := &fakeReconciler{}
	s := NewScheduler(deliverer, reconciler, nil, &config.SchedulerConfig{
		DeliveryCron:    "*/1 * * * *",
		ReconcileCron:   "0 3 * * *",
		EnableDelivery:  true,
		EnableReconcile: true,
	})

	s.Start(context.Background())

	deadline := time.Now().Add(2 * time.Second)
	for deliverer.runs.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	s.Stop()

	if deliverer.runs.Load() != 1 {
		t.Errorf("expected one delivery run, got %d", deliverer.runs.Load())
	}
	if reconciler.runs.Load() != 0 {
		t.Errorf("daily reconciliation should not run at start")
	}
}

func TestTasksReportErrors(t *testing.T) {
	s := NewScheduler(&fakeDeliverer{err: errors.New("smtp down")}, &fakeReconciler{}, nil, &config.SchedulerConfig{})

	if err := s.deliverNotifications(context.Background()); err == nil {
		t.Error("expected delivery error")
	}
	if err := s.reconcileCounters(context.Background()); err != nil {
		t.Errorf("unexpected reconcile error: %v", err)
	}
}
