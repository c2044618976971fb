package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"

	"questions/internal/email"
	"questions/internal/models"
)

// Store is the outbox as seen by the deliverer
type Store interface {
	ClaimPending(ctx context.Context, limit int, lease time.Duration) ([]models.NotificationEvent, error)
	MarkSent(ctx context.Context, id int64) error
	MarkAttemptFailed(ctx context.Context, id int64, cause string, maxAttempts int) error
}

// Users resolves recipient ids
type Users interface {
	GetByIDs(ctx context.Context, ids []int64) ([]models.User, error)
}

// Sender delivers one rendered notification
type Sender interface {
	SendNotification(ctx context.Context, to string, n email.Notification) error
}

// DeliveryConfig tunes the deliverer
type DeliveryConfig struct {
	BatchSize      int
	MaxAttempts    int
	MaxElapsedTime time.Duration
	Concurrency    int
	// Lease is how long claimed events stay hidden from other runs
	Lease time.Duration
}

// DeliveryStats summarizes one delivery run
type DeliveryStats struct {
	Claimed int
	Sent    int
	Failed  int
}

// Deliverer drains the outbox
type Deliverer struct {
	store  Store
	users  Users
	sender Sender
	cfg    DeliveryConfig
}

// NewDeliverer creates a new deliverer
func NewDeliverer(store Store, users Users, sender Sender, cfg DeliveryConfig) *Deliverer {
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 50
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 5
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.MaxElapsedTime <= 0 {
		cfg.MaxElapsedTime = 30 * time.Second
	}
	if cfg.Lease <= 0 {
		cfg.Lease = 10 * time.Minute
	}
	return &Deliverer{store: store, users: users, sender: sender, cfg: cfg}
}

// DeliverPending leases a batch of pending events, sends them and records
// the outcome of each one. Only the sending runs concurrently; every
// database call happens on the calling goroutine.
func (d *Deliverer) DeliverPending(ctx context.Context) (DeliveryStats, error) {
	events, err := d.store.ClaimPending(ctx, d.cfg.BatchSize, d.cfg.Lease)
	if err != nil {
		return DeliveryStats{}, err
	}
	stats := DeliveryStats{Claimed: len(events)}
	if len(events) == 0 {
		return stats, nil
	}

	recipients, err := d.recipients(ctx, events)
	if err != nil {
		return stats, err
	}

	results := make([]error, len(events))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.cfg.Concurrency)
	for i := range events {
		g.Go(func() error {
			results[i] = d.deliver(gctx, &events[i], recipients)
			return nil
		})
	}
	_ = g.Wait()

	for i, e := range events {
		if results[i] == nil {
			if err := d.store.MarkSent(ctx, e.ID); err != nil {
				return stats, err
			}
			stats.Sent++
			continue
		}
		slog.Warn("Notification delivery failed",
			"event_id", e.ID,
			"event", e.EventName,
			"attempt", e.Attempts+1,
			"error", results[i],
		)
		if err := d.store.MarkAttemptFailed(ctx, e.ID, results[i].Error(), d.cfg.MaxAttempts); err != nil {
			return stats, err
		}
		stats.Failed++
	}

	return stats, nil
}

// recipients loads every user addressed by the batch in one lookup
func (d *Deliverer) recipients(ctx context.Context, events []models.NotificationEvent) (map[int64]models.User, error) {
	seen := make(map[int64]bool)
	var ids []int64
	for _, e := range events {
		for _, id := range append(append([]int64{}, e.AffectedUserIDs...), e.FollowerIDs...) {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}

	users, err := d.users.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load recipients: %w", err)
	}
	byID := make(map[int64]models.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	return byID, nil
}

// deliver sends the event to every recipient with an email address
func (d *Deliverer) deliver(ctx context.Context, e *models.NotificationEvent, recipients map[int64]models.User) error {
	affected := make(map[int64]bool, len(e.AffectedUserIDs))
	for _, id := range e.AffectedUserIDs {
		affected[id] = true
	}

	title, _ := e.Extra["question_title"].(string)
	path, _ := e.Extra["question_path"].(string)

	var errs []error
	for _, id := range append(append([]int64{}, e.AffectedUserIDs...), e.FollowerIDs...) {
		u, ok := recipients[id]
		if !ok || u.Email == "" {
			continue
		}
		n := email.Notification{
			RecipientName: u.Name,
			EventName:     e.EventName,
			QuestionTitle: title,
			QuestionPath:  path,
			Affected:      affected[u.ID],
			Extra:         e.Extra,
		}
		if err := d.sendWithRetry(ctx, u.Email, n); err != nil {
			errs = append(errs, fmt.Errorf("user %d: %w", u.ID, err))
		}
	}

	return errors.Join(errs...)
}

func (d *Deliverer) sendWithRetry(ctx context.Context, to string, n email.Notification) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.MaxElapsedTime = d.cfg.MaxElapsedTime

	return backoff.Retry(func() error {
		return d.sender.SendNotification(ctx, to, n)
	}, backoff.WithContext(bo, ctx))
}
