package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/lib/pq"

	"questions/internal/database"
	"questions/internal/models"
)

// NotificationRepository is the notification outbox
type NotificationRepository struct {
	db *sql.DB
}

// NewNotificationRepository creates a new notification repository
func NewNotificationRepository(db *sql.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Enqueue stores a pending notification event. Called inside the
// transaction of the command that raised it.
func (r *NotificationRepository) Enqueue(ctx context.Context, e *models.NotificationEvent) error {
	now := time.Now()
	e.Status = models.NotificationPending
	err := database.Conn(ctx, r.db).QueryRowContext(ctx, `
		INSERT INTO notification_events (event_name, resource_type, resource_id, affected_user_ids, follower_ids, extra, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`,
		e.EventName,
		e.ResourceType,
		e.ResourceID,
		pq.Array(e.AffectedUserIDs),
		pq.Array(e.FollowerIDs),
		e.Extra,
		e.Status,
		now,
	).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("failed to enqueue notification: %w", err)
	}
	e.CreatedAt = now
	return nil
}

// ClaimPending leases up to limit pending events for delivery in a single
// statement. Leased rows are skipped by other workers until the lease runs
// out, so no transaction has to stay open while the mails go out.
func (r *NotificationRepository) ClaimPending(ctx context.Context, limit int, lease time.Duration) ([]models.NotificationEvent, error) {
	now := time.Now()
	rows, err := database.Conn(ctx, r.db).QueryContext(ctx, `
		UPDATE notification_events
		SET claimed_until = $1
		WHERE id IN (
			SELECT id
			FROM notification_events
			WHERE status = $2 AND (claimed_until IS NULL OR claimed_until < $3)
			ORDER BY created_at, id
			LIMIT $4
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, event_name, resource_type, resource_id, affected_user_ids, follower_ids, extra, status, attempts, last_error, created_at, sent_at
	`, now.Add(lease), models.NotificationPending, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to claim pending notifications: %w", err)
	}
	defer rows.Close()

	var events []models.NotificationEvent
	for rows.Next() {
		var e models.NotificationEvent
		var affected, followers pq.Int64Array
		if err := rows.Scan(
			&e.ID,
			&e.EventName,
			&e.ResourceType,
			&e.ResourceID,
			&affected,
			&followers,
			&e.Extra,
			&e.Status,
			&e.Attempts,
			&e.LastError,
			&e.CreatedAt,
			&e.SentAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		e.AffectedUserIDs = affected
		e.FollowerIDs = followers
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// RETURNING does not keep the subquery order
	sort.Slice(events, func(i, j int) bool {
		if events[i].CreatedAt.Equal(events[j].CreatedAt) {
			return events[i].ID < events[j].ID
		}
		return events[i].CreatedAt.Before(events[j].CreatedAt)
	})
	return events, nil
}

// MarkSent records a successful delivery
func (r *NotificationRepository) MarkSent(ctx context.Context, id int64) error {
	_, err := database.Conn(ctx, r.db).ExecContext(ctx, `
		UPDATE notification_events
		SET status = $1, attempts = attempts + 1, last_error = NULL, sent_at = $2, claimed_until = NULL
		WHERE id = $3
	`, models.NotificationSent, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to mark notification sent: %w", err)
	}
	return nil
}

// MarkAttemptFailed records a failed delivery. The event is marked failed
// once it reached maxAttempts, otherwise it stays pending.
func (r *NotificationRepository) MarkAttemptFailed(ctx context.Context, id int64, cause string, maxAttempts int) error {
	_, err := database.Conn(ctx, r.db).ExecContext(ctx, `
		UPDATE notification_events
		SET attempts = attempts + 1,
		    last_error = $1,
		    claimed_until = NULL,
		    status = CASE WHEN attempts + 1 >= $2 THEN $3 ELSE status END
		WHERE id = $4
	`, cause, maxAttempts, models.NotificationFailed, id)
	if err != nil {
		return fmt.Errorf("failed to mark notification attempt: %w", err)
	}
	return nil
}

// ListByResource returns the events raised for a resource, oldest first
func (r *NotificationRepository) ListByResource(ctx context.Context, resourceType string, resourceID int64) ([]models.NotificationEvent, error) {
	rows, err := database.Conn(ctx, r.db).QueryContext(ctx, `
		SELECT id, event_name, resource_type, resource_id, affected_user_ids, follower_ids, extra, status, attempts, last_error, created_at, sent_at
		FROM notification_events
		WHERE resource_type = $1 AND resource_id = $2
		ORDER BY created_at, id
	`, resourceType, resourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to get notifications: %w", err)
	}
	defer rows.Close()

	var events []models.NotificationEvent
	for rows.Next() {
		var e models.NotificationEvent
		var affected, followers pq.Int64Array
		if err := rows.Scan(
			&e.ID, &e.EventName, &e.ResourceType, &e.ResourceID, &affected, &followers,
			&e.Extra, &e.Status, &e.Attempts, &e.LastError, &e.CreatedAt, &e.SentAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		e.AffectedUserIDs = affected
		e.FollowerIDs = followers
		events = append(events, e)
	}

	return events, rows.Err()
}
