package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"questions/internal/database"
	"questions/internal/models"
)

// ActionLogRepository handles action log database operations
type ActionLogRepository struct {
	db *sql.DB
}

// NewActionLogRepository creates a new action log repository
func NewActionLogRepository(db *sql.DB) *ActionLogRepository {
	return &ActionLogRepository{db: db}
}

// Create creates a new action log entry
func (r *ActionLogRepository) Create(ctx context.Context, log *models.ActionLog) error {
	query := `
		INSERT INTO action_logs (user_id, action, resource_type, resource_id, component_id, visibility, extra, version_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`

	now := time.Now()
	err := database.Conn(ctx, r.db).QueryRowContext(ctx,
		query,
		log.UserID,
		log.Action,
		log.ResourceType,
		log.ResourceID,
		log.ComponentID,
		log.Visibility,
		log.Extra,
		log.VersionID,
		now,
	).Scan(&log.ID)

	if err != nil {
		return fmt.Errorf("failed to create action log: %w", err)
	}

	log.CreatedAt = now
	return nil
}

// GetByResource retrieves the action logs of a resource, newest first
func (r *ActionLogRepository) GetByResource(ctx context.Context, resourceType string, resourceID int64) ([]models.ActionLog, error) {
	query := `
		SELECT id, user_id, action, resource_type, resource_id, component_id, visibility, extra, version_id, created_at
		FROM action_logs
		WHERE resource_type = $1 AND resource_id = $2
		ORDER BY created_at DESC, id DESC
	`
	return r.query(ctx, query, resourceType, resourceID)
}

// GetByComponent retrieves the action logs of a component with pagination
func (r *ActionLogRepository) GetByComponent(ctx context.Context, componentID int64, limit, offset int) ([]models.ActionLog, error) {
	query := `
		SELECT id, user_id, action, resource_type, resource_id, component_id, visibility, extra, version_id, created_at
		FROM action_logs
		WHERE component_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`
	return r.query(ctx, query, componentID, limit, offset)
}

func (r *ActionLogRepository) query(ctx context.Context, query string, args ...any) ([]models.ActionLog, error) {
	rows, err := database.Conn(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get action logs: %w", err)
	}
	defer rows.Close()

	var logs []models.ActionLog
	for rows.Next() {
		var log models.ActionLog
		if err := rows.Scan(
			&log.ID,
			&log.UserID,
			&log.Action,
			&log.ResourceType,
			&log.ResourceID,
			&log.ComponentID,
			&log.Visibility,
			&log.Extra,
			&log.VersionID,
			&log.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan action log: %w", err)
		}
		logs = append(logs, log)
	}

	return logs, rows.Err()
}
