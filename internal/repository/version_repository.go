package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"questions/internal/database"
	"questions/internal/models"
)

// VersionRepository stores resource revisions
type VersionRepository struct {
	db *sql.DB
}

// NewVersionRepository creates a new version repository
func NewVersionRepository(db *sql.DB) *VersionRepository {
	return &VersionRepository{db: db}
}

// Create records one revision
func (r *VersionRepository) Create(ctx context.Context, v *models.Version) error {
	now := time.Now()
	err := database.Conn(ctx, r.db).QueryRowContext(ctx, `
		INSERT INTO versions (item_type, item_id, event, whodunnit, object_changes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, v.ItemType, v.ItemID, v.Event, v.Whodunnit, v.ObjectChanges, now).Scan(&v.ID)
	if err != nil {
		return fmt.Errorf("failed to create version: %w", err)
	}
	v.CreatedAt = now
	return nil
}

// GetByItem returns the revisions of a resource, oldest first
func (r *VersionRepository) GetByItem(ctx context.Context, itemType string, itemID int64) ([]models.Version, error) {
	rows, err := database.Conn(ctx, r.db).QueryContext(ctx, `
		SELECT id, item_type, item_id, event, whodunnit, object_changes, created_at
		FROM versions
		WHERE item_type = $1 AND item_id = $2
		ORDER BY created_at, id
	`, itemType, itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to get versions: %w", err)
	}
	defer rows.Close()

	var versions []models.Version
	for rows.Next() {
		var v models.Version
		if err := rows.Scan(&v.ID, &v.ItemType, &v.ItemID, &v.Event, &v.Whodunnit, &v.ObjectChanges, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan version: %w", err)
		}
		versions = append(versions, v)
	}

	return versions, rows.Err()
}
