package repository

import (
	"context"
	"database/sql"
	"fmt"

	"questions/internal/database"
)

// Link names used by questions
const (
	LinkCopiedFromComponent           = "copied_from_component"
	LinkCreatedFromCollaborativeDraft = "created_from_collaborative_draft"
	LinkQuestionsFromMeeting          = "questions_from_meeting"
)

// ResourceLinkRepository handles provenance links between resources
type ResourceLinkRepository struct {
	db *sql.DB
}

// NewResourceLinkRepository creates a new resource link repository
func NewResourceLinkRepository(db *sql.DB) *ResourceLinkRepository {
	return &ResourceLinkRepository{db: db}
}

// Create links two resources. Existing links are kept.
func (r *ResourceLinkRepository) Create(ctx context.Context, fromType string, fromID int64, toType string, toID int64, name string) error {
	_, err := database.Conn(ctx, r.db).ExecContext(ctx, `
		INSERT INTO resource_links (from_type, from_id, to_type, to_id, name)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT DO NOTHING
	`, fromType, fromID, toType, toID, name)
	if err != nil {
		return fmt.Errorf("failed to create resource link: %w", err)
	}
	return nil
}

// Linked reports whether a resource has a link with the given name in
// either direction
func (r *ResourceLinkRepository) Linked(ctx context.Context, resourceType string, resourceID int64, name string) (bool, error) {
	var exists bool
	err := database.Conn(ctx, r.db).QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM resource_links
			WHERE name = $3
			  AND ((from_type = $1 AND from_id = $2) OR (to_type = $1 AND to_id = $2))
		)
	`, resourceType, resourceID, name).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check resource link: %w", err)
	}
	return exists, nil
}
