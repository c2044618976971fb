package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"questions/internal/database"
	"questions/internal/models"
)

var ErrAmendmentNotFound = errors.New("amendment not found")

// AmendmentRepository handles amendment database operations
type AmendmentRepository struct {
	db *sql.DB
}

// NewAmendmentRepository creates a new amendment repository
func NewAmendmentRepository(db *sql.DB) *AmendmentRepository {
	return &AmendmentRepository{db: db}
}

// UpdateState changes the state of the amendment wrapping an emendation
func (r *AmendmentRepository) UpdateState(ctx context.Context, a *models.Amendment) error {
	now := time.Now()
	result, err := database.Conn(ctx, r.db).ExecContext(ctx,
		`UPDATE amendments SET state = $1, updated_at = $2 WHERE id = $3`, a.State, now, a.ID)
	if err != nil {
		return fmt.Errorf("failed to update amendment: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrAmendmentNotFound
	}
	a.UpdatedAt = now
	return nil
}

// Create links an emendation to the question it amends
func (r *AmendmentRepository) Create(ctx context.Context, a *models.Amendment) error {
	err := database.Conn(ctx, r.db).QueryRowContext(ctx, `
		INSERT INTO amendments (amendable_id, emendation_id, amender_id, state)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`, a.AmendableID, a.EmendationID, a.AmenderID, a.State).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create amendment: %w", err)
	}
	return nil
}
