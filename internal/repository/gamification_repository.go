package repository

import (
	"context"
	"database/sql"
	"fmt"

	"questions/internal/database"
)

// Gamification subject types
const (
	SubjectUser      = "user"
	SubjectUserGroup = "user_group"
)

// GamificationRepository maintains badge scores
type GamificationRepository struct {
	db *sql.DB
}

// NewGamificationRepository creates a new gamification repository
func NewGamificationRepository(db *sql.DB) *GamificationRepository {
	return &GamificationRepository{db: db}
}

// Increment adds delta to a badge score. Scores never go below zero.
func (r *GamificationRepository) Increment(ctx context.Context, subjectType string, subjectID int64, badge string, delta int) error {
	_, err := database.Conn(ctx, r.db).ExecContext(ctx, `
		INSERT INTO gamification_scores (subject_type, subject_id, badge, value)
		VALUES ($1, $2, $3, GREATEST($4, 0))
		ON CONFLICT (subject_type, subject_id, badge)
		DO UPDATE SET value = GREATEST(gamification_scores.value + $4, 0)
	`, subjectType, subjectID, badge, delta)
	if err != nil {
		return fmt.Errorf("failed to update %s score: %w", badge, err)
	}
	return nil
}

// Score returns the current badge score of a subject
func (r *GamificationRepository) Score(ctx context.Context, subjectType string, subjectID int64, badge string) (int, error) {
	var value int
	err := database.Conn(ctx, r.db).QueryRowContext(ctx, `
		SELECT COALESCE((
			SELECT value FROM gamification_scores
			WHERE subject_type = $1 AND subject_id = $2 AND badge = $3
		), 0)
	`, subjectType, subjectID, badge).Scan(&value)
	if err != nil {
		return 0, fmt.Errorf("failed to get %s score: %w", badge, err)
	}
	return value, nil
}
