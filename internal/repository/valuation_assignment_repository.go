package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"questions/internal/database"
	"questions/internal/models"
)

// ValuationAssignmentRepository handles valuation assignment database operations
type ValuationAssignmentRepository struct {
	db *sql.DB
}

// NewValuationAssignmentRepository creates a new valuation assignment repository
func NewValuationAssignmentRepository(db *sql.DB) *ValuationAssignmentRepository {
	return &ValuationAssignmentRepository{db: db}
}

// Create assigns a valuator role to a question. It returns false without an
// error when the pair already exists, so concurrent duplicates converge on
// a single row.
func (r *ValuationAssignmentRepository) Create(ctx context.Context, a *models.ValuationAssignment) (bool, error) {
	query := `
		INSERT INTO valuation_assignments (question_id, valuator_role_id)
		VALUES ($1, $2)
		ON CONFLICT (question_id, valuator_role_id) DO NOTHING
		RETURNING id, created_at
	`

	err := database.Conn(ctx, r.db).QueryRowContext(ctx, query, a.QuestionID, a.ValuatorRoleID).
		Scan(&a.ID, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to create valuation assignment: %w", err)
	}

	return true, nil
}

// Delete removes the assignment of a valuator role to a question and
// returns the removed row, or nil when there was none
func (r *ValuationAssignmentRepository) Delete(ctx context.Context, questionID, valuatorRoleID int64) (*models.ValuationAssignment, error) {
	query := `
		DELETE FROM valuation_assignments
		WHERE question_id = $1 AND valuator_role_id = $2
		RETURNING id, question_id, valuator_role_id, created_at
	`

	a := &models.ValuationAssignment{}
	err := database.Conn(ctx, r.db).QueryRowContext(ctx, query, questionID, valuatorRoleID).
		Scan(&a.ID, &a.QuestionID, &a.ValuatorRoleID, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to delete valuation assignment: %w", err)
	}

	return a, nil
}

// CountByQuestion returns how many assignments exist for the pair. Used by
// tests and the reconcile job.
func (r *ValuationAssignmentRepository) CountByQuestion(ctx context.Context, questionID int64) (int, error) {
	var count int
	err := database.Conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM valuation_assignments WHERE question_id = $1`, questionID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count valuation assignments: %w", err)
	}
	return count, nil
}

// ValuatorUserIDs returns the users behind the valuator roles assigned to a question
func (r *ValuationAssignmentRepository) ValuatorUserIDs(ctx context.Context, questionID int64) ([]int64, error) {
	rows, err := database.Conn(ctx, r.db).QueryContext(ctx, `
		SELECT DISTINCT sr.user_id
		FROM valuation_assignments va
		JOIN space_roles sr ON sr.id = va.valuator_role_id
		WHERE va.question_id = $1
		ORDER BY sr.user_id
	`, questionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get valuators: %w", err)
	}
	defer rows.Close()

	return scanIDs(rows)
}

// AssignedRoleIDs returns, per question, the valuator role ids assigned to it
func (r *ValuationAssignmentRepository) AssignedRoleIDs(ctx context.Context, questionIDs []int64) (map[int64][]int64, error) {
	rows, err := database.Conn(ctx, r.db).QueryContext(ctx, `
		SELECT question_id, valuator_role_id
		FROM valuation_assignments
		WHERE question_id = ANY($1)
		ORDER BY question_id, valuator_role_id
	`, pq.Array(questionIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to get valuation assignments: %w", err)
	}
	defer rows.Close()

	result := make(map[int64][]int64)
	for rows.Next() {
		var questionID, roleID int64
		if err := rows.Scan(&questionID, &roleID); err != nil {
			return nil, fmt.Errorf("failed to scan valuation assignment: %w", err)
		}
		result[questionID] = append(result[questionID], roleID)
	}

	return result, rows.Err()
}
