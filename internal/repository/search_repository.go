package repository

import (
	"context"
	"fmt"

	"questions/internal/models"
)

// SearchQuery is a question listing prepared by the search package. Where
// and OrderBy reference the questions table as q and use Args positionally.
type SearchQuery struct {
	Where   string
	Args    []any
	OrderBy string
	// Seed is passed to setseed before the page query when set
	Seed   *float64
	Limit  int
	Offset int
}

// CountMatching counts the questions matching the query
func (r *QuestionRepository) CountMatching(ctx context.Context, sq SearchQuery) (int, error) {
	query := `SELECT COUNT(*) FROM questions q WHERE ` + sq.Where

	var count int
	if err := r.db.QueryRowContext(ctx, query, sq.Args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count questions: %w", err)
	}
	return count, nil
}

// FindMatching returns one page of the questions matching the query.
// Seeded queries run on a dedicated connection so setseed and random()
// share a session.
func (r *QuestionRepository) FindMatching(ctx context.Context, sq SearchQuery) ([]*models.Question, error) {
	args := append([]any{}, sq.Args...)
	args = append(args, sq.Limit, sq.Offset)
	query := fmt.Sprintf(`
		SELECT %s
		FROM questions q
		WHERE %s
		ORDER BY %s
		LIMIT $%d OFFSET $%d
	`, questionColumns, sq.Where, sq.OrderBy, len(args)-1, len(args))

	if sq.Seed == nil {
		return r.list(ctx, query, args...)
	}

	conn, err := r.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, `SELECT setseed($1)`, *sq.Seed); err != nil {
		return nil, fmt.Errorf("failed to seed random order: %w", err)
	}

	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list questions: %w", err)
	}
	defer rows.Close()

	var questions []*models.Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan question: %w", err)
		}
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate questions: %w", err)
	}

	if err := r.loadAssociations(ctx, questions); err != nil {
		return nil, err
	}
	return questions, nil
}
