package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"questions/internal/database"
	"questions/internal/models"
)

var (
	ErrQuestionNotFound = errors.New("question not found")
)

const questionColumns = `
	q.id, q.component_id, q.reference, q.title, q.body, q.address, q.latitude, q.longitude,
	q.scope_id, q.category_id, q.state, q.answer, q.answered_at, q.state_published_at,
	q.published_at, q.cost, q.cost_report, q.execution_period, q.position,
	q.participatory_text_level, q.created_in_meeting, q.hidden_at, q.votes_count,
	q.endorsements_count, q.notes_count, q.comments_count, q.follows_count,
	q.coauthorships_count, q.created_at, q.updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanQuestion(row rowScanner) (*models.Question, error) {
	q := &models.Question{}
	err := row.Scan(
		&q.ID,
		&q.ComponentID,
		&q.Reference,
		&q.Title,
		&q.Body,
		&q.Address,
		&q.Latitude,
		&q.Longitude,
		&q.ScopeID,
		&q.CategoryID,
		&q.State,
		&q.Answer,
		&q.AnsweredAt,
		&q.StatePublishedAt,
		&q.PublishedAt,
		&q.Cost,
		&q.CostReport,
		&q.ExecutionPeriod,
		&q.Position,
		&q.ParticipatoryTextLevel,
		&q.CreatedInMeeting,
		&q.HiddenAt,
		&q.VotesCount,
		&q.EndorsementsCount,
		&q.NotesCount,
		&q.CommentsCount,
		&q.FollowsCount,
		&q.CoauthorshipsCount,
		&q.CreatedAt,
		&q.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return q, nil
}

// QuestionRepository handles question database operations
type QuestionRepository struct {
	db *sql.DB
}

// NewQuestionRepository creates a new question repository
func NewQuestionRepository(db *sql.DB) *QuestionRepository {
	return &QuestionRepository{db: db}
}

// GetByID retrieves a question with its coauthorships and amendment
func (r *QuestionRepository) GetByID(ctx context.Context, id int64) (*models.Question, error) {
	query := `SELECT ` + questionColumns + ` FROM questions q WHERE q.id = $1`

	q, err := scanQuestion(database.Conn(ctx, r.db).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrQuestionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get question: %w", err)
	}

	if err := r.loadAssociations(ctx, []*models.Question{q}); err != nil {
		return nil, err
	}

	return q, nil
}

// ListByIDs retrieves the questions of a component among ids. Unknown ids
// and ids of other components are dropped.
func (r *QuestionRepository) ListByIDs(ctx context.Context, componentID int64, ids []int64) ([]*models.Question, error) {
	query := `
		SELECT ` + questionColumns + `
		FROM questions q
		WHERE q.component_id = $1 AND q.id = ANY($2)
		ORDER BY q.id
	`
	return r.list(ctx, query, componentID, pq.Array(ids))
}

// ListAnswerPublishable retrieves the questions among ids that are
// published, answered and whose state is not yet published
func (r *QuestionRepository) ListAnswerPublishable(ctx context.Context, componentID int64, ids []int64) ([]*models.Question, error) {
	query := `
		SELECT ` + questionColumns + `
		FROM questions q
		WHERE q.component_id = $1
		  AND q.id = ANY($2)
		  AND q.published_at IS NOT NULL
		  AND q.answered_at IS NOT NULL
		  AND q.state_published_at IS NULL
		ORDER BY q.id
	`
	return r.list(ctx, query, componentID, pq.Array(ids))
}

// ListParticipatoryTextDrafts retrieves the unpublished participatory text
// items of a component in position order
func (r *QuestionRepository) ListParticipatoryTextDrafts(ctx context.Context, componentID int64) ([]*models.Question, error) {
	query := `
		SELECT ` + questionColumns + `
		FROM questions q
		WHERE q.component_id = $1
		  AND q.published_at IS NULL
		  AND q.participatory_text_level <> ''
		ORDER BY q.position NULLS LAST, q.id
	`
	return r.list(ctx, query, componentID)
}

func (r *QuestionRepository) list(ctx context.Context, query string, args ...any) ([]*models.Question, error) {
	rows, err := database.Conn(ctx, r.db).QueryContext(ctx, query, args...)
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

// loadAssociations fills Coauthorships and Amendment for every question
func (r *QuestionRepository) loadAssociations(ctx context.Context, questions []*models.Question) error {
	if len(questions) == 0 {
		return nil
	}

	byID := make(map[int64]*models.Question, len(questions))
	ids := make([]int64, 0, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
		ids = append(ids, q.ID)
	}

	conn := database.Conn(ctx, r.db)

	rows, err := conn.QueryContext(ctx, `
		SELECT id, question_id, author_type, author_id, user_group_id, created_at
		FROM coauthorships
		WHERE question_id = ANY($1)
		ORDER BY question_id, id
	`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("failed to get coauthorships: %w", err)
	}
	for rows.Next() {
		var c models.Coauthorship
		if err := rows.Scan(&c.ID, &c.QuestionID, &c.AuthorType, &c.AuthorID, &c.UserGroupID, &c.CreatedAt); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan coauthorship: %w", err)
		}
		byID[c.QuestionID].Coauthorships = append(byID[c.QuestionID].Coauthorships, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate coauthorships: %w", err)
	}

	rows, err = conn.QueryContext(ctx, `
		SELECT id, amendable_id, emendation_id, amender_id, state, created_at, updated_at
		FROM amendments
		WHERE emendation_id = ANY($1)
	`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("failed to get amendments: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		a := &models.Amendment{}
		if err := rows.Scan(&a.ID, &a.AmendableID, &a.EmendationID, &a.AmenderID, &a.State, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return fmt.Errorf("failed to scan amendment: %w", err)
		}
		byID[a.EmendationID].Amendment = a
	}

	return rows.Err()
}

// Create inserts a question together with its coauthorships
func (r *QuestionRepository) Create(ctx context.Context, q *models.Question) error {
	query := `
		INSERT INTO questions (
			component_id, reference, title, body, address, latitude, longitude, scope_id,
			category_id, state, published_at, position, participatory_text_level,
			created_in_meeting, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING id
	`

	now := time.Now()
	conn := database.Conn(ctx, r.db)
	err := conn.QueryRowContext(ctx, query,
		q.ComponentID,
		q.Reference,
		q.Title,
		q.Body,
		q.Address,
		q.Latitude,
		q.Longitude,
		q.ScopeID,
		q.CategoryID,
		q.State,
		q.PublishedAt,
		q.Position,
		q.ParticipatoryTextLevel,
		q.CreatedInMeeting,
		now,
		now,
	).Scan(&q.ID)
	if err != nil {
		return fmt.Errorf("failed to create question: %w", err)
	}
	q.CreatedAt = now
	q.UpdatedAt = now

	for i := range q.Coauthorships {
		c := &q.Coauthorships[i]
		c.QuestionID = q.ID
		err := conn.QueryRowContext(ctx, `
			INSERT INTO coauthorships (question_id, author_type, author_id, user_group_id)
			VALUES ($1, $2, $3, $4)
			RETURNING id, created_at
		`, c.QuestionID, c.AuthorType, c.AuthorID, c.UserGroupID).Scan(&c.ID, &c.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to create coauthorship: %w", err)
		}
	}
	q.CoauthorshipsCount = len(q.Coauthorships)

	return nil
}

// SetReference stores the generated reference of a question
func (r *QuestionRepository) SetReference(ctx context.Context, id int64, reference string) error {
	_, err := database.Conn(ctx, r.db).ExecContext(ctx,
		`UPDATE questions SET reference = $1 WHERE id = $2`, reference, id)
	if err != nil {
		return fmt.Errorf("failed to set question reference: %w", err)
	}
	return nil
}

// Update writes the mutable columns of a question
func (r *QuestionRepository) Update(ctx context.Context, q *models.Question) error {
	query := `
		UPDATE questions
		SET title = $1, body = $2, address = $3, latitude = $4, longitude = $5,
		    scope_id = $6, category_id = $7, state = $8, answer = $9, answered_at = $10,
		    state_published_at = $11, published_at = $12, cost = $13, cost_report = $14,
		    execution_period = $15, updated_at = $16
		WHERE id = $17
	`

	now := time.Now()
	result, err := database.Conn(ctx, r.db).ExecContext(ctx, query,
		q.Title,
		q.Body,
		q.Address,
		q.Latitude,
		q.Longitude,
		q.ScopeID,
		q.CategoryID,
		q.State,
		q.Answer,
		q.AnsweredAt,
		q.StatePublishedAt,
		q.PublishedAt,
		q.Cost,
		q.CostReport,
		q.ExecutionPeriod,
		now,
		q.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update question: %w", err)
	}

	if n, _ := result.RowsAffected(); n == 0 {
		return ErrQuestionNotFound
	}

	q.UpdatedAt = now
	return nil
}

// UpdatePosition moves a question inside its component
func (r *QuestionRepository) UpdatePosition(ctx context.Context, id int64, position int) error {
	_, err := database.Conn(ctx, r.db).ExecContext(ctx,
		`UPDATE questions SET position = $1 WHERE id = $2`, position, id)
	if err != nil {
		return fmt.Errorf("failed to update question position: %w", err)
	}
	return nil
}

// UpdateTitle replaces the title without touching updated_at
func (r *QuestionRepository) UpdateTitle(ctx context.Context, id int64, title models.Translations) error {
	_, err := database.Conn(ctx, r.db).ExecContext(ctx,
		`UPDATE questions SET title = $1 WHERE id = $2`, title, id)
	if err != nil {
		return fmt.Errorf("failed to update question title: %w", err)
	}
	return nil
}

// UpdateBody replaces the body without touching updated_at
func (r *QuestionRepository) UpdateBody(ctx context.Context, id int64, body models.Translations) error {
	_, err := database.Conn(ctx, r.db).ExecContext(ctx,
		`UPDATE questions SET body = $1 WHERE id = $2`, body, id)
	if err != nil {
		return fmt.Errorf("failed to update question body: %w", err)
	}
	return nil
}

// CountPublished counts the published questions of a component
func (r *QuestionRepository) CountPublished(ctx context.Context, componentID int64) (int, error) {
	var count int
	err := database.Conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM questions WHERE component_id = $1 AND published_at IS NOT NULL`,
		componentID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count published questions: %w", err)
	}
	return count, nil
}

// DeleteParticipatoryTextDrafts removes every unpublished participatory text
// item of a component
func (r *QuestionRepository) DeleteParticipatoryTextDrafts(ctx context.Context, componentID int64) (int64, error) {
	result, err := database.Conn(ctx, r.db).ExecContext(ctx, `
		DELETE FROM questions
		WHERE component_id = $1 AND published_at IS NULL AND participatory_text_level <> ''
	`, componentID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete participatory text drafts: %w", err)
	}
	return result.RowsAffected()
}

// FollowerIDs returns the users following a question
func (r *QuestionRepository) FollowerIDs(ctx context.Context, questionID int64) ([]int64, error) {
	rows, err := database.Conn(ctx, r.db).QueryContext(ctx,
		`SELECT user_id FROM follows WHERE question_id = $1 ORDER BY user_id`, questionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get followers: %w", err)
	}
	defer rows.Close()

	return scanIDs(rows)
}

func scanIDs(rows *sql.Rows) ([]int64, error) {
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
