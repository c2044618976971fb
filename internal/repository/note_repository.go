package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"questions/internal/database"
	"questions/internal/models"
)

// NoteRepository handles private question note database operations
type NoteRepository struct {
	db *sql.DB
}

// NewNoteRepository creates a new note repository
func NewNoteRepository(db *sql.DB) *NoteRepository {
	return &NoteRepository{db: db}
}

// Create stores a note. notes_count is maintained by trigger.
func (r *NoteRepository) Create(ctx context.Context, note *models.QuestionNote) error {
	now := time.Now()
	err := database.Conn(ctx, r.db).QueryRowContext(ctx, `
		INSERT INTO question_notes (question_id, author_id, body, encrypted, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, note.QuestionID, note.AuthorID, note.Body, note.Encrypted, now).Scan(&note.ID)
	if err != nil {
		return fmt.Errorf("failed to create question note: %w", err)
	}
	note.CreatedAt = now
	return nil
}

// ListByQuestion returns the notes of a question, oldest first
func (r *NoteRepository) ListByQuestion(ctx context.Context, questionID int64) ([]models.QuestionNote, error) {
	rows, err := database.Conn(ctx, r.db).QueryContext(ctx, `
		SELECT id, question_id, author_id, body, encrypted, created_at
		FROM question_notes
		WHERE question_id = $1
		ORDER BY created_at, id
	`, questionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get question notes: %w", err)
	}
	defer rows.Close()

	var notes []models.QuestionNote
	for rows.Next() {
		var n models.QuestionNote
		if err := rows.Scan(&n.ID, &n.QuestionID, &n.AuthorID, &n.Body, &n.Encrypted, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan question note: %w", err)
		}
		notes = append(notes, n)
	}

	return notes, rows.Err()
}
