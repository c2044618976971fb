package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"questions/internal/database"
	"questions/internal/models"
)

// CounterDrift is a question whose cached counter disagrees with its child rows
type CounterDrift struct {
	QuestionID int64
	Counter    string
	Cached     int
	Actual     int
}

// MetricsRepository computes component metrics and repairs counter caches
type MetricsRepository struct {
	db *sql.DB
}

// NewMetricsRepository creates a new metrics repository
func NewMetricsRepository(db *sql.DB) *MetricsRepository {
	return &MetricsRepository{db: db}
}

// AcceptedQuestionsByCategory counts the published accepted questions of a
// component per category: cumulative up to day and created on day
func (r *MetricsRepository) AcceptedQuestionsByCategory(ctx context.Context, componentID int64, day time.Time) ([]models.CategoryMetric, error) {
	query := `
		SELECT q.category_id,
		       COUNT(*) AS cumulative,
		       COUNT(*) FILTER (WHERE q.published_at >= $2) AS quantity
		FROM questions q
		WHERE q.component_id = $1
		  AND q.published_at IS NOT NULL
		  AND q.published_at < $3
		  AND q.hidden_at IS NULL
		  AND q.state = 'accepted'
		  AND q.state_published_at IS NOT NULL
		  AND NOT EXISTS (SELECT 1 FROM amendments a WHERE a.emendation_id = q.id)
		GROUP BY q.category_id
		ORDER BY q.category_id NULLS FIRST
	`
	return r.categoryMetrics(ctx, query, componentID, day)
}

// VotesByCategory counts the final votes on published questions of a
// component per category: cumulative up to day and cast on day
func (r *MetricsRepository) VotesByCategory(ctx context.Context, componentID int64, day time.Time) ([]models.CategoryMetric, error) {
	query := `
		SELECT q.category_id,
		       COUNT(v.id) AS cumulative,
		       COUNT(v.id) FILTER (WHERE v.created_at >= $2) AS quantity
		FROM question_votes v
		JOIN questions q ON q.id = v.question_id
		WHERE q.component_id = $1
		  AND q.published_at IS NOT NULL
		  AND q.hidden_at IS NULL
		  AND v.temporary = FALSE
		  AND v.created_at < $3
		GROUP BY q.category_id
		ORDER BY q.category_id NULLS FIRST
	`
	return r.categoryMetrics(ctx, query, componentID, day)
}

func (r *MetricsRepository) categoryMetrics(ctx context.Context, query string, componentID int64, day time.Time) ([]models.CategoryMetric, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.AddDate(0, 0, 1)

	rows, err := database.Conn(ctx, r.db).QueryContext(ctx, query, componentID, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to compute metrics: %w", err)
	}
	defer rows.Close()

	var metrics []models.CategoryMetric
	for rows.Next() {
		var m models.CategoryMetric
		if err := rows.Scan(&m.CategoryID, &m.Cumulative, &m.Quantity); err != nil {
			return nil, fmt.Errorf("failed to scan metric: %w", err)
		}
		metrics = append(metrics, m)
	}

	return metrics, rows.Err()
}

// counterSources maps each counter cache to the query computing its live value
var counterSources = []struct {
	column string
	actual string
}{
	{"votes_count", "(SELECT COUNT(*) FROM question_votes c WHERE c.question_id = q.id AND c.temporary = FALSE)"},
	{"endorsements_count", "(SELECT COUNT(*) FROM endorsements c WHERE c.question_id = q.id)"},
	{"notes_count", "(SELECT COUNT(*) FROM question_notes c WHERE c.question_id = q.id)"},
	{"comments_count", "(SELECT COUNT(*) FROM comments c WHERE c.question_id = q.id)"},
	{"follows_count", "(SELECT COUNT(*) FROM follows c WHERE c.question_id = q.id)"},
	{"coauthorships_count", "(SELECT COUNT(*) FROM coauthorships c WHERE c.question_id = q.id)"},
}

// ReconcileCounters rewrites every counter cache that disagrees with its
// child rows and returns what it fixed
func (r *MetricsRepository) ReconcileCounters(ctx context.Context) ([]CounterDrift, error) {
	conn := database.Conn(ctx, r.db)

	var drifts []CounterDrift
	for _, src := range counterSources {
		query := fmt.Sprintf(`
			WITH live AS (
				SELECT q.id, q.%[1]s AS cached, %[2]s AS actual
				FROM questions q
			)
			UPDATE questions q
			SET %[1]s = live.actual
			FROM live
			WHERE q.id = live.id AND live.cached <> live.actual
			RETURNING q.id, live.cached, live.actual
		`, src.column, src.actual)

		rows, err := conn.QueryContext(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("failed to reconcile %s: %w", src.column, err)
		}
		for rows.Next() {
			d := CounterDrift{Counter: src.column}
			if err := rows.Scan(&d.QuestionID, &d.Cached, &d.Actual); err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to scan %s drift: %w", src.column, err)
			}
			drifts = append(drifts, d)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("failed to reconcile %s: %w", src.column, err)
		}
	}

	return drifts, nil
}
