package service

import (
	"context"
	"time"

	"questions/internal/logger"
	"questions/internal/models"
	"questions/internal/repository"
)

// MetricsStore computes component metrics
type MetricsStore interface {
	AcceptedQuestionsByCategory(ctx context.Context, componentID int64, day time.Time) ([]models.CategoryMetric, error)
	VotesByCategory(ctx context.Context, componentID int64, day time.Time) ([]models.CategoryMetric, error)
	ReconcileCounters(ctx context.Context) ([]repository.CounterDrift, error)
}

// ComponentMetrics is the per category activity of a component up to a day
type ComponentMetrics struct {
	Day               string                  `json:"day"`
	AcceptedQuestions []models.CategoryMetric `json:"accepted_questions"`
	Votes             []models.CategoryMetric `json:"votes"`
}

// MetricsService reports component metrics and repairs counter caches
type MetricsService struct {
	store MetricsStore
}

// NewMetricsService creates a new metrics service
func NewMetricsService(store MetricsStore) *MetricsService {
	return &MetricsService{store: store}
}

// ForComponent computes the metrics of a component for the given day
func (s *MetricsService) ForComponent(ctx context.Context, componentID int64, day time.Time) (*ComponentMetrics, error) {
	accepted, err := s.store.AcceptedQuestionsByCategory(ctx, componentID, day)
	if err != nil {
		return nil, err
	}
	votes, err := s.store.VotesByCategory(ctx, componentID, day)
	if err != nil {
		return nil, err
	}
	return &ComponentMetrics{
		Day:               day.Format("2006-01-02"),
		AcceptedQuestions: accepted,
		Votes:             votes,
	}, nil
}

// ReconcileCounters rewrites counter caches that drifted from their child
// rows and logs every repaired value
func (s *MetricsService) ReconcileCounters(ctx context.Context) ([]repository.CounterDrift, error) {
	drifts, err := s.store.ReconcileCounters(ctx)
	if err != nil {
		return nil, err
	}

	log := logger.FromContext(ctx)
	for _, d := range drifts {
		log.Warn("Repaired counter cache",
			"question_id", d.QuestionID,
			"counter", d.Counter,
			"cached", d.Cached,
			"actual", d.Actual,
		)
	}
	return drifts, nil
}
