package service

import (
	"errors"
	"fmt"

	"questions/internal/models"
	"questions/internal/repository"
	"questions/pkg/validator"
)

// Gamification badges
const badgeAcceptedQuestions = "accepted_questions"

// Resource types used in action logs and versions
const (
	resourceQuestion            = "question"
	resourceValuationAssignment = "valuation_assignment"
	resourceQuestionNote        = "question_note"
)

// validateForm runs the struct tag rules and converts the first failure into
// a ValidationError
func validateForm(form any) error {
	err := validator.ValidateStruct(form)
	if err == nil {
		return nil
	}
	var fe *validator.FieldError
	if errors.As(err, &fe) {
		return &ValidationError{Field: fe.Field, Message: fe.Message}
	}
	return err
}

func questionPath(q *models.Question) string {
	return fmt.Sprintf("/components/%d/questions/%d", q.ComponentID, q.ID)
}

func dedupeIDs(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id == 0 || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func ptr[T any](v T) *T {
	return &v
}

// notFound maps the repository not found errors to ErrNotFound
func notFound(err error) error {
	switch {
	case errors.Is(err, repository.ErrQuestionNotFound),
		errors.Is(err, repository.ErrComponentNotFound),
		errors.Is(err, repository.ErrAmendmentNotFound):
		return ErrNotFound
	}
	return err
}
