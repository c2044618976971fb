package service

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrPermissionDenied    = errors.New("permission denied")
	ErrHasSupports         = errors.New("question has supports")
	ErrScopeRequired       = errors.New("scope is required")
	ErrScopeNotFound       = errors.New("scope not found")
	ErrCategoryRequired    = errors.New("category is required")
	ErrCategoryNotFound    = errors.New("category not found")
	ErrNoQuestionsSelected = errors.New("no questions selected")
	ErrNothingToPublish    = errors.New("no question matches the selection")
	ErrFeatureDisabled     = errors.New("feature is disabled for this component")
)

// ValidationError is returned when a command payload fails a business rule.
// Nothing has been written when it is returned.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// EditFailures collects the per question failures of a participatory text
// update. The whole batch is rolled back when it is returned.
type EditFailures map[int64]string

func (e EditFailures) Error() string {
	return fmt.Sprintf("%d participatory text edits failed", len(e))
}
