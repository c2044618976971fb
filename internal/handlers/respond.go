package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"questions/internal/logger"
	"questions/internal/middleware"
	"questions/internal/models"
	"questions/internal/repository"
	"questions/internal/search"
	"questions/internal/service"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error    string           `json:"error"`
	Field    string           `json:"field,omitempty"`
	Failures map[int64]string `json:"failures,omitempty"`
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = JSONResponse(w, payload)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, ErrorResponse{Error: message})
}

// respondWithServiceError maps command errors to status codes. Unknown
// errors are logged and hidden behind a 500.
func respondWithServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var validation *service.ValidationError
	var failures service.EditFailures

	switch {
	case errors.As(err, &validation):
		respondWithJSON(w, http.StatusUnprocessableEntity, ErrorResponse{Error: validation.Message, Field: validation.Field})
	case errors.As(err, &failures):
		respondWithJSON(w, http.StatusUnprocessableEntity, ErrorResponse{Error: failures.Error(), Failures: failures})
	case errors.Is(err, service.ErrNotFound),
		errors.Is(err, repository.ErrQuestionNotFound),
		errors.Is(err, repository.ErrComponentNotFound),
		errors.Is(err, repository.ErrAmendmentNotFound):
		respondWithError(w, http.StatusNotFound, ErrMsgNotFound)
	case errors.Is(err, service.ErrPermissionDenied):
		respondWithError(w, http.StatusForbidden, ErrMsgPermissionDenied)
	case errors.Is(err, service.ErrFeatureDisabled):
		respondWithError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrHasSupports):
		respondWithError(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrNoQuestionsSelected),
		errors.Is(err, search.ErrInvalidFilter):
		respondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrScopeRequired),
		errors.Is(err, service.ErrScopeNotFound),
		errors.Is(err, service.ErrCategoryRequired),
		errors.Is(err, service.ErrCategoryNotFound),
		errors.Is(err, service.ErrNothingToPublish):
		respondWithError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		logger.FromContext(r.Context()).Error("Request failed", "path", r.URL.Path, "error", err)
		respondWithError(w, http.StatusInternalServerError, ErrMsgInternal)
	}
}

// decodeJSON reads a JSON body of at most limit bytes into dst
func decodeJSON(w http.ResponseWriter, r *http.Request, limit int64, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrMsgInvalidRequestBody)
		return false
	}
	return true
}

func pathID(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(r.PathValue(name), 10, 64)
}

// componentActor returns the actor stored by the RBAC middleware
func componentActor(w http.ResponseWriter, r *http.Request) (middleware.ComponentActor, bool) {
	ca, ok := middleware.GetComponentActor(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, ErrMsgUnauthorized)
	}
	return ca, ok
}

// QuestionLookup loads single questions
type QuestionLookup interface {
	GetByID(ctx context.Context, id int64) (*models.Question, error)
}

// loadQuestion loads {questionID} and makes sure it belongs to the component
func loadQuestion(w http.ResponseWriter, r *http.Request, questions QuestionLookup, componentID int64) (*models.Question, bool) {
	id, err := pathID(r, QuestionIDParam)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, ErrMsgInvalidQuestionID)
		return nil, false
	}

	q, err := questions.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrQuestionNotFound) {
			respondWithError(w, http.StatusNotFound, ErrMsgQuestionNotFound)
			return nil, false
		}
		respondWithServiceError(w, r, err)
		return nil, false
	}
	if q.ComponentID != componentID {
		respondWithError(w, http.StatusNotFound, ErrMsgQuestionNotFound)
		return nil, false
	}
	return q, true
}

// BulkRequest selects questions of a component
type BulkRequest struct {
	QuestionIDs []int64 `json:"question_ids"`
}
