package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"questions/internal/config"
	"questions/internal/logger"
	"questions/internal/middleware"
	"questions/internal/models"
	"questions/internal/search"
	"questions/internal/service"
)

// OrderSeedCookie keeps the random listing order stable for a visitor
const OrderSeedCookie = "questions_order_seed"

// QuestionCommands runs the question level commands
type QuestionCommands interface {
	UpdateScope(ctx context.Context, componentID, scopeID int64, ids []int64, userID int64) (*service.TaxonomyUpdateResult, error)
	UpdateCategory(ctx context.Context, componentID, categoryID int64, ids []int64, userID int64) (*service.TaxonomyUpdateResult, error)
	Publish(ctx context.Context, questionID, userID int64) (*models.Question, error)
	Withdraw(ctx context.Context, questionID, userID int64) (*models.Question, error)
	UpdateQuestion(ctx context.Context, questionID, userID int64, form service.QuestionForm) (*models.Question, error)
	CreateOfficial(ctx context.Context, componentID, userID int64, form service.OfficialQuestionForm) (*models.Question, error)
}

// QuestionSearcher lists questions
type QuestionSearcher interface {
	Search(ctx context.Context, req search.Request, settings config.ComponentSettings) (*search.Result, error)
	SearchAdmin(ctx context.Context, req search.AdminRequest) (*search.Result, error)
}

// SettingsProvider resolves component settings
type SettingsProvider interface {
	For(componentID int64) config.ComponentSettings
}

// ScopeRequest moves questions to a scope
type ScopeRequest struct {
	ScopeID     int64   `json:"scope_id"`
	QuestionIDs []int64 `json:"question_ids"`
}

// CategoryRequest moves questions to a category
type CategoryRequest struct {
	CategoryID  int64   `json:"category_id"`
	QuestionIDs []int64 `json:"question_ids"`
}

// SearchResponse is one page of a question listing
type SearchResponse struct {
	Questions []QuestionView `json:"questions"`
	Total     int            `json:"total"`
	Page      int            `json:"page"`
	PerPage   int            `json:"per_page"`
	Order     search.Order   `json:"order,omitempty"`
}

// QuestionHandler handles question requests
type QuestionHandler struct {
	commands   QuestionCommands
	questions  QuestionLookup
	searcher   QuestionSearcher
	components middleware.ComponentLookup
	settings   SettingsProvider
}

// NewQuestionHandler creates a new question handler
func NewQuestionHandler(
	commands QuestionCommands,
	questions QuestionLookup,
	searcher QuestionSearcher,
	components middleware.ComponentLookup,
	settings SettingsProvider,
) *QuestionHandler {
	return &QuestionHandler{
		commands:   commands,
		questions:  questions,
		searcher:   searcher,
		components: components,
		settings:   settings,
	}
}

// Search lists the published questions of a component
// @Summary List questions
// @Description Filter, order and paginate the published questions of a component
// @Tags Questions
// @Produce json
// @Param componentID path int true "Component ID"
// @Param search_text query string false "Text in title, body or reference"
// @Param origin query []string false "official, citizens, user_group, meeting" collectionFormat(multi)
// @Param activity query string false "all, my_questions, voted"
// @Param state query []string false "accepted, rejected, evaluating, not_answered, withdrawn" collectionFormat(multi)
// @Param scope_id query []string false "Scope ids or global" collectionFormat(multi)
// @Param category_id query []string false "Category ids or without" collectionFormat(multi)
// @Param related_to query string false "Linked resource type"
// @Param order query string false "Listing order"
// @Param page query int false "Page, from 1"
// @Param per_page query int false "Page size, at most 100"
// @Success 200 {object} SearchResponse
// @Failure 400 {object} ErrorResponse "Invalid filter"
// @Failure 404 {object} ErrorResponse "Component not found"
// @Router /components/{componentID}/questions [get]
func (h *QuestionHandler) Search(w http.ResponseWriter, r *http.Request) {
	componentID, err := pathID(r, middleware.ComponentIDParam)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid component ID")
		return
	}
	if _, err := h.components.GetByID(r.Context(), componentID); err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	query := r.URL.Query()
	filter := search.Filter{
		ComponentID: componentID,
		SearchText:  query.Get("search_text"),
		Origin:      query["origin"],
		Activity:    query.Get("activity"),
		States:      query["state"],
		ScopeIDs:    query["scope_id"],
		CategoryIDs: query["category_id"],
		RelatedTo:   query.Get("related_to"),
	}
	if id, ok := middleware.GetIdentity(r); ok {
		filter.CurrentUserID = id.UserID
	}

	result, err := h.searcher.Search(r.Context(), search.Request{
		Filter:  filter,
		Order:   search.Order(query.Get("order")),
		Page:    atoi(query.Get("page")),
		PerPage: atoi(query.Get("per_page")),
		Session: orderSeed(w, r),
	}, h.settings.For(componentID))
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, SearchResponse{
		Questions: publicViews(result.Questions),
		Total:     result.Total,
		Page:      result.Page,
		PerPage:   result.PerPage,
		Order:     result.Order,
	})
}

// AdminList lists the questions of a component for the admin dashboard
// @Summary Admin question list
// @Description List questions with their internal state. Valuators only see the questions assigned to them.
// @Tags Questions
// @Produce json
// @Security BearerAuth
// @Param componentID path int true "Component ID"
// @Param state query string false "Internal state"
// @Param state_published query int false "0 emendations, 1 published answers, 2 answered but not published"
// @Param valuator_role_id query int false "Assigned valuator role"
// @Param is_emendation query bool false "Only emendations or only plain questions"
// @Param q query string false "Id or title"
// @Param sort query string false "id, valuation_assignments_count_asc, valuation_assignments_count_desc"
// @Param page query int false "Page, from 1"
// @Param per_page query int false "Page size, at most 100"
// @Success 200 {object} SearchResponse
// @Failure 400 {object} ErrorResponse "Invalid filter"
// @Failure 403 {object} ErrorResponse "Permission denied"
// @Router /admin/components/{componentID}/questions [get]
func (h *QuestionHandler) AdminList(w http.ResponseWriter, r *http.Request) {
	ca, ok := componentActor(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	filter := search.AdminFilter{
		ComponentID:    ca.Component.ID,
		State:          query.Get("state"),
		ValuatorRoleID: int64(atoi(query.Get("valuator_role_id"))),
		Text:           query.Get("q"),
	}
	if v := query.Get("state_published"); v != "" {
		bucket, err := strconv.Atoi(v)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid state_published")
			return
		}
		filter.StatePublished = &bucket
	}
	if v := query.Get("is_emendation"); v != "" {
		emendation, err := strconv.ParseBool(v)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid is_emendation")
			return
		}
		filter.IsEmendation = &emendation
	}
	if !ca.Actor.SpaceAdmin() && ca.Actor.HasRole(models.RoleValuator) {
		filter.AssignedToRoleIDs = append([]int64{}, ca.Actor.ValuatorRoleIDs()...)
	}

	result, err := h.searcher.SearchAdmin(r.Context(), search.AdminRequest{
		Filter:  filter,
		Sort:    search.AdminSort(query.Get("sort")),
		Page:    atoi(query.Get("page")),
		PerPage: atoi(query.Get("per_page")),
	})
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, SearchResponse{
		Questions: adminViews(result.Questions),
		Total:     result.Total,
		Page:      result.Page,
		PerPage:   result.PerPage,
	})
}

// UpdateScope moves the selected questions to a scope
// @Summary Update scope
// @Description Move questions to a scope. Questions already in the scope are reported as errored.
// @Tags Questions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param componentID path int true "Component ID"
// @Param selection body ScopeRequest true "Scope and questions"
// @Success 200 {object} service.TaxonomyUpdateResult
// @Failure 400 {object} ErrorResponse "No questions selected"
// @Failure 422 {object} ErrorResponse "Invalid scope"
// @Failure 500 {object} PartialTaxonomyResponse "Stopped after a write failure"
// @Router /admin/components/{componentID}/questions/update_scope [post]
func (h *QuestionHandler) UpdateScope(w http.ResponseWriter, r *http.Request) {
	ca, ok := componentActor(w, r)
	if !ok {
		return
	}

	var req ScopeRequest
	if !decodeJSON(w, r, maxBodyBytes, &req) {
		return
	}

	result, err := h.commands.UpdateScope(r.Context(), ca.Component.ID, req.ScopeID, req.QuestionIDs, ca.Actor.UserID)
	respondWithTaxonomyResult(w, r, result, err)
}

// UpdateCategory moves the selected questions to a category
// @Summary Update category
// @Description Move questions to a category. Questions already in the category are reported as errored.
// @Tags Questions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param componentID path int true "Component ID"
// @Param selection body CategoryRequest true "Category and questions"
// @Success 200 {object} service.TaxonomyUpdateResult
// @Failure 400 {object} ErrorResponse "No questions selected"
// @Failure 422 {object} ErrorResponse "Invalid category"
// @Failure 500 {object} PartialTaxonomyResponse "Stopped after a write failure"
// @Router /admin/components/{componentID}/questions/update_category [post]
func (h *QuestionHandler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	ca, ok := componentActor(w, r)
	if !ok {
		return
	}

	var req CategoryRequest
	if !decodeJSON(w, r, maxBodyBytes, &req) {
		return
	}

	result, err := h.commands.UpdateCategory(r.Context(), ca.Component.ID, req.CategoryID, req.QuestionIDs, ca.Actor.UserID)
	respondWithTaxonomyResult(w, r, result, err)
}

// Publish publishes a draft
// @Summary Publish question
// @Tags Questions
// @Produce json
// @Security BearerAuth
// @Param componentID path int true "Component ID"
// @Param questionID path int true "Question ID"
// @Success 200 {object} QuestionView
// @Failure 403 {object} ErrorResponse "Not an author"
// @Failure 422 {object} ErrorResponse "Cannot be published"
// @Router /components/{componentID}/questions/{questionID}/publish [post]
func (h *QuestionHandler) Publish(w http.ResponseWriter, r *http.Request) {
	h.authorCommand(w, r, h.commands.Publish)
}

// Withdraw withdraws a published question
// @Summary Withdraw question
// @Tags Questions
// @Produce json
// @Security BearerAuth
// @Param componentID path int true "Component ID"
// @Param questionID path int true "Question ID"
// @Success 200 {object} QuestionView
// @Failure 403 {object} ErrorResponse "Not an author"
// @Failure 409 {object} ErrorResponse "Question has supports"
// @Router /components/{componentID}/questions/{questionID}/withdraw [post]
func (h *QuestionHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	h.authorCommand(w, r, h.commands.Withdraw)
}

func (h *QuestionHandler) authorCommand(w http.ResponseWriter, r *http.Request, run func(ctx context.Context, questionID, userID int64) (*models.Question, error)) {
	ca, ok := componentActor(w, r)
	if !ok {
		return
	}

	q, ok := loadQuestion(w, r, h.questions, ca.Component.ID)
	if !ok {
		return
	}

	updated, err := run(r.Context(), q.ID, ca.Actor.UserID)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, publicView(updated))
}

// Update edits an official question
// @Summary Edit question
// @Description Edit an official question that has no votes and no published answer
// @Tags Questions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param componentID path int true "Component ID"
// @Param questionID path int true "Question ID"
// @Param question body service.QuestionForm true "Question"
// @Success 200 {object} QuestionView
// @Failure 422 {object} ErrorResponse "Invalid question"
// @Router /admin/components/{componentID}/questions/{questionID} [put]
func (h *QuestionHandler) Update(w http.ResponseWriter, r *http.Request) {
	ca, ok := componentActor(w, r)
	if !ok {
		return
	}

	q, ok := loadQuestion(w, r, h.questions, ca.Component.ID)
	if !ok {
		return
	}

	var form service.QuestionForm
	if !decodeJSON(w, r, maxBodyBytes, &form) {
		return
	}

	updated, err := h.commands.UpdateQuestion(r.Context(), q.ID, ca.Actor.UserID, form)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, adminView(updated))
}

// CreateOfficial creates an official question
// @Summary Create official question
// @Description Create a published question authored by the organization or a meeting
// @Tags Questions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param componentID path int true "Component ID"
// @Param question body service.OfficialQuestionForm true "Question"
// @Success 201 {object} QuestionView
// @Failure 403 {object} ErrorResponse "Official questions disabled"
// @Failure 422 {object} ErrorResponse "Invalid question"
// @Router /admin/components/{componentID}/questions [post]
func (h *QuestionHandler) CreateOfficial(w http.ResponseWriter, r *http.Request) {
	ca, ok := componentActor(w, r)
	if !ok {
		return
	}

	var form service.OfficialQuestionForm
	if !decodeJSON(w, r, maxBodyBytes, &form) {
		return
	}

	q, err := h.commands.CreateOfficial(r.Context(), ca.Component.ID, ca.Actor.UserID, form)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, adminView(q))
}

// orderSeed returns the visitor's seed session, creating it on first visit
func orderSeed(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(OrderSeedCookie); err == nil && c.Value != "" {
		return c.Value
	}

	value := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     OrderSeedCookie,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return value
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

// PartialTaxonomyResponse reports a bulk reassignment that stopped halfway.
// The questions in Result were committed before the failure.
type PartialTaxonomyResponse struct {
	Error  string                        `json:"error"`
	Result *service.TaxonomyUpdateResult `json:"result"`
}

func respondWithTaxonomyResult(w http.ResponseWriter, r *http.Request, result *service.TaxonomyUpdateResult, err error) {
	switch {
	case err == nil:
		respondWithJSON(w, http.StatusOK, result)
	case result != nil:
		logger.FromContext(r.Context()).Error("Bulk reassignment stopped",
			"path", r.URL.Path,
			"successful", len(result.Successful),
			"error", err,
		)
		respondWithJSON(w, http.StatusInternalServerError, PartialTaxonomyResponse{Error: ErrMsgInternal, Result: result})
	default:
		respondWithServiceError(w, r, err)
	}
}
