package service

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"

	"questions/internal/lifecycle"
	"questions/internal/logger"
	"questions/internal/models"
	"questions/internal/notify"
	"questions/internal/repository"
)

// TaxonomyUpdateResult reports a bulk scope or category update
type TaxonomyUpdateResult struct {
	Name       string  `json:"name"`
	Successful []int64 `json:"successful"`
	Errored    []int64 `json:"errored"`
}

// QuestionForm is the admin edit payload
type QuestionForm struct {
	Title      models.Translations `json:"title" validate:"required,min=15,max=150"`
	Body       models.Translations `json:"body" validate:"required"`
	Address    *string             `json:"address,omitempty"`
	Latitude   *float64            `json:"latitude,omitempty"`
	Longitude  *float64            `json:"longitude,omitempty"`
	ScopeID    *int64              `json:"scope_id,omitempty"`
	CategoryID *int64              `json:"category_id,omitempty"`
}

// OfficialQuestionForm creates a question on behalf of the organization
type OfficialQuestionForm struct {
	QuestionForm
	// MeetingID makes the meeting the author instead of the organization
	MeetingID *int64 `json:"meeting_id,omitempty"`
}

// QuestionService runs the question level commands
type QuestionService struct {
	deps Deps
}

// NewQuestionService creates a new question service
func NewQuestionService(deps Deps) *QuestionService {
	return &QuestionService{deps: deps}
}

// taxonomyUpdate describes one of the bulk reassignment commands
type taxonomyUpdate struct {
	command string
	attr    string
	nameKey string
	event   string
	target  int64
	current func(q *models.Question) *int64
	assign  func(q *models.Question, id *int64)
}

// UpdateScope moves the selected questions to scopeID. Questions already in
// the scope are reported as errored and left untouched.
func (s *QuestionService) UpdateScope(ctx context.Context, componentID, scopeID int64, ids []int64, userID int64) (*TaxonomyUpdateResult, error) {
	if scopeID == 0 {
		return nil, ErrScopeRequired
	}
	if len(dedupeIDs(ids)) == 0 {
		return nil, ErrNoQuestionsSelected
	}

	scope, err := s.deps.Taxonomy.GetScope(ctx, scopeID)
	if errors.Is(err, repository.ErrScopeNotFound) {
		return nil, ErrScopeNotFound
	}
	if err != nil {
		return nil, err
	}

	return s.bulkReassign(ctx, componentID, ids, userID, scope.Name.Default(s.deps.locale()), taxonomyUpdate{
		command: "update_scope",
		attr:    "scope_id",
		nameKey: "scope_name",
		event:   notify.EventQuestionUpdateScope,
		target:  scopeID,
		current: func(q *models.Question) *int64 { return q.ScopeID },
		assign:  func(q *models.Question, id *int64) { q.ScopeID = id },
	})
}

// UpdateCategory moves the selected questions to categoryID with the same
// contract as UpdateScope
func (s *QuestionService) UpdateCategory(ctx context.Context, componentID, categoryID int64, ids []int64, userID int64) (*TaxonomyUpdateResult, error) {
	if categoryID == 0 {
		return nil, ErrCategoryRequired
	}
	if len(dedupeIDs(ids)) == 0 {
		return nil, ErrNoQuestionsSelected
	}

	component, err := s.component(ctx, componentID)
	if err != nil {
		return nil, err
	}
	category, err := s.deps.Taxonomy.GetCategory(ctx, component.SpaceID, categoryID)
	if errors.Is(err, repository.ErrCategoryNotFound) {
		return nil, ErrCategoryNotFound
	}
	if err != nil {
		return nil, err
	}

	return s.bulkReassign(ctx, componentID, ids, userID, category.Name.Default(s.deps.locale()), taxonomyUpdate{
		command: "update_category",
		attr:    "category_id",
		nameKey: "category_name",
		event:   notify.EventQuestionUpdateCategory,
		target:  categoryID,
		current: func(q *models.Question) *int64 { return q.CategoryID },
		assign:  func(q *models.Question, id *int64) { q.CategoryID = id },
	})
}

func (s *QuestionService) bulkReassign(ctx context.Context, componentID int64, ids []int64, userID int64, name string, u taxonomyUpdate) (result *TaxonomyUpdateResult, err error) {
	ctx, end := s.deps.Telemetry.Start(ctx, u.command,
		attribute.Int64("component_id", componentID),
		attribute.Int64(u.attr, u.target),
	)
	defer func() { end(err) }()

	questions, err := s.deps.Questions.ListByIDs(ctx, componentID, dedupeIDs(ids))
	if err != nil {
		return nil, err
	}

	result = &TaxonomyUpdateResult{Name: name, Successful: []int64{}, Errored: []int64{}}
	for _, q := range questions {
		if cur := u.current(q); cur != nil && *cur == u.target {
			result.Errored = append(result.Errored, q.ID)
			continue
		}

		err := s.deps.Tx.WithTx(ctx, func(ctx context.Context) error {
			changes := models.Changeset{}
			changes.Add(u.attr, u.current(q), u.target)
			u.assign(q, ptr(u.target))

			if err := s.deps.Questions.Update(ctx, q); err != nil {
				return err
			}
			err := s.deps.Trace.Record(ctx, Trace{
				Action:       "update",
				ResourceType: resourceQuestion,
				ResourceID:   q.ID,
				ComponentID:  &q.ComponentID,
				UserID:       userID,
				Changes:      changes,
			})
			if err != nil {
				return err
			}

			if len(q.Coauthorships) == 0 {
				return nil
			}
			return s.deps.Events.Publish(ctx, notify.Event{
				Name:            u.event,
				ResourceType:    notify.ResourceQuestion,
				ResourceID:      q.ID,
				AffectedUserIDs: q.CoauthorUserIDs(),
				Extra: map[string]any{
					"question_title": q.Title.Default(s.deps.locale()),
					"question_path":  questionPath(q),
					u.nameKey:        name,
				},
			})
		})
		if err != nil {
			return result, fmt.Errorf("failed to update question %d: %w", q.ID, err)
		}
		result.Successful = append(result.Successful, q.ID)
	}

	logger.FromContext(ctx).Info("Questions reassigned",
		"command", u.command,
		"target", u.target,
		"successful", len(result.Successful),
		"errored", len(result.Errored),
	)
	return result, nil
}

// Publish turns an author's draft into a published question
func (s *QuestionService) Publish(ctx context.Context, questionID, userID int64) (q *models.Question, err error) {
	ctx, end := s.deps.Telemetry.Start(ctx, "publish_question", attribute.Int64("question_id", questionID))
	defer func() { end(err) }()

	err = s.deps.Tx.WithTx(ctx, func(ctx context.Context) error {
		var err error
		if q, err = s.question(ctx, questionID); err != nil {
			return err
		}

		gc := guardContext(q, userID)
		if !gc.IsAuthor {
			return ErrPermissionDenied
		}
		if err := lifecycle.CanPublish(gc).Error(); err != nil {
			return invalid("question", "%s", err)
		}

		now := s.deps.now()
		changes := models.Changeset{}
		changes.Add("published_at", nil, now)
		q.PublishedAt = &now

		if err := s.deps.Questions.Update(ctx, q); err != nil {
			return err
		}
		err = s.deps.Trace.Record(ctx, Trace{
			Action:       "publish",
			ResourceType: resourceQuestion,
			ResourceID:   q.ID,
			ComponentID:  &q.ComponentID,
			UserID:       userID,
			Changes:      changes,
			Visibility:   VisibilityPublicOnly,
		})
		if err != nil {
			return err
		}

		followers, err := s.deps.Questions.FollowerIDs(ctx, q.ID)
		if err != nil {
			return err
		}
		return s.deps.Events.Publish(ctx, notify.Event{
			Name:            notify.EventQuestionPublished,
			ResourceType:    notify.ResourceQuestion,
			ResourceID:      q.ID,
			AffectedUserIDs: q.CoauthorUserIDs(),
			FollowerIDs:     followers,
			Extra: map[string]any{
				"question_title": q.Title.Default(s.deps.locale()),
				"question_path":  questionPath(q),
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return q, nil
}

// Withdraw lets an author retract a question that nobody supported yet.
// The withdrawn state is visible right away.
func (s *QuestionService) Withdraw(ctx context.Context, questionID, userID int64) (q *models.Question, err error) {
	ctx, end := s.deps.Telemetry.Start(ctx, "withdraw_question", attribute.Int64("question_id", questionID))
	defer func() { end(err) }()

	err = s.deps.Tx.WithTx(ctx, func(ctx context.Context) error {
		var err error
		if q, err = s.question(ctx, questionID); err != nil {
			return err
		}

		gc := guardContext(q, userID)
		if !gc.IsAuthor {
			return ErrPermissionDenied
		}
		gc.CopiedFromComponent, err = s.deps.Links.Linked(ctx, resourceQuestion, q.ID, repository.LinkCopiedFromComponent)
		if err != nil {
			return err
		}

		if res := lifecycle.CanWithdraw(gc); !res.Allowed {
			if res.Reason == lifecycle.ReasonHasSupports {
				return ErrHasSupports
			}
			return invalid("question", "%s", res.Reason)
		}

		changes := lifecycle.Withdraw(q)
		if err := s.deps.Questions.Update(ctx, q); err != nil {
			return err
		}
		return s.deps.Trace.Record(ctx, Trace{
			Action:       "withdraw",
			ResourceType: resourceQuestion,
			ResourceID:   q.ID,
			ComponentID:  &q.ComponentID,
			UserID:       userID,
			Changes:      changes,
			Visibility:   VisibilityPublicOnly,
		})
	})
	if err != nil {
		return nil, err
	}

	logger.FromContext(ctx).Info("Question withdrawn", "question_id", q.ID)
	return q, nil
}

// UpdateQuestion applies an admin edit to an official or meeting question
// that has no votes yet
func (s *QuestionService) UpdateQuestion(ctx context.Context, questionID, userID int64, form QuestionForm) (q *models.Question, err error) {
	ctx, end := s.deps.Telemetry.Start(ctx, "update_question", attribute.Int64("question_id", questionID))
	defer func() { end(err) }()

	if err := validateForm(&form); err != nil {
		return nil, err
	}

	err = s.deps.Tx.WithTx(ctx, func(ctx context.Context) error {
		var err error
		if q, err = s.question(ctx, questionID); err != nil {
			return err
		}
		if err := lifecycle.CanAdminEdit(guardContext(q, userID)).Error(); err != nil {
			return invalid("question", "%s", err)
		}
		if err := s.checkForm(ctx, q.ComponentID, &form); err != nil {
			return err
		}

		changes := applyForm(q, &form)
		if len(changes) == 0 {
			return nil
		}
		if err := s.deps.Questions.Update(ctx, q); err != nil {
			return err
		}
		return s.deps.Trace.Record(ctx, Trace{
			Action:       "update",
			ResourceType: resourceQuestion,
			ResourceID:   q.ID,
			ComponentID:  &q.ComponentID,
			UserID:       userID,
			Changes:      changes,
		})
	})
	if err != nil {
		return nil, err
	}
	return q, nil
}

// CreateOfficial creates a published question authored by the organization,
// or by a meeting when form.MeetingID is set
func (s *QuestionService) CreateOfficial(ctx context.Context, componentID, userID int64, form OfficialQuestionForm) (q *models.Question, err error) {
	ctx, end := s.deps.Telemetry.Start(ctx, "create_official_question", attribute.Int64("component_id", componentID))
	defer func() { end(err) }()

	settings := s.deps.Settings.For(componentID)
	if !settings.OfficialQuestionsEnabled || !settings.CreationEnabled {
		return nil, ErrFeatureDisabled
	}
	if err := validateForm(&form.QuestionForm); err != nil {
		return nil, err
	}

	err = s.deps.Tx.WithTx(ctx, func(ctx context.Context) error {
		component, err := s.component(ctx, componentID)
		if err != nil {
			return err
		}
		if err := s.checkForm(ctx, componentID, &form.QuestionForm); err != nil {
			return err
		}

		now := s.deps.now()
		author := models.Coauthorship{AuthorType: models.AuthorOrganization, AuthorID: component.OrganizationID}
		if form.MeetingID != nil {
			author = models.Coauthorship{AuthorType: models.AuthorMeeting, AuthorID: *form.MeetingID}
		}
		q = &models.Question{
			ComponentID:      componentID,
			PublishedAt:      &now,
			CreatedInMeeting: form.MeetingID != nil,
			Coauthorships:    []models.Coauthorship{author},
		}
		changes := applyForm(q, &form.QuestionForm)

		if err := s.deps.Questions.Create(ctx, q); err != nil {
			return err
		}
		q.Reference = reference(component, q, now)
		if err := s.deps.Questions.SetReference(ctx, q.ID, q.Reference); err != nil {
			return err
		}
		changes.Add("published_at", nil, now)

		return s.deps.Trace.Record(ctx, Trace{
			Action:       "create",
			ResourceType: resourceQuestion,
			ResourceID:   q.ID,
			ComponentID:  &componentID,
			UserID:       userID,
			Changes:      changes,
			Event:        "create",
			Extra:        map[string]any{"official": true},
		})
	})
	if err != nil {
		return nil, err
	}

	logger.FromContext(ctx).Info("Official question created",
		"question_id", q.ID,
		"reference", q.Reference,
	)
	return q, nil
}

// checkForm runs the rules that need the component: body length and the
// existence of the chosen scope and category
func (s *QuestionService) checkForm(ctx context.Context, componentID int64, form *QuestionForm) error {
	settings := s.deps.Settings.For(componentID)
	if limit := settings.QuestionLengthMax; limit > 0 {
		for _, body := range form.Body {
			if utf8.RuneCountInString(body) > limit {
				return invalid("body", "must be at most %d characters", limit)
			}
		}
	}

	if form.ScopeID != nil {
		if _, err := s.deps.Taxonomy.GetScope(ctx, *form.ScopeID); err != nil {
			if errors.Is(err, repository.ErrScopeNotFound) {
				return invalid("scope_id", "does not exist")
			}
			return err
		}
	}
	if form.CategoryID != nil {
		component, err := s.component(ctx, componentID)
		if err != nil {
			return err
		}
		if _, err := s.deps.Taxonomy.GetCategory(ctx, component.SpaceID, *form.CategoryID); err != nil {
			if errors.Is(err, repository.ErrCategoryNotFound) {
				return invalid("category_id", "does not exist")
			}
			return err
		}
	}
	return nil
}

func applyForm(q *models.Question, form *QuestionForm) models.Changeset {
	changes := models.Changeset{}
	changes.Add("title", q.Title, form.Title)
	q.Title = form.Title
	changes.Add("body", q.Body, form.Body)
	q.Body = form.Body
	changes.Add("address", q.Address, form.Address)
	q.Address = form.Address
	changes.Add("latitude", q.Latitude, form.Latitude)
	q.Latitude = form.Latitude
	changes.Add("longitude", q.Longitude, form.Longitude)
	q.Longitude = form.Longitude
	changes.Add("scope_id", q.ScopeID, form.ScopeID)
	q.ScopeID = form.ScopeID
	changes.Add("category_id", q.CategoryID, form.CategoryID)
	q.CategoryID = form.CategoryID
	return changes
}

func reference(component *models.Component, q *models.Question, now time.Time) string {
	return fmt.Sprintf("Q-%d-%s-%d", component.ID, now.Format("2006-01"), q.ID)
}

func (s *QuestionService) question(ctx context.Context, id int64) (*models.Question, error) {
	q, err := s.deps.Questions.GetByID(ctx, id)
	if errors.Is(err, repository.ErrQuestionNotFound) {
		return nil, ErrNotFound
	}
	return q, err
}

func (s *QuestionService) component(ctx context.Context, id int64) (*models.Component, error) {
	c, err := s.deps.Components.GetByID(ctx, id)
	if errors.Is(err, repository.ErrComponentNotFound) {
		return nil, ErrNotFound
	}
	return c, err
}
