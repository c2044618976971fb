package service

import (
	"context"
	"errors"
	"slices"

	"go.opentelemetry.io/otel/attribute"

	"questions/internal/logger"
	"questions/internal/models"
	"questions/internal/permissions"
	"questions/internal/repository"
)

// AssignmentResult reports a bulk valuator assignment
type AssignmentResult struct {
	Assigned        []int64 `json:"assigned"`
	AlreadyAssigned []int64 `json:"already_assigned"`
}

// UnassignmentResult reports a bulk valuator unassignment
type UnassignmentResult struct {
	Unassigned  []int64 `json:"unassigned"`
	NotAssigned []int64 `json:"not_assigned"`
}

// ValuationService assigns valuators to questions
type ValuationService struct {
	deps Deps
}

// NewValuationService creates a new valuation service
func NewValuationService(deps Deps) *ValuationService {
	return &ValuationService{deps: deps}
}

// Assign links the valuator role to every selected question of the
// component. Existing links are reported, never duplicated.
func (s *ValuationService) Assign(ctx context.Context, componentID, valuatorRoleID int64, ids []int64, userID int64) (result *AssignmentResult, err error) {
	ctx, end := s.deps.Telemetry.Start(ctx, "assign_valuator",
		attribute.Int64("component_id", componentID),
		attribute.Int64("valuator_role_id", valuatorRoleID),
	)
	defer func() { end(err) }()

	questions, err := s.prepare(ctx, componentID, valuatorRoleID, ids)
	if err != nil {
		return nil, err
	}

	result = &AssignmentResult{Assigned: []int64{}, AlreadyAssigned: []int64{}}
	err = s.deps.Tx.WithTx(ctx, func(ctx context.Context) error {
		for _, q := range questions {
			a := &models.ValuationAssignment{QuestionID: q.ID, ValuatorRoleID: valuatorRoleID}
			created, err := s.deps.Assignments.Create(ctx, a)
			if err != nil {
				return err
			}
			if !created {
				result.AlreadyAssigned = append(result.AlreadyAssigned, q.ID)
				continue
			}

			changes := models.Changeset{}
			changes.Add("question_id", nil, q.ID)
			changes.Add("valuator_role_id", nil, valuatorRoleID)
			err = s.deps.Trace.Record(ctx, Trace{
				Action:       "create",
				ResourceType: resourceValuationAssignment,
				ResourceID:   a.ID,
				ComponentID:  &componentID,
				UserID:       userID,
				Changes:      changes,
				Event:        "create",
				Extra:        map[string]any{"question_id": q.ID},
			})
			if err != nil {
				return err
			}
			result.Assigned = append(result.Assigned, q.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.FromContext(ctx).Info("Valuator assigned",
		"valuator_role_id", valuatorRoleID,
		"assigned", len(result.Assigned),
		"already_assigned", len(result.AlreadyAssigned),
	)
	return result, nil
}

// Unassign removes the valuator role from the selected questions. Space
// admins may remove any role; everyone else only their own valuator role.
func (s *ValuationService) Unassign(ctx context.Context, componentID, valuatorRoleID int64, ids []int64, actor permissions.Actor) (result *UnassignmentResult, err error) {
	ctx, end := s.deps.Telemetry.Start(ctx, "unassign_valuator",
		attribute.Int64("component_id", componentID),
		attribute.Int64("valuator_role_id", valuatorRoleID),
	)
	defer func() { end(err) }()

	if !actor.SpaceAdmin() && !slices.Contains(actor.ValuatorRoleIDs(), valuatorRoleID) {
		return nil, ErrPermissionDenied
	}

	questions, err := s.prepare(ctx, componentID, valuatorRoleID, ids)
	if err != nil {
		return nil, err
	}

	result = &UnassignmentResult{Unassigned: []int64{}, NotAssigned: []int64{}}
	err = s.deps.Tx.WithTx(ctx, func(ctx context.Context) error {
		for _, q := range questions {
			removed, err := s.deps.Assignments.Delete(ctx, q.ID, valuatorRoleID)
			if err != nil {
				return err
			}
			if removed == nil {
				result.NotAssigned = append(result.NotAssigned, q.ID)
				continue
			}

			changes := models.Changeset{}
			changes.Add("question_id", q.ID, nil)
			changes.Add("valuator_role_id", valuatorRoleID, nil)
			err = s.deps.Trace.Record(ctx, Trace{
				Action:       "delete",
				ResourceType: resourceValuationAssignment,
				ResourceID:   removed.ID,
				ComponentID:  &componentID,
				UserID:       actor.UserID,
				Changes:      changes,
				Event:        "destroy",
				Extra:        map[string]any{"question_id": q.ID},
			})
			if err != nil {
				return err
			}
			result.Unassigned = append(result.Unassigned, q.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.FromContext(ctx).Info("Valuator unassigned",
		"valuator_role_id", valuatorRoleID,
		"unassigned", len(result.Unassigned),
		"not_assigned", len(result.NotAssigned),
	)
	return result, nil
}

// prepare validates the role against the component's space and loads the
// selected questions of the component
func (s *ValuationService) prepare(ctx context.Context, componentID, valuatorRoleID int64, ids []int64) ([]*models.Question, error) {
	ids = dedupeIDs(ids)
	if len(ids) == 0 {
		return nil, ErrNoQuestionsSelected
	}

	component, err := s.deps.Components.GetByID(ctx, componentID)
	if errors.Is(err, repository.ErrComponentNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	role, err := s.deps.Roles.GetByID(ctx, valuatorRoleID)
	if errors.Is(err, repository.ErrSpaceRoleNotFound) {
		return nil, invalid("valuator_role_id", "unknown valuator role")
	}
	if err != nil {
		return nil, err
	}
	if role.Role != models.RoleValuator || role.SpaceID != component.SpaceID {
		return nil, invalid("valuator_role_id", "is not a valuator of this space")
	}

	questions, err := s.deps.Questions.ListByIDs(ctx, componentID, ids)
	if err != nil {
		return nil, err
	}
	if len(questions) == 0 {
		return nil, ErrNoQuestionsSelected
	}
	return questions, nil
}
