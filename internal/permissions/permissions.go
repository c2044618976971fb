// Package permissions decides who may run which question action.
package permissions

import (
	"slices"

	"questions/internal/models"
)

// Action names a guarded operation
type Action string

const (
	ActionAnswer           Action = "answer"
	ActionPublishAnswers   Action = "publish_answers"
	ActionAssignValuator   Action = "assign_valuator"
	ActionUnassignValuator Action = "unassign_valuator"
	ActionUpdateScope      Action = "update_scope"
	ActionUpdateCategory   Action = "update_category"
	ActionCreateNote       Action = "create_note"
	ActionListNotes        Action = "list_notes"
	ActionImportText       Action = "import_participatory_text"
	ActionUpdateText       Action = "update_participatory_text"
	ActionPublishText      Action = "publish_participatory_text"
	ActionDiscardText      Action = "discard_participatory_text"
	ActionEditQuestion     Action = "edit_question"
	ActionCreateOfficial   Action = "create_official_question"
	ActionAdminList        Action = "admin_list"
	ActionViewMetrics      Action = "view_metrics"
	ActionViewLogs         Action = "view_logs"
	ActionSyncAmendment    Action = "sync_amendment"
	ActionPublishQuestion  Action = "publish_question"
	ActionWithdraw         Action = "withdraw_question"
)

// Actor is an authenticated user with the roles it holds in the
// participatory space of the component being acted on
type Actor struct {
	UserID     int64
	Admin      bool
	SpaceRoles []models.SpaceRole
}

// HasRole reports whether the actor holds role in the space
func (a Actor) HasRole(role string) bool {
	return slices.ContainsFunc(a.SpaceRoles, func(r models.SpaceRole) bool {
		return r.Role == role
	})
}

// SpaceAdmin reports whether the actor administers the space, either as an
// organization admin or through a space admin role
func (a Actor) SpaceAdmin() bool {
	return a.Admin || a.HasRole(models.RoleAdmin)
}

// ValuatorRoleIDs returns the ids of the actor's valuator roles
func (a Actor) ValuatorRoleIDs() []int64 {
	var ids []int64
	for _, r := range a.SpaceRoles {
		if r.Role == models.RoleValuator {
			ids = append(ids, r.ID)
		}
	}
	return ids
}

// Subject carries what a rule needs to know about the target
type Subject struct {
	// AssignedToActor is true when one of the actor's valuator roles is
	// assigned to the question
	AssignedToActor bool
	// ValuatorRoleID is the role being unassigned
	ValuatorRoleID int64
}

// Can reports whether actor may perform action on subject
func Can(actor Actor, action Action, subject Subject) bool {
	if actor.UserID == 0 {
		return false
	}

	switch action {
	case ActionPublishQuestion, ActionWithdraw:
		// authorship is checked by the command
		return true
	}

	if actor.SpaceAdmin() {
		return true
	}

	switch action {
	case ActionAdminList:
		return actor.HasRole(models.RoleValuator) ||
			actor.HasRole(models.RoleCollaborator) ||
			actor.HasRole(models.RoleModerator)
	case ActionAnswer, ActionCreateNote, ActionListNotes:
		return actor.HasRole(models.RoleValuator) && subject.AssignedToActor
	case ActionUnassignValuator:
		// valuators may take themselves off a question
		return slices.Contains(actor.ValuatorRoleIDs(), subject.ValuatorRoleID)
	}
	return false
}
