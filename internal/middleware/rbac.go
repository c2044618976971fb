package middleware

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"questions/internal/logger"
	"questions/internal/models"
	"questions/internal/permissions"
	"questions/internal/repository"
)

// ComponentLookup loads components
type ComponentLookup interface {
	GetByID(ctx context.Context, id int64) (*models.Component, error)
}

// RoleLookup loads the space roles of a user
type RoleLookup interface {
	ListForUser(ctx context.Context, spaceID, userID int64) ([]models.SpaceRole, error)
}

// ComponentIDParam is the path parameter naming the component
const ComponentIDParam = "componentID"

// RBACMiddleware resolves the caller's roles in the space owning the
// requested component
type RBACMiddleware struct {
	components ComponentLookup
	roles      RoleLookup
}

// NewRBACMiddleware creates a new RBAC middleware
func NewRBACMiddleware(components ComponentLookup, roles RoleLookup) *RBACMiddleware {
	return &RBACMiddleware{
		components: components,
		roles:      roles,
	}
}

// ComponentActor bundles the resolved actor with its component
type ComponentActor struct {
	Actor     permissions.Actor
	Component *models.Component
}

// LoadActor resolves the actor for {componentID} and stores it in the context
func (m *RBACMiddleware) LoadActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r, ok := m.resolve(w, r)
		if !ok {
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequirePermission checks a component level action. Actions that depend
// on the question, like answering, are refined by the handler.
func (m *RBACMiddleware) RequirePermission(action permissions.Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r, ok := m.resolve(w, r)
			if !ok {
				return
			}

			ca, _ := GetComponentActor(r)
			if !permissions.Can(ca.Actor, action, permissions.Subject{}) {
				logger.FromContext(r.Context()).Warn("Permission denied",
					"action", action,
					"component_id", ca.Component.ID,
				)
				respondWithError(w, http.StatusForbidden, "Insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// resolve returns r with the actor stored in its context. It writes the
// error response and returns false when the request cannot continue.
func (m *RBACMiddleware) resolve(w http.ResponseWriter, r *http.Request) (*http.Request, bool) {
	id, ok := GetIdentity(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return r, false
	}

	componentID, err := strconv.ParseInt(r.PathValue(ComponentIDParam), 10, 64)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid component ID")
		return r, false
	}

	component, err := m.components.GetByID(r.Context(), componentID)
	if err != nil {
		if errors.Is(err, repository.ErrComponentNotFound) {
			respondWithError(w, http.StatusNotFound, "Component not found")
			return r, false
		}
		logger.FromContext(r.Context()).Error("Failed to load component", "component_id", componentID, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to load component")
		return r, false
	}

	roles, err := m.roles.ListForUser(r.Context(), component.SpaceID, id.UserID)
	if err != nil {
		logger.FromContext(r.Context()).Error("Failed to get space roles", "space_id", component.SpaceID, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to get user roles")
		return r, false
	}

	ca := ComponentActor{
		Actor:     permissions.Actor{UserID: id.UserID, Admin: id.Admin, SpaceRoles: roles},
		Component: component,
	}
	return r.WithContext(context.WithValue(r.Context(), actorKey, ca)), true
}

// GetComponentActor retrieves the actor stored by LoadActor or RequirePermission
func GetComponentActor(r *http.Request) (ComponentActor, bool) {
	ca, ok := r.Context().Value(actorKey).(ComponentActor)
	return ca, ok
}
