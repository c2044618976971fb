package service

import (
	"context"
	"fmt"

	"questions/internal/logger"
	"questions/internal/models"
)

// Action log visibilities
const (
	VisibilityAdminOnly  = "admin-only"
	VisibilityPublicOnly = "public-only"
	VisibilityAll        = "all"
)

// Trace describes one audited change
type Trace struct {
	Action       string
	ResourceType string
	ResourceID   int64
	ComponentID  *int64
	UserID       int64
	// Changes becomes one version row. Leave nil to skip versioning.
	Changes    models.Changeset
	Event      string
	Visibility string
	Extra      map[string]any
}

// TraceabilityService records versions and action logs
type TraceabilityService struct {
	versions VersionStore
	logs     ActionLogStore
}

// NewTraceabilityService creates a new traceability service
func NewTraceabilityService(versions VersionStore, logs ActionLogStore) *TraceabilityService {
	return &TraceabilityService{
		versions: versions,
		logs:     logs,
	}
}

// Record writes the version (when there are changes) and the action log
// entry pointing at it. It runs in the caller's transaction.
func (s *TraceabilityService) Record(ctx context.Context, t Trace) error {
	var versionID *int64
	if len(t.Changes) > 0 {
		event := t.Event
		if event == "" {
			event = "update"
		}
		v := &models.Version{
			ItemType:      t.ResourceType,
			ItemID:        t.ResourceID,
			Event:         event,
			Whodunnit:     actor(t.UserID),
			ObjectChanges: t.Changes,
		}
		if err := s.versions.Create(ctx, v); err != nil {
			return fmt.Errorf("failed to record version: %w", err)
		}
		versionID = &v.ID
	}

	visibility := t.Visibility
	if visibility == "" {
		visibility = VisibilityAdminOnly
	}

	entry := &models.ActionLog{
		UserID:       actor(t.UserID),
		Action:       t.Action,
		ResourceType: t.ResourceType,
		ResourceID:   t.ResourceID,
		ComponentID:  t.ComponentID,
		Visibility:   visibility,
		Extra:        models.JSONMap(t.Extra),
		VersionID:    versionID,
	}
	if err := s.logs.Create(ctx, entry); err != nil {
		return fmt.Errorf("failed to record action log: %w", err)
	}

	logger.FromContext(ctx).Debug("Recorded action",
		"action", t.Action,
		"resource_type", t.ResourceType,
		"resource_id", t.ResourceID,
		"versioned", versionID != nil,
	)

	return nil
}

// Version writes a version row without an action log
func (s *TraceabilityService) Version(ctx context.Context, itemType string, itemID, userID int64, event string, changes models.Changeset) error {
	v := &models.Version{
		ItemType:      itemType,
		ItemID:        itemID,
		Event:         event,
		Whodunnit:     actor(userID),
		ObjectChanges: changes,
	}
	if err := s.versions.Create(ctx, v); err != nil {
		return fmt.Errorf("failed to record version: %w", err)
	}
	return nil
}

func actor(userID int64) *int64 {
	if userID == 0 {
		return nil
	}
	return &userID
}
