package service

import (
	"context"

	"questions/internal/config"
	"questions/internal/models"
	"questions/internal/notify"
)

// QuestionStore persists questions
type QuestionStore interface {
	GetByID(ctx context.Context, id int64) (*models.Question, error)
	ListByIDs(ctx context.Context, componentID int64, ids []int64) ([]*models.Question, error)
	ListAnswerPublishable(ctx context.Context, componentID int64, ids []int64) ([]*models.Question, error)
	ListParticipatoryTextDrafts(ctx context.Context, componentID int64) ([]*models.Question, error)
	Create(ctx context.Context, q *models.Question) error
	SetReference(ctx context.Context, id int64, reference string) error
	Update(ctx context.Context, q *models.Question) error
	UpdatePosition(ctx context.Context, id int64, position int) error
	UpdateTitle(ctx context.Context, id int64, title models.Translations) error
	UpdateBody(ctx context.Context, id int64, body models.Translations) error
	CountPublished(ctx context.Context, componentID int64) (int, error)
	DeleteParticipatoryTextDrafts(ctx context.Context, componentID int64) (int64, error)
	FollowerIDs(ctx context.Context, questionID int64) ([]int64, error)
}

// AssignmentStore persists valuation assignments
type AssignmentStore interface {
	Create(ctx context.Context, a *models.ValuationAssignment) (bool, error)
	Delete(ctx context.Context, questionID, valuatorRoleID int64) (*models.ValuationAssignment, error)
	ValuatorUserIDs(ctx context.Context, questionID int64) ([]int64, error)
}

// SpaceRoleStore reads participatory space roles
type SpaceRoleStore interface {
	GetByID(ctx context.Context, id int64) (*models.SpaceRole, error)
	ListForUser(ctx context.Context, spaceID, userID int64) ([]models.SpaceRole, error)
	UserIDsByRole(ctx context.Context, spaceID int64, role string) ([]int64, error)
}

// ComponentStore reads components
type ComponentStore interface {
	GetByID(ctx context.Context, id int64) (*models.Component, error)
}

// TaxonomyStore reads scopes and categories
type TaxonomyStore interface {
	GetScope(ctx context.Context, id int64) (*models.Scope, error)
	GetCategory(ctx context.Context, spaceID, id int64) (*models.Category, error)
}

// NoteStore persists private notes
type NoteStore interface {
	Create(ctx context.Context, note *models.QuestionNote) error
	ListByQuestion(ctx context.Context, questionID int64) ([]models.QuestionNote, error)
}

// AmendmentStore persists amendments
type AmendmentStore interface {
	UpdateState(ctx context.Context, a *models.Amendment) error
}

// ActionLogStore persists action log entries
type ActionLogStore interface {
	Create(ctx context.Context, log *models.ActionLog) error
}

// VersionStore persists versions
type VersionStore interface {
	Create(ctx context.Context, v *models.Version) error
}

// ScoreStore keeps gamification scores
type ScoreStore interface {
	Increment(ctx context.Context, subjectType string, subjectID int64, badge string, delta int) error
}

// LinkStore answers provenance questions
type LinkStore interface {
	Linked(ctx context.Context, resourceType string, resourceID int64, name string) (bool, error)
}

// EventPublisher raises notifications
type EventPublisher interface {
	Publish(ctx context.Context, e notify.Event) error
}

// Encrypter protects note bodies at rest
type Encrypter interface {
	Encrypt(ctx context.Context, plaintext string, aad map[string]string) (string, error)
	Decrypt(ctx context.Context, ciphertext string, aad map[string]string) (string, error)
}

// SettingsProvider resolves component settings
type SettingsProvider interface {
	For(componentID int64) config.ComponentSettings
}
