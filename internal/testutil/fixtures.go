package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"questions/internal/models"
	"questions/internal/repository"
)

// Fixtures holds the organisation a test works in
type Fixtures struct {
	DB             *sql.DB
	OrganizationID int64
	SpaceID        int64
	ComponentID    int64
	MeetingID      int64
	UserGroupID    int64

	AdminUser       *models.User
	ValuatorUser    *models.User
	AuthorUser      *models.User
	ParticipantUser *models.User

	AdminRoleID    int64
	ValuatorRoleID int64

	ParentScopeID    int64
	ChildScopeID     int64
	ParentCategoryID int64
	ChildCategoryID  int64
}

// SetupFixtures creates an organisation with one space, one questions
// component, a two level scope and category tree and the usual users
func SetupFixtures(t *testing.T, db *sql.DB) *Fixtures {
	t.Helper()

	f := &Fixtures{DB: db}

	f.OrganizationID = insertID(t, db,
		`INSERT INTO organizations (name, host) VALUES ($1, $2) RETURNING id`,
		"Test Organization", fmt.Sprintf("org-%d.test", time.Now().UnixNano()))

	f.AdminUser = createUser(t, db, f.OrganizationID, "Admin", "admin", true)
	f.ValuatorUser = createUser(t, db, f.OrganizationID, "Valuator", "valuator", false)
	f.AuthorUser = createUser(t, db, f.OrganizationID, "Author", "author", false)
	f.ParticipantUser = createUser(t, db, f.OrganizationID, "Participant", "participant", false)

	f.UserGroupID = insertID(t, db,
		`INSERT INTO user_groups (organization_id, name) VALUES ($1, $2) RETURNING id`,
		f.OrganizationID, "Neighbours")
	mustExec(t, db,
		`INSERT INTO user_group_memberships (user_group_id, user_id) VALUES ($1, $2)`,
		f.UserGroupID, f.AuthorUser.ID)

	f.ParentScopeID = insertID(t, db,
		`INSERT INTO scopes (organization_id, name) VALUES ($1, $2) RETURNING id`,
		f.OrganizationID, models.Translations{"en": "City"})
	f.ChildScopeID = insertID(t, db,
		`INSERT INTO scopes (organization_id, parent_id, name) VALUES ($1, $2, $3) RETURNING id`,
		f.OrganizationID, f.ParentScopeID, models.Translations{"en": "District"})

	f.SpaceID = insertID(t, db,
		`INSERT INTO participatory_spaces (organization_id, title) VALUES ($1, $2) RETURNING id`,
		f.OrganizationID, models.Translations{"en": "Budget 2026"})
	f.ComponentID = insertID(t, db,
		`INSERT INTO components (space_id, name) VALUES ($1, $2) RETURNING id`,
		f.SpaceID, models.Translations{"en": "Questions"})

	f.ParentCategoryID = insertID(t, db,
		`INSERT INTO categories (space_id, name) VALUES ($1, $2) RETURNING id`,
		f.SpaceID, models.Translations{"en": "Mobility"})
	f.ChildCategoryID = insertID(t, db,
		`INSERT INTO categories (space_id, parent_id, name) VALUES ($1, $2, $3) RETURNING id`,
		f.SpaceID, f.ParentCategoryID, models.Translations{"en": "Bike lanes"})

	f.AdminRoleID = CreateSpaceRole(t, db, f.SpaceID, f.AdminUser.ID, models.RoleAdmin)
	f.ValuatorRoleID = CreateSpaceRole(t, db, f.SpaceID, f.ValuatorUser.ID, models.RoleValuator)

	f.MeetingID = insertID(t, db,
		`INSERT INTO meetings (component_id, title) VALUES ($1, $2) RETURNING id`,
		f.ComponentID, models.Translations{"en": "Town hall"})

	return f
}

// CreateSpaceRole grants a role in a space and returns the role id
func CreateSpaceRole(t *testing.T, db *sql.DB, spaceID, userID int64, role string) int64 {
	t.Helper()
	return insertID(t, db,
		`INSERT INTO space_roles (space_id, user_id, role) VALUES ($1, $2, $3) RETURNING id`,
		spaceID, userID, role)
}

// QuestionOption customises a question created by CreateQuestion
type QuestionOption func(q *models.Question)

// Published marks the question as published at the given time
func Published(at time.Time) QuestionOption {
	return func(q *models.Question) { q.PublishedAt = &at }
}

// WithState sets the stored state
func WithState(state string) QuestionOption {
	return func(q *models.Question) { q.State = &state }
}

// WithScope sets the scope
func WithScope(id int64) QuestionOption {
	return func(q *models.Question) { q.ScopeID = &id }
}

// WithCategory sets the category
func WithCategory(id int64) QuestionOption {
	return func(q *models.Question) { q.CategoryID = &id }
}

// WithTitle sets the english title
func WithTitle(title string) QuestionOption {
	return func(q *models.Question) { q.Title = models.Translations{"en": title} }
}

// AuthoredBy replaces the coauthors
func AuthoredBy(coauthors ...models.Coauthorship) QuestionOption {
	return func(q *models.Question) { q.Coauthorships = coauthors }
}

// UserAuthor is a coauthorship for a participant
func UserAuthor(userID int64) models.Coauthorship {
	return models.Coauthorship{AuthorType: models.AuthorUser, AuthorID: userID}
}

// CreateQuestion inserts a published question authored by the fixture
// author unless options say otherwise
func (f *Fixtures) CreateQuestion(t *testing.T, opts ...QuestionOption) *models.Question {
	t.Helper()

	published := time.Now().Add(-time.Hour).Truncate(time.Microsecond)
	q := &models.Question{
		ComponentID:   f.ComponentID,
		Title:         models.Translations{"en": "A question"},
		Body:          models.Translations{"en": "Why are the bike lanes so narrow?"},
		PublishedAt:   &published,
		Coauthorships: []models.Coauthorship{UserAuthor(f.AuthorUser.ID)},
	}
	for _, opt := range opts {
		opt(q)
	}

	if err := repository.NewQuestionRepository(f.DB).Create(context.Background(), q); err != nil {
		t.Fatalf("Failed to create question: %v", err)
	}
	return q
}

// Vote records a final vote
func (f *Fixtures) Vote(t *testing.T, questionID, userID int64) {
	t.Helper()
	mustExec(t, f.DB,
		`INSERT INTO question_votes (question_id, author_id) VALUES ($1, $2)`,
		questionID, userID)
}

// Amend makes emendationID an amendment of amendableID
func (f *Fixtures) Amend(t *testing.T, amendableID, emendationID, amenderID int64, state string) int64 {
	t.Helper()
	return insertID(t, f.DB,
		`INSERT INTO amendments (amendable_id, emendation_id, amender_id, state) VALUES ($1, $2, $3, $4) RETURNING id`,
		amendableID, emendationID, amenderID, state)
}

func createUser(t *testing.T, db *sql.DB, orgID int64, name, nickname string, admin bool) *models.User {
	t.Helper()

	user := &models.User{
		OrganizationID: orgID,
		Name:           name,
		Nickname:       nickname,
		Email:          nickname + "@test.com",
		Admin:          admin,
	}
	if err := repository.NewUserRepository(db).Create(context.Background(), user); err != nil {
		t.Fatalf("Failed to create user %s: %v", nickname, err)
	}
	return user
}

func insertID(t *testing.T, db *sql.DB, query string, args ...any) int64 {
	t.Helper()
	var id int64
	if err := db.QueryRow(query, args...).Scan(&id); err != nil {
		t.Fatalf("Failed to insert fixture: %v", err)
	}
	return id
}
