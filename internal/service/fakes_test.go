package service

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sort"
	"strings"
	"time"

	"questions/internal/config"
	"questions/internal/models"
	"questions/internal/notify"
	"questions/internal/repository"
)

// memDB is an in-memory stand-in for the database. WithTx snapshots the
// whole state and restores it when the function fails.
type memDB struct {
	questions   map[int64]*models.Question
	assignments map[[2]int64]models.ValuationAssignment
	roles       map[int64]models.SpaceRole
	components  map[int64]models.Component
	scopes      map[int64]models.Scope
	categories  map[int64]models.Category
	followers   map[int64][]int64
	links       map[string]bool
	notes       []models.QuestionNote
	versions    []models.Version
	logs        []models.ActionLog
	events      []models.NotificationEvent
	scores      map[string]int
	nextID      int64

	// failUpdate makes Update fail for the given question ids
	failUpdate map[int64]bool
	// writes counts question writes of any kind
	writes int
}

func newMemDB() *memDB {
	return &memDB{
		questions:   map[int64]*models.Question{},
		assignments: map[[2]int64]models.ValuationAssignment{},
		roles:       map[int64]models.SpaceRole{},
		components:  map[int64]models.Component{},
		scopes:      map[int64]models.Scope{},
		categories:  map[int64]models.Category{},
		followers:   map[int64][]int64{},
		links:       map[string]bool{},
		scores:      map[string]int{},
		failUpdate:  map[int64]bool{},
		nextID:      1000,
	}
}

type memSnapshot struct {
	questions   map[int64]*models.Question
	assignments map[[2]int64]models.ValuationAssignment
	notes       []models.QuestionNote
	versions    []models.Version
	logs        []models.ActionLog
	events      []models.NotificationEvent
	scores      map[string]int
}

type inTxKey struct{}

func (db *memDB) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(inTxKey{}) != nil {
		return fn(ctx)
	}
	snap := memSnapshot{
		questions:   cloneQuestions(db.questions),
		assignments: maps.Clone(db.assignments),
		notes:       slices.Clone(db.notes),
		versions:    slices.Clone(db.versions),
		logs:        slices.Clone(db.logs),
		events:      slices.Clone(db.events),
		scores:      maps.Clone(db.scores),
	}
	if err := fn(context.WithValue(ctx, inTxKey{}, true)); err != nil {
		db.questions = snap.questions
		db.assignments = snap.assignments
		db.notes = snap.notes
		db.versions = snap.versions
		db.logs = snap.logs
		db.events = snap.events
		db.scores = snap.scores
		return err
	}
	return nil
}

func (db *memDB) id() int64 {
	db.nextID++
	return db.nextID
}

func cloneQuestion(q *models.Question) *models.Question {
	c := *q
	c.Coauthorships = slices.Clone(q.Coauthorships)
	if q.Amendment != nil {
		a := *q.Amendment
		c.Amendment = &a
	}
	c.Title = maps.Clone(q.Title)
	c.Body = maps.Clone(q.Body)
	return &c
}

func cloneQuestions(in map[int64]*models.Question) map[int64]*models.Question {
	out := make(map[int64]*models.Question, len(in))
	for id, q := range in {
		out[id] = cloneQuestion(q)
	}
	return out
}

// add stores a question as a test fixture
func (db *memDB) add(q *models.Question) *models.Question {
	if q.ID == 0 {
		q.ID = db.id()
	}
	db.questions[q.ID] = cloneQuestion(q)
	return q
}

func (db *memDB) question(id int64) *models.Question {
	return db.questions[id]
}

func (db *memDB) eventsNamed(name string) []models.NotificationEvent {
	var out []models.NotificationEvent
	for _, e := range db.events {
		if e.EventName == name {
			out = append(out, e)
		}
	}
	return out
}

func (db *memDB) versionsOf(itemType string, id int64) []models.Version {
	var out []models.Version
	for _, v := range db.versions {
		if v.ItemType == itemType && v.ItemID == id {
			out = append(out, v)
		}
	}
	return out
}

func (db *memDB) sorted(filter func(q *models.Question) bool) []*models.Question {
	var out []*models.Question
	for _, q := range db.questions {
		if filter(q) {
			out = append(out, cloneQuestion(q))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

type memQuestions struct{ db *memDB }

func (m memQuestions) GetByID(_ context.Context, id int64) (*models.Question, error) {
	q, ok := m.db.questions[id]
	if !ok {
		return nil, repository.ErrQuestionNotFound
	}
	return cloneQuestion(q), nil
}

func (m memQuestions) ListByIDs(_ context.Context, componentID int64, ids []int64) ([]*models.Question, error) {
	return m.db.sorted(func(q *models.Question) bool {
		return q.ComponentID == componentID && slices.Contains(ids, q.ID)
	}), nil
}

func (m memQuestions) ListAnswerPublishable(_ context.Context, componentID int64, ids []int64) ([]*models.Question, error) {
	return m.db.sorted(func(q *models.Question) bool {
		return q.ComponentID == componentID && slices.Contains(ids, q.ID) &&
			q.PublishedAt != nil && q.AnsweredAt != nil && q.StatePublishedAt == nil
	}), nil
}

func (m memQuestions) ListParticipatoryTextDrafts(_ context.Context, componentID int64) ([]*models.Question, error) {
	out := m.db.sorted(func(q *models.Question) bool {
		return q.ComponentID == componentID && q.PublishedAt == nil && q.ParticipatoryTextLevel != ""
	})
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Position != nil && out[j].Position != nil && *out[i].Position < *out[j].Position
	})
	return out, nil
}

func (m memQuestions) Create(_ context.Context, q *models.Question) error {
	m.db.writes++
	q.ID = m.db.id()
	for i := range q.Coauthorships {
		q.Coauthorships[i].ID = m.db.id()
		q.Coauthorships[i].QuestionID = q.ID
	}
	q.CoauthorshipsCount = len(q.Coauthorships)
	m.db.questions[q.ID] = cloneQuestion(q)
	return nil
}

func (m memQuestions) SetReference(_ context.Context, id int64, reference string) error {
	m.db.questions[id].Reference = reference
	return nil
}

func (m memQuestions) Update(_ context.Context, q *models.Question) error {
	m.db.writes++
	if m.db.failUpdate[q.ID] {
		return fmt.Errorf("failed to update question: connection reset")
	}
	if _, ok := m.db.questions[q.ID]; !ok {
		return repository.ErrQuestionNotFound
	}
	m.db.questions[q.ID] = cloneQuestion(q)
	return nil
}

func (m memQuestions) UpdatePosition(_ context.Context, id int64, position int) error {
	m.db.writes++
	m.db.questions[id].Position = &position
	return nil
}

func (m memQuestions) UpdateTitle(_ context.Context, id int64, title models.Translations) error {
	m.db.writes++
	m.db.questions[id].Title = maps.Clone(title)
	return nil
}

func (m memQuestions) UpdateBody(_ context.Context, id int64, body models.Translations) error {
	m.db.writes++
	m.db.questions[id].Body = maps.Clone(body)
	return nil
}

func (m memQuestions) CountPublished(_ context.Context, componentID int64) (int, error) {
	return len(m.db.sorted(func(q *models.Question) bool {
		return q.ComponentID == componentID && q.PublishedAt != nil
	})), nil
}

func (m memQuestions) DeleteParticipatoryTextDrafts(_ context.Context, componentID int64) (int64, error) {
	var n int64
	for id, q := range m.db.questions {
		if q.ComponentID == componentID && q.PublishedAt == nil && q.ParticipatoryTextLevel != "" {
			delete(m.db.questions, id)
			n++
		}
	}
	return n, nil
}

func (m memQuestions) FollowerIDs(_ context.Context, questionID int64) ([]int64, error) {
	return m.db.followers[questionID], nil
}

type memAssignments struct{ db *memDB }

func (m memAssignments) Create(_ context.Context, a *models.ValuationAssignment) (bool, error) {
	key := [2]int64{a.QuestionID, a.ValuatorRoleID}
	if _, ok := m.db.assignments[key]; ok {
		return false, nil
	}
	a.ID = m.db.id()
	a.CreatedAt = time.Now()
	m.db.assignments[key] = *a
	return true, nil
}

func (m memAssignments) Delete(_ context.Context, questionID, valuatorRoleID int64) (*models.ValuationAssignment, error) {
	key := [2]int64{questionID, valuatorRoleID}
	a, ok := m.db.assignments[key]
	if !ok {
		return nil, nil
	}
	delete(m.db.assignments, key)
	return &a, nil
}

func (m memAssignments) ValuatorUserIDs(_ context.Context, questionID int64) ([]int64, error) {
	var ids []int64
	for key := range m.db.assignments {
		if key[0] == questionID {
			ids = append(ids, m.db.roles[key[1]].UserID)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

type memRoles struct{ db *memDB }

func (m memRoles) GetByID(_ context.Context, id int64) (*models.SpaceRole, error) {
	r, ok := m.db.roles[id]
	if !ok {
		return nil, repository.ErrSpaceRoleNotFound
	}
	return &r, nil
}

func (m memRoles) ListForUser(_ context.Context, spaceID, userID int64) ([]models.SpaceRole, error) {
	var out []models.SpaceRole
	for _, r := range m.db.roles {
		if r.SpaceID == spaceID && r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m memRoles) UserIDsByRole(_ context.Context, spaceID int64, role string) ([]int64, error) {
	var ids []int64
	for _, r := range m.db.roles {
		if r.SpaceID == spaceID && r.Role == role {
			ids = append(ids, r.UserID)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

type memComponents struct{ db *memDB }

func (m memComponents) GetByID(_ context.Context, id int64) (*models.Component, error) {
	c, ok := m.db.components[id]
	if !ok {
		return nil, repository.ErrComponentNotFound
	}
	return &c, nil
}

type memTaxonomy struct{ db *memDB }

func (m memTaxonomy) GetScope(_ context.Context, id int64) (*models.Scope, error) {
	s, ok := m.db.scopes[id]
	if !ok {
		return nil, repository.ErrScopeNotFound
	}
	return &s, nil
}

func (m memTaxonomy) GetCategory(_ context.Context, spaceID, id int64) (*models.Category, error) {
	c, ok := m.db.categories[id]
	if !ok || c.SpaceID != spaceID {
		return nil, repository.ErrCategoryNotFound
	}
	return &c, nil
}

type memNotes struct{ db *memDB }

func (m memNotes) Create(_ context.Context, note *models.QuestionNote) error {
	note.ID = m.db.id()
	m.db.notes = append(m.db.notes, *note)
	return nil
}

func (m memNotes) ListByQuestion(_ context.Context, questionID int64) ([]models.QuestionNote, error) {
	var out []models.QuestionNote
	for _, n := range m.db.notes {
		if n.QuestionID == questionID {
			out = append(out, n)
		}
	}
	return out, nil
}

type memAmendments struct{ db *memDB }

func (m memAmendments) UpdateState(_ context.Context, a *models.Amendment) error {
	q, ok := m.db.questions[a.EmendationID]
	if !ok || q.Amendment == nil {
		return repository.ErrAmendmentNotFound
	}
	q.Amendment.State = a.State
	return nil
}

type memVersions struct{ db *memDB }

func (m memVersions) Create(_ context.Context, v *models.Version) error {
	v.ID = m.db.id()
	m.db.versions = append(m.db.versions, *v)
	return nil
}

type memLogs struct{ db *memDB }

func (m memLogs) Create(_ context.Context, l *models.ActionLog) error {
	l.ID = m.db.id()
	m.db.logs = append(m.db.logs, *l)
	return nil
}

type memOutbox struct{ db *memDB }

func (m memOutbox) Enqueue(_ context.Context, e *models.NotificationEvent) error {
	e.ID = m.db.id()
	e.Status = models.NotificationPending
	m.db.events = append(m.db.events, *e)
	return nil
}

type memScores struct{ db *memDB }

func (m memScores) Increment(_ context.Context, subjectType string, subjectID int64, badge string, delta int) error {
	key := fmt.Sprintf("%s:%d:%s", subjectType, subjectID, badge)
	m.db.scores[key] = max(m.db.scores[key]+delta, 0)
	return nil
}

type memLinks struct{ db *memDB }

func (m memLinks) Linked(_ context.Context, resourceType string, resourceID int64, name string) (bool, error) {
	return m.db.links[strings.Join([]string{resourceType, fmt.Sprint(resourceID), name}, ":")], nil
}

type staticSettings struct {
	settings config.ComponentSettings
}

func (s staticSettings) For(int64) config.ComponentSettings {
	return s.settings
}

var testNow = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

const (
	testComponentID = int64(1)
	testSpaceID     = int64(10)
	testOrgID       = int64(100)
)

// newTestDeps wires every port to db with the default component settings
func newTestDeps(db *memDB) Deps {
	db.components[testComponentID] = models.Component{
		ID:             testComponentID,
		SpaceID:        testSpaceID,
		OrganizationID: testOrgID,
		Name:           models.Translations{"en": "Questions"},
	}
	return Deps{
		Tx:          db,
		Questions:   memQuestions{db},
		Assignments: memAssignments{db},
		Roles:       memRoles{db},
		Components:  memComponents{db},
		Taxonomy:    memTaxonomy{db},
		Notes:       memNotes{db},
		Amendments:  memAmendments{db},
		Links:       memLinks{db},
		Scores:      memScores{db},
		Events:      notify.NewPublisher(memOutbox{db}),
		Trace:       NewTraceabilityService(memVersions{db}, memLogs{db}),
		Settings:    staticSettings{config.DefaultComponentSettings()},
		Locale:      "en",
		Now:         func() time.Time { return testNow },
	}
}

// publishedQuestion is a published question coauthored by userID
func publishedQuestion(userID int64) *models.Question {
	published := testNow.Add(-time.Hour)
	return &models.Question{
		ComponentID: testComponentID,
		Title:       models.Translations{"en": "More trees on the main square"},
		Body:        models.Translations{"en": "Plant trees"},
		PublishedAt: &published,
		UpdatedAt:   published,
		Coauthorships: []models.Coauthorship{
			{AuthorType: models.AuthorUser, AuthorID: userID},
		},
	}
}

var errBoom = errors.New("boom")

func itoa(id int64) string {
	return fmt.Sprint(id)
}
