package models

import (
	"time"
)

// Question states as stored in questions.state
const (
	StateNotAnswered = "not_answered"
	StateEvaluating  = "evaluating"
	StateAccepted    = "accepted"
	StateRejected    = "rejected"
	StateWithdrawn   = "withdrawn"
)

// Participatory text levels
const (
	LevelNone       = ""
	LevelSection    = "section"
	LevelSubSection = "sub-section"
	LevelArticle    = "article"
)

// Coauthor types
const (
	AuthorUser         = "user"
	AuthorOrganization = "organization"
	AuthorMeeting      = "meeting"
)

// Space roles
const (
	RoleAdmin        = "admin"
	RoleCollaborator = "collaborator"
	RoleModerator    = "moderator"
	RoleValuator     = "valuator"
)

// Question represents a question inside a component
type Question struct {
	ID                     int64        `json:"id" db:"id"`
	ComponentID            int64        `json:"component_id" db:"component_id"`
	Reference              string       `json:"reference" db:"reference"`
	Title                  Translations `json:"title" db:"title"`
	Body                   Translations `json:"body" db:"body"`
	Address                *string      `json:"address,omitempty" db:"address"`
	Latitude               *float64     `json:"latitude,omitempty" db:"latitude"`
	Longitude              *float64     `json:"longitude,omitempty" db:"longitude"`
	ScopeID                *int64       `json:"scope_id,omitempty" db:"scope_id"`
	CategoryID             *int64       `json:"category_id,omitempty" db:"category_id"`
	State                  *string      `json:"-" db:"state"`
	Answer                 Translations `json:"answer,omitempty" db:"answer"`
	AnsweredAt             *time.Time   `json:"answered_at,omitempty" db:"answered_at"`
	StatePublishedAt       *time.Time   `json:"state_published_at,omitempty" db:"state_published_at"`
	PublishedAt            *time.Time   `json:"published_at,omitempty" db:"published_at"`
	Cost                   *float64     `json:"cost,omitempty" db:"cost"`
	CostReport             Translations `json:"cost_report,omitempty" db:"cost_report"`
	ExecutionPeriod        Translations `json:"execution_period,omitempty" db:"execution_period"`
	Position               *int         `json:"position,omitempty" db:"position"`
	ParticipatoryTextLevel string       `json:"participatory_text_level,omitempty" db:"participatory_text_level"`
	CreatedInMeeting       bool         `json:"created_in_meeting" db:"created_in_meeting"`
	HiddenAt               *time.Time   `json:"-" db:"hidden_at"`
	VotesCount             int          `json:"votes_count" db:"votes_count"`
	EndorsementsCount      int          `json:"endorsements_count" db:"endorsements_count"`
	NotesCount             int          `json:"notes_count" db:"notes_count"`
	CommentsCount          int          `json:"comments_count" db:"comments_count"`
	FollowsCount           int          `json:"follows_count" db:"follows_count"`
	CoauthorshipsCount     int          `json:"coauthorships_count" db:"coauthorships_count"`
	CreatedAt              time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt              time.Time    `json:"updated_at" db:"updated_at"`

	Coauthorships []Coauthorship `json:"coauthorships,omitempty" db:"-"`

	// Amendment is set when the question is an emendation
	Amendment *Amendment `json:"amendment,omitempty" db:"-"`
}

// StoredState returns the raw state column, empty when NULL
func (q *Question) StoredState() string {
	if q.State == nil {
		return ""
	}
	return *q.State
}

// IsDraft reports whether the question has not been published yet
func (q *Question) IsDraft() bool {
	return q.PublishedAt == nil
}

// IsAnswered reports whether an answer has been recorded
func (q *Question) IsAnswered() bool {
	return q.AnsweredAt != nil
}

// IsEmendation reports whether the question amends another one
func (q *Question) IsEmendation() bool {
	return q.Amendment != nil
}

// OfficialOrigin reports whether the first coauthor is the organization
func (q *Question) OfficialOrigin() bool {
	return len(q.Coauthorships) > 0 && q.Coauthorships[0].AuthorType == AuthorOrganization
}

// MeetingOrigin reports whether the first coauthor is a meeting
func (q *Question) MeetingOrigin() bool {
	return len(q.Coauthorships) > 0 && q.Coauthorships[0].AuthorType == AuthorMeeting
}

// AuthoredBy reports whether the user is one of the coauthors
func (q *Question) AuthoredBy(userID int64) bool {
	for _, c := range q.Coauthorships {
		if c.AuthorType == AuthorUser && c.AuthorID == userID {
			return true
		}
	}
	return false
}

// CoauthorUserIDs returns the ids of the coauthors that are users
func (q *Question) CoauthorUserIDs() []int64 {
	var ids []int64
	for _, c := range q.Coauthorships {
		if c.AuthorType == AuthorUser {
			ids = append(ids, c.AuthorID)
		}
	}
	return ids
}

// Coauthorship links a question to one of its authors
type Coauthorship struct {
	ID          int64     `json:"id" db:"id"`
	QuestionID  int64     `json:"question_id" db:"question_id"`
	AuthorType  string    `json:"author_type" db:"author_type"`
	AuthorID    int64     `json:"author_id" db:"author_id"`
	UserGroupID *int64    `json:"user_group_id,omitempty" db:"user_group_id"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// ValuationAssignment links a question to a valuator space role
type ValuationAssignment struct {
	ID             int64     `json:"id" db:"id"`
	QuestionID     int64     `json:"question_id" db:"question_id"`
	ValuatorRoleID int64     `json:"valuator_role_id" db:"valuator_role_id"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// Amendment connects an emendation question to the question it amends
type Amendment struct {
	ID           int64     `json:"id" db:"id"`
	AmendableID  int64     `json:"amendable_id" db:"amendable_id"`
	EmendationID int64     `json:"emendation_id" db:"emendation_id"`
	AmenderID    int64     `json:"amender_id" db:"amender_id"`
	State        string    `json:"state" db:"state"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// QuestionNote is a private note left by admins or valuators
type QuestionNote struct {
	ID         int64     `json:"id" db:"id"`
	QuestionID int64     `json:"question_id" db:"question_id"`
	AuthorID   int64     `json:"author_id" db:"author_id"`
	Body       string    `json:"body" db:"body"`
	Encrypted  bool      `json:"-" db:"encrypted"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// User represents a participant of the organization
type User struct {
	ID             int64     `json:"id" db:"id"`
	OrganizationID int64     `json:"organization_id" db:"organization_id"`
	Name           string    `json:"name" db:"name"`
	Nickname       string    `json:"nickname" db:"nickname"`
	Email          string    `json:"-" db:"email"`
	Admin          bool      `json:"admin" db:"admin"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// SpaceRole grants a user a role inside a participatory space
type SpaceRole struct {
	ID        int64     `json:"id" db:"id"`
	SpaceID   int64     `json:"space_id" db:"space_id"`
	UserID    int64     `json:"user_id" db:"user_id"`
	Role      string    `json:"role" db:"role"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Component is an instance of the questions component inside a space
type Component struct {
	ID             int64        `json:"id" db:"id"`
	SpaceID        int64        `json:"space_id" db:"space_id"`
	OrganizationID int64        `json:"organization_id" db:"organization_id"`
	Name           Translations `json:"name" db:"name"`
}

// Scope is a hierarchical territorial or thematic scope
type Scope struct {
	ID       int64        `json:"id" db:"id"`
	ParentID *int64       `json:"parent_id,omitempty" db:"parent_id"`
	Name     Translations `json:"name" db:"name"`
}

// Category groups questions inside a participatory space
type Category struct {
	ID       int64        `json:"id" db:"id"`
	SpaceID  int64        `json:"space_id" db:"space_id"`
	ParentID *int64       `json:"parent_id,omitempty" db:"parent_id"`
	Name     Translations `json:"name" db:"name"`
}

// ActionLog represents a who-did-what record
type ActionLog struct {
	ID           int64     `json:"id" db:"id"`
	UserID       *int64    `json:"user_id,omitempty" db:"user_id"`
	Action       string    `json:"action" db:"action"`
	ResourceType string    `json:"resource_type" db:"resource_type"`
	ResourceID   int64     `json:"resource_id" db:"resource_id"`
	ComponentID  *int64    `json:"component_id,omitempty" db:"component_id"`
	Visibility   string    `json:"visibility" db:"visibility"`
	Extra        JSONMap   `json:"extra,omitempty" db:"extra"`
	VersionID    *int64    `json:"version_id,omitempty" db:"version_id"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// Version is one revision of a resource
type Version struct {
	ID            int64     `json:"id" db:"id"`
	ItemType      string    `json:"item_type" db:"item_type"`
	ItemID        int64     `json:"item_id" db:"item_id"`
	Event         string    `json:"event" db:"event"`
	Whodunnit     *int64    `json:"whodunnit,omitempty" db:"whodunnit"`
	ObjectChanges Changeset `json:"object_changes" db:"object_changes"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// NotificationEvent is an outbox row waiting for delivery
type NotificationEvent struct {
	ID              int64      `json:"id" db:"id"`
	EventName       string     `json:"event_name" db:"event_name"`
	ResourceType    string     `json:"resource_type" db:"resource_type"`
	ResourceID      int64      `json:"resource_id" db:"resource_id"`
	AffectedUserIDs []int64    `json:"affected_user_ids" db:"affected_user_ids"`
	FollowerIDs     []int64    `json:"follower_ids" db:"follower_ids"`
	Extra           JSONMap    `json:"extra,omitempty" db:"extra"`
	Status          string     `json:"status" db:"status"`
	Attempts        int        `json:"attempts" db:"attempts"`
	LastError       *string    `json:"last_error,omitempty" db:"last_error"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
	SentAt          *time.Time `json:"sent_at,omitempty" db:"sent_at"`
}

// Notification outbox statuses
const (
	NotificationPending = "pending"
	NotificationSent    = "sent"
	NotificationFailed  = "failed"
)

// CategoryMetric is one row of the accepted questions / votes metrics
type CategoryMetric struct {
	CategoryID *int64 `json:"category_id,omitempty" db:"category_id"`
	Cumulative int    `json:"cumulative" db:"cumulative"`
	Quantity   int    `json:"quantity" db:"quantity"`
}
