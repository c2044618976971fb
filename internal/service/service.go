// Package service holds the question commands. Every command loads what it
// needs, runs the lifecycle rules, and persists its changes together with
// the audit trail and notifications inside one transaction.
package service

import (
	"time"

	"questions/internal/database"
	"questions/internal/lifecycle"
	"questions/internal/models"
	"questions/internal/telemetry"
)

// Deps bundles the collaborators shared by the command services
type Deps struct {
	Tx          database.Transactor
	Questions   QuestionStore
	Assignments AssignmentStore
	Roles       SpaceRoleStore
	Components  ComponentStore
	Taxonomy    TaxonomyStore
	Notes       NoteStore
	Amendments  AmendmentStore
	Links       LinkStore
	Scores      ScoreStore
	Events      EventPublisher
	Trace       *TraceabilityService
	Settings    SettingsProvider
	Telemetry   *telemetry.Commands
	Locale      string
	Now         func() time.Time
}

func (d Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

func (d Deps) locale() string {
	if d.Locale == "" {
		return "en"
	}
	return d.Locale
}

func (d Deps) answerNotifier() *answerNotifier {
	return &answerNotifier{
		questions: d.Questions,
		events:    d.Events,
		scores:    d.Scores,
		locale:    d.locale(),
	}
}

// guardContext builds the lifecycle guard input for a question as seen by userID
func guardContext(q *models.Question, userID int64) lifecycle.QuestionContext {
	return lifecycle.QuestionContext{
		QuestionID:     q.ID,
		Published:      !q.IsDraft(),
		Answered:       q.IsAnswered(),
		Source:         lifecycle.SourceOf(q),
		VotesCount:     q.VotesCount,
		IsAuthor:       userID != 0 && q.AuthoredBy(userID),
		OfficialOrigin: q.OfficialOrigin(),
		MeetingOrigin:  q.MeetingOrigin(),
		UpdatedAt:      q.UpdatedAt,
	}
}
