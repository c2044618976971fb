package lifecycle

import (
	"fmt"
	"time"
)

// GuardResult represents the outcome of a guard evaluation.
type GuardResult struct {
	Allowed bool
	Reason  string
}

// Error converts the guard result to an error if not allowed.
func (r GuardResult) Error() error {
	if r.Allowed {
		return nil
	}
	return fmt.Errorf("%s", r.Reason)
}

func allow() GuardResult { return GuardResult{Allowed: true} }

func deny(format string, args ...any) GuardResult {
	return GuardResult{Allowed: false, Reason: fmt.Sprintf(format, args...)}
}

// QuestionContext is the subset of a question the guards look at.
type QuestionContext struct {
	QuestionID          int64
	Published           bool
	Answered            bool
	Source              Source
	VotesCount          int
	IsAuthor            bool
	CopiedFromComponent bool
	OfficialOrigin      bool
	MeetingOrigin       bool
	UpdatedAt           time.Time
}

// ReasonHasSupports is returned when withdrawing a voted question.
const ReasonHasSupports = "has supports"

// CanPublish evaluates whether a draft can be published.
// Rules:
// - Question must be a draft
// - Only an author can publish it
func CanPublish(ctx QuestionContext) GuardResult {
	if ctx.Published {
		return deny("question %d is already published", ctx.QuestionID)
	}
	if !ctx.IsAuthor {
		return deny("only authors can publish question %d", ctx.QuestionID)
	}
	return allow()
}

// CanAnswer evaluates whether an admin can attach an answer.
// Rules:
// - Answering must be enabled for the component
// - Drafts cannot be answered
// - Withdrawn questions cannot be answered
// - Emendations take their state from the amendment
func CanAnswer(ctx QuestionContext, answeringEnabled bool) GuardResult {
	if !answeringEnabled {
		return deny("question answering is not enabled")
	}
	if !ctx.Published {
		return deny("question %d is a draft", ctx.QuestionID)
	}
	if IsWithdrawn(ctx.Source) {
		return deny("question %d has been withdrawn", ctx.QuestionID)
	}
	if _, ok := ctx.Source.(Emendation); ok {
		return deny("question %d is an emendation", ctx.QuestionID)
	}
	return allow()
}

// CanPublishAnswer evaluates whether the answer state can be made visible.
// Rules:
// - Question must be published and answered
// - State must not already be published
func CanPublishAnswer(ctx QuestionContext) GuardResult {
	if !ctx.Published {
		return deny("question %d is a draft", ctx.QuestionID)
	}
	if !ctx.Answered {
		return deny("question %d has not been answered", ctx.QuestionID)
	}
	if PublishedState(ctx.Source) {
		return deny("answer of question %d is already published", ctx.QuestionID)
	}
	return allow()
}

// CanWithdraw evaluates whether the author can withdraw the question.
// Rules:
// - Only authors can withdraw
// - Drafts cannot be withdrawn
// - Already withdrawn questions cannot be withdrawn again
// - Questions copied from another component cannot be withdrawn
// - Questions with votes cannot be withdrawn
func CanWithdraw(ctx QuestionContext) GuardResult {
	if !ctx.IsAuthor {
		return deny("only authors can withdraw question %d", ctx.QuestionID)
	}
	if !ctx.Published {
		return deny("question %d is a draft", ctx.QuestionID)
	}
	if IsWithdrawn(ctx.Source) {
		return deny("question %d is already withdrawn", ctx.QuestionID)
	}
	if ctx.CopiedFromComponent {
		return deny("question %d was copied from another component", ctx.QuestionID)
	}
	if ctx.VotesCount > 0 {
		return GuardResult{Allowed: false, Reason: ReasonHasSupports}
	}
	return allow()
}

// CanAdminEdit evaluates whether an admin can edit the question.
// Rules:
// - Only official or meeting questions
// - No votes yet
func CanAdminEdit(ctx QuestionContext) GuardResult {
	if !ctx.OfficialOrigin && !ctx.MeetingOrigin {
		return deny("question %d was not created by the organization", ctx.QuestionID)
	}
	if ctx.VotesCount > 0 {
		return deny("question %d already has votes", ctx.QuestionID)
	}
	return allow()
}

// CanAuthorEdit evaluates whether an author can still edit the question.
// Rules:
// - Drafts are always editable
// - Published questions only before the answer state is published, within
//   the edit window, and when not copied from another component
func CanAuthorEdit(ctx QuestionContext, editWindow time.Duration, now time.Time) GuardResult {
	if !ctx.Published {
		return allow()
	}
	if !ctx.IsAuthor {
		return deny("only authors can edit question %d", ctx.QuestionID)
	}
	if PublishedState(ctx.Source) {
		return deny("question %d already has a published answer", ctx.QuestionID)
	}
	if ctx.CopiedFromComponent {
		return deny("question %d was copied from another component", ctx.QuestionID)
	}
	if !now.Before(ctx.UpdatedAt.Add(editWindow)) {
		return deny("edit window for question %d is over", ctx.QuestionID)
	}
	return allow()
}
