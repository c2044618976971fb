package handlers

import (
	"questions/internal/lifecycle"
	"questions/internal/models"
)

// QuestionView is a question as rendered by the API
type QuestionView struct {
	*models.Question
	State        string `json:"state"`
	AnswerPublic bool   `json:"answer_published"`
	Withdrawn    bool   `json:"withdrawn"`
	Emendation   bool   `json:"emendation"`
	// InternalState is only set on admin views
	InternalState *string `json:"internal_state,omitempty"`
}

// publicView hides answers that were not released yet
func publicView(q *models.Question) QuestionView {
	src := lifecycle.SourceOf(q)
	view := QuestionView{
		State:        lifecycle.Display(lifecycle.Resolve(src)),
		AnswerPublic: lifecycle.PublishedState(src),
		Withdrawn:    lifecycle.IsWithdrawn(src),
		Emendation:   q.IsEmendation(),
	}

	if view.AnswerPublic {
		view.Question = q
		return view
	}

	hidden := *q
	hidden.Answer = nil
	hidden.Cost = nil
	hidden.CostReport = nil
	hidden.ExecutionPeriod = nil
	hidden.AnsweredAt = nil
	view.Question = &hidden
	return view
}

func adminView(q *models.Question) QuestionView {
	src := lifecycle.SourceOf(q)
	internal := lifecycle.Display(lifecycle.Internal(src))
	return QuestionView{
		Question:      q,
		State:         lifecycle.Display(lifecycle.Resolve(src)),
		AnswerPublic:  lifecycle.PublishedState(src),
		Withdrawn:     lifecycle.IsWithdrawn(src),
		Emendation:    q.IsEmendation(),
		InternalState: &internal,
	}
}

func publicViews(questions []*models.Question) []QuestionView {
	views := make([]QuestionView, 0, len(questions))
	for _, q := range questions {
		views = append(views, publicView(q))
	}
	return views
}

func adminViews(questions []*models.Question) []QuestionView {
	views := make([]QuestionView, 0, len(questions))
	for _, q := range questions {
		views = append(views, adminView(q))
	}
	return views
}
