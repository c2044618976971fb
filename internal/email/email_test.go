package email

import (
	"strings"
	"testing"
)

func TestRenderAcceptedNotification(t *testing.T) {
	subject, body, err := Render("https://decidim.example.org/", Notification{
		RecipientName: "Ada",
		EventName:     "questions.question_accepted",
		QuestionTitle: "More benches <b>now</b>",
		QuestionPath:  "/components/3/questions/7",
		Affected:      true,
	})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	if subject != "A question has been accepted" {
		t.Errorf("unexpected subject %q", subject)
	}
	if !strings.Contains(body, "https://decidim.example.org/components/3/questions/7") {
		t.Error("body should link to the question")
	}
	if strings.Contains(body, "<b>now</b>") {
		t.Error("question title must be escaped")
	}
	if !strings.Contains(body, "are an author of") {
		t.Error("affected users should be addressed as authors")
	}
}

func TestRenderScopeChangeUsesExtra(t *testing.T) {
	_, body, err := Render("http://localhost", Notification{
		EventName:     "questions.question_update_scope",
		QuestionTitle: "Parks",
		Extra:         map[string]any{"scope_name": "North district"},
	})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if !strings.Contains(body, "North district") {
		t.Error("body should mention the new scope")
	}
}

func TestRenderUnknownEvent(t *testing.T) {
	if _, _, err := Render("http://localhost", Notification{EventName: "questions.unknown"}); err == nil {
		t.Error("expected an error for an unknown event")
	}
}

func TestEveryEventHasATemplate(t *testing.T) {
	for _, name := range []string{
		"questions.question_accepted",
		"questions.question_rejected",
		"questions.question_evaluating",
		"questions.question_update_scope",
		"questions.question_update_category",
		"questions.admin.question_note_created",
		"questions.question_published",
	} {
		if _, ok := parsed[name]; !ok {
			t.Errorf("missing template for %s", name)
		}
	}
}
