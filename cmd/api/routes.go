package main

import (
	"net/http"

	httpSwagger "github.com/swaggo/http-swagger"

	"questions/internal/handlers"
	"questions/internal/middleware"
	"questions/internal/permissions"
)

// routes groups what the router needs
type routes struct {
	auth *middleware.AuthMiddleware
	rbac *middleware.RBACMiddleware

	questions   *handlers.QuestionHandler
	answers     *handlers.AnswerHandler
	valuations  *handlers.ValuationHandler
	texts       *handlers.ParticipatoryTextHandler
	notes       *handlers.NoteHandler
	amendments  *handlers.AmendmentHandler
	config      *handlers.ConfigHandler
	admin       *handlers.AdminHandler
	healthCheck http.HandlerFunc
}

const (
	publicPrefix = "/api/v1/components/{componentID}"
	adminPrefix  = "/api/v1/admin/components/{componentID}"
)

func (rt *routes) register(mux *http.ServeMux) {
	// Public routes
	mux.HandleFunc("GET /api/v1/config/app", rt.config.GetAppConfig)
	mux.HandleFunc("GET "+publicPrefix+"/settings", rt.config.GetComponentSettings)
	mux.Handle("GET "+publicPrefix+"/questions", rt.auth.OptionalAuth(http.HandlerFunc(rt.questions.Search)))

	// Author routes
	mux.Handle("POST "+publicPrefix+"/questions/{questionID}/publish",
		rt.actor(http.HandlerFunc(rt.questions.Publish)))
	mux.Handle("POST "+publicPrefix+"/questions/{questionID}/withdraw",
		rt.actor(http.HandlerFunc(rt.questions.Withdraw)))

	// Admin routes. Question level checks happen in the handlers.
	mux.Handle("GET "+adminPrefix+"/questions",
		rt.require(permissions.ActionAdminList, rt.questions.AdminList))
	mux.Handle("POST "+adminPrefix+"/questions",
		rt.require(permissions.ActionCreateOfficial, rt.questions.CreateOfficial))
	mux.Handle("PUT "+adminPrefix+"/questions/{questionID}",
		rt.require(permissions.ActionEditQuestion, rt.questions.Update))
	mux.Handle("POST "+adminPrefix+"/questions/update_scope",
		rt.require(permissions.ActionUpdateScope, rt.questions.UpdateScope))
	mux.Handle("POST "+adminPrefix+"/questions/update_category",
		rt.require(permissions.ActionUpdateCategory, rt.questions.UpdateCategory))

	mux.Handle("POST "+adminPrefix+"/questions/{questionID}/answer",
		rt.actor(http.HandlerFunc(rt.answers.Answer)))
	mux.Handle("POST "+adminPrefix+"/answers/publish",
		rt.require(permissions.ActionPublishAnswers, rt.answers.PublishAnswers))

	mux.Handle("POST "+adminPrefix+"/valuation_assignments",
		rt.require(permissions.ActionAssignValuator, rt.valuations.Assign))
	mux.Handle("DELETE "+adminPrefix+"/valuation_assignments",
		rt.actor(http.HandlerFunc(rt.valuations.Unassign)))

	mux.Handle("POST "+adminPrefix+"/questions/{questionID}/notes",
		rt.actor(http.HandlerFunc(rt.notes.Create)))
	mux.Handle("GET "+adminPrefix+"/questions/{questionID}/notes",
		rt.actor(http.HandlerFunc(rt.notes.List)))

	mux.Handle("POST "+adminPrefix+"/participatory_texts/import",
		rt.require(permissions.ActionImportText, rt.texts.Import))
	mux.Handle("PUT "+adminPrefix+"/participatory_texts",
		rt.require(permissions.ActionUpdateText, rt.texts.Update))
	mux.Handle("POST "+adminPrefix+"/participatory_texts/publish",
		rt.require(permissions.ActionPublishText, rt.texts.Publish))
	mux.Handle("DELETE "+adminPrefix+"/participatory_texts",
		rt.require(permissions.ActionDiscardText, rt.texts.Discard))

	mux.Handle("POST "+adminPrefix+"/amendments/{questionID}/state",
		rt.require(permissions.ActionSyncAmendment, rt.amendments.ChangeState))

	mux.Handle("GET "+adminPrefix+"/metrics",
		rt.require(permissions.ActionViewMetrics, rt.admin.GetMetrics))
	mux.Handle("GET "+adminPrefix+"/logs",
		rt.require(permissions.ActionViewLogs, rt.admin.GetActionLogs))

	mux.HandleFunc("GET /health", rt.healthCheck)

	// Swagger documentation
	mux.Handle("/swagger/", httpSwagger.WrapHandler)
}

// actor authenticates and resolves the caller's space roles
func (rt *routes) actor(next http.Handler) http.Handler {
	return rt.auth.Authenticate(rt.rbac.LoadActor(next))
}

// require authenticates and checks a component level permission
func (rt *routes) require(action permissions.Action, h http.HandlerFunc) http.Handler {
	return rt.auth.Authenticate(rt.rbac.RequirePermission(action)(h))
}
