package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(apiHandler *APIHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", apiHandler.HealthHandler)

		// Signed-in or guest
		r.Group(func(r chi.Router) {
			r.Use(apiHandler.IdentityMiddleware)

			r.Get("/me", apiHandler.GetMeHandler)
			r.Post("/onboarding", apiHandler.OnboardingHandler)

			r.Group(func(r chi.Router) {
				r.Use(apiHandler.RequireOnboarded)

				r.Patch("/me", apiHandler.UpdateMeHandler)

				r.Get("/chats", apiHandler.ListChatsHandler)
				r.Post("/chats", apiHandler.CreateChatHandler)
				r.Post("/chats/load", apiHandler.LoadChatsHandler)
				r.Post("/chats/messages", apiHandler.PostMessageHandler)
				r.Post("/chats/{chatID}/select", apiHandler.SelectChatHandler)
				r.Delete("/chats/{chatID}", apiHandler.DeleteChatHandler)

				r.Post("/messages/{messageID}/promote", apiHandler.PromoteMessageHandler)

				r.Get("/checklists", apiHandler.ListChecklistsHandler)
				r.Post("/checklists", apiHandler.CreateChecklistHandler)
				r.Delete("/checklists/{checklistID}", apiHandler.DeleteChecklistHandler)
				r.Post("/checklists/{checklistID}/items/{itemID}/toggle", apiHandler.ToggleChecklistItemHandler)

				r.Get("/tasks", apiHandler.ListTasksHandler)
				r.Post("/tasks/{taskID}/complete", apiHandler.CompleteTaskHandler)
				r.Post("/tasks/{taskID}/uncomplete", apiHandler.UncompleteTaskHandler)
			})
		})
	})

	return r
}
