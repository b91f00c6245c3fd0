package api

import (
	"net/http"
	"time"

	// This blank import is required by swaggo to find the API definitions.
	_ "eva-chat/backend/docs"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger"
)

// NewRouter creates and configures a new chi router with all the
// application's routes.
func NewRouter(conversationHandler *ConversationHandler, objectHandler *ObjectHandler) *chi.Mux {
	r := chi.NewRouter()

	// --- Global Middleware ---
	r.Use(middleware.RequestID) // Injects a unique request ID into the context.
	r.Use(middleware.RealIP)    // Sets the remote address to the real IP from proxy headers.
	r.Use(middleware.Logger)    // Logs the start and end of each request.
	r.Use(middleware.Recoverer) // Recovers from panics and returns a 500 error.

	// Serves the auto-generated Swagger UI for API documentation.
	r.Get("/api/swagger/*", httpSwagger.WrapHandler)

	// A simple health check endpoint for liveness and readiness probes.
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Signed-URL object fetches live outside the versioned API so the URLs
	// embedded in rendered figures stay short and stable.
	r.Get("/objects/{conversationID}/{objectID}", objectHandler.HandleFetch)

	// --- API Version 1 Routes ---
	r.Route("/api/v1", func(r chi.Router) {

		// Standard JSON routes get a request timeout so client connections
		// cannot hang indefinitely.
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))

			r.Get("/conversations", conversationHandler.GetConversations)
			r.Get("/conversations/{conversationID}", conversationHandler.GetConversation)
			r.Delete("/conversations/{conversationID}", conversationHandler.HandleDeleteConversation)

			r.Get("/conversations/{conversationID}/messages", conversationHandler.GetMessages)
			r.Post("/conversations/{conversationID}/messages", conversationHandler.HandleAppendMessage)
			r.Patch("/conversations/{conversationID}/messages/{messageID}/annotation", conversationHandler.HandleUpdateAnnotation)

			r.Post("/conversations/{conversationID}/objects", objectHandler.HandleUpload)
		})

		// The streaming turn endpoint must NOT have a timeout: it holds the
		// connection open for the whole agent run.
		r.Group(func(r chi.Router) {
			r.Post("/turns", conversationHandler.HandleStreamTurn)
		})
	})

	return r
}
