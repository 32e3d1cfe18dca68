package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"coursecast-backend/internal/handlers"
	"coursecast-backend/internal/middleware"
	"coursecast-backend/internal/websocket"
)

func New(
	jwtAuth *middleware.JWTAuth,
	workflowHandler *handlers.WorkflowHandler,
	monitorHandler *handlers.MonitorHandler,
	sessionHandler *handlers.SessionHandler,
	wsHub *websocket.Hub,
	frontendURL string,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(frontendURL))

	// Upload rate limiter (10 req/min per IP)
	uploadLimiter := middleware.NewRateLimiter(10, time.Minute)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {

		// ──── Workflow Routes ────
		r.Route("/workflow", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)

			r.Group(func(r chi.Router) {
				r.Use(uploadLimiter.Middleware)
				r.Post("/submit", workflowHandler.Submit)
			})

			r.Get("/state", workflowHandler.State)
			r.Get("/preview", workflowHandler.Preview)
			r.Post("/resume-poll", workflowHandler.ResumePolling)
			r.Get("/timeline", workflowHandler.Timeline)
			r.Post("/schedule", workflowHandler.ConfirmSchedule)
			r.Post("/clear", workflowHandler.Clear)

			r.Put("/parts/{partNumber}", workflowHandler.EditPart)
			r.Delete("/parts/{partNumber}/videos/{index}", workflowHandler.RemoveVideoLink)
			r.Post("/parts/{partIndex}/override", workflowHandler.OverrideSlot)
		})

		// ──── Scheduled Content Routes ────
		r.Route("/scheduled", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Get("/", monitorHandler.ListScheduled)
			r.Post("/{contentID}/parts/{partNumber}/send-now", monitorHandler.SendNow)
		})

		// ──── Workflow Session Routes ────
		r.Route("/sessions", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Get("/", sessionHandler.List)
		})

		// ──── WebSocket ────
		r.Get("/ws", wsHub.HandleWebSocket)
	})

	return r
}
