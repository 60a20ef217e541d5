package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"cinescript-backend/internal/handlers"
	"cinescript-backend/internal/middleware"
	"cinescript-backend/internal/websocket"
)

func New(
	jwtAuth *middleware.JWTAuth,
	authHandler *handlers.AuthHandler,
	projectHandler *handlers.ProjectHandler,
	videoHandler *handlers.VideoHandler,
	lifecycleHandler *handlers.LifecycleHandler,
	subtitleHandler *handlers.SubtitleHandler,
	jobHandler *handlers.JobHandler,
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

	// Auth rate limiter (10 req/min per IP)
	authLimiter := middleware.NewRateLimiter(10, time.Minute)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {

		// ──── Auth Routes (public) ────
		r.Route("/auth", func(r chi.Router) {
			r.Use(authLimiter.Middleware)
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.Post("/refresh", authHandler.Refresh)

			// Logout requires auth
			r.Group(func(r chi.Router) {
				r.Use(jwtAuth.Middleware)
				r.Post("/logout", authHandler.Logout)
			})
		})

		// ──── Current User ────
		r.Group(func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Get("/user/me", authHandler.Me)
		})

		// ──── Project Routes ────
		r.Route("/projects", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Post("/", projectHandler.Create)
			r.Get("/", projectHandler.List)
			r.Get("/{id}", projectHandler.Get)
			r.Put("/{id}", projectHandler.Update)
			r.Delete("/{id}", projectHandler.Delete)

			r.Post("/{id}/videos", videoHandler.Upload)
			r.Post("/{id}/videos/youtube", videoHandler.ImportYouTube)
			r.Get("/{id}/videos", videoHandler.List)
		})

		// ──── Video Routes ────
		r.Route("/videos", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Get("/{id}", videoHandler.Get)
			r.Get("/{id}/status", videoHandler.Status)
			r.Delete("/{id}", videoHandler.Delete)
			r.Get("/{id}/download", videoHandler.Download)

			// Processing triggers
			r.Post("/{id}/transcribe", lifecycleHandler.Transcribe)
			r.Post("/{id}/translate", lifecycleHandler.Translate)
			r.Post("/{id}/export", lifecycleHandler.Export)

			// Subtitle editor
			r.Put("/{id}/subtitles", subtitleHandler.UpdateSubtitles)
			r.Get("/{id}/subtitles/active", subtitleHandler.ActiveSegment)
			r.Put("/{id}/settings", subtitleHandler.UpdateSettings)
		})

		// ──── Job Routes ────
		r.Route("/jobs", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Get("/{id}", jobHandler.Get)
		})

		// ──── WebSocket ────
		r.Get("/ws", wsHub.HandleWebSocket)
	})

	return r
}
