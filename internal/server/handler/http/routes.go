package http

import (
	"net/http"

	"github.com/atinyakov/tavola/internal/middleware"
	"go.uber.org/zap"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// Deps collects everything the router mounts.
type Deps struct {
	Auth       *AuthHandler
	Categories *CategoryHandler
	Dishes     *DishHandler
	Videos     *VideoHandler
	Menu       *MenuHandler
	Settings   *SettingsHandler
	Site       *SiteHandler
	Media      *MediaHandler
	Health     *HealthHandler

	// Validator backs the admin gate.
	Validator middleware.SessionValidator
	// Limiter throttles login attempts per client address.
	Limiter    middleware.AttemptLimiter
	TrustProxy bool
	// Logins receives the rate-limited outcome. Optional.
	Logins middleware.LoginRecorder
	// Observer records per-route request metrics. Optional.
	Observer middleware.RequestObserver
	// Metrics serves /metrics. Optional.
	Metrics http.Handler

	AllowedOrigins []string
	Log            *zap.Logger
}

// NewRouter builds the API router.
//
// Routes:
//
//	POST   /api/auth/login             rate limited
//	POST   /api/auth/logout
//	GET    /api/auth/policy
//	GET    /api/auth/session           session required
//	GET    /api/{categories,dishes,videos,menu,site}
//	GET    /api/dishes/{id}, /api/menu/qr.png, /api/youtube/videos
//	*      /api/admin/...              session required
//	GET    /healthz, /readyz, /metrics
//
// Admin write requests must carry Content-Type: application/json.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(middleware.WithRequestLogging(d.Log))
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.CORS(d.AllowedOrigins))
	if d.Observer != nil {
		r.Use(middleware.WithMetrics(d.Observer))
	}

	r.Get("/healthz", d.Health.Live)
	r.Get("/readyz", d.Health.Ready)
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics)
	}

	gate := middleware.RequireSession(d.Validator, d.Log)

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			// Login bodies are decoded whatever their Content-Type; bad JSON is a 400.
			r.With(middleware.RateLimit(d.Limiter, d.TrustProxy, d.Logins)).Post("/login", d.Auth.Login)
			r.Post("/logout", d.Auth.Logout)
			r.Get("/policy", d.Auth.Policy)
			r.With(gate).Get("/session", d.Auth.Session)
		})

		r.Get("/categories", d.Categories.List)
		r.Get("/dishes", d.Dishes.List)
		r.Get("/dishes/{id}", d.Dishes.Get)
		r.Get("/videos", d.Videos.List)
		r.Get("/menu", d.Menu.Public)
		r.Get("/menu/qr.png", d.Site.MenuQR)
		r.Get("/site", d.Site.Info)
		r.Get("/youtube/videos", d.Site.YouTubeVideos)

		r.Route("/admin", func(r chi.Router) {
			r.Use(gate)
			r.Use(chiMiddleware.AllowContentType("application/json"))

			r.Route("/categories", func(r chi.Router) {
				r.Get("/", d.Categories.List)
				r.Post("/", d.Categories.Create)
				r.Put("/{id}", d.Categories.Update)
				r.Delete("/{id}", d.Categories.Delete)
			})
			r.Route("/dishes", func(r chi.Router) {
				r.Get("/", d.Dishes.List)
				r.Post("/", d.Dishes.Create)
				r.Get("/{id}", d.Dishes.Get)
				r.Put("/{id}", d.Dishes.Update)
				r.Delete("/{id}", d.Dishes.Delete)
			})
			r.Route("/videos", func(r chi.Router) {
				r.Get("/", d.Videos.List)
				r.Post("/", d.Videos.Create)
				r.Put("/{id}", d.Videos.Update)
				r.Delete("/{id}", d.Videos.Delete)
			})
			r.Route("/menu-items", func(r chi.Router) {
				r.Get("/", d.Menu.All)
				r.Post("/", d.Menu.Create)
				r.Put("/order", d.Menu.Reorder)
				r.Put("/{id}", d.Menu.Update)
				r.Delete("/{id}", d.Menu.Delete)
			})
			r.Route("/settings", func(r chi.Router) {
				r.Get("/", d.Settings.List)
				r.Get("/{key}", d.Settings.Get)
				r.Put("/{key}", d.Settings.Put)
				r.Delete("/{key}", d.Settings.Delete)
			})
			r.Post("/media/presign", d.Media.Presign)
		})
	})

	return r
}
