package api

import (
	"net/http"
	"strings"

	"github.com/bobarin/auctioneer/internal/storage"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// RouterConfig holds settings for the API router.
type RouterConfig struct {
	// CorsAllowedOrigins is a comma-separated list of allowed origins.
	// If empty, defaults to "*" (development mode).
	CorsAllowedOrigins string

	// Avatars is served statically at its prefix when uploads are kept on
	// local disk. Nil disables the file server.
	Avatars *storage.Local

	Logger zerolog.Logger
}

func NewRouter(h *Handler, cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware (applied to all routes including /health)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(cfg.Logger))
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg.CorsAllowedOrigins),
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", h.Health)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/debug/jobs/{id}", h.GetJob)

	if cfg.Avatars != nil {
		prefix := cfg.Avatars.Prefix() + "/"
		r.Handle(prefix+"*", http.StripPrefix(prefix, http.FileServer(http.Dir(cfg.Avatars.Dir()))))
	}

	// The page calls /api/...; the bare paths are kept for direct use.
	routes := func(r chi.Router) {
		r.Post("/generate-video", h.GenerateVideo)
		r.Post("/upload-custom-avatar", h.UploadCustomAvatar)
		r.Get("/check-video-status", h.CheckVideoStatus)
		r.Get("/check-custom-video-status", h.CheckCustomVideoStatus)
		r.Get("/get-avatars", h.GetAvatars)
		r.Post("/upload-avatar-image", h.UploadAvatarImage)
	}
	routes(r)
	r.Route("/api", routes)

	return r
}

// allowedOrigins restricts CORS when configured, otherwise allows all.
func allowedOrigins(raw string) []string {
	if raw == "" {
		return []string{"*"}
	}
	origins := strings.Split(raw, ",")
	trimmed := make([]string, 0, len(origins))
	for _, o := range origins {
		if s := strings.TrimSpace(o); s != "" {
			trimmed = append(trimmed, s)
		}
	}
	if len(trimmed) == 0 {
		return []string{"*"}
	}
	return trimmed
}
