package handlers

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func (h *Handler) registerMiddlewares() {
	h.Router.Use(recoverPanic)
	h.Router.Use(middleware.RealIP)
	h.Router.Use(middleware.RequestID)
	h.Router.Use(middleware.Timeout(15 * time.Second))
	h.Router.Use(logRequest)
	h.Router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           int((15 * time.Minute).Seconds()),
	}))
}

func (h *Handler) RegisterRoutes() {
	if h.Router == nil {
		h.Router = chi.NewRouter()
	}
	h.registerMiddlewares()

	h.Router.Get("/health/", h.health)
	h.Router.With(rateLimit()).Route("/auth", h.authRoutes)
}

func (h *Handler) authRoutes(r chi.Router) {
	r.Post("/magic-link/", h.requestMagicLink)
	r.Post("/magic-link/verify/", h.verifyMagicLink)
	r.Post("/token/refresh/", h.refreshToken)
	r.Post("/logout/", h.logout)
	r.With(h.authenticate).Get("/me/", h.me)
}
