package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/safejob-nl/auth/services"
)

type Handler struct {
	Router           chi.Router
	MagicLinkService services.MagicLinkService
	SessionService   services.SessionService
	Directory        services.IdentityDirectory
}

func NewHandler() *Handler {
	return &Handler{}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.Router.ServeHTTP(w, r)
}
