package handlers

import (
	"encoding/json"
	"net/http"

	safejobauth "github.com/safejob-nl/auth"
)

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	type response struct {
		Status  string `json:"status"`
		Service string `json:"service"`
		Version string `json:"version"`
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response{
		Status:  "healthy",
		Service: "safe-job-auth",
		Version: safejobauth.Version,
	})
}
