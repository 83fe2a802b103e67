package webhook

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers webhook routes. Deliveries are authenticated by
// their signature, not by a bearer token.
func RegisterRoutes(r chi.Router, h *Handler) {
	r.Post("/webhooks/github", h.GitHubEvent)
}
