package handlers

import "github.com/go-chi/chi/v5"

// Routes mounts the endpoints that need an authenticated caller.
func Routes(r chi.Router, h *Handler) {
	r.Post("/payments/links", h.PaymentHandler.IssueLink)
	r.Get("/payments/{tx_ref}/verify", h.PaymentHandler.Verify)
}

// WebhookRoutes mounts the gateway callback. It authenticates by signature,
// not by bearer token.
func WebhookRoutes(r chi.Router, h *Handler) {
	r.Post("/payments/webhook", h.PaymentHandler.Webhook)
}
