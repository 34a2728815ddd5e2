package handlers

import (
	"github.com/go-chi/chi/v5"

	"delivery-marketplace/internal/common/auth"
)

// Routes mounts the courier endpoints. r must already carry the auth middleware.
func Routes(r chi.Router, h *Handler) {
	courier := r.With(auth.RequireRole(auth.RoleCourier))
	courier.Post("/couriers", h.CourierHandler.Register)
	courier.Post("/couriers/me/verification", h.CourierHandler.SubmitVerification)
	courier.Put("/couriers/me/availability", h.CourierHandler.SetAvailability)
	courier.Put("/couriers/me/location", h.CourierHandler.RecordLocation)
	courier.Get("/couriers/me/dashboard", h.CourierHandler.Dashboard)
	courier.Get("/couriers/me/deliveries", h.CourierHandler.History)
	courier.Get("/couriers/me/ratings", h.CourierHandler.Ratings)

	admin := r.With(auth.RequireRole(auth.RoleAdmin))
	admin.Get("/admin/couriers", h.CourierHandler.List)
	admin.Post("/admin/couriers/{id}/verification", h.CourierHandler.DecideVerification)
	admin.Get("/admin/couriers/nearest", h.CourierHandler.Nearest)
}
