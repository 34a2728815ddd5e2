package handlers

import (
	"github.com/go-chi/chi/v5"

	"delivery-marketplace/internal/common/auth"
)

func Routes(r chi.Router, h *Handler) {
	r.Post("/quotes", h.DeliveryHandler.Quote)
	r.Get("/deliveries/{id}", h.DeliveryHandler.GetDelivery)
	r.Get("/deliveries/{id}/timeline", h.DeliveryHandler.Timeline)

	courier := r.With(auth.RequireRole(auth.RoleCourier))
	courier.Post("/deliveries/{id}/pickup", h.DeliveryHandler.Pickup)
	courier.Post("/deliveries/{id}/deliver", h.DeliveryHandler.Deliver)

	r.With(auth.RequireRole(auth.RoleCourier, auth.RoleAdmin)).Post("/deliveries/{id}/cancel", h.DeliveryHandler.Cancel)
}
