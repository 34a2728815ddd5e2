package handlers

import (
	"github.com/go-chi/chi/v5"

	"delivery-marketplace/internal/common/auth"
)

func Routes(r chi.Router, h *Handler) {
	r.With(auth.RequireRole(auth.RoleBuyer)).Post("/orders", h.OrderHandler.AddOrder)
	r.With(auth.RequireRole(auth.RoleBuyer)).Get("/orders", h.OrderHandler.ListMine)
	r.With(auth.RequireRole(auth.RoleBuyer, auth.RoleAdmin)).Get("/orders/{id}", h.OrderHandler.GetOrder)
	r.With(auth.RequireRole(auth.RoleAdmin)).Patch("/admin/orders/{id}/status", h.OrderHandler.UpdateStatus)

	r.Get("/products", h.ProductHandler.List)
	r.Get("/products/{id}", h.ProductHandler.Get)
	admin := r.With(auth.RequireRole(auth.RoleAdmin))
	admin.Get("/admin/products", h.ProductHandler.AdminList)
	admin.Post("/admin/products", h.ProductHandler.Create)
	admin.Patch("/admin/products/{id}", h.ProductHandler.Update)
	admin.Delete("/admin/products/{id}", h.ProductHandler.Archive)
	admin.Post("/admin/products/{id}/restock", h.ProductHandler.Restock)
}
