package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"delivery-marketplace/internal/common/auth"
	"delivery-marketplace/internal/common/httpx"
	"delivery-marketplace/internal/microservices/dispatch/service"
)

type DispatchHandler struct {
	service service.DispatchServiceInterface
}

func NewDispatchHandler(s service.DispatchServiceInterface) *DispatchHandler {
	return &DispatchHandler{service: s}
}

func Routes(r chi.Router, h *Handler) {
	r.With(auth.RequireRole(auth.RoleAdmin)).Post("/admin/orders/{id}/assign", h.DispatchHandler.Assign)
	r.With(auth.RequireRole(auth.RoleBuyer, auth.RoleAdmin)).Post("/orders/{id}/dispatch", h.DispatchHandler.Dispatch)
}

// Assign: admin picks a courier, or leaves courier_id out for auto-match.
func (h *DispatchHandler) Assign(w http.ResponseWriter, r *http.Request) {
	orderID, in, ok := decodeAssign(w, r)
	if !ok {
		return
	}
	a, err := h.service.AssignByAdmin(r.Context(), orderID, in)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, a)
}

func (h *DispatchHandler) Dispatch(w http.ResponseWriter, r *http.Request) {
	orderID, in, ok := decodeAssign(w, r)
	if !ok {
		return
	}
	p, _ := auth.FromContext(r.Context())
	buyerID := p.UserID
	if p.Role == auth.RoleAdmin {
		buyerID = 0
	}
	a, err := h.service.AutoAssign(r.Context(), orderID, buyerID, in)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, a)
}

func decodeAssign(w http.ResponseWriter, r *http.Request) (int64, service.AssignInput, bool) {
	var in service.AssignInput
	orderID, err := httpx.ParamInt64(r, "id")
	if err != nil {
		httpx.WriteError(w, err)
		return 0, in, false
	}
	if r.ContentLength != 0 {
		if err := httpx.Decode(r, &in); err != nil {
			httpx.WriteError(w, err)
			return 0, in, false
		}
	}
	return orderID, in, true
}
