package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"delivery-marketplace/internal/common/apperr"
	"delivery-marketplace/internal/common/auth"
	"delivery-marketplace/internal/common/httpx"
	courierdomain "delivery-marketplace/internal/microservices/courier/domain"
	"delivery-marketplace/internal/microservices/notificator/repository"
	"delivery-marketplace/internal/microservices/notificator/service"
)

type CourierLookup interface {
	GetByUserID(ctx context.Context, userID int64) (courierdomain.Courier, error)
}

type InboxHandler struct {
	service  service.InboxServiceInterface
	couriers CourierLookup
}

func NewInboxHandler(s service.InboxServiceInterface, couriers CourierLookup) *InboxHandler {
	return &InboxHandler{service: s, couriers: couriers}
}

func Routes(r chi.Router, h *Handler) {
	r.Get("/notifications", h.InboxHandler.List)
	r.Post("/notifications/{id}/read", h.InboxHandler.MarkRead)
}

func (h *InboxHandler) List(w http.ResponseWriter, r *http.Request) {
	topics, err := h.topics(r)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	limit := httpx.AtoiDefault(r.URL.Query().Get("limit"), 50)
	offset := httpx.AtoiDefault(r.URL.Query().Get("offset"), 0)
	list, err := h.service.List(r.Context(), topics, limit, offset)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	if list == nil {
		list = []repository.Notification{}
	}
	httpx.WriteJSON(w, http.StatusOK, list)
}

func (h *InboxHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.ParamInt64(r, "id")
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	topics, err := h.topics(r)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	if err := h.service.MarkRead(r.Context(), id, topics); err != nil {
		httpx.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *InboxHandler) topics(r *http.Request) ([]string, error) {
	p, ok := auth.FromContext(r.Context())
	if !ok {
		return nil, apperr.Unauthorized("no principal")
	}
	var courierID int64
	if p.Role == auth.RoleCourier {
		c, err := h.couriers.GetByUserID(r.Context(), p.UserID)
		switch {
		case err == nil:
			courierID = c.ID
		case !errors.Is(err, apperr.ErrNotFound):
			return nil, err
		}
	}
	return service.TopicsFor(p.UserID, courierID, p.Role == auth.RoleAdmin), nil
}
