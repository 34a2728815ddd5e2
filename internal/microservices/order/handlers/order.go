package handlers

import (
	"net/http"

	"delivery-marketplace/internal/common/apperr"
	"delivery-marketplace/internal/common/auth"
	"delivery-marketplace/internal/common/httpx"
	"delivery-marketplace/internal/microservices/order/domain"
	"delivery-marketplace/internal/microservices/order/service"
)

type OrderHandler struct {
	service service.OrderServiceInterface
}

func NewOrderHandler(s service.OrderServiceInterface) *OrderHandler {
	return &OrderHandler{service: s}
}

type statusRequest struct {
	Status domain.Status `json:"status" validate:"required"`
}

func (oh *OrderHandler) AddOrder(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())

	var req domain.CreateOrderRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, err)
		return
	}

	o, err := oh.service.CreateOrder(r.Context(), p.UserID, req)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, o)
}

func (oh *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.ParamInt64(r, "id")
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	o, err := oh.service.Get(r.Context(), id)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	p, _ := auth.FromContext(r.Context())
	if p.Role != auth.RoleAdmin && o.BuyerID != p.UserID {
		httpx.WriteError(w, apperr.Forbidden("order %d belongs to another buyer", id))
		return
	}
	httpx.WriteJSON(w, http.StatusOK, o)
}

func (oh *OrderHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())
	orders, err := oh.service.ListByBuyer(r.Context(), p.UserID)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"orders": orders})
}

func (oh *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.ParamInt64(r, "id")
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	var req statusRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, err)
		return
	}
	o, err := oh.service.UpdateStatus(r.Context(), id, req.Status)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, o)
}
