package handlers

import (
	"net/http"
	"time"

	"delivery-marketplace/internal/common/apperr"
	"delivery-marketplace/internal/common/auth"
	"delivery-marketplace/internal/common/httpx"
	"delivery-marketplace/internal/geo"
	"delivery-marketplace/internal/microservices/delivery/domain"
	"delivery-marketplace/internal/microservices/delivery/service"
)

type DeliveryHandler struct {
	service service.DeliveryServiceInterface
}

func NewDeliveryHandler(s service.DeliveryServiceInterface) *DeliveryHandler {
	return &DeliveryHandler{service: s}
}

type quoteRequest struct {
	Pickup  *geo.Point `json:"pickup" validate:"required"`
	Dropoff *geo.Point `json:"dropoff" validate:"required"`
	At      time.Time  `json:"at"`
}

type deliverRequest struct {
	Rating *int `json:"rating"`
}

type cancelRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

func (h *DeliveryHandler) Quote(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, err)
		return
	}
	q, err := h.service.Quote(*req.Pickup, *req.Dropoff, req.At)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, q)
}

func (h *DeliveryHandler) GetDelivery(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.ParamInt64(r, "id")
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	d, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, d)
}

func (h *DeliveryHandler) Timeline(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.ParamInt64(r, "id")
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	limit := httpx.AtoiDefault(r.URL.Query().Get("limit"), 50)
	offset := httpx.AtoiDefault(r.URL.Query().Get("offset"), 0)
	entries, err := h.service.Timeline(r.Context(), id, limit, offset)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	if entries == nil {
		entries = []domain.TimelineEntry{}
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"delivery_id": id, "events": entries})
}

func (h *DeliveryHandler) Pickup(w http.ResponseWriter, r *http.Request) {
	id, courierID, err := h.courierAction(r)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	res, err := h.service.Pickup(r.Context(), id, courierID)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, res)
}

func (h *DeliveryHandler) Deliver(w http.ResponseWriter, r *http.Request) {
	id, courierID, err := h.courierAction(r)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	var req deliverRequest
	if r.ContentLength != 0 {
		if err := httpx.Decode(r, &req); err != nil {
			httpx.WriteError(w, err)
			return
		}
	}
	res, err := h.service.Deliver(r.Context(), id, courierID, req.Rating)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, res)
}

func (h *DeliveryHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.ParamInt64(r, "id")
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	var req cancelRequest
	if r.ContentLength != 0 {
		if err := httpx.Decode(r, &req); err != nil {
			httpx.WriteError(w, err)
			return
		}
	}

	p, _ := auth.FromContext(r.Context())
	actor := domain.Actor{Admin: p.Role == auth.RoleAdmin}
	if !actor.Admin {
		if actor.CourierID, err = h.service.CourierIDForUser(r.Context(), p.UserID); err != nil {
			httpx.WriteError(w, err)
			return
		}
	}
	d, err := h.service.Cancel(r.Context(), id, actor, req.Reason)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, d)
}

// courierAction resolves the delivery id and the calling courier.
func (h *DeliveryHandler) courierAction(r *http.Request) (int64, int64, error) {
	id, err := httpx.ParamInt64(r, "id")
	if err != nil {
		return 0, 0, err
	}
	p, ok := auth.FromContext(r.Context())
	if !ok {
		return 0, 0, apperr.Unauthorized("no principal")
	}
	courierID, err := h.service.CourierIDForUser(r.Context(), p.UserID)
	if err != nil {
		return 0, 0, err
	}
	return id, courierID, nil
}
