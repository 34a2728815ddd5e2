package handlers

import (
	"net/http"
	"strconv"
	"time"

	"delivery-marketplace/internal/common/apperr"
	"delivery-marketplace/internal/common/auth"
	"delivery-marketplace/internal/common/httpx"
	"delivery-marketplace/internal/geo"
	"delivery-marketplace/internal/microservices/courier/domain"
	"delivery-marketplace/internal/microservices/courier/service"
)

const defaultNearestLimit = 10

type CourierHandler struct {
	service service.CourierServiceInterface
}

func NewCourierHandler(s service.CourierServiceInterface) *CourierHandler {
	return &CourierHandler{service: s}
}

type availabilityRequest struct {
	Availability domain.Availability `json:"availability" validate:"required"`
}

type locationRequest struct {
	Lat        *float64  `json:"lat" validate:"required"`
	Lng        *float64  `json:"lng" validate:"required"`
	RecordedAt time.Time `json:"recorded_at"`
}

type decisionRequest struct {
	Decision domain.Verification `json:"decision" validate:"required,oneof=approved rejected"`
}

func (h *CourierHandler) Register(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())
	c, err := h.service.Register(r.Context(), p.UserID)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, c)
}

func (h *CourierHandler) SubmitVerification(w http.ResponseWriter, r *http.Request) {
	me, err := h.me(r)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	var docs domain.Documents
	if err := httpx.Decode(r, &docs); err != nil {
		httpx.WriteError(w, err)
		return
	}
	c, err := h.service.SubmitVerification(r.Context(), me.ID, docs)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, c)
}

func (h *CourierHandler) SetAvailability(w http.ResponseWriter, r *http.Request) {
	me, err := h.me(r)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	var req availabilityRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, err)
		return
	}
	c, err := h.service.SetAvailability(r.Context(), me.ID, req.Availability)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, c)
}

func (h *CourierHandler) RecordLocation(w http.ResponseWriter, r *http.Request) {
	me, err := h.me(r)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	var req locationRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, err)
		return
	}
	p := geo.Point{Lat: *req.Lat, Lng: *req.Lng}
	if err := h.service.RecordLocation(r.Context(), me.ID, p, req.RecordedAt); err != nil {
		httpx.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CourierHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	me, err := h.me(r)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	d, err := h.service.Dashboard(r.Context(), me.ID)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, d)
}

func (h *CourierHandler) DecideVerification(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.ParamInt64(r, "id")
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	var req decisionRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, err)
		return
	}
	c, err := h.service.DecideVerification(r.Context(), id, req.Decision)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, c)
}

// Nearest serves GET /admin/couriers/nearest?lat=..&lng=..&limit=..
func (h *CourierHandler) Nearest(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat, errLat := strconv.ParseFloat(q.Get("lat"), 64)
	lng, errLng := strconv.ParseFloat(q.Get("lng"), 64)
	if errLat != nil || errLng != nil {
		httpx.WriteError(w, apperr.InvalidArgument("lat and lng query parameters are required"))
		return
	}
	limit := httpx.AtoiDefault(q.Get("limit"), defaultNearestLimit)
	out, err := h.service.FindNearestAvailable(r.Context(), geo.Point{Lat: lat, Lng: lng}, limit)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"couriers": out})
}

// History serves GET /couriers/me/deliveries?status=..&limit=..&offset=..
func (h *CourierHandler) History(w http.ResponseWriter, r *http.Request) {
	me, err := h.me(r)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	q := r.URL.Query()
	records, err := h.service.History(r.Context(), me.ID, domain.HistoryFilter{
		Status: q.Get("status"),
		Limit:  httpx.AtoiDefault(q.Get("limit"), 0),
		Offset: httpx.AtoiDefault(q.Get("offset"), 0),
	})
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	if records == nil {
		records = []domain.DeliveryRecord{}
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"deliveries": records})
}

func (h *CourierHandler) Ratings(w http.ResponseWriter, r *http.Request) {
	me, err := h.me(r)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	sum, err := h.service.RatingsSummary(r.Context(), me.ID)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, sum)
}

// List serves GET /admin/couriers?verification=pending, the KYC review queue by default.
func (h *CourierHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	out, err := h.service.ListByVerification(r.Context(), domain.Verification(q.Get("verification")),
		httpx.AtoiDefault(q.Get("limit"), 0), httpx.AtoiDefault(q.Get("offset"), 0))
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	if out == nil {
		out = []domain.Courier{}
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"couriers": out})
}

func (h *CourierHandler) me(r *http.Request) (domain.Courier, error) {
	p, ok := auth.FromContext(r.Context())
	if !ok {
		return domain.Courier{}, apperr.Unauthorized("no principal")
	}
	return h.service.GetByUserID(r.Context(), p.UserID)
}
