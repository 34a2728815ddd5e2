package handlers

import (
	"net/http"

	"delivery-marketplace/internal/common/httpx"
	"delivery-marketplace/internal/microservices/order/domain"
	"delivery-marketplace/internal/microservices/order/service"
)

type ProductHandler struct {
	service service.ProductServiceInterface
}

func NewProductHandler(s service.ProductServiceInterface) *ProductHandler {
	return &ProductHandler{service: s}
}

func filterFrom(r *http.Request, includeArchived bool) domain.ProductFilter {
	q := r.URL.Query()
	return domain.ProductFilter{
		Search:          q.Get("search"),
		IncludeArchived: includeArchived,
		Limit:           httpx.AtoiDefault(q.Get("limit"), 0),
		Offset:          httpx.AtoiDefault(q.Get("offset"), 0),
	}
}

func (ph *ProductHandler) list(w http.ResponseWriter, r *http.Request, includeArchived bool) {
	products, err := ph.service.List(r.Context(), filterFrom(r, includeArchived))
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	if products == nil {
		products = []domain.Product{}
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"products": products})
}

// List is the public catalog: products on sale only.
func (ph *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	ph.list(w, r, false)
}

func (ph *ProductHandler) AdminList(w http.ResponseWriter, r *http.Request) {
	ph.list(w, r, r.URL.Query().Get("archived") != "false")
}

func (ph *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.ParamInt64(r, "id")
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	p, err := ph.service.Get(r.Context(), id, false)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, p)
}

func (ph *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.ProductInput
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, err)
		return
	}
	p, err := ph.service.Create(r.Context(), req)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, p)
}

func (ph *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.ParamInt64(r, "id")
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	var req domain.ProductPatch
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, err)
		return
	}
	p, err := ph.service.Update(r.Context(), id, req)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, p)
}

func (ph *ProductHandler) Archive(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.ParamInt64(r, "id")
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	p, err := ph.service.Archive(r.Context(), id)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, p)
}

func (ph *ProductHandler) Restock(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.ParamInt64(r, "id")
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	var req domain.RestockRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, err)
		return
	}
	p, err := ph.service.Restock(r.Context(), id, req.Quantity)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, p)
}
