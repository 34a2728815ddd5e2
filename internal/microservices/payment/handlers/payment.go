package handlers

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"delivery-marketplace/internal/common/apperr"
	"delivery-marketplace/internal/common/auth"
	"delivery-marketplace/internal/common/httpx"
	"delivery-marketplace/internal/microservices/payment/domain"
	"delivery-marketplace/internal/microservices/payment/service"
)

const (
	signatureHeader = "verif-hash"
	maxWebhookBody  = 1 << 20
)

type PaymentHandler struct {
	service service.PaymentServiceInterface
}

func NewPaymentHandler(s service.PaymentServiceInterface) *PaymentHandler {
	return &PaymentHandler{service: s}
}

func (h *PaymentHandler) IssueLink(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.FromContext(r.Context())
	if !ok {
		httpx.WriteError(w, apperr.Unauthorized("no principal"))
		return
	}
	var req domain.LinkRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, err)
		return
	}
	res, err := h.service.IssuePaymentLink(r.Context(), p.UserID, req)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, res)
}

func (h *PaymentHandler) Verify(w http.ResponseWriter, r *http.Request) {
	txRef := chi.URLParam(r, "tx_ref")
	if txRef == "" {
		httpx.WriteError(w, apperr.InvalidArgument("tx_ref is required"))
		return
	}
	p, err := h.service.VerifyPayment(r.Context(), txRef)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, p)
}

func (h *PaymentHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		httpx.WriteError(w, apperr.InvalidArgument("read body: %v", err))
		return
	}
	p, err := h.service.HandleWebhook(r.Context(), r.Header.Get(signatureHeader), raw)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"tx_ref": p.TxRef, "status": p.Status})
}
