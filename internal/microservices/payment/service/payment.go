package service

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"delivery-marketplace/internal/common/apperr"
	"delivery-marketplace/internal/common/events"
	"delivery-marketplace/internal/common/logger"
	"delivery-marketplace/internal/connections/flutterwave"
	orderdomain "delivery-marketplace/internal/microservices/order/domain"
	"delivery-marketplace/internal/microservices/payment/domain"
	"delivery-marketplace/internal/microservices/payment/repository"
)

type Gateway interface {
	CreatePaymentLink(ctx context.Context, req flutterwave.LinkRequest) (flutterwave.Link, error)
	VerifyByReference(ctx context.Context, txRef string) (flutterwave.Transaction, error)
}

type OrderReader interface {
	Get(ctx context.Context, id int64) (orderdomain.Order, error)
}

type Settings struct {
	Currency    string
	RedirectURL string
	SecretHash  string
}

type PaymentServiceInterface interface {
	IssuePaymentLink(ctx context.Context, payerID int64, req domain.LinkRequest) (domain.LinkResult, error)
	HandleWebhook(ctx context.Context, signature string, raw []byte) (domain.Payment, error)
	VerifyPayment(ctx context.Context, txRef string) (domain.Payment, error)
	ListPending(ctx context.Context, minAge time.Duration, limit int) ([]domain.Payment, error)
}

type PaymentService struct {
	repo     repository.PaymentRepositoryInterface
	orders   OrderReader
	gateway  Gateway
	settings Settings
	sink     events.Sink
	lg       *logger.Logger
	now      func() time.Time
}

func NewPaymentService(
	repo repository.PaymentRepositoryInterface,
	orders OrderReader,
	gateway Gateway,
	settings Settings,
	sink events.Sink,
	lg *logger.Logger,
) *PaymentService {
	return &PaymentService{
		repo:     repo,
		orders:   orders,
		gateway:  gateway,
		settings: settings,
		sink:     sink,
		lg:       lg,
		now:      time.Now,
	}
}

// IssuePaymentLink prices the payment, asks the gateway for a hosted link and
// records a pending row keyed by a fresh tx_ref. Nothing is stored when the
// gateway call fails.
func (s *PaymentService) IssuePaymentLink(ctx context.Context, payerID int64, req domain.LinkRequest) (domain.LinkResult, error) {
	if !req.PaymentType.IsValid() {
		return domain.LinkResult{}, apperr.InvalidArgument("unknown payment type %q", req.PaymentType)
	}
	amount, err := s.amountFor(ctx, payerID, req)
	if err != nil {
		return domain.LinkResult{}, err
	}
	payer, err := s.repo.Payer(ctx, payerID)
	if err != nil {
		return domain.LinkResult{}, err
	}
	if req.Name != "" {
		payer.Name = req.Name
	}

	txRef := domain.NewTxRef(req.PaymentType, req.OrderID)
	meta := flutterwave.Meta{UserID: payerID, PaymentType: string(req.PaymentType)}
	title := "Marketplace payment"
	if req.OrderID != nil {
		meta.OrderID = *req.OrderID
		title = fmt.Sprintf("Order #%d %s payment", *req.OrderID, req.PaymentType)
	}

	link, err := s.gateway.CreatePaymentLink(ctx, flutterwave.LinkRequest{
		TxRef:       txRef,
		Amount:      amount,
		Currency:    s.settings.Currency,
		RedirectURL: s.settings.RedirectURL,
		Customer:    flutterwave.Customer{Email: payer.Email, Name: payer.Name},
		Meta:        meta,
		Title:       title,
	})
	if err != nil {
		s.lg.Error("payment_link_failed", err, map[string]any{"tx_ref": txRef})
		return domain.LinkResult{}, apperr.Upstream("payment gateway", err)
	}

	p, err := s.repo.Insert(ctx, domain.Payment{
		OrderID:          req.OrderID,
		UserID:           payerID,
		Amount:           amount,
		Currency:         s.settings.Currency,
		Status:           domain.StatusPending,
		Type:             req.PaymentType,
		TxRef:            txRef,
		GatewayID:        link.GatewayID,
		PaymentReference: link.GatewayID,
		Link:             link.URL,
	})
	if err != nil {
		return domain.LinkResult{}, err
	}
	s.lg.Info("payment_link_issued", map[string]any{"tx_ref": txRef, "amount": amount.String(), "payment_type": req.PaymentType})
	return domain.LinkResult{Payment: p, Link: link.URL}, nil
}

func (s *PaymentService) amountFor(ctx context.Context, payerID int64, req domain.LinkRequest) (decimal.Decimal, error) {
	if req.OrderID == nil {
		if req.Amount == nil || !req.Amount.IsPositive() {
			return decimal.Zero, apperr.InvalidArgument("amount must be positive when no order is given")
		}
		return req.Amount.Round(2), nil
	}

	o, err := s.orders.Get(ctx, *req.OrderID)
	if err != nil {
		return decimal.Zero, err
	}
	if o.BuyerID != payerID {
		return decimal.Zero, apperr.Forbidden("order %d belongs to another buyer", o.ID)
	}
	if o.Status == orderdomain.StatusCancelled || o.Status == orderdomain.StatusDelivered {
		return decimal.Zero, apperr.InvalidState("order %d is %s", o.ID, o.Status)
	}

	amount := o.TotalAmount
	if req.PaymentType == domain.TypeDelivery {
		amount = o.DeliveryFee
	}
	if !amount.IsPositive() {
		return decimal.Zero, apperr.InvalidState("order %d has nothing to pay for %s", o.ID, req.PaymentType)
	}
	return amount, nil
}

// HandleWebhook authenticates a gateway callback and applies its outcome.
// Replaying a callback for a payment already in a terminal state returns the
// stored payment unchanged.
func (s *PaymentService) HandleWebhook(ctx context.Context, signature string, raw []byte) (domain.Payment, error) {
	if !s.signatureValid(signature) {
		s.lg.Warn("webhook_signature_rejected", nil)
		return domain.Payment{}, apperr.Unauthorized("invalid webhook signature")
	}

	var payload domain.WebhookPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return domain.Payment{}, apperr.InvalidArgument("malformed webhook payload: %v", err)
	}
	if payload.Data.TxRef == "" {
		return domain.Payment{}, apperr.InvalidArgument("webhook payload has no tx_ref")
	}
	status, err := domain.MapGatewayStatus(payload.Data.Status)
	if err != nil {
		return domain.Payment{}, err
	}

	s.lg.Debug("webhook_received", map[string]any{"event": payload.Event, "tx_ref": payload.Data.TxRef, "status": payload.Data.Status})
	return s.apply(ctx, domain.Outcome{
		TxRef:     payload.Data.TxRef,
		Status:    status,
		GatewayID: gatewayID(payload.Data.ID),
		Amount:    payload.Data.Amount,
		Currency:  payload.Data.Currency,
	}, sourceWebhook)
}

func (s *PaymentService) signatureValid(signature string) bool {
	if s.settings.SecretHash == "" || signature == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(signature), []byte(s.settings.SecretHash)) == 1
}

// VerifyPayment asks the gateway for the current state of txRef and applies it
// exactly as a webhook with the same status would.
func (s *PaymentService) VerifyPayment(ctx context.Context, txRef string) (domain.Payment, error) {
	p, err := s.repo.GetByTxRef(ctx, txRef)
	if err != nil {
		return domain.Payment{}, err
	}
	if p.Status.IsTerminal() {
		return p, nil
	}

	tx, err := s.gateway.VerifyByReference(ctx, txRef)
	if err != nil {
		return domain.Payment{}, apperr.Upstream("payment gateway", err)
	}
	status, err := domain.MapGatewayStatus(tx.Status)
	if err != nil {
		return domain.Payment{}, err
	}
	return s.apply(ctx, domain.Outcome{
		TxRef:     txRef,
		Status:    status,
		GatewayID: gatewayID(tx.ID),
		Amount:    tx.Amount,
		Currency:  tx.Currency,
	}, sourceVerify)
}

const (
	sourceWebhook = "webhook"
	sourceVerify  = "verify"
)

// apply stores a gateway outcome once. A terminal payment is never rewritten:
// a contradicting webhook is acknowledged with the stored state, a
// contradicting verification is reported as Conflict.
func (s *PaymentService) apply(ctx context.Context, o domain.Outcome, source string) (domain.Payment, error) {
	if o.Status == domain.StatusPending {
		return s.repo.GetByTxRef(ctx, o.TxRef)
	}
	if o.Status == domain.StatusCompleted {
		if err := s.checkSettlement(ctx, o); err != nil {
			return domain.Payment{}, err
		}
	}

	p, changed, err := s.repo.ApplyOutcome(ctx, o)
	if err != nil {
		return domain.Payment{}, err
	}
	if !changed {
		if p.Status != o.Status {
			fields := map[string]any{"tx_ref": o.TxRef, "stored": p.Status, "reported": o.Status, "source": source}
			s.lg.Warn("payment_outcome_contradicts_stored", fields)
			if source == sourceVerify {
				return domain.Payment{}, apperr.Conflict("payment %s is already %s, gateway reports %s", o.TxRef, p.Status, o.Status)
			}
			return p, nil
		}
		s.lg.Debug("payment_outcome_replayed", map[string]any{"tx_ref": o.TxRef, "stored": p.Status, "reported": o.Status})
		return p, nil
	}

	s.lg.Info("payment_updated", map[string]any{"tx_ref": p.TxRef, "status": p.Status, "payment_type": p.Type})
	ev := events.Event{
		Type:    events.PaymentUpdated,
		Topic:   events.UserTopic(p.UserID),
		UserID:  p.UserID,
		Status:  string(p.Status),
		Message: fmt.Sprintf("Your %s payment %s is %s", p.Type, p.TxRef, p.Status),
	}
	if p.OrderID != nil {
		ev.OrderID = *p.OrderID
	}
	s.sink.Publish(ctx, ev)
	admin := ev
	admin.Topic = events.AdminsTopic
	s.sink.Publish(ctx, admin)
	return p, nil
}

// checkSettlement refuses to complete a payment when the gateway reports a
// smaller amount or a different currency than was requested.
func (s *PaymentService) checkSettlement(ctx context.Context, o domain.Outcome) error {
	if o.Amount.IsZero() && o.Currency == "" {
		return nil
	}
	p, err := s.repo.GetByTxRef(ctx, o.TxRef)
	if err != nil {
		return err
	}
	if p.Status.IsTerminal() {
		return nil
	}
	if o.Currency != "" && o.Currency != p.Currency {
		s.lg.Warn("payment_currency_mismatch", map[string]any{"tx_ref": o.TxRef, "expected": p.Currency, "got": o.Currency})
		return apperr.InvalidArgument("payment %s settled in %s, expected %s", o.TxRef, o.Currency, p.Currency)
	}
	if !o.Amount.IsZero() && o.Amount.LessThan(p.Amount) {
		s.lg.Warn("payment_amount_mismatch", map[string]any{"tx_ref": o.TxRef, "expected": p.Amount.String(), "got": o.Amount.String()})
		return apperr.InvalidArgument("payment %s settled %s, expected %s", o.TxRef, o.Amount, p.Amount)
	}
	return nil
}

func (s *PaymentService) ListPending(ctx context.Context, minAge time.Duration, limit int) ([]domain.Payment, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.repo.ListPending(ctx, s.now().Add(-minAge), limit)
}

func gatewayID(id int64) string {
	if id == 0 {
		return ""
	}
	return fmt.Sprintf("%d", id)
}
