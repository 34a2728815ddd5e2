// Package api composes the marketplace HTTP service.
package api

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"delivery-marketplace/internal/app/reconciler"
	"delivery-marketplace/internal/common/auth"
	"delivery-marketplace/internal/common/events"
	"delivery-marketplace/internal/common/httpx"
	"delivery-marketplace/internal/common/logger"
	"delivery-marketplace/internal/config"
	"delivery-marketplace/internal/connections/database"
	"delivery-marketplace/internal/connections/flutterwave"
	"delivery-marketplace/internal/connections/maps"
	"delivery-marketplace/internal/connections/rabbitmq"
	"delivery-marketplace/internal/geo"
	courierhandlers "delivery-marketplace/internal/microservices/courier/handlers"
	courierrepo "delivery-marketplace/internal/microservices/courier/repository"
	courierservice "delivery-marketplace/internal/microservices/courier/service"
	deliveryhandlers "delivery-marketplace/internal/microservices/delivery/handlers"
	deliveryrepo "delivery-marketplace/internal/microservices/delivery/repository"
	deliveryservice "delivery-marketplace/internal/microservices/delivery/service"
	dispatchhandlers "delivery-marketplace/internal/microservices/dispatch/handlers"
	dispatchservice "delivery-marketplace/internal/microservices/dispatch/service"
	notifyhandlers "delivery-marketplace/internal/microservices/notificator/handlers"
	notifyrepo "delivery-marketplace/internal/microservices/notificator/repository"
	notifyservice "delivery-marketplace/internal/microservices/notificator/service"
	orderhandlers "delivery-marketplace/internal/microservices/order/handlers"
	orderrepo "delivery-marketplace/internal/microservices/order/repository"
	orderservice "delivery-marketplace/internal/microservices/order/service"
	paymenthandlers "delivery-marketplace/internal/microservices/payment/handlers"
	paymentrepo "delivery-marketplace/internal/microservices/payment/repository"
	paymentservice "delivery-marketplace/internal/microservices/payment/service"
)

type Options struct {
	Port int
	// Reconcile runs the payment reconciler inside the API process.
	Reconcile bool
}

type handlers struct {
	courier  *courierhandlers.Handler
	order    *orderhandlers.Handler
	delivery *deliveryhandlers.Handler
	dispatch *dispatchhandlers.Handler
	payment  *paymenthandlers.Handler
	inbox    *notifyhandlers.Handler
}

func Run(ctx context.Context, cfg *config.Config, opts Options) error {
	lg := logger.New("api-service")
	if err := cfg.RequireSecrets(); err != nil {
		return err
	}
	if opts.Port == 0 {
		opts.Port = cfg.HTTP.Port
	}

	db, err := database.ConnectDB(ctx, cfg.Database, lg)
	if err != nil {
		return err
	}
	defer db.Close()

	rmq, err := rabbitmq.Dial(cfg.RabbitMQ)
	if err != nil {
		return fmt.Errorf("rabbitmq: %w", err)
	}
	defer rmq.Close()
	if err := rmq.DeclareTopology(); err != nil {
		return err
	}
	lg.Info("rabbitmq_connected", map[string]any{"host": cfg.RabbitMQ.Host})

	sink := notifyservice.NewRabbitSink(rmq, lg, 5*time.Second)
	defer sink.Wait()

	h, payments := wire(db, cfg, sink, lg)
	router := newRouter(h, []byte(cfg.Auth.JWTSecret), db, lg)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		srv := httpx.New(fmt.Sprintf(":%d", opts.Port), router, cfg.HTTP.ReadTimeout, cfg.HTTP.WriteTimeout)
		lg.Info("http_listening", map[string]any{"port": opts.Port})
		return srv.Run(gctx)
	})
	if opts.Reconcile {
		g.Go(func() error {
			reconciler.New(payments, cfg.Reconciler, lg).Run(gctx)
			return nil
		})
	}
	return g.Wait()
}

func wire(db *sql.DB, cfg *config.Config, sink events.Sink, lg *logger.Logger) (*handlers, *paymentservice.PaymentService) {
	var (
		geocoder geo.Geocoder
		router   deliveryservice.Router
	)
	if cfg.Maps.APIKey != "" {
		mc := maps.New(cfg.Maps.BaseURL, cfg.Maps.APIKey, cfg.Maps.RequestsPerSecond, nil)
		geocoder, router = mc, mc
	} else {
		lg.Warn("maps_disabled", map[string]any{"reason": "MAPS_API_KEY is empty, using haversine estimates"})
	}
	pricing := geo.Pricing{
		BaseFuelCost:    cfg.Pricing.BaseFuelCost,
		PerKmRate:       cfg.Pricing.PerKmRate,
		AverageSpeedKmh: cfg.Pricing.AverageSpeedKmh,
	}

	couriers := courierservice.New(courierrepo.New(db), sink, logger.New("courier-service"))
	orders := orderservice.New(orderrepo.New(db), geocoder, sink, logger.New("order-service"))
	deliveries := deliveryservice.New(deliveryrepo.New(db), orders.OrderService, couriers.CourierService,
		geocoder, router, pricing, sink, logger.New("delivery-service"))
	dispatch := dispatchservice.New(dispatchservice.Policy{RequireDeliveryPaid: cfg.Dispatch.RequireDeliveryPaid},
		orders.OrderService, deliveries.DeliveryService, logger.New("dispatch-service"))
	payments := paymentservice.New(paymentrepo.New(db), orders.OrderService,
		flutterwave.New(cfg.Gateway.BaseURL, cfg.Gateway.SecretKey, nil),
		paymentservice.Settings{
			Currency:    cfg.Gateway.Currency,
			RedirectURL: cfg.Gateway.RedirectURL,
			SecretHash:  cfg.Gateway.SecretHash,
		}, sink, logger.New("payment-service"))
	inbox := notifyservice.New(notifyrepo.New(db), nil, lg)

	lg.Info("services_wired", map[string]any{
		"require_delivery_paid": cfg.Dispatch.RequireDeliveryPaid,
		"maps_enabled":          geocoder != nil,
	})
	return &handlers{
		courier:  courierhandlers.New(couriers),
		order:    orderhandlers.New(orders),
		delivery: deliveryhandlers.New(deliveries),
		dispatch: dispatchhandlers.New(dispatch),
		payment:  paymenthandlers.New(payments),
		inbox:    notifyhandlers.New(inbox, couriers.CourierService),
	}, payments.PaymentService
}

// Pinger reports store health for /healthz.
type Pinger interface {
	PingContext(ctx context.Context) error
}

func newRouter(h *handlers, secret []byte, db Pinger, lg *logger.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(lg.Middleware)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			httpx.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "db": err.Error()})
			return
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		paymenthandlers.WebhookRoutes(r, h.payment)

		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(secret))
			courierhandlers.Routes(r, h.courier)
			orderhandlers.Routes(r, h.order)
			deliveryhandlers.Routes(r, h.delivery)
			dispatchhandlers.Routes(r, h.dispatch)
			paymenthandlers.Routes(r, h.payment)
			notifyhandlers.Routes(r, h.inbox)
		})
	})
	return r
}
