package reconciler

import (
	"context"
	"fmt"
	"time"

	"delivery-marketplace/internal/common/logger"
	"delivery-marketplace/internal/config"
	"delivery-marketplace/internal/connections/database"
	"delivery-marketplace/internal/connections/flutterwave"
	"delivery-marketplace/internal/connections/rabbitmq"
	notifyservice "delivery-marketplace/internal/microservices/notificator/service"
	orderrepo "delivery-marketplace/internal/microservices/order/repository"
	orderservice "delivery-marketplace/internal/microservices/order/service"
	paymentrepo "delivery-marketplace/internal/microservices/payment/repository"
	paymentservice "delivery-marketplace/internal/microservices/payment/service"
)

// RunProcess runs the reconciler as its own process with its own store and
// broker connections.
func RunProcess(ctx context.Context, cfg *config.Config) error {
	lg := logger.New("payment-reconciler")

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
	sink := notifyservice.NewRabbitSink(rmq, lg, 5*time.Second)
	defer sink.Wait()

	orders := orderservice.New(orderrepo.New(db), nil, sink, logger.New("order-service"))
	payments := paymentservice.New(paymentrepo.New(db), orders.OrderService,
		flutterwave.New(cfg.Gateway.BaseURL, cfg.Gateway.SecretKey, nil),
		paymentservice.Settings{
			Currency:    cfg.Gateway.Currency,
			RedirectURL: cfg.Gateway.RedirectURL,
			SecretHash:  cfg.Gateway.SecretHash,
		}, sink, lg)

	New(payments.PaymentService, cfg.Reconciler, lg).Run(ctx)
	return nil
}
