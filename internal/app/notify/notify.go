// Package notify runs the notification subscriber process.
package notify

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"delivery-marketplace/internal/common/logger"
	"delivery-marketplace/internal/config"
	"delivery-marketplace/internal/connections/database"
	"delivery-marketplace/internal/connections/rabbitmq"
	"delivery-marketplace/internal/connections/telegram"
	notifyrepo "delivery-marketplace/internal/microservices/notificator/repository"
	notifyservice "delivery-marketplace/internal/microservices/notificator/service"
)

const consumerTag = "notification-subscriber"

func Run(ctx context.Context, cfg *config.Config, prefetch int) error {
	lg := logger.New("notification-subscriber")

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

	var pusher notifyservice.Pusher
	if cfg.Telegram.BotToken != "" {
		p, err := telegram.Dial(cfg.Telegram.BotToken)
		if err != nil {
			return err
		}
		pusher = p
	} else {
		lg.Warn("telegram_disabled", map[string]any{"reason": "TELEGRAM_BOT_TOKEN is empty"})
	}

	svc := notifyservice.New(notifyrepo.New(db), pusher, lg)

	ch, msgs, err := rmq.Consume(rabbitmq.NotificationsQueue, consumerTag, prefetch)
	if err != nil {
		return fmt.Errorf("consume %s: %w", rabbitmq.NotificationsQueue, err)
	}
	defer ch.Close()
	watchChannel(ch, lg)

	lg.Info("subscriber_started", map[string]any{"queue": rabbitmq.NotificationsQueue, "prefetch": prefetch})

	done := make(chan struct{})
	go func() {
		defer close(done)
		svc.Subscriber.Run(context.WithoutCancel(ctx), msgs)
	}()

	select {
	case <-ctx.Done():
		lg.Info("graceful_shutdown", nil)
		_ = ch.Cancel(consumerTag, false)
		<-done
		return nil
	case <-done:
		return fmt.Errorf("consumer channel closed")
	}
}

// watchChannel logs broker-side closes and consumer cancellations.
func watchChannel(ch *amqp.Channel, lg *logger.Logger) {
	closeCh := ch.NotifyClose(make(chan *amqp.Error, 1))
	cancelCh := ch.NotifyCancel(make(chan string, 1))
	go func() {
		for {
			select {
			case e, ok := <-closeCh:
				if ok && e != nil {
					lg.Error("amqp_channel_closed", e, map[string]any{"code": e.Code})
				}
				return
			case tag, ok := <-cancelCh:
				if !ok {
					return
				}
				lg.Warn("consumer_canceled", map[string]any{"tag": tag})
			}
		}
	}()
}
