package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"delivery-marketplace/internal/common/events"
	"delivery-marketplace/internal/common/logger"
	"delivery-marketplace/internal/microservices/notificator/repository"
)

var (
	ErrRequeue = errors.New("requeue")
	ErrDLQ     = errors.New("dead_letter")
)

type Pusher interface {
	Send(ctx context.Context, chatID int64, text string) error
}

// Subscriber drains the notification queue into the inbox table and forwards
// courier events to Telegram.
type Subscriber struct {
	repo   repository.NotificationRepositoryInterface
	pusher Pusher
	lg     *logger.Logger
}

func NewSubscriber(repo repository.NotificationRepositoryInterface, pusher Pusher, lg *logger.Logger) *Subscriber {
	return &Subscriber{repo: repo, pusher: pusher, lg: lg}
}

// Acknowledger is the part of amqp.Delivery the loop settles messages with.
type Acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

// Run consumes until msgs is closed. Cancelling ctx does not stop the loop on
// its own; the caller cancels the consumer and lets the channel drain.
func (s *Subscriber) Run(ctx context.Context, msgs <-chan amqp.Delivery) {
	for d := range msgs {
		s.settle(d, s.Handle(ctx, d.Body), d.MessageId)
	}
}

func (s *Subscriber) settle(ack Acknowledger, err error, msgID string) {
	switch {
	case err == nil:
		_ = ack.Ack(false)
	case errors.Is(err, ErrDLQ):
		s.lg.Warn("notification_dead_lettered", map[string]any{"message_id": msgID, "error": err.Error()})
		_ = ack.Nack(false, false)
	default:
		s.lg.Error("notification_requeued", err, map[string]any{"message_id": msgID})
		_ = ack.Nack(false, true)
	}
}

func (s *Subscriber) Handle(ctx context.Context, body []byte) error {
	var ev events.Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("%w: decode: %v", ErrDLQ, err)
	}
	if ev.ID == "" || ev.Topic == "" || ev.Type == "" {
		return fmt.Errorf("%w: event without id, topic or type", ErrDLQ)
	}

	stored, err := s.repo.Save(ctx, ev, body)
	if err != nil {
		return fmt.Errorf("%w: save %s: %v", ErrRequeue, ev.ID, err)
	}
	if !stored {
		s.lg.Debug("notification_duplicate", map[string]any{"event_id": ev.ID})
		return nil
	}
	s.lg.Debug("notification_stored", map[string]any{"event_id": ev.ID, "topic": ev.Topic, "event_type": ev.Type})

	if s.pusher != nil && ev.CourierID != 0 && ev.Topic == events.CourierTopic(ev.CourierID) {
		s.push(ctx, ev)
	}
	return nil
}

func (s *Subscriber) push(ctx context.Context, ev events.Event) {
	chatID, ok, err := s.repo.CourierChatID(ctx, ev.CourierID)
	if err != nil {
		s.lg.Error("courier_chat_lookup_failed", err, map[string]any{"courier_id": ev.CourierID})
		return
	}
	if !ok {
		return
	}
	if err := s.pusher.Send(ctx, chatID, ev.Message); err != nil {
		s.lg.Warn("courier_push_failed", map[string]any{"courier_id": ev.CourierID, "event_id": ev.ID, "error": err.Error()})
	}
}
