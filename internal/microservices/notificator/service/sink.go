package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"delivery-marketplace/internal/common/events"
	"delivery-marketplace/internal/common/logger"
	"delivery-marketplace/internal/connections/rabbitmq"
)

type Publisher interface {
	Publish(ctx context.Context, m rabbitmq.Message) error
}

// RabbitSink publishes events to the notification fan-out exchange in the
// background. Publish never blocks on the broker and never fails the caller.
type RabbitSink struct {
	pub     Publisher
	lg      *logger.Logger
	timeout time.Duration
	wg      sync.WaitGroup
	now     func() time.Time
}

func NewRabbitSink(pub Publisher, lg *logger.Logger, timeout time.Duration) *RabbitSink {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &RabbitSink{pub: pub, lg: lg, timeout: timeout, now: time.Now}
}

func (s *RabbitSink) Publish(_ context.Context, ev events.Event) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = s.now().UTC()
	}
	body, err := json.Marshal(ev)
	if err != nil {
		s.lg.Error("notification_encode_failed", err, map[string]any{"event_type": ev.Type})
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		// detached from the request: the transition already committed
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		err := s.pub.Publish(ctx, rabbitmq.Message{
			Exchange:      rabbitmq.NotificationsExchange,
			Body:          body,
			MessageID:     ev.ID,
			CorrelationID: ev.Topic,
			Headers:       map[string]any{"x-event-type": string(ev.Type)},
		})
		if err != nil {
			s.lg.Warn("notification_publish_failed", map[string]any{"event_id": ev.ID, "event_type": ev.Type, "error": err.Error()})
			return
		}
		s.lg.Debug("notification_published", map[string]any{"event_id": ev.ID, "topic": ev.Topic})
	}()
}

// Wait blocks until in-flight publishes finish. Called on shutdown.
func (s *RabbitSink) Wait() { s.wg.Wait() }
