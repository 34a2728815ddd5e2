package rabbitmq

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"delivery-marketplace/internal/config"
)

const (
	NotificationsExchange = "notifications_fanout"
	NotificationsQueue    = "notifications.q"
	DeadLetterExchange    = "dlx"
	DeadLetterQueue       = "dlq"
)

type Client struct {
	conn *amqp.Connection
	ch   *amqp.Channel
	mu   sync.Mutex
}

func Dial(cfg config.RabbitMQConfig) (*Client, error) {
	scheme := "amqp"
	if cfg.UseTLS {
		scheme = "amqps"
	}
	u := url.URL{
		Scheme: scheme,
		User:   url.UserPassword(cfg.User, cfg.Password),
		Host:   fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Path:   "/" + url.PathEscape(cfg.VHost),
	}
	if cfg.VHost == "" || cfg.VHost == "/" {
		u.Path = "/"
	}

	var (
		conn *amqp.Connection
		err  error
	)
	if cfg.UseTLS {
		conn, err = amqp.DialTLS(u.String(), &tls.Config{MinVersion: tls.VersionTLS12})
	} else {
		conn, err = amqp.Dial(u.String())
	}
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}

	return &Client{conn: conn, ch: ch}, nil
}

func (c *Client) Close() {
	if c.ch != nil {
		_ = c.ch.Close()
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

func (c *Client) Ping() error {
	if c.conn == nil || c.conn.IsClosed() {
		return errors.New("rabbitmq connection is closed")
	}
	return nil
}

// DeclareTopology declares the notification fan-out with its dead-letter path. Idempotent.
func (c *Client) DeclareTopology() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ch.ExchangeDeclare(NotificationsExchange, "fanout", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare %s: %w", NotificationsExchange, err)
	}
	if err := c.ch.ExchangeDeclare(DeadLetterExchange, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare %s: %w", DeadLetterExchange, err)
	}
	if _, err := c.ch.QueueDeclare(NotificationsQueue, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    DeadLetterExchange,
		"x-dead-letter-routing-key": DeadLetterQueue,
	}); err != nil {
		return fmt.Errorf("declare %s: %w", NotificationsQueue, err)
	}
	if _, err := c.ch.QueueDeclare(DeadLetterQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare %s: %w", DeadLetterQueue, err)
	}
	if err := c.ch.QueueBind(NotificationsQueue, "", NotificationsExchange, false, nil); err != nil {
		return fmt.Errorf("bind %s: %w", NotificationsQueue, err)
	}
	if err := c.ch.QueueBind(DeadLetterQueue, DeadLetterQueue, DeadLetterExchange, false, nil); err != nil {
		return fmt.Errorf("bind %s: %w", DeadLetterQueue, err)
	}
	return nil
}

type Message struct {
	Exchange      string
	Key           string
	Body          []byte
	MessageID     string
	CorrelationID string
	Headers       amqp.Table
}

// Publish sends a persistent JSON message and waits for the broker confirm of
// that delivery tag.
func (c *Client) Publish(ctx context.Context, m Message) error {
	c.mu.Lock()
	conf, err := c.ch.PublishWithDeferredConfirmWithContext(ctx, m.Exchange, m.Key, false, false, amqp.Publishing{
		DeliveryMode:  amqp.Persistent,
		ContentType:   "application/json",
		MessageId:     m.MessageID,
		CorrelationId: m.CorrelationID,
		Timestamp:     time.Now().UTC(),
		Headers:       m.Headers,
		Body:          m.Body,
	})
	c.mu.Unlock()
	if err != nil {
		return err
	}

	acked, err := conf.WaitContext(ctx)
	if err != nil {
		return err
	}
	if !acked {
		return errors.New("publish NACK from broker")
	}
	return nil
}

// Consume opens a dedicated channel; the shared one is in confirm mode.
func (c *Client) Consume(queue, consumer string, prefetch int) (*amqp.Channel, <-chan amqp.Delivery, error) {
	ch, err := c.conn.Channel()
	if err != nil {
		return nil, nil, err
	}
	if prefetch <= 0 {
		prefetch = 1
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		_ = ch.Close()
		return nil, nil, err
	}
	msgs, err := ch.Consume(queue, consumer, false, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		return nil, nil, err
	}
	return ch, msgs, nil
}
