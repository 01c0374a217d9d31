package amqp

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"cashbook/internal/budget"
	"cashbook/internal/core"
	applog "cashbook/internal/log"

	"github.com/rabbitmq/amqp091-go"
)

var errDeliveriesClosed = errors.New("delivery channel closed")

// Client publishes cashbook events to a durable topic exchange and consumes
// them from one queue bound to every routing key.
type Client struct {
	url          string
	exchangeName string
	queueName    string

	mu      sync.Mutex
	conn    *amqp091.Connection
	channel *amqp091.Channel

	state        int32
	failureCount int64
	failMu       sync.Mutex
	lastFailure  time.Time
}

// NewClient connects and declares the exchange. The queue is declared and
// bound only when queueName is set.
func NewClient(url, exchangeName, queueName string) (*Client, error) {
	c := &Client{
		url:          url,
		exchangeName: exchangeName,
		queueName:    queueName,
	}
	if err := c.connect(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectLocked()
}

func (c *Client) connectLocked() error {
	c.closeLocked()

	conn, err := amqp091.Dial(c.url)
	if err != nil {
		return fmt.Errorf("dial AMQP: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}
	c.conn, c.channel = conn, channel

	if err := c.setup(); err != nil {
		c.closeLocked()
		return fmt.Errorf("setup exchange and queue: %w", err)
	}
	return nil
}

func (c *Client) setup() error {
	err := c.channel.ExchangeDeclare(
		c.exchangeName, // name
		"topic",        // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}
	if c.queueName == "" {
		return nil
	}

	_, err = c.channel.QueueDeclare(
		c.queueName, // name
		true,        // durable
		false,       // delete when unused
		false,       // exclusive
		false,       // no-wait
		nil,         // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	for _, key := range []string{RoutingBudgetExceeded, RoutingTransactionPosted} {
		if err := c.channel.QueueBind(c.queueName, key, c.exchangeName, false, nil); err != nil {
			return fmt.Errorf("bind queue to %s: %w", key, err)
		}
	}
	return nil
}

// PublishBudgetExceeded publishes ev under RoutingBudgetExceeded.
func (c *Client) PublishBudgetExceeded(ctx context.Context, ev budget.ExceededEvent) error {
	body, err := NewBudgetExceededMessage(ev).ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	return c.publish(ctx, RoutingBudgetExceeded, body)
}

// PublishTransactionPosted publishes tx under RoutingTransactionPosted.
func (c *Client) PublishTransactionPosted(ctx context.Context, tx core.Transaction, source string) error {
	body, err := NewTransactionPostedMessage(tx, source).ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	return c.publish(ctx, RoutingTransactionPosted, body)
}

func (c *Client) publish(ctx context.Context, routingKey string, body []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.isCircuitOpen() {
		return fmt.Errorf("circuit breaker is open, dropping %s message", routingKey)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.channel == nil || c.channel.IsClosed() {
		if err := c.connectLocked(); err != nil {
			c.recordFailure()
			return err
		}
	}

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := c.channel.PublishWithContext(
		pctx,
		c.exchangeName, // exchange
		routingKey,     // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
			Type:         routingKey,
			Body:         body,
		},
	)
	if err != nil {
		c.recordFailure()
		if isConnectionError(err) {
			c.closeLocked()
		}
		return fmt.Errorf("publish message: %w", err)
	}
	c.recordSuccess()

	applog.FromContext(ctx).WithComponent(applog.ComponentAMQP).DebugContext(ctx, "Published message",
		"routing_key", routingKey,
		"exchange", c.exchangeName)
	return nil
}

// Consume delivers messages to h until ctx is cancelled. Successful
// deliveries are acked and undecodable ones dropped. A failed delivery is
// requeued once after requeueDelay and dropped if it fails again.
// Lost connections are re-established with exponential backoff.
func (c *Client) Consume(ctx context.Context, h Handler) error {
	logger := applog.FromContext(ctx).WithComponent(applog.ComponentAMQP)
	for attempt := 0; ; attempt++ {
		err := c.consumeOnce(ctx, h, func() { attempt = 0 })
		if ctx.Err() != nil {
			logger.InfoContext(ctx, "Stopping message consumption", "reason", ctx.Err())
			return ctx.Err()
		}
		if !errors.Is(err, errDeliveriesClosed) && !isConnectionError(err) {
			return err
		}

		wait := exponentialBackoff(attempt)
		logger.WarnContext(ctx, "Consumer lost connection, reconnecting",
			applog.FieldError, err,
			"attempt", attempt+1,
			"backoff", wait)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		if err := c.connect(); err != nil {
			logger.ErrorContext(ctx, "Reconnect failed", applog.FieldError, err)
		}
	}
}

func (c *Client) consumeOnce(ctx context.Context, h Handler, connected func()) error {
	c.mu.Lock()
	ch := c.channel
	c.mu.Unlock()
	if ch == nil || ch.IsClosed() {
		return errDeliveriesClosed
	}

	msgs, err := ch.Consume(
		c.queueName, // queue
		"",          // consumer
		false,       // auto-ack
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}
	connected()

	logger := applog.FromContext(ctx).WithComponent(applog.ComponentAMQP)
	logger.InfoContext(ctx, "Started consuming messages", "queue", c.queueName)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return errDeliveriesClosed
			}

			key := delivery.RoutingKey
			if delivery.Type != "" {
				key = delivery.Type
			}
			err := Dispatch(ctx, key, delivery.Body, h)
			switch settle(err, delivery.Redelivered) {
			case outcomeAck:
				delivery.Ack(false)
			case outcomeDrop:
				logger.ErrorContext(ctx, "Dropping message",
					"routing_key", key,
					"redelivered", delivery.Redelivered,
					applog.FieldError, err)
				delivery.Nack(false, false)
			case outcomeRetry:
				logger.WarnContext(ctx, "Failed to handle message, requeueing",
					"routing_key", key,
					"delay", requeueDelay,
					applog.FieldError, err)
				select {
				case <-ctx.Done():
				case <-time.After(requeueDelay):
				}
				delivery.Nack(false, true)
			}
		}
	}
}

type outcome int

const (
	outcomeAck outcome = iota
	outcomeRetry
	outcomeDrop
)

// requeueDelay spaces out redelivery of a message whose handler failed.
var requeueDelay = 2 * time.Second

// settle decides what happens to a delivery. Undecodable messages and
// messages that already failed once are dropped; other failures are retried
// a single time.
func settle(err error, redelivered bool) outcome {
	switch {
	case err == nil:
		return outcomeAck
	case IsPermanent(err), redelivered:
		return outcomeDrop
	default:
		return outcomeRetry
	}
}

func (c *Client) closeLocked() {
	if c.channel != nil {
		c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var err error
	if c.channel != nil {
		c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		err = c.conn.Close()
		c.conn = nil
	}
	return err
}
