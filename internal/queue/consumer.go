// Package queue consumes borrow requests from the durable broker queue.
//
// Consumption runs in manual-acknowledgment mode: the acknowledgment decision
// is owned by the processing outcome, not by the transport. Messages are
// handled one at a time in delivery order by a single worker.
package queue

import (
	"context"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/campuslib/borrowsvc/internal/processor"
)

const (
	defaultQueueName = "borrow_book"

	logMsgConsumerStarted = "consumer started, waiting for borrow requests"
	logMsgAckFailed       = "failed to acknowledge message"
	logMsgNackFailed      = "failed to return message for redelivery"
	logAttrQueue          = "queue"
	logAttrError          = "error"
	logAttrOutcome        = "outcome"
)

var (
	// ErrNilHandler is returned when a consumer is constructed without a message handler.
	ErrNilHandler = errors.New("message handler must not be nil")

	// ErrEmptyBrokerURL is returned when a consumer is constructed without a broker URL.
	ErrEmptyBrokerURL = errors.New("broker URL must not be empty")

	// ErrEmptyQueueName is returned when WithQueueName is given an empty name.
	ErrEmptyQueueName = errors.New("queue name must not be empty")

	// ErrDeliveryChannelClosed is returned when the broker closes the delivery stream.
	ErrDeliveryChannelClosed = errors.New("delivery channel closed by broker")
)

// MessageHandler defines the interface needed by the Consumer to process one payload.
type MessageHandler interface {
	Process(ctx context.Context, payload []byte) processor.Outcome
}

// Logger interface for consumer lifecycle and acknowledgment logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Consumer owns the connection to the broker and feeds deliveries to the handler.
type Consumer struct {
	brokerURL string
	queueName string
	handler   MessageHandler
	logger    Logger
}

// Option defines a functional option for configuring Consumer.
type Option func(*Consumer) error

// WithQueueName sets the queue to consume from.
func WithQueueName(queueName string) Option {
	return func(c *Consumer) error {
		if queueName == "" {
			return ErrEmptyQueueName
		}

		c.queueName = queueName

		return nil
	}
}

// WithLogger sets the logger for the Consumer.
func WithLogger(logger Logger) Option {
	return func(c *Consumer) error {
		c.logger = logger
		return nil
	}
}

// NewConsumer creates a Consumer for the given broker with optional configuration.
func NewConsumer(brokerURL string, handler MessageHandler, options ...Option) (Consumer, error) {
	if brokerURL == "" {
		return Consumer{}, ErrEmptyBrokerURL
	}

	if handler == nil {
		return Consumer{}, ErrNilHandler
	}

	c := Consumer{
		brokerURL: brokerURL,
		queueName: defaultQueueName,
		handler:   handler,
	}

	for _, option := range options {
		if err := option(&c); err != nil {
			return Consumer{}, err
		}
	}

	return c, nil
}

// Run connects to the broker, declares the queue and consumes it until the
// context is canceled or the broker closes the delivery stream. It blocks
// while the queue is empty and never terminates on its own.
func (c Consumer) Run(ctx context.Context) error {
	connection, err := amqp.Dial(c.brokerURL)
	if err != nil {
		return fmt.Errorf("failed to connect to broker: %w", err)
	}
	defer func() { _ = connection.Close() }()

	channel, err := connection.Channel()
	if err != nil {
		return fmt.Errorf("failed to open broker channel: %w", err)
	}
	defer func() { _ = channel.Close() }()

	declaredQueue, err := channel.QueueDeclare(
		c.queueName,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue %q: %w", c.queueName, err)
	}

	deliveries, err := channel.ConsumeWithContext(
		ctx,
		declaredQueue.Name,
		"",    // consumer tag
		false, // autoAck - acknowledgment is decided by the processing outcome
		false, // exclusive
		false, // noLocal
		false, // noWait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to start consuming queue %q: %w", c.queueName, err)
	}

	if c.logger != nil {
		c.logger.Info(logMsgConsumerStarted, logAttrQueue, declaredQueue.Name)
	}

	return c.consume(ctx, deliveries)
}

// consume processes deliveries one at a time in the order the queue hands them over.
func (c Consumer) consume(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case delivery, open := <-deliveries:
			if !open {
				return ErrDeliveryChannelClosed
			}

			c.handleDelivery(ctx, delivery)
		}
	}
}

// handleDelivery runs one message to its terminal outcome and settles it with
// the broker. Every outcome except a store failure acknowledges the message;
// a store failure requeues it so a transient outage does not drop a borrow.
func (c Consumer) handleDelivery(ctx context.Context, delivery amqp.Delivery) {
	outcome := c.handler.Process(ctx, delivery.Body)

	if outcome.ShouldAck() {
		if err := delivery.Ack(false); err != nil && c.logger != nil {
			c.logger.Error(logMsgAckFailed, logAttrError, err.Error(), logAttrOutcome, string(outcome))
		}

		return
	}

	if err := delivery.Nack(false, true); err != nil && c.logger != nil {
		c.logger.Error(logMsgNackFailed, logAttrError, err.Error(), logAttrOutcome, string(outcome))
	}
}
