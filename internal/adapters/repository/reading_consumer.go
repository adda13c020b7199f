package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/IANDYI/vitals-service/internal/core/domain"
	"github.com/IANDYI/vitals-service/internal/core/ports"
	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const DefaultReadingsQueue = "vitals_readings"

// ReadingConsumer consumes device readings from RabbitMQ and runs them through intake
// Runs in background as a goroutine; with several replicas RabbitMQ
// distributes messages across them
type ReadingConsumer struct {
	conn           *amqp091.Connection
	channel        *amqp091.Channel
	queueName      string
	vitalsService  ports.VitalsService
	connMutex      sync.RWMutex
	reconnectCh    chan bool
	stopReconnect  chan bool
	maxRetries     int
	retryDelay     time.Duration
	consumingCtx   context.Context
	consumingMutex sync.Mutex
	isConsuming    bool
	logger         *zap.Logger
}

// NewReadingConsumer creates a new RabbitMQ consumer for device readings
func NewReadingConsumer(rabbitMQURL string, queueName string, vitalsService ports.VitalsService, logger *zap.Logger) (*ReadingConsumer, error) {
	consumer := newReadingConsumer(queueName, vitalsService, logger)

	if err := consumer.connect(rabbitMQURL); err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	go consumer.handleReconnection(rabbitMQURL)

	return consumer, nil
}

func newReadingConsumer(queueName string, vitalsService ports.VitalsService, logger *zap.Logger) *ReadingConsumer {
	if queueName == "" {
		queueName = DefaultReadingsQueue
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReadingConsumer{
		queueName:     queueName,
		vitalsService: vitalsService,
		maxRetries:    3,
		retryDelay:    1 * time.Second,
		reconnectCh:   make(chan bool, 1),
		stopReconnect: make(chan bool),
		logger:        logger.With(zap.String("component", "reading_consumer")),
	}
}

// connect establishes connection to RabbitMQ
func (c *ReadingConsumer) connect(rabbitMQURL string) error {
	conn, channel, err := dialQueue(rabbitMQURL, c.queueName, c.maxRetries, c.retryDelay, c.logger)
	if err != nil {
		return err
	}

	c.connMutex.Lock()
	c.conn = conn
	c.channel = channel
	c.connMutex.Unlock()

	c.logger.Info("reading consumer connected to RabbitMQ", zap.String("queue", c.queueName))
	return nil
}

// handleReconnection handles automatic reconnection to RabbitMQ
func (c *ReadingConsumer) handleReconnection(rabbitMQURL string) {
	for {
		select {
		case <-c.reconnectCh:
			c.logger.Info("attempting to reconnect to RabbitMQ")
			c.connMutex.Lock()
			if c.channel != nil && !c.channel.IsClosed() {
				c.channel.Close()
			}
			if c.conn != nil && !c.conn.IsClosed() {
				c.conn.Close()
			}
			c.connMutex.Unlock()

			if err := c.connect(rabbitMQURL); err != nil {
				c.logger.Error("reconnection failed", zap.Error(err))
				select {
				case <-time.After(5 * time.Second):
					c.requestReconnect()
				case <-c.stopReconnect:
					return
				}
				continue
			}

			// Restart consuming with the original context
			c.consumingMutex.Lock()
			ctx := c.consumingCtx
			restart := ctx != nil && ctx.Err() == nil && !c.isConsuming
			c.consumingMutex.Unlock()
			if restart {
				if err := c.StartConsuming(ctx); err != nil {
					c.logger.Error("failed to restart consuming", zap.Error(err))
				}
			}
		case <-c.stopReconnect:
			return
		}
	}
}

func (c *ReadingConsumer) requestReconnect() {
	select {
	case c.reconnectCh <- true:
	default:
	}
}

// StartConsuming registers the consumer and processes deliveries in a background goroutine
// Only one consumer runs per instance
func (c *ReadingConsumer) StartConsuming(ctx context.Context) error {
	c.consumingMutex.Lock()
	if c.isConsuming {
		c.consumingMutex.Unlock()
		c.logger.Info("reading consumer already running, skipping duplicate start")
		return nil
	}
	c.isConsuming = true
	c.consumingCtx = ctx
	c.consumingMutex.Unlock()

	stopConsuming := func() {
		c.consumingMutex.Lock()
		c.isConsuming = false
		c.consumingMutex.Unlock()
	}

	c.connMutex.RLock()
	channel := c.channel
	conn := c.conn
	c.connMutex.RUnlock()

	if channel == nil || channel.IsClosed() || conn == nil || conn.IsClosed() {
		stopConsuming()
		return fmt.Errorf("RabbitMQ connection is closed")
	}

	// one unacknowledged reading at a time per consumer
	if err := channel.Qos(1, 0, false); err != nil {
		stopConsuming()
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	consumerTag := fmt.Sprintf("reading-consumer-%d", time.Now().UnixNano())
	msgs, err := channel.Consume(
		c.queueName, // queue
		consumerTag, // consumer tag
		false,       // auto-ack (manual ack after intake)
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		stopConsuming()
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	c.logger.Info("reading consumer started", zap.String("tag", consumerTag), zap.String("queue", c.queueName))

	go func() {
		defer stopConsuming()

		for {
			select {
			case <-ctx.Done():
				c.logger.Info("reading consumer context cancelled")
				return
			case msg, ok := <-msgs:
				if !ok {
					c.logger.Warn("reading consumer channel closed, attempting reconnection")
					c.requestReconnect()
					return
				}
				c.processMessage(ctx, msg)
			}
		}
	}()

	return nil
}

// processMessage runs one delivery through intake. The message is acked only
// after the reading is recorded; invalid messages are dropped, anything else
// is requeued for another attempt.
func (c *ReadingConsumer) processMessage(ctx context.Context, msg amqp091.Delivery) {
	result, err := ingestReading(ctx, c.vitalsService, domain.SourceAMQP, msg.Body, "")
	if err != nil {
		requeue := !errors.Is(err, errRejected)
		c.logger.Warn("failed to ingest reading",
			zap.Uint64("delivery_tag", msg.DeliveryTag),
			zap.Bool("requeue", requeue),
			zap.Error(err),
		)
		if nackErr := msg.Nack(false, requeue); nackErr != nil {
			c.logger.Error("failed to nack message", zap.Error(nackErr))
		}
		return
	}

	c.logger.Info("reading ingested",
		zap.String("reading_id", result.Reading.ID.String()),
		zap.String("subject_id", result.Reading.SubjectID.String()),
		zap.String("status", string(result.Analysis.Status)),
	)

	// redelivery after a failed ack records a duplicate reading, never loses one
	if err := msg.Ack(false); err != nil {
		c.logger.Error("failed to acknowledge message", zap.Error(err))
	}
}

// Close closes the RabbitMQ connection and stops consuming
// The consuming context is cancelled by main during graceful shutdown
func (c *ReadingConsumer) Close() error {
	close(c.stopReconnect)

	c.consumingMutex.Lock()
	c.isConsuming = false
	c.consumingMutex.Unlock()

	c.connMutex.Lock()
	defer c.connMutex.Unlock()

	if c.channel != nil && !c.channel.IsClosed() {
		if err := c.channel.Close(); err != nil {
			c.logger.Warn("error closing RabbitMQ channel", zap.Error(err))
		}
	}
	if c.conn != nil && !c.conn.IsClosed() {
		if err := c.conn.Close(); err != nil {
			c.logger.Warn("error closing RabbitMQ connection", zap.Error(err))
		}
	}

	c.logger.Info("reading consumer closed")
	return nil
}
