package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/IANDYI/vitals-service/internal/core/domain"
	"github.com/IANDYI/vitals-service/internal/core/ports"
	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

const DefaultAlertsQueue = "vitals_alerts"

// RabbitMQPublisher implements Notifier by putting subject events on a durable
// queue for downstream paging consumers
// Includes retry logic and circuit breaker for resilience
type RabbitMQPublisher struct {
	conn          *amqp091.Connection
	channel       *amqp091.Channel
	queueName     string
	cb            *gobreaker.CircuitBreaker
	maxRetries    int
	retryDelay    time.Duration
	connMutex     sync.RWMutex
	reconnectCh   chan bool
	stopReconnect chan bool
	logger        *zap.Logger
}

// NewRabbitMQPublisher creates a new RabbitMQ publisher with circuit breaker
func NewRabbitMQPublisher(rabbitMQURL string, queueName string, logger *zap.Logger) (*RabbitMQPublisher, error) {
	if queueName == "" {
		queueName = DefaultAlertsQueue
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	publisher := &RabbitMQPublisher{
		queueName:     queueName,
		maxRetries:    3,
		retryDelay:    1 * time.Second,
		reconnectCh:   make(chan bool, 1),
		stopReconnect: make(chan bool),
		logger:        logger.With(zap.String("component", "rabbitmq_publisher")),
	}

	settings := gobreaker.Settings{
		Name:        "rabbitmq",
		MaxRequests: 5,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	}
	publisher.cb = gobreaker.NewCircuitBreaker(settings)

	if err := publisher.connect(rabbitMQURL); err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	go publisher.handleReconnection(rabbitMQURL)

	return publisher, nil
}

// connect establishes connection to RabbitMQ
func (p *RabbitMQPublisher) connect(rabbitMQURL string) error {
	conn, channel, err := dialQueue(rabbitMQURL, p.queueName, p.maxRetries, p.retryDelay, p.logger)
	if err != nil {
		return err
	}

	p.connMutex.Lock()
	p.conn = conn
	p.channel = channel
	p.connMutex.Unlock()

	p.logger.Info("connected to RabbitMQ", zap.String("queue", p.queueName))
	return nil
}

// handleReconnection handles automatic reconnection to RabbitMQ
func (p *RabbitMQPublisher) handleReconnection(rabbitMQURL string) {
	for {
		select {
		case <-p.reconnectCh:
			p.logger.Info("attempting to reconnect to RabbitMQ")
			p.connMutex.Lock()
			if p.channel != nil {
				p.channel.Close()
			}
			if p.conn != nil {
				p.conn.Close()
			}
			p.connMutex.Unlock()

			if err := p.connect(rabbitMQURL); err != nil {
				p.logger.Error("reconnection failed", zap.Error(err))
			}
		case <-p.stopReconnect:
			return
		}
	}
}

// PublishToSubjectChannel publishes the event to the alerts queue
func (p *RabbitMQPublisher) PublishToSubjectChannel(ctx context.Context, subjectID uuid.UUID, event string, payload interface{}) error {
	body, err := json.Marshal(domain.SubjectEvent{
		Event:     event,
		SubjectID: subjectID,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal subject event: %w", err)
	}

	_, err = p.cb.Execute(func() (interface{}, error) {
		return nil, p.publishWithRetry(ctx, body)
	})
	if err != nil {
		return fmt.Errorf("rabbitmq publish: %w", err)
	}

	p.logger.Info("subject event published",
		zap.String("event", event),
		zap.String("subject_id", subjectID.String()),
		zap.String("queue", p.queueName),
	)
	return nil
}

// publishWithRetry publishes with retry logic
func (p *RabbitMQPublisher) publishWithRetry(ctx context.Context, body []byte) error {
	var lastErr error
	for i := 0; i < p.maxRetries; i++ {
		p.connMutex.RLock()
		ch := p.channel
		conn := p.conn
		p.connMutex.RUnlock()

		if ch == nil || conn == nil || conn.IsClosed() {
			p.triggerReconnect()
			lastErr = fmt.Errorf("RabbitMQ connection is closed")
		} else {
			err := ch.PublishWithContext(
				ctx,
				"",          // exchange
				p.queueName, // routing key
				false,       // mandatory
				false,       // immediate
				amqp091.Publishing{
					ContentType:  "application/json",
					Body:         body,
					DeliveryMode: amqp091.Persistent,
					Timestamp:    time.Now(),
				},
			)
			if err == nil {
				return nil
			}
			lastErr = err
			p.logger.Warn("failed to publish subject event",
				zap.Int("attempt", i+1),
				zap.Int("max_retries", p.maxRetries),
				zap.Error(err),
			)
			p.triggerReconnect()
		}

		if i < p.maxRetries-1 {
			select {
			case <-time.After(p.retryDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	return fmt.Errorf("failed to publish after %d retries: %w", p.maxRetries, lastErr)
}

func (p *RabbitMQPublisher) triggerReconnect() {
	select {
	case p.reconnectCh <- true:
	default:
	}
}

// Close closes the RabbitMQ connection
func (p *RabbitMQPublisher) Close() error {
	close(p.stopReconnect)
	p.connMutex.Lock()
	defer p.connMutex.Unlock()

	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// dialQueue connects and declares a durable queue (idempotent)
func dialQueue(url, queueName string, maxRetries int, retryDelay time.Duration, logger *zap.Logger) (*amqp091.Connection, *amqp091.Channel, error) {
	var conn *amqp091.Connection
	var err error
	for i := 0; i < maxRetries; i++ {
		conn, err = amqp091.Dial(url)
		if err == nil {
			break
		}
		logger.Warn("failed to connect to RabbitMQ",
			zap.Int("attempt", i+1),
			zap.Int("max_retries", maxRetries),
			zap.Error(err),
		)
		if i < maxRetries-1 {
			time.Sleep(retryDelay)
		}
	}
	if err != nil {
		return nil, nil, err
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, err
	}

	_, err = channel.QueueDeclare(
		queueName, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		nil,       // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, nil, err
	}
	return conn, channel, nil
}

// Ensure RabbitMQPublisher implements the interface
var _ ports.Notifier = (*RabbitMQPublisher)(nil)
