package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IANDYI/vitals-service/internal/core/domain"
	"github.com/IANDYI/vitals-service/internal/core/ports"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SubjectChannelPrefix prefixes the Redis Pub/Sub channel of each subject
const SubjectChannelPrefix = "vitals:subject:"

// SubjectChannel returns the Pub/Sub channel for a subject
func SubjectChannel(subjectID uuid.UUID) string {
	return SubjectChannelPrefix + subjectID.String()
}

// NewRedisClient creates a Redis client and checks the connection
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// RedisNotifier publishes subject events over Redis Pub/Sub so every replica's
// WebSocket hub can deliver them
type RedisNotifier struct {
	client redis.UniversalClient
	logger *zap.Logger
}

// NewRedisNotifier creates a notifier on an existing client
func NewRedisNotifier(client redis.UniversalClient, logger *zap.Logger) *RedisNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisNotifier{client: client, logger: logger.With(zap.String("component", "redis_notifier"))}
}

func (n *RedisNotifier) PublishToSubjectChannel(ctx context.Context, subjectID uuid.UUID, event string, payload interface{}) error {
	body, err := json.Marshal(domain.SubjectEvent{
		Event:     event,
		SubjectID: subjectID,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal subject event: %w", err)
	}

	receivers, err := n.client.Publish(ctx, SubjectChannel(subjectID), body).Result()
	if err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}

	n.logger.Debug("subject event published",
		zap.String("event", event),
		zap.String("subject_id", subjectID.String()),
		zap.Int64("receivers", receivers),
	)
	return nil
}

var _ ports.Notifier = (*RedisNotifier)(nil)
