package websocket

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RedisRelay forwards subject events published on Redis by any replica into the local hub
type RedisRelay struct {
	client  redis.UniversalClient
	hub     *Hub
	pattern string
	logger  *zap.Logger
}

// NewRedisRelay creates a relay for channels matching pattern, e.g. "vitals:subject:*"
func NewRedisRelay(client redis.UniversalClient, hub *Hub, pattern string, logger *zap.Logger) *RedisRelay {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisRelay{
		client:  client,
		hub:     hub,
		pattern: pattern,
		logger:  logger.With(zap.String("component", "redis_relay")),
	}
}

// Run subscribes and relays until ctx is cancelled
func (r *RedisRelay) Run(ctx context.Context) error {
	pubsub := r.client.PSubscribe(ctx, r.pattern)
	defer pubsub.Close()

	// wait for the subscription confirmation
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("redis psubscribe %s: %w", r.pattern, err)
	}
	r.logger.Info("relaying subject events", zap.String("pattern", r.pattern))

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			r.relay(ctx, msg.Payload)
		}
	}
}

func (r *RedisRelay) relay(ctx context.Context, payload string) {
	var envelope struct {
		SubjectID uuid.UUID `json:"subject_id"`
	}
	if err := json.Unmarshal([]byte(payload), &envelope); err != nil || envelope.SubjectID == uuid.Nil {
		r.logger.Warn("dropping malformed subject event", zap.Error(err))
		return
	}
	if err := r.hub.Deliver(ctx, envelope.SubjectID, []byte(payload)); err != nil {
		r.logger.Warn("failed to relay subject event",
			zap.String("subject_id", envelope.SubjectID.String()),
			zap.Error(err),
		)
	}
}
