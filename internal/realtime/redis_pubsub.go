package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// EventsChannel is the Redis channel carrying media events between instances.
	EventsChannel  = "gallery:events"
	publishTimeout = 5 * time.Second
)

type redisPayload struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	At    int64           `json:"at"`
}

// RedisPubSub is a Bridge over Redis pub/sub.
type RedisPubSub struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisPubSub creates a Redis pub/sub bridge for media events.
func NewRedisPubSub(client *redis.Client, logger *zap.Logger) *RedisPubSub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisPubSub{client: client, logger: logger}
}

// Publish sends an event to every subscribed instance.
func (r *RedisPubSub) Publish(ctx context.Context, event string, payload []byte) error {
	body, err := json.Marshal(redisPayload{Event: event, Data: payload, At: time.Now().Unix()})
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	return r.client.Publish(ctx, EventsChannel, body).Err()
}

// Subscribe calls handler for each event until ctx is done.
func (r *RedisPubSub) Subscribe(ctx context.Context, handler func(event string, payload []byte)) error {
	pubsub := r.client.Subscribe(ctx, EventsChannel)
	defer pubsub.Close()
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var p redisPayload
			if err := json.Unmarshal([]byte(msg.Payload), &p); err != nil {
				r.logger.Warn("invalid event payload", zap.Error(err))
				continue
			}
			handler(p.Event, p.Data)
		}
	}
}
