package redisstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/promptdeck/promptdeck-backend/internal/library"
)

const eventChannel = "promptlib:events"

// EventBus relays library notifications over Redis Pub/Sub so each /events
// stream gets its own subscription.
type EventBus struct {
	client  *redis.Client
	channel string
	log     *zap.Logger
}

func NewEventBus(client *redis.Client, prefix string, log *zap.Logger) *EventBus {
	if log == nil {
		log = zap.NewNop()
	}
	return &EventBus{
		client:  client,
		channel: fmt.Sprintf("%s%s", prefix, eventChannel),
		log:     log.Named("EventBus"),
	}
}

// Publish sends one notification. It is shaped to be passed straight to
// Cache.Subscribe, so failures are logged rather than returned.
func (b *EventBus) Publish(n library.Notification) {
	data, err := json.Marshal(n)
	if err != nil {
		b.log.Error("Failed to encode notification", zap.Error(err))
		return
	}
	if err := b.client.Publish(context.Background(), b.channel, data).Err(); err != nil {
		b.log.Warn("Failed to publish notification", zap.String("op", n.Op), zap.Error(err))
	}
}

// Subscribe streams notifications until ctx is done. The returned channel is
// closed when the subscription ends.
func (b *EventBus) Subscribe(ctx context.Context) (<-chan library.Notification, error) {
	sub := b.client.Subscribe(ctx, b.channel)
	// Wait for the confirmation so no message published after return is missed.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", b.channel, err)
	}

	out := make(chan library.Notification, 16)
	go func() {
		defer close(out)
		defer sub.Close()

		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var n library.Notification
				if err := json.Unmarshal([]byte(msg.Payload), &n); err != nil {
					b.log.Warn("Dropping malformed notification", zap.Error(err))
					continue
				}
				select {
				case out <- n:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
