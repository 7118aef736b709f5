package progress

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const channelPrefix = "invoices.extraction.progress."

// RedisPublisher pushes events onto a per-extraction pub/sub channel so that
// UIs and workers can follow a run without polling the database.
type RedisPublisher struct {
	client *redis.Client
	logger *slog.Logger
}

func NewRedisPublisher(client *redis.Client, logger *slog.Logger) *RedisPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisPublisher{client: client, logger: logger}
}

// Channel returns the pub/sub channel name for an extraction key.
func Channel(key uuid.UUID) string {
	return channelPrefix + key.String()
}

func (p *RedisPublisher) Publish(ctx context.Context, key uuid.UUID, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal progress event: %w", err)
	}
	if err := p.client.Publish(ctx, Channel(key), payload).Err(); err != nil {
		return fmt.Errorf("publish progress event: %w", err)
	}
	return nil
}

// Subscribe opens a subscription for one extraction key and decodes events
// onto the returned channel until ctx is cancelled.
func (p *RedisPublisher) Subscribe(ctx context.Context, key uuid.UUID) (<-chan Event, func() error) {
	sub := p.client.Subscribe(ctx, Channel(key))
	out := make(chan Event, 16)
	go func() {
		defer close(out)
		for msg := range sub.Channel() {
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				p.logger.Warn("progress.subscribe.decode_failed", "error", err)
				continue
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, sub.Close
}
