package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// EventQueue is the Redis list consumed by the real-time layer.
const EventQueue = "wallet_events"

const publishTimeout = 2 * time.Second

// RedisNotifier pushes wallet events onto a Redis queue for the real-time
// messaging layer to drain.
type RedisNotifier struct {
	client *redis.Client
}

// NewRedisNotifier constructs a Redis-backed notifier.
func NewRedisNotifier(client *redis.Client) *RedisNotifier {
	return &RedisNotifier{client: client}
}

// Send enqueues the event. Failures surface to the caller but must be treated
// as best effort.
func (n *RedisNotifier) Send(ctx context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if err := n.client.RPush(ctx, EventQueue, data).Err(); err != nil {
		return fmt.Errorf("push event: %w", err)
	}
	return nil
}
