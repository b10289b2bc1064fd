// Package publisher pushes spread opportunities into Redis for downstream
// consumers: a capped stream for replay plus a pub/sub channel per token
// for real-time delivery.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"perpspread-scanner/internal/spread"
)

// RedisPublisher publishes opportunities to Redis.
type RedisPublisher struct {
	client *redis.Client
}

// NewRedisPublisher connects to Redis and verifies the connection.
func NewRedisPublisher(addr string) (*RedisPublisher, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &RedisPublisher{client: client}, nil
}

// Close closes the Redis connection.
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}

// PublishOpportunity appends the opportunity to the spreads stream and
// publishes it on the token's channel.
func (p *RedisPublisher) PublishOpportunity(ctx context.Context, op spread.Opportunity) error {
	data, err := json.Marshal(op)
	if err != nil {
		return err
	}

	if err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: "spreads",
		MaxLen: 10000,
		Approx: true,
		Values: map[string]interface{}{
			"data": string(data),
		},
	}).Err(); err != nil {
		return err
	}

	channel := fmt.Sprintf("spread:%s", op.BaseToken)
	return p.client.Publish(ctx, channel, string(data)).Err()
}
