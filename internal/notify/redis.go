package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Compile-time interface satisfaction check.
var _ Sink = (*RedisSink)(nil)

// RedisSink appends each notification to a Redis stream with fields user, count and payload.
type RedisSink struct {
	client redis.Cmdable
	stream string
}

// NewRedisSink creates a sink writing to stream.
func NewRedisSink(client redis.Cmdable, stream string) (*RedisSink, error) {
	if stream == "" {
		return nil, errors.New("redis stream must not be empty")
	}
	return &RedisSink{client: client, stream: stream}, nil
}

// Deliver implements Sink.
func (s *RedisSink) Deliver(ctx context.Context, n Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	err = s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		Values: map[string]any{
			"user":    n.User,
			"count":   n.Count,
			"payload": string(payload),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("xadd %s: %w", s.stream, err)
	}
	return nil
}

// OpenRedis parses a redis:// URL and returns a connected client.
func OpenRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}
