package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"serverguard.keepalive/internal/core/domain"
)

const DefaultLogChannel = "serverguard:logs"

// LogPublisher mirrors activity log entries onto a redis pub/sub channel.
// Nothing is stored; subscribers that are not listening miss the entry.
type LogPublisher struct {
	client  *redis.Client
	channel string
}

func NewLogPublisher(url, channel string) (*LogPublisher, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return NewLogPublisherWithClient(redis.NewClient(opts), channel), nil
}

func NewLogPublisherWithClient(client *redis.Client, channel string) *LogPublisher {
	if channel == "" {
		channel = DefaultLogChannel
	}
	return &LogPublisher{client: client, channel: channel}
}

func (r *LogPublisher) Name() string {
	return "redis"
}

func (r *LogPublisher) PublishLog(ctx context.Context, entry domain.SystemLogEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, r.channel, data).Err()
}

// Check implements ports.HealthChecker.
func (r *LogPublisher) Check(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *LogPublisher) Close() error {
	return r.client.Close()
}
