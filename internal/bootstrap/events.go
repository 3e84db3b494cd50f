package bootstrap

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/jonesrussell/north-cloud/shelter-sync/internal/events"
	"github.com/jonesrussell/north-cloud/shelter-sync/internal/logger"
)

// EventComponents holds the lifecycle event publisher.
type EventComponents struct {
	Publisher events.Publisher
	// Redis is nil when events are disabled.
	Redis *redis.Client
}

// SetupEvents creates the Redis stream publisher, or a no-op publisher when
// events are disabled.
func SetupEvents(ctx context.Context, deps *CommandDeps) (*EventComponents, error) {
	cfg := deps.Config.Redis
	if !cfg.Enabled {
		deps.Logger.Info("Redis events disabled")
		return &EventComponents{Publisher: events.NopPublisher{}}, nil
	}

	client, err := events.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	deps.Logger.Info("Publishing events to Redis",
		logger.String("address", cfg.Address),
		logger.String("stream", cfg.Stream),
	)

	return &EventComponents{
		Publisher: events.NewRedisPublisher(client, cfg, deps.Logger),
		Redis:     client,
	}, nil
}

// Ping checks Redis is reachable.
func (c *EventComponents) Ping(ctx context.Context) error {
	return c.Redis.Ping(ctx).Err()
}

// Close closes the publisher and its client.
func (c *EventComponents) Close() error {
	if c == nil || c.Publisher == nil {
		return nil
	}
	return c.Publisher.Close()
}
