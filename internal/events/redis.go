package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/jonesrussell/north-cloud/shelter-sync/internal/logger"
)

const (
	defaultAddress      = "localhost:6379"
	defaultStream       = "shelter-sync:events"
	defaultMaxStreamLen = 10000
	connectionTimeout   = 5 * time.Second

	// EventField is the stream entry field holding the JSON envelope.
	EventField = "event"
)

// ErrEmptyAddress is returned when Redis address is not configured.
var ErrEmptyAddress = errors.New("redis address is required")

// Config holds Redis connection and stream configuration.
type Config struct {
	Enabled      bool   `env:"REDIS_ENABLED"  yaml:"enabled"`
	Address      string `env:"REDIS_ADDRESS"  yaml:"address"`
	Password     string `env:"REDIS_PASSWORD" yaml:"password"`
	DB           int    `env:"REDIS_DB"       yaml:"db"`
	Stream       string `env:"EVENTS_STREAM"  yaml:"stream"`
	MaxStreamLen int64  `yaml:"max_stream_len"`
}

// SetDefaults applies default values to the config if not set.
func (c *Config) SetDefaults() {
	if c.Address == "" {
		c.Address = defaultAddress
	}
	if c.Stream == "" {
		c.Stream = defaultStream
	}
	if c.MaxStreamLen <= 0 {
		c.MaxStreamLen = defaultMaxStreamLen
	}
}

// NewClient creates a new Redis client and verifies the connection.
func NewClient(ctx context.Context, cfg Config) (*redis.Client, error) {
	if cfg.Address == "" {
		return nil, ErrEmptyAddress
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, connectionTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return client, nil
}

// RedisPublisher appends events to a capped Redis stream.
type RedisPublisher struct {
	client *redis.Client
	stream string
	maxLen int64
	log    logger.Logger
}

var _ Publisher = (*RedisPublisher)(nil)

// NewRedisPublisher creates a publisher writing to cfg.Stream.
func NewRedisPublisher(client *redis.Client, cfg Config, log logger.Logger) *RedisPublisher {
	cfg.SetDefaults()
	return &RedisPublisher{client: client, stream: cfg.Stream, maxLen: cfg.MaxStreamLen, log: log}
}

// Publish sends an event to the stream.
func (p *RedisPublisher) Publish(ctx context.Context, event Event) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	result := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]any{
			EventField: string(payload),
		},
	})
	if err := result.Err(); err != nil {
		return fmt.Errorf("publish to stream: %w", err)
	}

	p.log.Debug("Published event",
		logger.String("event_type", string(event.Type)),
		logger.String("stream_id", result.Val()),
	)
	return nil
}

// Close closes the underlying client.
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}

// Safe wraps a Publisher so failures are logged and never returned.
type Safe struct {
	pub Publisher
	log logger.Logger
}

// NewSafe wraps pub. A nil pub publishes nothing.
func NewSafe(pub Publisher, log logger.Logger) *Safe {
	if pub == nil {
		pub = NopPublisher{}
	}
	return &Safe{pub: pub, log: log}
}

// Emit publishes event and logs any failure.
func (s *Safe) Emit(ctx context.Context, event Event) {
	if err := s.pub.Publish(ctx, event); err != nil {
		s.log.Warn("Failed to publish event",
			logger.String("event_type", string(event.Type)),
			logger.Error(err),
		)
	}
}
