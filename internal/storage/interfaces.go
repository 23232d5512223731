package storage

import (
	"context"
	"time"

	"github.com/mohamedkhairy/trade-breakout/internal/models"
)

// HistoryStore loads historical native bars for engine warm-up
type HistoryStore interface {
	// LoadBars returns up to limit most recent bars in chronological order
	LoadBars(ctx context.Context, symbol string, tf models.Timeframe, limit int) ([]models.Bar, error)

	// Close closes the storage connection
	Close() error
}

// BarWriter persists finalized bars
type BarWriter interface {
	WriteBars(ctx context.Context, tf models.Timeframe, bars []*models.Bar) error
}

// RedisClient defines the Redis operations used by the service
type RedisClient interface {
	// Stream operations
	PublishToStream(ctx context.Context, stream string, key string, value interface{}) error
	ConsumeFromStream(ctx context.Context, stream string, group string, consumer string) (<-chan StreamMessage, error)
	AcknowledgeMessage(ctx context.Context, stream string, group string, id string) error

	// Key-value operations
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	GetJSON(ctx context.Context, key string, dest interface{}) error

	// Pub/Sub operations
	Publish(ctx context.Context, channel string, message interface{}) error

	// Close closes the Redis connection
	Close() error
}

// StreamMessage represents a message from a Redis stream
type StreamMessage struct {
	ID     string
	Stream string
	Values map[string]interface{}
}

// PubSubMessage represents a message from Redis pub/sub
type PubSubMessage struct {
	Channel string
	Message string
}
