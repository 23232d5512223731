package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mohamedkhairy/trade-breakout/internal/config"
	"github.com/mohamedkhairy/trade-breakout/internal/storage"
	"github.com/mohamedkhairy/trade-breakout/pkg/logger"
)

// RedisClientImpl implements storage.RedisClient on go-redis
type RedisClientImpl struct {
	client *redis.Client
}

// NewRedisClient connects to Redis and pings it
func NewRedisClient(cfg config.RedisConfig) (storage.RedisClient, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Connected to Redis",
		logger.String("host", cfg.Host),
		logger.Int("port", cfg.Port),
	)

	return &RedisClientImpl{client: rdb}, nil
}

// encode renders a payload: strings and bytes pass through, anything else is JSON
func encode(value interface{}) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("failed to marshal value: %w", err)
	}
	return string(data), nil
}

// PublishToStream appends one entry with a single JSON field to a stream
func (r *RedisClientImpl) PublishToStream(ctx context.Context, stream string, key string, value interface{}) error {
	payload, err := encode(value)
	if err != nil {
		return err
	}

	err = r.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]interface{}{key: payload},
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to publish to stream %s: %w", stream, err)
	}
	return nil
}

func isBusyGroup(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), "BUSYGROUP")
}

// ensureGroup creates the consumer group (and stream) if missing
func (r *RedisClientImpl) ensureGroup(ctx context.Context, stream, group string) error {
	err := r.client.XGroupCreateMkStream(ctx, stream, group, "0").Err()
	if err == nil || isBusyGroup(err) {
		return nil
	}
	return err
}

// ConsumeFromStream reads new entries for group/consumer until ctx is done
func (r *RedisClientImpl) ConsumeFromStream(ctx context.Context, stream string, group string, consumer string) (<-chan storage.StreamMessage, error) {
	var err error
	for attempt := 1; attempt <= 3; attempt++ {
		if err = r.ensureGroup(ctx, stream, group); err == nil {
			break
		}
		logger.Warn("Failed to create consumer group, retrying",
			logger.ErrorField(err),
			logger.String("stream", stream),
			logger.String("group", group),
			logger.Int("attempt", attempt),
		)
		time.Sleep(time.Duration(attempt) * time.Second)
	}
	if err != nil {
		// The read loop recreates the group on NOGROUP
		logger.Error("Failed to create consumer group after retries",
			logger.ErrorField(err),
			logger.String("stream", stream),
		)
	}

	messageChan := make(chan storage.StreamMessage, 100)
	go func() {
		defer close(messageChan)

		for ctx.Err() == nil {
			streams, err := r.client.XReadGroup(ctx, &redis.XReadGroupArgs{
				Group:    group,
				Consumer: consumer,
				Streams:  []string{stream, ">"},
				Count:    10,
				Block:    time.Second,
			}).Result()
			if err != nil {
				switch {
				case errors.Is(err, redis.Nil), ctx.Err() != nil:
				case strings.Contains(err.Error(), "NOGROUP"):
					logger.Warn("Consumer group not found, recreating", logger.String("stream", stream))
					if err := r.ensureGroup(ctx, stream, group); err != nil {
						logger.Error("Failed to recreate consumer group", logger.ErrorField(err))
					}
					time.Sleep(2 * time.Second)
				default:
					logger.Error("Error reading from stream", logger.ErrorField(err), logger.String("stream", stream))
					time.Sleep(time.Second)
				}
				continue
			}

			for _, s := range streams {
				for _, message := range s.Messages {
					msg := storage.StreamMessage{ID: message.ID, Stream: s.Stream, Values: message.Values}
					select {
					case messageChan <- msg:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()

	return messageChan, nil
}

// AcknowledgeMessage acknowledges a message in a Redis stream
func (r *RedisClientImpl) AcknowledgeMessage(ctx context.Context, stream string, group string, id string) error {
	return r.client.XAck(ctx, stream, group, id).Err()
}

// Set stores value as JSON with a TTL
func (r *RedisClientImpl) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	jsonData, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}
	return r.client.Set(ctx, key, jsonData, ttl).Err()
}

// GetJSON loads a JSON value into dest; a missing key leaves dest untouched
func (r *RedisClientImpl) GetJSON(ctx context.Context, key string, dest interface{}) error {
	data, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

// Publish publishes a message to a pub/sub channel
func (r *RedisClientImpl) Publish(ctx context.Context, channel string, message interface{}) error {
	payload, err := encode(message)
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, channel, payload).Err()
}

// Close closes the Redis connection
func (r *RedisClientImpl) Close() error {
	return r.client.Close()
}
