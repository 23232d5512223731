package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/mohamedkhairy/trade-breakout/internal/models"
	"github.com/mohamedkhairy/trade-breakout/internal/storage"
	"github.com/mohamedkhairy/trade-breakout/pkg/logger"
)

// TickHandler receives ticks in stream order
type TickHandler interface {
	ProcessTick(tick *models.Tick) error
}

// TickConsumerConfig holds configuration for the tick consumer
type TickConsumerConfig struct {
	StreamName    string
	ConsumerGroup string
	ConsumerName  string
	Symbol        string // Ticks for other symbols are acknowledged and dropped
	AckTimeout    time.Duration
}

// DefaultTickConsumerConfig returns default configuration
func DefaultTickConsumerConfig(streamName, consumerGroup, symbol string) TickConsumerConfig {
	return TickConsumerConfig{
		StreamName:    streamName,
		ConsumerGroup: consumerGroup,
		ConsumerName:  consumerGroup + "-" + symbol,
		Symbol:        symbol,
		AckTimeout:    5 * time.Second,
	}
}

// ConsumerStats holds statistics about the consumer
type ConsumerStats struct {
	MessagesProcessed int64
	MessagesSkipped   int64
	MessagesFailed    int64
	LastMessageTime   time.Time
}

// TickConsumer reads ticks for one symbol from a Redis stream and hands them
// to a TickHandler one at a time.
type TickConsumer struct {
	config  TickConsumerConfig
	redis   storage.RedisClient
	handler TickHandler

	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
	stats   ConsumerStats
}

// NewTickConsumer creates a new tick consumer
func NewTickConsumer(redis storage.RedisClient, handler TickHandler, config TickConsumerConfig) *TickConsumer {
	return &TickConsumer{config: config, redis: redis, handler: handler}
}

// Start starts consuming until Stop or ctx cancellation
func (c *TickConsumer) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return fmt.Errorf("consumer is already running")
	}
	ctx, c.cancel = context.WithCancel(ctx)
	c.running = true
	c.mu.Unlock()

	messages, err := c.redis.ConsumeFromStream(ctx, c.config.StreamName, c.config.ConsumerGroup, c.config.ConsumerName)
	if err != nil {
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
		c.cancel()
		return fmt.Errorf("failed to consume from %s: %w", c.config.StreamName, err)
	}

	logger.Info("Starting tick consumer",
		logger.String("stream", c.config.StreamName),
		logger.String("group", c.config.ConsumerGroup),
		logger.Symbol(c.config.Symbol),
	)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for msg := range messages {
			c.handle(msg)
		}
	}()
	return nil
}

// Stop stops the consumer and waits for the in-flight tick
func (c *TickConsumer) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()
	logger.Info("Tick consumer stopped")
}

// Wait blocks until the message channel is drained
func (c *TickConsumer) Wait() {
	c.wg.Wait()
}

func (c *TickConsumer) handle(msg storage.StreamMessage) {
	tick, err := deserializeTick(msg)
	if err != nil {
		// Poison message: ack so it is not redelivered forever
		logger.Error("Failed to deserialize tick",
			logger.ErrorField(err),
			logger.String("message_id", msg.ID),
		)
		c.count(func(s *ConsumerStats) { s.MessagesFailed++ })
		c.ack(msg)
		return
	}

	if tick.Symbol != c.config.Symbol {
		c.count(func(s *ConsumerStats) { s.MessagesSkipped++ })
		c.ack(msg)
		return
	}

	if err := c.handler.ProcessTick(tick); err != nil {
		logger.Warn("Failed to process tick",
			logger.ErrorField(err),
			logger.Symbol(tick.Symbol),
			logger.String("message_id", msg.ID),
		)
		c.count(func(s *ConsumerStats) { s.MessagesFailed++ })
		c.ack(msg)
		return
	}

	c.count(func(s *ConsumerStats) {
		s.MessagesProcessed++
		s.LastMessageTime = time.Now()
	})
	c.ack(msg)
}

func (c *TickConsumer) ack(msg storage.StreamMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), c.config.AckTimeout)
	defer cancel()
	if err := c.redis.AcknowledgeMessage(ctx, msg.Stream, c.config.ConsumerGroup, msg.ID); err != nil {
		logger.Error("Failed to acknowledge message",
			logger.ErrorField(err),
			logger.String("message_id", msg.ID),
		)
	}
}

func (c *TickConsumer) count(fn func(*ConsumerStats)) {
	c.mu.Lock()
	fn(&c.stats)
	c.mu.Unlock()
}

// GetStats returns current consumer statistics
func (c *TickConsumer) GetStats() ConsumerStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// deserializeTick reads the "tick" field, falling back to the first string value
func deserializeTick(msg storage.StreamMessage) (*models.Tick, error) {
	tickJSON, ok := msg.Values["tick"].(string)
	if !ok {
		for _, v := range msg.Values {
			if str, ok := v.(string); ok {
				tickJSON = str
				break
			}
		}
	}
	if tickJSON == "" {
		return nil, fmt.Errorf("no tick data found in message")
	}

	var tick models.Tick
	if err := json.Unmarshal([]byte(tickJSON), &tick); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tick: %w", err)
	}
	return &tick, nil
}
