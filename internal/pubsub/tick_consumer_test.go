package pubsub

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohamedkhairy/trade-breakout/internal/models"
	"github.com/mohamedkhairy/trade-breakout/internal/storage"
)

type recordingHandler struct {
	mu    sync.Mutex
	ticks []*models.Tick
	err   error
}

func (h *recordingHandler) ProcessTick(tick *models.Tick) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.err != nil {
		return h.err
	}
	h.ticks = append(h.ticks, tick)
	return nil
}

func TestDeserializeTick(t *testing.T) {
	msg := storage.StreamMessage{
		ID:     "1-0",
		Values: map[string]interface{}{"tick": `{"symbol":"EURUSD","price":1.1,"size":3,"timestamp":"2025-01-02T09:00:00Z"}`},
	}
	tick, err := deserializeTick(msg)
	require.NoError(t, err)
	assert.Equal(t, "EURUSD", tick.Symbol)
	assert.Equal(t, 1.1, tick.Price)
	assert.Equal(t, int64(3), tick.Size)

	_, err = deserializeTick(storage.StreamMessage{Values: map[string]interface{}{"n": 1}})
	assert.Error(t, err)

	_, err = deserializeTick(storage.StreamMessage{Values: map[string]interface{}{"tick": "{bad"}})
	assert.Error(t, err)
}

func TestTickConsumer_ProcessesInOrderAndFilters(t *testing.T) {
	ctx := context.Background()
	redis := storage.NewMockRedisClient()
	ts := time.Date(2025, 1, 2, 9, 0, 0, 0, time.UTC)

	for i, sym := range []string{"EURUSD", "GBPUSD", "EURUSD"} {
		require.NoError(t, redis.PublishToStream(ctx, "ticks", "tick", &models.Tick{
			Symbol: sym, Price: 1 + float64(i), Size: 1, Timestamp: ts.Add(time.Duration(i) * time.Second),
		}))
	}
	require.NoError(t, redis.PublishToStream(ctx, "ticks", "tick", "not json"))

	h := &recordingHandler{}
	c := NewTickConsumer(redis, h, DefaultTickConsumerConfig("ticks", "breakout", "EURUSD"))
	require.NoError(t, c.Start(ctx))
	c.Wait()

	require.Len(t, h.ticks, 2)
	assert.Equal(t, 1.0, h.ticks[0].Price)
	assert.Equal(t, 3.0, h.ticks[1].Price)

	stats := c.GetStats()
	assert.Equal(t, int64(2), stats.MessagesProcessed)
	assert.Equal(t, int64(1), stats.MessagesSkipped)
	assert.Equal(t, int64(1), stats.MessagesFailed)
	assert.Len(t, redis.Acked, 4)

	assert.Error(t, c.Start(ctx), "already running")
	c.Stop()
}

func TestTickConsumer_HandlerErrorCounts(t *testing.T) {
	ctx := context.Background()
	redis := storage.NewMockRedisClient()
	require.NoError(t, redis.PublishToStream(ctx, "ticks", "tick", &models.Tick{Symbol: "EURUSD", Price: 1, Timestamp: time.Now()}))

	h := &recordingHandler{err: errors.New("out of order")}
	c := NewTickConsumer(redis, h, DefaultTickConsumerConfig("ticks", "breakout", "EURUSD"))
	require.NoError(t, c.Start(ctx))
	c.Wait()

	assert.Equal(t, int64(1), c.GetStats().MessagesFailed)
}

func TestTickConsumer_StartError(t *testing.T) {
	redis := storage.NewMockRedisClient()
	redis.ConsumeErr = errors.New("down")
	c := NewTickConsumer(redis, &recordingHandler{}, DefaultTickConsumerConfig("ticks", "g", "EURUSD"))
	assert.Error(t, c.Start(context.Background()))
}

func TestEncode(t *testing.T) {
	s, err := encode("raw")
	require.NoError(t, err)
	assert.Equal(t, "raw", s)

	s, err = encode(map[string]int{"a": 1})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, s)
}
