package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/mohamedkhairy/trade-breakout/internal/models"
)

// MockHistoryStore is an in-memory HistoryStore and BarWriter for testing
type MockHistoryStore struct {
	mu       sync.Mutex
	Bars     map[models.Timeframe][]models.Bar
	LoadErr  error
	WriteErr error
	Closed   bool
}

func NewMockHistoryStore() *MockHistoryStore {
	return &MockHistoryStore{Bars: make(map[models.Timeframe][]models.Bar)}
}

func (m *MockHistoryStore) LoadBars(ctx context.Context, symbol string, tf models.Timeframe, limit int) ([]models.Bar, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.LoadErr != nil {
		return nil, m.LoadErr
	}
	var result []models.Bar
	for _, bar := range m.Bars[tf] {
		if bar.Symbol == symbol {
			result = append(result, bar)
		}
	}
	if limit > 0 && len(result) > limit {
		result = result[len(result)-limit:]
	}
	return result, nil
}

func (m *MockHistoryStore) WriteBars(ctx context.Context, tf models.Timeframe, bars []*models.Bar) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.WriteErr != nil {
		return m.WriteErr
	}
	for _, bar := range bars {
		m.Bars[tf] = append(m.Bars[tf], *bar)
	}
	return nil
}

// Written returns the bars stored for tf
func (m *MockHistoryStore) Written(tf models.Timeframe) []models.Bar {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Bar(nil), m.Bars[tf]...)
}

func (m *MockHistoryStore) Close() error {
	m.mu.Lock()
	m.Closed = true
	m.mu.Unlock()
	return nil
}

// MockRedisClient is a mock implementation of RedisClient for testing.
// Published stream entries and pub/sub messages are recorded for assertions.
type MockRedisClient struct {
	mu         sync.Mutex
	Data       map[string]string
	StreamData []StreamMessage
	PubSubData []PubSubMessage
	Acked      []string
	PublishErr error
	StreamErr  error
	GetErr     error
	SetErr     error
	ConsumeErr error
}

func NewMockRedisClient() *MockRedisClient {
	return &MockRedisClient{
		Data: make(map[string]string),
	}
}

func (m *MockRedisClient) PublishToStream(ctx context.Context, stream string, key string, value interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.StreamErr != nil {
		return m.StreamErr
	}
	payload, err := encodePayload(value)
	if err != nil {
		return err
	}
	m.StreamData = append(m.StreamData, StreamMessage{
		ID:     fmt.Sprintf("%d-0", len(m.StreamData)+1),
		Stream: stream,
		Values: map[string]interface{}{key: payload},
	})
	return nil
}

// ConsumeFromStream replays the recorded entries of stream and closes the channel
func (m *MockRedisClient) ConsumeFromStream(ctx context.Context, stream string, group string, consumer string) (<-chan StreamMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ConsumeErr != nil {
		return nil, m.ConsumeErr
	}
	ch := make(chan StreamMessage, len(m.StreamData))
	for _, msg := range m.StreamData {
		if msg.Stream == stream {
			ch <- msg
		}
	}
	close(ch)
	return ch, nil
}

func (m *MockRedisClient) AcknowledgeMessage(ctx context.Context, stream string, group string, id string) error {
	m.mu.Lock()
	m.Acked = append(m.Acked, id)
	m.mu.Unlock()
	return nil
}

func (m *MockRedisClient) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SetErr != nil {
		return m.SetErr
	}
	jsonData, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.Data[key] = string(jsonData)
	return nil
}

func (m *MockRedisClient) GetJSON(ctx context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return m.GetErr
	}
	value, exists := m.Data[key]
	if !exists {
		return nil
	}
	return json.Unmarshal([]byte(value), dest)
}

func (m *MockRedisClient) Publish(ctx context.Context, channel string, message interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PublishErr != nil {
		return m.PublishErr
	}
	payload, err := encodePayload(message)
	if err != nil {
		return err
	}
	m.PubSubData = append(m.PubSubData, PubSubMessage{Channel: channel, Message: payload})
	return nil
}

// Messages returns the pub/sub messages published on channel
func (m *MockRedisClient) Messages(channel string) []PubSubMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []PubSubMessage
	for _, msg := range m.PubSubData {
		if msg.Channel == channel {
			out = append(out, msg)
		}
	}
	return out
}

// Entries returns the stream entries published on stream
func (m *MockRedisClient) Entries(stream string) []StreamMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []StreamMessage
	for _, msg := range m.StreamData {
		if msg.Stream == stream {
			out = append(out, msg)
		}
	}
	return out
}

func (m *MockRedisClient) Close() error {
	return nil
}

// encodePayload mirrors the real client: strings and bytes pass through, anything else is JSON
func encodePayload(value interface{}) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
