package data

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/mohamedkhairy/trade-breakout/internal/models"
)

// MockProvider emits random-walk ticks for one symbol
type MockProvider struct {
	config    ProviderConfig
	rng       *rand.Rand
	connected bool
	symbol    string
	tickChan  chan *models.Tick
	mu        sync.RWMutex
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewMockProvider creates a new mock provider
func NewMockProvider(config ProviderConfig) (Provider, error) {
	if config.Interval <= 0 {
		config.Interval = time.Second
	}
	if config.BasePrice <= 0 {
		config.BasePrice = 100
	}
	seed := config.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &MockProvider{
		config:   config,
		rng:      rand.New(rand.NewSource(seed)),
		tickChan: make(chan *models.Tick, 100),
	}, nil
}

// Connect marks the provider connected
func (m *MockProvider) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.connected {
		return ErrProviderAlreadyConnected
	}
	m.connected = true
	return nil
}

// Subscribe starts the generator for symbol
func (m *MockProvider) Subscribe(ctx context.Context, symbol string) (<-chan *models.Tick, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected {
		return nil, ErrProviderNotConnected
	}
	if symbol == "" {
		return nil, ErrInvalidSymbol
	}

	m.symbol = symbol
	if m.cancel == nil {
		ctx, cancel := context.WithCancel(ctx)
		m.cancel = cancel
		m.wg.Add(1)
		go m.generateTicks(ctx)
	}
	return m.tickChan, nil
}

// Close stops the generator and closes the tick channel
func (m *MockProvider) Close() error {
	m.mu.Lock()
	if !m.connected {
		m.mu.Unlock()
		return nil
	}
	m.connected = false
	cancel := m.cancel
	m.cancel = nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	m.wg.Wait()
	close(m.tickChan)
	return nil
}

// IsConnected returns whether the provider is connected
func (m *MockProvider) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}

// GetName returns the provider name
func (m *MockProvider) GetName() string {
	return "mock"
}

// Symbol returns the subscribed symbol
func (m *MockProvider) Symbol() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.symbol
}

func (m *MockProvider) generateTicks(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.config.Interval)
	defer ticker.Stop()

	price := m.config.BasePrice
	step := price * 0.0005

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			price += (m.rng.Float64() - 0.5) * 2 * step
			if price < step {
				price = step
			}

			tick := &models.Tick{
				Symbol:    m.Symbol(),
				Price:     price,
				Size:      int64(m.rng.Intn(10) + 1),
				Timestamp: now.UTC(),
			}

			select {
			case m.tickChan <- tick:
			case <-ctx.Done():
				return
			default:
				// Consumer is behind; drop the tick
			}
		}
	}
}
