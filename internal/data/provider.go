package data

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/mohamedkhairy/trade-breakout/internal/models"
)

var (
	// ErrProviderNotConnected is returned when operations are attempted on a disconnected provider
	ErrProviderNotConnected = errors.New("provider is not connected")
	// ErrProviderAlreadyConnected is returned when attempting to connect an already connected provider
	ErrProviderAlreadyConnected = errors.New("provider is already connected")
	// ErrInvalidSymbol is returned when an invalid symbol is provided
	ErrInvalidSymbol = errors.New("invalid symbol")
)

// Provider is a live tick source for one symbol
type Provider interface {
	// Connect establishes a connection to the market data provider
	Connect(ctx context.Context) error

	// Subscribe starts streaming ticks for symbol. The channel is closed by Close.
	Subscribe(ctx context.Context, symbol string) (<-chan *models.Tick, error)

	// Close closes the connection to the provider
	Close() error

	// IsConnected returns whether the provider is currently connected
	IsConnected() bool

	// GetName returns the provider type
	GetName() string
}

// ProviderConfig holds configuration for a provider
type ProviderConfig struct {
	Interval  time.Duration // Mock tick interval
	BasePrice float64       // Mock starting price
	Seed      int64         // Mock random seed; zero uses the clock
}

// ProviderFactory creates providers by type name
type ProviderFactory struct {
	factories map[string]func(ProviderConfig) (Provider, error)
}

// NewProviderFactory creates a factory with the built-in providers registered
func NewProviderFactory() *ProviderFactory {
	f := &ProviderFactory{factories: make(map[string]func(ProviderConfig) (Provider, error))}
	_ = f.RegisterProvider("mock", NewMockProvider)
	return f
}

// CreateProvider creates a new provider instance
func (f *ProviderFactory) CreateProvider(providerType string, config ProviderConfig) (Provider, error) {
	factoryFunc, exists := f.factories[providerType]
	if !exists {
		return nil, fmt.Errorf("unknown provider type: %s", providerType)
	}
	return factoryFunc(config)
}

// RegisterProvider registers a provider constructor
func (f *ProviderFactory) RegisterProvider(providerType string, factoryFunc func(ProviderConfig) (Provider, error)) error {
	if _, exists := f.factories[providerType]; exists {
		return fmt.Errorf("provider type already registered: %s", providerType)
	}
	f.factories[providerType] = factoryFunc
	return nil
}

// ListProviders returns the registered provider types in sorted order
func (f *ProviderFactory) ListProviders() []string {
	providers := make([]string, 0, len(f.factories))
	for providerType := range f.factories {
		providers = append(providers, providerType)
	}
	sort.Strings(providers)
	return providers
}
