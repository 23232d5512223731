package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/mohamedkhairy/trade-breakout/internal/models"
	"github.com/mohamedkhairy/trade-breakout/pkg/breakout"
)

// Config holds all configuration for the breakout service
type Config struct {
	Environment string
	LogLevel    string

	Redis      RedisConfig
	Database   DatabaseConfig
	ClickHouse ClickHouseConfig
	History    HistoryConfig
	Market     MarketConfig
	Breakout   BreakoutConfig
	Alerts     AlertsConfig
	Arrows     ArrowsConfig
	Service    ServiceConfig
	WSGateway  WSGatewayConfig
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host         string
	Port         int
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
}

// DatabaseConfig holds TimescaleDB configuration
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxConnections  int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DSN returns the lib/pq connection string
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Database, d.SSLMode)
}

// ClickHouseConfig holds ClickHouse configuration
type ClickHouseConfig struct {
	Addr     string
	Database string
	User     string
	Password string
	Table    string
}

// HistoryConfig selects the warm-up history backend
type HistoryConfig struct {
	Backend  string // "timescale", "clickhouse" or "none"
	Lookback int    // Number of native bars loaded at startup
	Timeout  time.Duration
}

// MarketConfig describes the single instrument this instance serves
type MarketConfig struct {
	Symbol       string
	Timeframe    models.Timeframe // Native (chart) timeframe
	TickSource   string           // "mock" or "redis"
	TickStream   string
	TickGroup    string
	MockInterval time.Duration
	MockPrice    float64
}

// BreakoutConfig holds the oscillator parameters
type BreakoutConfig struct {
	Timeframe models.Timeframe // Coarse timeframe; Current means the chart timeframe
	Period    int
	Price     breakout.PriceType
	Trigger   breakout.TriggerCandle
	Name      string
}

// AlertsConfig holds alert delivery configuration
type AlertsConfig struct {
	Enabled      bool
	Popup        bool
	Email        bool
	EmailAddress string
	Sound        bool
	SoundType    string
	Stream       string
	PopupChannel string
	EmailStream  string
	SoundChannel string
	Timeout      time.Duration
}

// ArrowsConfig holds chart annotation configuration
type ArrowsConfig struct {
	Enabled   bool
	BuyGlyph  string
	SellGlyph string
	Size      int
	BuyColor  string
	SellColor string
}

// ServiceConfig holds the HTTP ports
type ServiceConfig struct {
	Port            int
	HealthCheckPort int
}

// WSGatewayConfig holds WebSocket gateway configuration
type WSGatewayConfig struct {
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	PingInterval   time.Duration
	MaxConnections int
	JWTSecret      string
}

// Load loads configuration from environment variables.
// A .env file in the working directory is loaded first if present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var errs []error
	parse := func(key, def string, fn func(string) error) {
		if err := fn(getEnv(key, def)); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
	}

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		Redis: RedisConfig{
			Host:         getEnv("REDIS_HOST", "localhost"),
			Port:         getEnvAsInt("REDIS_PORT", 6379),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           getEnvAsInt("REDIS_DB", 0),
			PoolSize:     getEnvAsInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvAsInt("REDIS_MIN_IDLE_CONNS", 2),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvAsInt("DB_PORT", 5432),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", "postgres"),
			Database:        getEnv("DB_NAME", "market_data"),
			SSLMode:         getEnv("DB_SSL_MODE", "disable"),
			MaxConnections:  getEnvAsInt("DB_MAX_CONNECTIONS", 5),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 2),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		ClickHouse: ClickHouseConfig{
			Addr:     getEnv("CLICKHOUSE_ADDR", "localhost:9000"),
			Database: getEnv("CLICKHOUSE_DATABASE", "default"),
			User:     getEnv("CLICKHOUSE_USER", "default"),
			Password: getEnv("CLICKHOUSE_PASSWORD", ""),
			Table:    getEnv("CLICKHOUSE_TABLE", "bars"),
		},
		History: HistoryConfig{
			Backend:  strings.ToLower(getEnv("HISTORY_BACKEND", "none")),
			Lookback: getEnvAsInt("HISTORY_LOOKBACK", 5000),
			Timeout:  getEnvAsDuration("HISTORY_TIMEOUT", 30*time.Second),
		},
		Market: MarketConfig{
			Symbol:       getEnv("MARKET_SYMBOL", "EURUSD"),
			TickSource:   strings.ToLower(getEnv("MARKET_TICK_SOURCE", "mock")),
			TickStream:   getEnv("MARKET_TICK_STREAM", "ticks"),
			TickGroup:    getEnv("MARKET_TICK_GROUP", "breakout"),
			MockInterval: getEnvAsDuration("MARKET_MOCK_INTERVAL", time.Second),
			MockPrice:    getEnvAsFloat("MARKET_MOCK_PRICE", 1.0850),
		},
		Breakout: BreakoutConfig{
			Period: getEnvAsInt("BREAKOUT_PERIOD", 50),
			Name:   getEnv("BREAKOUT_NAME", "TBO_MTF"),
		},
		Alerts: AlertsConfig{
			Enabled:      getEnvAsBool("ALERTS_ENABLED", false),
			Popup:        getEnvAsBool("ALERTS_POPUP", false),
			Email:        getEnvAsBool("ALERTS_EMAIL", false),
			EmailAddress: getEnv("ALERTS_EMAIL_ADDRESS", ""),
			Sound:        getEnvAsBool("ALERTS_SOUND", false),
			SoundType:    getEnv("ALERTS_SOUND_TYPE", "Announcement"),
			Stream:       getEnv("ALERTS_STREAM", "breakout.alerts"),
			PopupChannel: getEnv("ALERTS_POPUP_CHANNEL", "breakout.popup"),
			EmailStream:  getEnv("ALERTS_EMAIL_STREAM", "breakout.email"),
			SoundChannel: getEnv("ALERTS_SOUND_CHANNEL", "breakout.sound"),
			Timeout:      getEnvAsDuration("ALERTS_TIMEOUT", 5*time.Second),
		},
		Arrows: ArrowsConfig{
			Enabled:   getEnvAsBool("ARROWS_ENABLED", true),
			BuyGlyph:  getEnv("ARROWS_BUY_GLYPH", "▲"),
			SellGlyph: getEnv("ARROWS_SELL_GLYPH", "▼"),
			Size:      getEnvAsInt("ARROWS_SIZE", 3),
			BuyColor:  getEnv("ARROWS_BUY_COLOR", "Green"),
			SellColor: getEnv("ARROWS_SELL_COLOR", "Red"),
		},
		Service: ServiceConfig{
			Port:            getEnvAsInt("SERVICE_PORT", 8080),
			HealthCheckPort: getEnvAsInt("SERVICE_HEALTH_PORT", 8081),
		},
		WSGateway: WSGatewayConfig{
			ReadTimeout:    getEnvAsDuration("WS_GATEWAY_READ_TIMEOUT", 60*time.Second),
			WriteTimeout:   getEnvAsDuration("WS_GATEWAY_WRITE_TIMEOUT", 10*time.Second),
			PingInterval:   getEnvAsDuration("WS_GATEWAY_PING_INTERVAL", 30*time.Second),
			MaxConnections: getEnvAsInt("WS_GATEWAY_MAX_CONNECTIONS", 100),
			JWTSecret:      getEnv("WS_GATEWAY_JWT_SECRET", ""),
		},
	}

	parse("MARKET_TIMEFRAME", "Minute", func(s string) (err error) {
		cfg.Market.Timeframe, err = models.ParseTimeframe(s)
		return err
	})
	parse("BREAKOUT_TIMEFRAME", "Current", func(s string) (err error) {
		cfg.Breakout.Timeframe, err = models.ParseTimeframe(s)
		return err
	})
	parse("BREAKOUT_PRICE_TYPE", "HighLow", func(s string) (err error) {
		cfg.Breakout.Price, err = breakout.ParsePriceType(s)
		return err
	})
	parse("BREAKOUT_TRIGGER_CANDLE", "CurrentCandle", func(s string) (err error) {
		cfg.Breakout.Trigger, err = breakout.ParseTriggerCandle(s)
		return err
	})
	if len(errs) > 0 {
		return nil, fmt.Errorf("config parse failed: %w", errors.Join(errs...))
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Market.Symbol == "" {
		return fmt.Errorf("MARKET_SYMBOL is required")
	}
	if c.Market.Timeframe <= 0 {
		return fmt.Errorf("MARKET_TIMEFRAME must be a concrete timeframe")
	}
	if c.Breakout.Period < 1 {
		return fmt.Errorf("BREAKOUT_PERIOD must be at least 1, got %d", c.Breakout.Period)
	}
	if c.Arrows.Size < 1 || c.Arrows.Size > 5 {
		return fmt.Errorf("ARROWS_SIZE must be between 1 and 5, got %d", c.Arrows.Size)
	}
	switch c.History.Backend {
	case "none", "timescale", "clickhouse":
	default:
		return fmt.Errorf("HISTORY_BACKEND must be none, timescale or clickhouse, got %q", c.History.Backend)
	}
	switch c.Market.TickSource {
	case "mock":
	case "redis":
		if c.Redis.Host == "" {
			return fmt.Errorf("REDIS_HOST is required for the redis tick source")
		}
	default:
		return fmt.Errorf("MARKET_TICK_SOURCE must be mock or redis, got %q", c.Market.TickSource)
	}
	if c.Service.Port == c.Service.HealthCheckPort {
		return fmt.Errorf("SERVICE_PORT and SERVICE_HEALTH_PORT must differ")
	}
	return nil
}

// EngineConfig converts the breakout section into an engine configuration
func (c *Config) EngineConfig() (breakout.Config, models.Timeframe) {
	coarse, mtf := c.Breakout.Timeframe.Resolve(c.Market.Timeframe)
	return breakout.Config{
		Period:  c.Breakout.Period,
		Price:   c.Breakout.Price,
		Trigger: c.Breakout.Trigger,
		MTF:     mtf,
		Name:    c.Breakout.Name,
		Arrows:  c.Arrows.Enabled,
		Alerts:  c.Alerts.Enabled,
	}, coarse
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return intValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return f
}

func getEnvAsBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	boolValue, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return boolValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return duration
}
