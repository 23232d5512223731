package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"

	"github.com/mohamedkhairy/trade-breakout/internal/config"
	"github.com/mohamedkhairy/trade-breakout/internal/models"
	"github.com/mohamedkhairy/trade-breakout/pkg/logger"
)

// chBar is one row of the candles table (ReplacingMergeTree keyed by
// symbol, interval, open_time_ms)
type chBar struct {
	Symbol     string  `ch:"symbol"`
	OpenTimeMs uint64  `ch:"open_time_ms"`
	Open       float64 `ch:"open"`
	High       float64 `ch:"high"`
	Low        float64 `ch:"low"`
	Close      float64 `ch:"close"`
	Volume     float64 `ch:"volume"`
}

func (r chBar) toBar() models.Bar {
	return models.Bar{
		Symbol:    r.Symbol,
		Timestamp: time.UnixMilli(int64(r.OpenTimeMs)).UTC(),
		Open:      r.Open,
		High:      r.High,
		Low:       r.Low,
		Close:     r.Close,
		Volume:    int64(r.Volume),
	}
}

// ClickHouseStore implements HistoryStore on a ClickHouse candles table
type ClickHouseStore struct {
	conn     clickhouse.Conn
	database string
	table    string
}

// NewClickHouseStore connects and pings ClickHouse
func NewClickHouseStore(cfg config.ClickHouseConfig) (*ClickHouseStore, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.User,
			Password: cfg.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open clickhouse connection: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("clickhouse ping: %w", err)
	}

	logger.Info("Connected to ClickHouse",
		logger.String("addr", cfg.Addr),
		logger.String("database", cfg.Database),
		logger.String("table", cfg.Table),
	)

	return &ClickHouseStore{conn: conn, database: cfg.Database, table: cfg.Table}, nil
}

// loadQuery selects the latest rows of one interval, newest first
func (c *ClickHouseStore) loadQuery() string {
	return fmt.Sprintf(`
		SELECT symbol, open_time_ms, open, high, low, close, volume
		FROM %s.%s FINAL
		WHERE symbol = ? AND interval = ?
		ORDER BY open_time_ms DESC
		LIMIT ?
	`, c.database, c.table)
}

// LoadBars returns the most recent bars of tf in chronological order
func (c *ClickHouseStore) LoadBars(ctx context.Context, symbol string, tf models.Timeframe, limit int) ([]models.Bar, error) {
	interval := tf.Label()
	if interval == "" {
		return nil, fmt.Errorf("%w: no interval for %s", models.ErrInvalidTimeframe, tf)
	}

	start := time.Now()
	var rows []chBar
	if err := c.conn.Select(ctx, &rows, c.loadQuery(), symbol, interval, limit); err != nil {
		historyLoadTotal.WithLabelValues("clickhouse", "error").Inc()
		return nil, fmt.Errorf("failed to query bars: %w", err)
	}
	historyLoadTotal.WithLabelValues("clickhouse", "success").Inc()
	historyLoadLatency.WithLabelValues("clickhouse").Observe(time.Since(start).Seconds())

	bars := make([]models.Bar, len(rows))
	for i, r := range rows {
		bars[i] = r.toBar()
	}
	reverse(bars)
	return bars, nil
}

// Close closes the connection
func (c *ClickHouseStore) Close() error {
	return c.conn.Close()
}
