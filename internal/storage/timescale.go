package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/mohamedkhairy/trade-breakout/internal/config"
	"github.com/mohamedkhairy/trade-breakout/internal/models"
	"github.com/mohamedkhairy/trade-breakout/pkg/logger"
)

var (
	historyLoadTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "breakout_history_load_total",
			Help: "Total number of history loads by backend and status",
		},
		[]string{"backend", "status"},
	)

	historyLoadLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "breakout_history_load_latency_seconds",
			Help:    "History load latency in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		},
		[]string{"backend"},
	)

	timescaleWriteTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "breakout_timescale_write_total",
			Help: "Total number of bars written to TimescaleDB",
		},
		[]string{"status"},
	)

	timescaleWriteQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "breakout_timescale_write_queue_depth",
			Help: "Current depth of the write queue",
		},
	)
)

// WriteConfig holds configuration for write operations
type WriteConfig struct {
	BatchSize  int
	Interval   time.Duration
	QueueSize  int
	MaxRetries int
	RetryDelay time.Duration
}

// DefaultWriteConfig returns defaults suited to one symbol
func DefaultWriteConfig() WriteConfig {
	return WriteConfig{
		BatchSize:  100,
		Interval:   time.Second,
		QueueSize:  1000,
		MaxRetries: 3,
		RetryDelay: 100 * time.Millisecond,
	}
}

// barsTable returns the hypertable holding bars of tf
func barsTable(tf models.Timeframe) (string, error) {
	label := tf.Label()
	if label == "" {
		return "", fmt.Errorf("%w: no table for %s", models.ErrInvalidTimeframe, tf)
	}
	return "bars_" + label, nil
}

type writeRequest struct {
	table string
	bars  []*models.Bar
}

// TimescaleStore implements HistoryStore and BarWriter on TimescaleDB via sqlx
type TimescaleStore struct {
	db          *sqlx.DB
	writeConfig WriteConfig

	writeQueue chan writeRequest
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	mu         sync.RWMutex
	running    bool
}

// NewTimescaleStore opens and pings the database
func NewTimescaleStore(dbConfig config.DatabaseConfig, writeConfig WriteConfig) (*TimescaleStore, error) {
	db, err := sqlx.Open("postgres", dbConfig.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(dbConfig.MaxConnections)
	db.SetMaxIdleConns(dbConfig.MaxIdleConns)
	db.SetConnMaxLifetime(dbConfig.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("Connected to TimescaleDB",
		logger.String("host", dbConfig.Host),
		logger.Int("port", dbConfig.Port),
		logger.String("database", dbConfig.Database),
	)

	return newTimescaleStore(db, writeConfig), nil
}

func newTimescaleStore(db *sqlx.DB, writeConfig WriteConfig) *TimescaleStore {
	clientCtx, clientCancel := context.WithCancel(context.Background())
	return &TimescaleStore{
		db:          db,
		writeConfig: writeConfig,
		writeQueue:  make(chan writeRequest, writeConfig.QueueSize),
		ctx:         clientCtx,
		cancel:      clientCancel,
	}
}

// LoadBars returns the most recent bars of tf in chronological order
func (t *TimescaleStore) LoadBars(ctx context.Context, symbol string, tf models.Timeframe, limit int) ([]models.Bar, error) {
	table, err := barsTable(tf)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	query := fmt.Sprintf(`
		SELECT symbol, timestamp, open, high, low, close, volume
		FROM %s
		WHERE symbol = $1
		ORDER BY timestamp DESC
		LIMIT $2
	`, table)

	var bars []models.Bar
	if err := t.db.SelectContext(ctx, &bars, query, symbol, limit); err != nil {
		historyLoadTotal.WithLabelValues("timescale", "error").Inc()
		return nil, fmt.Errorf("failed to query bars: %w", err)
	}
	historyLoadTotal.WithLabelValues("timescale", "success").Inc()
	historyLoadLatency.WithLabelValues("timescale").Observe(time.Since(start).Seconds())

	reverse(bars)
	return bars, nil
}

// Start starts the write queue processor
func (t *TimescaleStore) Start() error {
	t.mu.Lock()
	if t.running {
		t.mu.Unlock()
		return fmt.Errorf("TimescaleDB store is already running")
	}
	t.running = true
	t.mu.Unlock()

	t.wg.Add(1)
	go t.processWriteQueue()
	return nil
}

// WriteBars enqueues finalized bars for async writing
func (t *TimescaleStore) WriteBars(ctx context.Context, tf models.Timeframe, bars []*models.Bar) error {
	table, err := barsTable(tf)
	if err != nil {
		return err
	}

	valid := make([]*models.Bar, 0, len(bars))
	for _, bar := range bars {
		if err := bar.Validate(); err != nil {
			logger.Warn("Invalid bar, skipping", logger.ErrorField(err), logger.Symbol(bar.Symbol))
			continue
		}
		valid = append(valid, bar)
	}
	if len(valid) == 0 {
		return nil
	}

	select {
	case t.writeQueue <- writeRequest{table: table, bars: valid}:
		timescaleWriteQueueDepth.Set(float64(len(t.writeQueue)))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		timescaleWriteTotal.WithLabelValues("dropped").Add(float64(len(valid)))
		return fmt.Errorf("write queue is full")
	}
}

func (t *TimescaleStore) processWriteQueue() {
	defer t.wg.Done()

	pending := make(map[string][]*models.Bar)
	count := 0
	ticker := time.NewTicker(t.writeConfig.Interval)
	defer ticker.Stop()

	flush := func() {
		for table, bars := range pending {
			t.writeBarsSync(context.Background(), table, bars)
		}
		pending = make(map[string][]*models.Bar)
		count = 0
	}

	for {
		select {
		case <-t.ctx.Done():
			// Drain what was queued before shutdown
			for {
				select {
				case req := <-t.writeQueue:
					pending[req.table] = append(pending[req.table], req.bars...)
				default:
					flush()
					return
				}
			}

		case req := <-t.writeQueue:
			pending[req.table] = append(pending[req.table], req.bars...)
			count += len(req.bars)
			timescaleWriteQueueDepth.Set(float64(len(t.writeQueue)))
			if count >= t.writeConfig.BatchSize {
				flush()
			}

		case <-ticker.C:
			if count > 0 {
				flush()
			}
		}
	}
}

// writeBarsSync writes bars with exponential backoff retries
func (t *TimescaleStore) writeBarsSync(ctx context.Context, table string, bars []*models.Bar) {
	var err error
	for attempt := 0; attempt < t.writeConfig.MaxRetries; attempt++ {
		if err = t.insertBars(ctx, table, bars); err == nil {
			break
		}
		if attempt < t.writeConfig.MaxRetries-1 {
			delay := t.writeConfig.RetryDelay * time.Duration(1<<uint(attempt))
			logger.Warn("Failed to write bars, retrying",
				logger.ErrorField(err),
				logger.Int("attempt", attempt+1),
				logger.Duration("delay", delay),
			)
			time.Sleep(delay)
		}
	}

	if err != nil {
		timescaleWriteTotal.WithLabelValues("error").Add(float64(len(bars)))
		logger.Error("Failed to write bars after retries",
			logger.ErrorField(err),
			logger.String("table", table),
			logger.Int("bars_count", len(bars)),
		)
		return
	}
	timescaleWriteTotal.WithLabelValues("success").Add(float64(len(bars)))
}

func (t *TimescaleStore) insertBars(ctx context.Context, table string, bars []*models.Bar) error {
	tx, err := t.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := fmt.Sprintf(`
		INSERT INTO %s (symbol, timestamp, open, high, low, close, volume)
		VALUES (:symbol, :timestamp, :open, :high, :low, :close, :volume)
		ON CONFLICT (symbol, timestamp) DO UPDATE SET
			open = EXCLUDED.open,
			high = EXCLUDED.high,
			low = EXCLUDED.low,
			close = EXCLUDED.close,
			volume = EXCLUDED.volume
	`, table)

	for _, bar := range bars {
		if _, err := tx.NamedExecContext(ctx, query, bar); err != nil {
			return fmt.Errorf("failed to insert bar: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Close stops the write queue, flushes pending bars and closes the database
func (t *TimescaleStore) Close() error {
	t.mu.Lock()
	wasRunning := t.running
	t.running = false
	t.mu.Unlock()

	t.cancel()
	if wasRunning {
		t.wg.Wait()
	}
	if err := t.db.Close(); err != nil {
		return fmt.Errorf("failed to close database connection: %w", err)
	}
	logger.Info("TimescaleDB store closed")
	return nil
}

func reverse(bars []models.Bar) {
	for i, j := 0, len(bars)-1; i < j; i, j = i+1, j-1 {
		bars[i], bars[j] = bars[j], bars[i]
	}
}
