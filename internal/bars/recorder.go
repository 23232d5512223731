package bars

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mohamedkhairy/trade-breakout/internal/models"
	"github.com/mohamedkhairy/trade-breakout/internal/storage"
	"github.com/mohamedkhairy/trade-breakout/pkg/logger"
)

// RecorderConfig holds configuration for the bar recorder
type RecorderConfig struct {
	LiveBarKeyPrefix string        // Prefix for live bar keys (default: "livebar:")
	LiveBarTTL       time.Duration // TTL for live bars (default: 5 minutes)
	BatchSize        int           // Finalized bars per history write (default: 100)
	BatchTimeout     time.Duration // Max time a finalized bar waits for a write (default: 1s)
}

// DefaultRecorderConfig returns default configuration
func DefaultRecorderConfig() RecorderConfig {
	return RecorderConfig{
		LiveBarKeyPrefix: "livebar:",
		LiveBarTTL:       5 * time.Minute,
		BatchSize:        100,
		BatchTimeout:     time.Second,
	}
}

// Recorder keeps a live-bar snapshot in Redis and persists finalized native
// bars through the history writer, so the next warm-up can reload them.
type Recorder struct {
	config  RecorderConfig
	tf      models.Timeframe
	redis   storage.RedisClient
	writer  storage.BarWriter // nil disables persistence
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.RWMutex
	running bool

	batch   []*models.Bar
	batchMu sync.Mutex
}

// NewRecorder creates a recorder for bars of timeframe tf
func NewRecorder(redis storage.RedisClient, writer storage.BarWriter, tf models.Timeframe, config RecorderConfig) *Recorder {
	if config.BatchSize <= 0 {
		config.BatchSize = 100
	}
	if config.BatchTimeout <= 0 {
		config.BatchTimeout = time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Recorder{
		config: config,
		tf:     tf,
		redis:  redis,
		writer: writer,
		ctx:    ctx,
		cancel: cancel,
		batch:  make([]*models.Bar, 0, config.BatchSize),
	}
}

// Start starts the periodic flush loop
func (r *Recorder) Start() error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return fmt.Errorf("recorder is already running")
	}
	r.running = true
	r.mu.Unlock()

	logger.Info("Starting bar recorder",
		logger.String("timeframe", r.tf.String()),
		logger.String("live_bar_prefix", r.config.LiveBarKeyPrefix),
		logger.Bool("persist", r.writer != nil),
	)

	r.wg.Add(1)
	go r.flushLoop()
	return nil
}

// Stop stops the flush loop and writes any pending bars
func (r *Recorder) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	r.mu.Unlock()

	r.cancel()
	r.wg.Wait()

	if err := r.flush(); err != nil {
		logger.Warn("Final bar flush failed", logger.ErrorField(err))
	}
	logger.Info("Bar recorder stopped")
}

// PublishLiveBar stores the forming bar snapshot under <prefix><symbol>
func (r *Recorder) PublishLiveBar(ctx context.Context, bar *models.Bar) error {
	if bar == nil {
		return fmt.Errorf("live bar cannot be nil")
	}
	key := r.config.LiveBarKeyPrefix + bar.Symbol
	if err := r.redis.Set(ctx, key, bar, r.config.LiveBarTTL); err != nil {
		return fmt.Errorf("failed to publish live bar: %w", err)
	}
	return nil
}

// GetLiveBar reads back the live bar snapshot for symbol
func (r *Recorder) GetLiveBar(ctx context.Context, symbol string) (*models.Bar, error) {
	var bar models.Bar
	if err := r.redis.GetJSON(ctx, r.config.LiveBarKeyPrefix+symbol, &bar); err != nil {
		return nil, fmt.Errorf("failed to get live bar: %w", err)
	}
	return &bar, nil
}

// RecordFinalized queues a closed bar for persistence
func (r *Recorder) RecordFinalized(bar *models.Bar) error {
	if bar == nil {
		return fmt.Errorf("bar cannot be nil")
	}
	if err := bar.Validate(); err != nil {
		return fmt.Errorf("invalid bar: %w", err)
	}
	if r.writer == nil {
		return nil
	}

	r.batchMu.Lock()
	r.batch = append(r.batch, bar)
	full := len(r.batch) >= r.config.BatchSize
	r.batchMu.Unlock()

	if full {
		return r.flush()
	}
	return nil
}

// Pending returns the number of queued bars
func (r *Recorder) Pending() int {
	r.batchMu.Lock()
	defer r.batchMu.Unlock()
	return len(r.batch)
}

// IsRunning returns whether the recorder is running
func (r *Recorder) IsRunning() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.running
}

func (r *Recorder) flushLoop() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.config.BatchTimeout)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			if err := r.flush(); err != nil {
				logger.Error("Failed to write finalized bars", logger.ErrorField(err))
			}
		}
	}
}

func (r *Recorder) flush() error {
	r.batchMu.Lock()
	if len(r.batch) == 0 {
		r.batchMu.Unlock()
		return nil
	}
	batch := make([]*models.Bar, len(r.batch))
	copy(batch, r.batch)
	r.batch = r.batch[:0]
	r.batchMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := r.writer.WriteBars(ctx, r.tf, batch); err != nil {
		return fmt.Errorf("write %d bars: %w", len(batch), err)
	}

	logger.Debug("Recorded finalized bars",
		logger.String("timeframe", r.tf.String()),
		logger.Int("count", len(batch)),
	)
	return nil
}
