package signal

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mohamedkhairy/trade-breakout/internal/bars"
	"github.com/mohamedkhairy/trade-breakout/internal/config"
	"github.com/mohamedkhairy/trade-breakout/internal/models"
	"github.com/mohamedkhairy/trade-breakout/internal/storage"
	"github.com/mohamedkhairy/trade-breakout/internal/wsgateway"
	"github.com/mohamedkhairy/trade-breakout/pkg/breakout"
	"github.com/mohamedkhairy/trade-breakout/pkg/logger"
)

// ErrAlreadyWarm is returned when history is seeded into a non-empty series
var ErrAlreadyWarm = errors.New("series already contains bars")

const recentAlerts = 100

// Notifier delivers alerts
type Notifier interface {
	Notify(ctx context.Context, alert *models.BreakoutAlert) error
}

// Annotator applies arrow actions to the chart
type Annotator interface {
	Apply(actions []breakout.ArrowAction) (drawn, removed int)
}

// Broadcaster pushes alerts to chart clients
type Broadcaster interface {
	Broadcast(msgType wsgateway.MessageType, data interface{}) int
}

// Recorder persists closed bars and publishes the forming one
type Recorder interface {
	PublishLiveBar(ctx context.Context, bar *models.Bar) error
	RecordFinalized(bar *models.Bar) error
}

// Config describes the instrument and engine served by a Service
type Config struct {
	Symbol   string
	Chart    models.Timeframe // native timeframe of the fine series
	Coarse   models.Timeframe // equals Chart when MTF is off
	Engine   breakout.Config
	Lookback int // fine bars loaded at warm-up
}

// ConfigFrom derives the service configuration from the application config
func ConfigFrom(cfg *config.Config) Config {
	engine, coarse := cfg.EngineConfig()
	return Config{
		Symbol:   cfg.Market.Symbol,
		Chart:    cfg.Market.Timeframe,
		Coarse:   coarse,
		Engine:   engine,
		Lookback: cfg.History.Lookback,
	}
}

// OscillatorPoint is the oscillator pair stored at one fine bar
type OscillatorPoint struct {
	Index      int            `json:"index"`
	Time       time.Time      `json:"time"`
	Close      float64        `json:"close"`
	Resistance breakout.Value `json:"resistance"`
	Support    breakout.Value `json:"support"`
}

// Status summarises the service state
type Status struct {
	Symbol         string                `json:"symbol"`
	ChartTimeframe models.Timeframe      `json:"chart_timeframe"`
	Timeframe      models.Timeframe      `json:"timeframe"`
	MTF            bool                  `json:"mtf"`
	Period         int                   `json:"period"`
	Price          string                `json:"price"`
	Shift          int                   `json:"shift"`
	Bars           int                   `json:"bars"`
	CoarseBars     int                   `json:"coarse_bars"`
	Ready          bool                  `json:"ready"`
	State          breakout.AlertState   `json:"state"`
	LastBar        *models.Bar           `json:"last_bar,omitempty"`
	LastAlert      *models.BreakoutAlert `json:"last_alert,omitempty"`
}

// Service owns the bar series and the breakout engine for one symbol.
// All engine calls and reads are serialised by mu; notification and chart
// delivery happen after the lock is released.
type Service struct {
	mu        sync.RWMutex
	cfg       Config
	fine      *bars.Series
	coarse    *bars.Series
	agg       *bars.Aggregator
	resampler *bars.Resampler
	engine    *breakout.Engine
	alerts    []*models.BreakoutAlert

	notifier    Notifier
	annotator   Annotator
	broadcaster Broadcaster
	recorder    Recorder
	now         func() time.Time
}

// NewService creates a service. notifier and annotator may be nil.
func NewService(cfg Config, notifier Notifier, annotator Annotator) (*Service, error) {
	if cfg.Symbol == "" {
		return nil, models.ErrInvalidSymbol
	}
	if cfg.Chart <= 0 {
		return nil, fmt.Errorf("%w: chart timeframe must be concrete", models.ErrInvalidTimeframe)
	}
	if cfg.Coarse < cfg.Chart {
		cfg.Coarse = cfg.Chart
	}
	cfg.Engine.MTF = cfg.Coarse > cfg.Chart

	s := &Service{
		cfg:       cfg,
		fine:      bars.NewSeries(cfg.Chart),
		notifier:  notifier,
		annotator: annotator,
		now:       time.Now,
	}
	s.coarse = s.fine
	if cfg.Engine.MTF {
		s.coarse = bars.NewSeries(cfg.Coarse)
		s.resampler = bars.NewResampler(s.coarse)
	}

	engine, err := breakout.NewEngine(cfg.Engine, s.fine, s.coarse)
	if err != nil {
		return nil, err
	}
	s.engine = engine
	s.agg = bars.NewAggregator(cfg.Symbol, s.fine)
	return s, nil
}

// SetBroadcaster sets where alerts are pushed for chart clients
func (s *Service) SetBroadcaster(b Broadcaster) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.broadcaster = b
}

// SetRecorder sets the bar recorder
func (s *Service) SetRecorder(r Recorder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recorder = r
	s.agg.SetOnBarFinal(func(bar *models.Bar) {
		if err := r.RecordFinalized(bar); err != nil {
			logger.Warn("Failed to record finalized bar",
				logger.ErrorField(err),
				logger.Time("timestamp", bar.Timestamp),
			)
		}
	})
}

// Warmup loads history from store and evaluates it
func (s *Service) Warmup(ctx context.Context, store storage.HistoryStore) error {
	fine, err := store.LoadBars(ctx, s.cfg.Symbol, s.cfg.Chart, s.cfg.Lookback)
	if err != nil {
		return fmt.Errorf("load %s history: %w", s.cfg.Chart, err)
	}

	var coarse []models.Bar
	if s.cfg.Engine.MTF {
		coarse, err = store.LoadBars(ctx, s.cfg.Symbol, s.cfg.Coarse, s.cfg.Engine.Period+2)
		if err != nil {
			return fmt.Errorf("load %s history: %w", s.cfg.Coarse, err)
		}
	}
	return s.Seed(fine, coarse)
}

// Seed fills the empty series with history and evaluates every fine bar as
// closed. Coarse bars before the first fine bar are used as stored; later
// buckets are rebuilt from the fine bars. When the fine history starts in the
// middle of a bucket, the stored bar of that bucket is extended rather than
// rebuilt from the partial fine bars.
func (s *Service) Seed(fine, coarse []models.Bar) error {
	s.mu.Lock()
	if s.fine.Len() > 0 {
		s.mu.Unlock()
		return ErrAlreadyWarm
	}

	native := make([]models.Bar, 0, len(fine))
	for _, bar := range fine {
		if bar.Symbol != s.cfg.Symbol {
			continue
		}
		bar.Timestamp = s.cfg.Chart.BucketStart(bar.Timestamp)
		native = append(native, bar)
	}

	if s.resampler != nil {
		cutoff := s.cfg.Coarse.BucketStart(s.now())
		midBucket := false
		if len(native) > 0 {
			cutoff = s.cfg.Coarse.BucketStart(native[0].Timestamp)
			midBucket = native[0].Timestamp.After(cutoff)
		}
		for _, bar := range coarse {
			start := s.cfg.Coarse.BucketStart(bar.Timestamp)
			switch {
			case start.Before(cutoff):
				bar.Timestamp = start
				if _, _, err := s.coarse.Upsert(bar); err != nil {
					ingestErrors.WithLabelValues("history").Inc()
				}
			case start.Equal(cutoff) && midBucket:
				if _, err := s.resampler.Prime(bar); err != nil {
					ingestErrors.WithLabelValues("history").Inc()
				}
			}
		}
	}

	for _, bar := range native {
		if _, _, err := s.fine.Upsert(bar); err != nil {
			ingestErrors.WithLabelValues("history").Inc()
			continue
		}
		if s.resampler != nil {
			if _, _, err := s.resampler.Apply(bar); err != nil {
				ingestErrors.WithLabelValues("history").Inc()
			}
		}
	}

	var actions []breakout.ArrowAction
	for i := 0; i < s.fine.Len(); i++ {
		actions = append(actions, s.engine.Calculate(i, false).Arrows...)
	}
	barsProcessed.WithLabelValues("warmup").Add(float64(s.fine.Len()))
	n, nc := s.fine.Len(), s.coarse.Len()
	annotator := s.annotator
	s.mu.Unlock()

	if annotator != nil {
		annotator.Apply(actions)
	}

	logger.Info("Warm-up complete",
		logger.Symbol(s.cfg.Symbol),
		logger.Int("bars", n),
		logger.Int("coarse_bars", nc),
		logger.Int("arrows", len(actions)),
	)
	return nil
}

// ProcessTick folds a tick into the native series and evaluates it
func (s *Service) ProcessTick(ctx context.Context, tick *models.Tick) error {
	s.mu.Lock()
	up, err := s.agg.ProcessTick(tick)
	if err != nil {
		s.mu.Unlock()
		ingestErrors.WithLabelValues(reason(err)).Inc()
		return err
	}
	if up.Index < 0 {
		s.mu.Unlock()
		return nil
	}
	out := s.evaluate(up.Index, up.Opened)
	recorder := s.recorder
	s.mu.Unlock()

	if recorder != nil {
		live := up.Bar
		if err := recorder.PublishLiveBar(ctx, &live); err != nil {
			logger.Debug("Failed to publish live bar", logger.ErrorField(err))
		}
	}
	s.dispatch(ctx, out)
	return nil
}

// ProcessBar upserts a native bar (a new bar or an update of the forming
// one) and evaluates it
func (s *Service) ProcessBar(ctx context.Context, bar models.Bar) error {
	if bar.Symbol != s.cfg.Symbol {
		return fmt.Errorf("%w: %q", models.ErrInvalidSymbol, bar.Symbol)
	}
	if err := bar.Validate(); err != nil {
		ingestErrors.WithLabelValues(reason(err)).Inc()
		return err
	}
	bar.Timestamp = s.cfg.Chart.BucketStart(bar.Timestamp)

	s.mu.Lock()
	index, opened, err := s.fine.Upsert(bar)
	if err != nil {
		s.mu.Unlock()
		ingestErrors.WithLabelValues(reason(err)).Inc()
		return err
	}
	out := s.evaluate(index, opened)
	s.mu.Unlock()

	s.dispatch(ctx, out)
	return nil
}

// outcome is what one evaluation produced for delivery
type outcome struct {
	arrows []breakout.ArrowAction
	alerts []*models.BreakoutAlert
}

// evaluate runs the engine for the fine bar at index. Callers hold mu.
func (s *Service) evaluate(index int, opened bool) outcome {
	if s.resampler != nil {
		if _, _, err := s.resampler.Apply(s.fine.Bar(index)); err != nil {
			ingestErrors.WithLabelValues("resample").Inc()
			logger.Warn("Failed to resample bar",
				logger.ErrorField(err),
				logger.Int("index", index),
			)
		}
	}

	var out outcome
	if opened && index > 0 {
		prev := s.engine.Calculate(index-1, false)
		out.arrows = append(out.arrows, prev.Arrows...)
		barsProcessed.WithLabelValues("live").Inc()
	}

	r := s.engine.Calculate(index, true)
	barsProcessed.WithLabelValues("live").Inc()
	out.arrows = append(out.arrows, r.Arrows...)
	if r.Backfilled > 0 {
		backfilledBars.Observe(float64(r.Backfilled))
	}
	if !r.Resistance.Valid() {
		undefinedOutputs.WithLabelValues("resistance").Inc()
	}
	if !r.Support.Valid() {
		undefinedOutputs.WithLabelValues("support").Inc()
	}

	for _, a := range out.arrows {
		if a.Op == breakout.ArrowDraw {
			signalsDetected.WithLabelValues(a.Side.String()).Inc()
		}
	}

	for _, ev := range r.Alerts {
		alert := s.newAlert(ev)
		out.alerts = append(out.alerts, alert)
		s.alerts = append(s.alerts, alert)
		alertsEmitted.WithLabelValues(alert.Side).Inc()
	}
	if over := len(s.alerts) - recentAlerts; over > 0 {
		s.alerts = append(s.alerts[:0:0], s.alerts[over:]...)
	}
	return out
}

func (s *Service) newAlert(ev breakout.AlertEvent) *models.BreakoutAlert {
	return &models.BreakoutAlert{
		ID:             uuid.New().String(),
		Symbol:         s.cfg.Symbol,
		Side:           ev.Side.String(),
		Timeframe:      s.cfg.Coarse,
		ChartTimeframe: s.cfg.Chart,
		Message:        AlertMessage(s.cfg.Symbol, s.cfg.Coarse, s.cfg.Chart, ev.Side),
		Price:          s.fine.Close(ev.Index),
		BarTime:        s.fine.OpenTime(ev.Index),
		CoarseTime:     ev.CoarseTime,
		Resistance:     valuePtr(ev.Resistance),
		Support:        valuePtr(ev.Support),
		Timestamp:      s.now().UTC(),
	}
}

// dispatch delivers arrows and alerts without holding mu
func (s *Service) dispatch(ctx context.Context, out outcome) {
	s.mu.RLock()
	annotator, notifier, broadcaster := s.annotator, s.notifier, s.broadcaster
	s.mu.RUnlock()

	if annotator != nil && len(out.arrows) > 0 {
		annotator.Apply(out.arrows)
	}

	for _, alert := range out.alerts {
		logger.Info("Breakout alert",
			logger.String("alert_id", alert.ID),
			logger.Symbol(alert.Symbol),
			logger.String("side", alert.Side),
			logger.String("message", alert.Message),
			logger.Time("coarse_time", alert.CoarseTime),
		)
		if broadcaster != nil {
			broadcaster.Broadcast(wsgateway.MessageTypeAlert, alert)
		}
		if notifier != nil {
			if err := notifier.Notify(ctx, alert); err != nil {
				logger.Warn("Alert delivery incomplete",
					logger.String("alert_id", alert.ID),
					logger.ErrorField(err),
				)
			}
		}
	}
}

func reason(err error) string {
	switch {
	case errors.Is(err, models.ErrOutOfOrder):
		return "out_of_order"
	case errors.Is(err, models.ErrInvalidPrice), errors.Is(err, models.ErrInvalidBar):
		return "invalid_price"
	case errors.Is(err, models.ErrInvalidTimestamp):
		return "invalid_timestamp"
	default:
		return "invalid"
	}
}

// Oscillator returns the last limit oscillator points (all when limit <= 0)
func (s *Service) Oscillator(limit int) []OscillatorPoint {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := s.fine.Len()
	start := 0
	if limit > 0 && limit < n {
		start = n - limit
	}
	points := make([]OscillatorPoint, 0, n-start)
	for i := start; i < n; i++ {
		points = append(points, OscillatorPoint{
			Index:      i,
			Time:       s.fine.OpenTime(i),
			Close:      s.fine.Close(i),
			Resistance: s.engine.Resistance(i),
			Support:    s.engine.Support(i),
		})
	}
	return points
}

// Alerts returns the most recent alerts, newest last
func (s *Service) Alerts(limit int) []models.BreakoutAlert {
	s.mu.RLock()
	defer s.mu.RUnlock()

	start := 0
	if limit > 0 && limit < len(s.alerts) {
		start = len(s.alerts) - limit
	}
	out := make([]models.BreakoutAlert, 0, len(s.alerts)-start)
	for _, a := range s.alerts[start:] {
		out = append(out, *a)
	}
	return out
}

// Status returns a snapshot of the service state
func (s *Service) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cfg := s.engine.Config()
	st := Status{
		Symbol:         s.cfg.Symbol,
		ChartTimeframe: s.cfg.Chart,
		Timeframe:      s.cfg.Coarse,
		MTF:            cfg.MTF,
		Period:         cfg.Period,
		Price:          cfg.Price.String(),
		Shift:          s.engine.Shift(),
		Bars:           s.fine.Len(),
		CoarseBars:     s.coarse.Len(),
		Ready:          s.coarse.Len() >= cfg.Period+1,
		State:          s.engine.State(),
	}
	if last, ok := s.fine.Last(); ok {
		st.LastBar = &last
	}
	if n := len(s.alerts); n > 0 {
		a := *s.alerts[n-1]
		st.LastAlert = &a
	}
	return st
}
