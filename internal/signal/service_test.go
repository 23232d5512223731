package signal

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
	"github.com/mohamedkhairy/trade-breakout/internal/wsgateway"
	"github.com/mohamedkhairy/trade-breakout/pkg/breakout"
)

var t0 = time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)

type fakeNotifier struct {
	mu     sync.Mutex
	alerts []*models.BreakoutAlert
	err    error
}

func (f *fakeNotifier) Notify(_ context.Context, a *models.BreakoutAlert) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts = append(f.alerts, a)
	return f.err
}

type fakeAnnotator struct {
	actions []breakout.ArrowAction
}

func (f *fakeAnnotator) Apply(actions []breakout.ArrowAction) (int, int) {
	f.actions = append(f.actions, actions...)
	return len(actions), 0
}

type fakeBroadcaster struct {
	types []wsgateway.MessageType
}

func (f *fakeBroadcaster) Broadcast(t wsgateway.MessageType, _ interface{}) int {
	f.types = append(f.types, t)
	return 1
}

type fakeRecorder struct {
	live      []models.Bar
	finalized []models.Bar
}

func (f *fakeRecorder) PublishLiveBar(_ context.Context, b *models.Bar) error {
	f.live = append(f.live, *b)
	return nil
}

func (f *fakeRecorder) RecordFinalized(b *models.Bar) error {
	f.finalized = append(f.finalized, *b)
	return nil
}

func flat(offset time.Duration, price float64) models.Bar {
	return models.Bar{Symbol: "EURUSD", Timestamp: t0.Add(offset), Open: price, High: price, Low: price, Close: price, Volume: 1}
}

func closeConfig(period int, chart, coarse models.Timeframe) Config {
	return Config{
		Symbol: "EURUSD",
		Chart:  chart,
		Coarse: coarse,
		Engine: breakout.Config{
			Period: period,
			Price:  breakout.PriceClose,
			Name:   "TBO_MTF",
			Alerts: true,
		},
		Lookback: 500,
	}
}

func TestAlertMessage(t *testing.T) {
	assert.Equal(t, "TBO: EURUSD - 1h on 1m - Crossed 0 from below.",
		AlertMessage("EURUSD", models.Hour, models.Minute, breakout.Buy))
	assert.Equal(t, "TBO: EURUSD - 4h on 15m - Crossed 0 from above.",
		AlertMessage("EURUSD", models.Hour4, models.Minute15, breakout.Sell))
}

func TestNewService_Errors(t *testing.T) {
	cfg := closeConfig(3, models.Minute, models.Minute)
	cfg.Symbol = ""
	_, err := NewService(cfg, nil, nil)
	assert.ErrorIs(t, err, models.ErrInvalidSymbol)

	cfg = closeConfig(3, models.TimeframeCurrent, models.Minute)
	_, err = NewService(cfg, nil, nil)
	assert.ErrorIs(t, err, models.ErrInvalidTimeframe)

	cfg = closeConfig(0, models.Minute, models.Minute)
	_, err = NewService(cfg, nil, nil)
	assert.ErrorIs(t, err, breakout.ErrInvalidPeriod)

	// a coarse request below the chart timeframe falls back to the chart
	svc, err := NewService(closeConfig(3, models.Minute5, models.Minute), nil, nil)
	require.NoError(t, err)
	st := svc.Status()
	assert.False(t, st.MTF)
	assert.Equal(t, models.Minute5, st.Timeframe)
}

func TestService_StreamingBuyAlert(t *testing.T) {
	notifier := &fakeNotifier{}
	broadcaster := &fakeBroadcaster{}
	svc, err := NewService(closeConfig(3, models.Minute, models.Minute), notifier, &fakeAnnotator{})
	require.NoError(t, err)
	svc.SetBroadcaster(broadcaster)

	ctx := context.Background()
	for i, price := range []float64{10, 11, 9, 8, 12} {
		require.NoError(t, svc.ProcessBar(ctx, flat(time.Duration(i)*time.Minute, price)))
	}

	alerts := svc.Alerts(0)
	require.Len(t, alerts, 1)
	a := alerts[0]
	assert.Equal(t, "buy", a.Side)
	assert.Equal(t, "TBO: EURUSD - 1m on 1m - Crossed 0 from below.", a.Message)
	assert.Equal(t, 12.0, a.Price)
	assert.Equal(t, t0.Add(4*time.Minute), a.BarTime)
	require.NotNil(t, a.Resistance)
	assert.InDelta(t, 1.0/11.0, *a.Resistance, 1e-12)
	assert.NoError(t, a.Validate())

	require.Len(t, notifier.alerts, 1)
	assert.Equal(t, a.ID, notifier.alerts[0].ID)
	assert.Equal(t, []wsgateway.MessageType{wsgateway.MessageTypeAlert}, broadcaster.types)

	points := svc.Oscillator(2)
	require.Len(t, points, 2)
	assert.Equal(t, 4, points[1].Index)
	r, ok := points[1].Resistance.Get()
	require.True(t, ok)
	assert.InDelta(t, 1.0/11.0, r, 1e-12)

	st := svc.Status()
	assert.Equal(t, 5, st.Bars)
	assert.True(t, st.Ready)
	assert.Equal(t, breakout.Buy, st.State.Last)
	require.NotNil(t, st.LastAlert)
	assert.Equal(t, a.ID, st.LastAlert.ID)

	// re-evaluating the same bar does not alert again
	require.NoError(t, svc.ProcessBar(ctx, flat(4*time.Minute, 12.5)))
	assert.Len(t, svc.Alerts(0), 1)
}

func TestService_NotifierErrorDoesNotFail(t *testing.T) {
	notifier := &fakeNotifier{err: errors.New("smtp down")}
	svc, err := NewService(closeConfig(3, models.Minute, models.Minute), notifier, nil)
	require.NoError(t, err)

	for i, price := range []float64{10, 11, 9, 8, 12} {
		require.NoError(t, svc.ProcessBar(context.Background(), flat(time.Duration(i)*time.Minute, price)))
	}
	assert.Len(t, notifier.alerts, 1)
}

func TestService_ProcessBarRejects(t *testing.T) {
	svc, err := NewService(closeConfig(3, models.Minute, models.Minute), nil, nil)
	require.NoError(t, err)
	ctx := context.Background()

	other := flat(0, 1)
	other.Symbol = "GBPUSD"
	assert.ErrorIs(t, svc.ProcessBar(ctx, other), models.ErrInvalidSymbol)

	bad := flat(0, 1)
	bad.Low = 2
	assert.ErrorIs(t, svc.ProcessBar(ctx, bad), models.ErrInvalidBar)

	require.NoError(t, svc.ProcessBar(ctx, flat(time.Minute, 1)))
	assert.ErrorIs(t, svc.ProcessBar(ctx, flat(0, 1)), models.ErrOutOfOrder)

	// timestamps are snapped to the bar open
	require.NoError(t, svc.ProcessBar(ctx, flat(time.Minute+30*time.Second, 2)))
	assert.Equal(t, 1, svc.Status().Bars)
}

func mtfHistory() (fine, coarse []models.Bar) {
	for i := 0; i < 14; i++ {
		price := 10.0 + float64(i/5)
		fine = append(fine, flat(time.Duration(i)*time.Minute, price))
	}
	coarse = []models.Bar{
		flat(-5*time.Minute, 9),
		flat(0, 99), // overlaps the fine history and is rebuilt from it
	}
	return fine, coarse
}

func TestService_SeedAndRealtimeBackfill(t *testing.T) {
	annotator := &fakeAnnotator{}
	svc, err := NewService(closeConfig(2, models.Minute, models.Minute5), nil, annotator)
	require.NoError(t, err)
	recorder := &fakeRecorder{}
	svc.SetRecorder(recorder)

	fine, coarse := mtfHistory()
	require.NoError(t, svc.Seed(fine, coarse))
	assert.ErrorIs(t, svc.Seed(fine, coarse), ErrAlreadyWarm)

	st := svc.Status()
	assert.True(t, st.MTF)
	assert.Equal(t, 14, st.Bars)
	assert.Equal(t, 4, st.CoarseBars)
	assert.True(t, st.Ready)

	// coarse closes 9, 10, 11, 12 (forming): bucket 2 reads (12-11)/11
	for _, p := range svc.Oscillator(4) {
		r, ok := p.Resistance.Get()
		require.True(t, ok)
		assert.InDelta(t, 1.0/11.0, r, 1e-12)
	}

	ctx := context.Background()
	require.NoError(t, svc.ProcessTick(ctx, &models.Tick{
		Symbol: "EURUSD", Price: 13, Size: 1, Timestamp: t0.Add(14*time.Minute + 10*time.Second),
	}))

	points := svc.Oscillator(5)
	require.Len(t, points, 5)
	for _, p := range points {
		r, ok := p.Resistance.Get()
		require.True(t, ok)
		assert.InDelta(t, 2.0/11.0, r, 1e-12, "index %d", p.Index)
		s, ok := p.Support.Get()
		require.True(t, ok)
		assert.InDelta(t, 0.3, s, 1e-12, "index %d", p.Index)
	}

	require.Len(t, recorder.finalized, 1)
	assert.Equal(t, t0.Add(13*time.Minute), recorder.finalized[0].Timestamp)
	require.Len(t, recorder.live, 1)
	assert.Equal(t, 13.0, recorder.live[0].Close)

	assert.Empty(t, svc.Alerts(0))
}

func ohlc(offset time.Duration, o, h, l, c float64) models.Bar {
	return models.Bar{Symbol: "EURUSD", Timestamp: t0.Add(offset), Open: o, High: h, Low: l, Close: c, Volume: 1}
}

func TestService_SeedKeepsStoredCoarseBarWhenHistoryStartsMidBucket(t *testing.T) {
	cfg := closeConfig(2, models.Minute, models.Minute5)
	cfg.Engine.Price = breakout.PriceHighLow
	svc, err := NewService(cfg, nil, nil)
	require.NoError(t, err)

	coarse := []models.Bar{
		ohlc(0, 9.5, 10, 9, 9.5),
		ohlc(5*time.Minute, 10.5, 11, 10, 10.5),
		ohlc(10*time.Minute, 15, 20, 11, 12), // bucket already saw a high of 20
	}
	fine := []models.Bar{
		ohlc(12*time.Minute, 12, 12, 11, 11.5),
		ohlc(13*time.Minute, 12, 12, 11, 11.5),
		ohlc(14*time.Minute, 12, 12, 11, 11.5),
	}
	require.NoError(t, svc.Seed(fine, coarse))

	st := svc.Status()
	assert.Equal(t, 3, st.Bars)
	assert.Equal(t, 3, st.CoarseBars)

	// window is coarse 0..1: max high 11, min low 9
	points := svc.Oscillator(3)
	require.Len(t, points, 3)
	for _, p := range points {
		r, ok := p.Resistance.Get()
		require.True(t, ok)
		assert.InDelta(t, 9.0/11.0, r, 1e-12, "index %d", p.Index)
		s, ok := p.Support.Get()
		require.True(t, ok)
		assert.InDelta(t, 2.0/9.0, s, 1e-12, "index %d", p.Index)
	}

	// the stored high of 20 stays in the window of the next coarse bar
	require.NoError(t, svc.ProcessTick(context.Background(), &models.Tick{
		Symbol: "EURUSD", Price: 21, Size: 1, Timestamp: t0.Add(15*time.Minute + 10*time.Second),
	}))
	last := svc.Oscillator(1)
	require.Len(t, last, 1)
	assert.InDelta(t, (21.0-20.0)/20.0, last[0].Resistance.Float(), 1e-12)
	assert.InDelta(t, (21.0-10.0)/10.0, last[0].Support.Float(), 1e-12)
}

func TestService_SeedSnapsHistoryToBarOpen(t *testing.T) {
	svc, err := NewService(closeConfig(3, models.Minute, models.Minute), nil, nil)
	require.NoError(t, err)

	require.NoError(t, svc.Seed([]models.Bar{flat(30*time.Second, 10)}, nil))
	last := svc.Oscillator(1)
	require.Len(t, last, 1)
	assert.Equal(t, t0, last[0].Time)

	// a live tick in the same minute updates the seeded bar
	require.NoError(t, svc.ProcessTick(context.Background(), &models.Tick{
		Symbol: "EURUSD", Price: 11, Size: 1, Timestamp: t0.Add(45 * time.Second),
	}))
	st := svc.Status()
	assert.Equal(t, 1, st.Bars)
	require.NotNil(t, st.LastBar)
	assert.Equal(t, 11.0, st.LastBar.Close)
	assert.Equal(t, 11.0, st.LastBar.High)
}

func TestService_Warmup(t *testing.T) {
	history := storage.NewMockHistoryStore()
	fine, coarse := mtfHistory()
	for i := range fine {
		history.Bars[models.Minute] = append(history.Bars[models.Minute], fine[i])
	}
	history.Bars[models.Minute5] = coarse

	svc, err := NewService(closeConfig(2, models.Minute, models.Minute5), nil, nil)
	require.NoError(t, err)
	require.NoError(t, svc.Warmup(context.Background(), history))
	assert.Equal(t, 14, svc.Status().Bars)

	history.LoadErr = errors.New("db down")
	svc, err = NewService(closeConfig(2, models.Minute, models.Minute5), nil, nil)
	require.NoError(t, err)
	assert.ErrorContains(t, svc.Warmup(context.Background(), history), "db down")
}

func TestService_ProcessTickIgnoresOtherSymbols(t *testing.T) {
	svc, err := NewService(closeConfig(3, models.Minute, models.Minute), nil, nil)
	require.NoError(t, err)

	require.NoError(t, svc.ProcessTick(context.Background(), &models.Tick{Symbol: "GBPUSD", Price: 1.3, Timestamp: t0}))
	assert.Equal(t, 0, svc.Status().Bars)

	err = svc.ProcessTick(context.Background(), &models.Tick{Symbol: "EURUSD", Price: -1, Timestamp: t0})
	assert.ErrorIs(t, err, models.ErrInvalidPrice)
}
