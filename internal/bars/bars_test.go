package bars

import (
	"errors"
	"testing"
	"time"

	"github.com/mohamedkhairy/trade-breakout/internal/models"
	"github.com/mohamedkhairy/trade-breakout/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)

func bar(offset time.Duration, o, h, l, c float64, v int64) models.Bar {
	return models.Bar{Symbol: "EURUSD", Timestamp: t0.Add(offset), Open: o, High: h, Low: l, Close: c, Volume: v}
}

func TestSeries_Upsert(t *testing.T) {
	s := NewSeries(models.Minute)

	_, ok := s.Last()
	assert.False(t, ok)

	idx, opened, err := s.Upsert(bar(0, 1, 2, 0.5, 1.5, 10))
	require.NoError(t, err)
	assert.Equal(t, 0, idx)
	assert.True(t, opened)

	idx, opened, err = s.Upsert(bar(0, 1, 3, 0.5, 2.5, 20))
	require.NoError(t, err)
	assert.Equal(t, 0, idx)
	assert.False(t, opened)
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, 3.0, s.High(0))

	idx, opened, err = s.Upsert(bar(time.Minute, 2.5, 2.6, 2.4, 2.45, 5))
	require.NoError(t, err)
	assert.Equal(t, 1, idx)
	assert.True(t, opened)

	_, _, err = s.Upsert(bar(-time.Minute, 1, 1, 1, 1, 1))
	assert.ErrorIs(t, err, models.ErrOutOfOrder)

	last, ok := s.Last()
	require.True(t, ok)
	assert.Equal(t, t0.Add(time.Minute), last.Timestamp)
	assert.Equal(t, t0, s.OpenTime(0))
	assert.Equal(t, 2.45, s.Close(1))
	assert.Equal(t, 2.4, s.Low(1))
	assert.Equal(t, 2.5, s.Open(1))
	assert.Len(t, s.Tail(0), 2)
	assert.Equal(t, last, s.Tail(1)[0])
	assert.Equal(t, last, s.Bar(1))
}

func TestAggregator_ProcessTick(t *testing.T) {
	series := NewSeries(models.Minute)
	agg := NewAggregator("EURUSD", series)

	var finalized []models.Bar
	agg.SetOnBarFinal(func(b *models.Bar) { finalized = append(finalized, *b) })

	ticks := []struct {
		at    time.Duration
		price float64
	}{
		{5 * time.Second, 1.10},
		{20 * time.Second, 1.12},
		{40 * time.Second, 1.09},
		{55 * time.Second, 1.11},
	}
	for i, tk := range ticks {
		up, err := agg.ProcessTick(&models.Tick{Symbol: "EURUSD", Price: tk.price, Size: 1, Timestamp: t0.Add(tk.at)})
		require.NoError(t, err)
		assert.Equal(t, 0, up.Index)
		assert.Equal(t, i == 0, up.Opened)
		assert.Nil(t, up.Finalized)
	}

	b := series.Bar(0)
	assert.Equal(t, t0, b.Timestamp)
	assert.Equal(t, 1.10, b.Open)
	assert.Equal(t, 1.12, b.High)
	assert.Equal(t, 1.09, b.Low)
	assert.Equal(t, 1.11, b.Close)
	assert.Equal(t, int64(4), b.Volume)

	up, err := agg.ProcessTick(&models.Tick{Symbol: "EURUSD", Price: 1.13, Size: 2, Timestamp: t0.Add(61 * time.Second)})
	require.NoError(t, err)
	assert.True(t, up.Opened)
	assert.Equal(t, 1, up.Index)
	require.NotNil(t, up.Finalized)
	assert.Equal(t, b, *up.Finalized)
	require.Len(t, finalized, 1)
	assert.Equal(t, t0, finalized[0].Timestamp)

	_, err = agg.ProcessTick(&models.Tick{Symbol: "EURUSD", Price: 1.13, Size: 1, Timestamp: t0.Add(30 * time.Second)})
	assert.ErrorIs(t, err, models.ErrOutOfOrder)

	up, err = agg.ProcessTick(&models.Tick{Symbol: "GBPUSD", Price: 1.3, Size: 1, Timestamp: t0.Add(62 * time.Second)})
	require.NoError(t, err)
	assert.Equal(t, -1, up.Index)

	_, err = agg.ProcessTick(&models.Tick{Symbol: "EURUSD", Price: 0, Timestamp: t0.Add(63 * time.Second)})
	assert.ErrorIs(t, err, models.ErrInvalidPrice)

	assert.Equal(t, 2, series.Len())
}

func TestResampler_Apply(t *testing.T) {
	coarse := NewSeries(models.Minute5)
	r := NewResampler(coarse)

	idx, opened, err := r.Apply(bar(0, 10, 11, 9, 10.5, 1))
	require.NoError(t, err)
	assert.Equal(t, 0, idx)
	assert.True(t, opened)

	// forming fine bar replaced: no double counting
	_, opened, err = r.Apply(bar(0, 10, 12, 9, 11, 3))
	require.NoError(t, err)
	assert.False(t, opened)
	assert.Equal(t, 1, r.Members())
	assert.Equal(t, int64(3), coarse.Bar(0).Volume)

	for i := 1; i < 5; i++ {
		_, _, err = r.Apply(bar(time.Duration(i)*time.Minute, 11, 11+float64(i), 8, 11.5, 1))
		require.NoError(t, err)
	}
	c := coarse.Bar(0)
	assert.Equal(t, t0, c.Timestamp)
	assert.Equal(t, 10.0, c.Open)
	assert.Equal(t, 15.0, c.High)
	assert.Equal(t, 8.0, c.Low)
	assert.Equal(t, 11.5, c.Close)
	assert.Equal(t, int64(7), c.Volume)

	idx, opened, err = r.Apply(bar(5*time.Minute, 12, 13, 11, 12.5, 2))
	require.NoError(t, err)
	assert.Equal(t, 1, idx)
	assert.True(t, opened)
	assert.Equal(t, 1, r.Members())
	assert.Equal(t, bar(5*time.Minute, 12, 13, 11, 12.5, 2), coarse.Bar(1))

	_, _, err = r.Apply(bar(4*time.Minute, 1, 1, 1, 1, 1))
	assert.ErrorIs(t, err, models.ErrOutOfOrder)
}

func TestResampler_PrimeMidBucket(t *testing.T) {
	coarse := NewSeries(models.Minute5)
	r := NewResampler(coarse)

	// stored coarse bar for 09:00 already saw a high of 20
	idx, err := r.Prime(bar(0, 10, 20, 9, 15, 40))
	require.NoError(t, err)
	assert.Equal(t, 0, idx)

	// fine history starts at 09:02
	_, opened, err := r.Apply(bar(2*time.Minute, 12, 12, 11, 11.5, 5))
	require.NoError(t, err)
	assert.False(t, opened)
	_, _, err = r.Apply(bar(3*time.Minute, 11.5, 12, 8, 11, 5))
	require.NoError(t, err)

	c := coarse.Bar(0)
	assert.Equal(t, 10.0, c.Open)
	assert.Equal(t, 20.0, c.High)
	assert.Equal(t, 8.0, c.Low)
	assert.Equal(t, 11.0, c.Close)
	assert.Equal(t, int64(40), c.Volume)
	assert.Equal(t, 1, coarse.Len())

	// the next bucket is built from fine bars only
	idx, opened, err = r.Apply(bar(5*time.Minute, 12, 13, 11, 12.5, 2))
	require.NoError(t, err)
	assert.Equal(t, 1, idx)
	assert.True(t, opened)
	assert.Equal(t, bar(5*time.Minute, 12, 13, 11, 12.5, 2), coarse.Bar(1))
}

func TestRecorder_BatchesFinalizedBars(t *testing.T) {
	history := storage.NewMockHistoryStore()
	cfg := DefaultRecorderConfig()
	cfg.BatchSize = 2
	cfg.BatchTimeout = time.Hour
	rec := NewRecorder(storage.NewMockRedisClient(), history, models.Minute, cfg)

	require.NoError(t, rec.Start())
	assert.True(t, rec.IsRunning())
	assert.Error(t, rec.Start())

	b0, b1, b2 := bar(0, 1, 1, 1, 1, 1), bar(time.Minute, 1, 1, 1, 1, 1), bar(2*time.Minute, 1, 1, 1, 1, 1)
	require.NoError(t, rec.RecordFinalized(&b0))
	assert.Empty(t, history.Written(models.Minute))

	require.NoError(t, rec.RecordFinalized(&b1))
	assert.Len(t, history.Written(models.Minute), 2)

	require.NoError(t, rec.RecordFinalized(&b2))
	assert.Equal(t, 1, rec.Pending())

	rec.Stop()
	assert.False(t, rec.IsRunning())
	assert.Equal(t, 0, rec.Pending())
	assert.Len(t, history.Written(models.Minute), 3)

	invalid := bar(0, 1, 0.5, 1, 1, 1)
	assert.ErrorIs(t, rec.RecordFinalized(&invalid), models.ErrInvalidBar)
	assert.Error(t, rec.RecordFinalized(nil))
}

func TestRecorder_WriteErrorReturned(t *testing.T) {
	history := storage.NewMockHistoryStore()
	history.WriteErr = errors.New("db down")
	cfg := DefaultRecorderConfig()
	cfg.BatchSize = 1
	rec := NewRecorder(storage.NewMockRedisClient(), history, models.Minute, cfg)

	b := bar(0, 1, 1, 1, 1, 1)
	assert.ErrorContains(t, rec.RecordFinalized(&b), "db down")
}

func TestRecorder_WithoutWriter(t *testing.T) {
	rec := NewRecorder(storage.NewMockRedisClient(), nil, models.Minute, DefaultRecorderConfig())
	b := bar(0, 1, 1, 1, 1, 1)
	require.NoError(t, rec.RecordFinalized(&b))
	assert.Equal(t, 0, rec.Pending())
}

func TestRecorder_LiveBar(t *testing.T) {
	redis := storage.NewMockRedisClient()
	rec := NewRecorder(redis, nil, models.Minute, DefaultRecorderConfig())

	b := bar(0, 1.1, 1.2, 1.0, 1.15, 7)
	require.NoError(t, rec.PublishLiveBar(t.Context(), &b))
	assert.Contains(t, redis.Data, "livebar:EURUSD")

	got, err := rec.GetLiveBar(t.Context(), "EURUSD")
	require.NoError(t, err)
	assert.Equal(t, b.Close, got.Close)
	assert.True(t, b.Timestamp.Equal(got.Timestamp))

	redis.SetErr = errors.New("redis down")
	assert.Error(t, rec.PublishLiveBar(t.Context(), &b))
	assert.Error(t, rec.PublishLiveBar(t.Context(), nil))
}
