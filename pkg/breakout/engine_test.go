package breakout

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr error
	}{
		{"valid", Config{Period: 20}, nil},
		{"zero period", Config{Period: 0}, ErrInvalidPeriod},
		{"negative period", Config{Period: -3}, ErrInvalidPeriod},
		{"bad price", Config{Period: 1, Price: PriceType(7)}, ErrInvalidPriceType},
		{"bad trigger", Config{Period: 1, Trigger: TriggerCandle(2)}, ErrInvalidTriggerCandle},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestConfig_ShiftForcedToZeroUnderHighLow(t *testing.T) {
	assert.Equal(t, 1, Config{Period: 1, Trigger: ClosedCandle}.Shift())
	assert.Equal(t, 0, Config{Period: 1, Price: PriceHighLow, Trigger: ClosedCandle}.Shift())
}

func TestNewEngine_Errors(t *testing.T) {
	_, err := NewEngine(Config{Period: 0}, Bars{}, nil)
	assert.ErrorIs(t, err, ErrInvalidPeriod)

	_, err = NewEngine(Config{Period: 1, MTF: true}, Bars{}, nil)
	assert.ErrorIs(t, err, ErrNilSeries)

	_, err = NewEngine(Config{Period: 1}, nil, nil)
	assert.ErrorIs(t, err, ErrNilSeries)
}

func TestEngine_EndToEndBreakout(t *testing.T) {
	fine := &liveSeries{}
	e, err := NewEngine(Config{Period: 3, Alerts: true, Name: "TBO"}, fine, nil)
	require.NoError(t, err)

	var alerts []AlertEvent
	for i, c := range []float64{10, 11, 9, 8, 12} {
		fine.bars = append(fine.bars, Bar{OpenTime: t0.Add(time.Duration(i) * time.Minute), Open: c, High: c, Low: c, Close: c})
		last := fine.Len() - 1
		if last > 0 {
			e.Calculate(last-1, false)
		}
		alerts = append(alerts, e.Calculate(last, true).Alerts...)
	}

	for i := 0; i < 3; i++ {
		assert.False(t, e.Resistance(i).Valid(), "index %d", i)
		assert.False(t, e.Support(i).Valid(), "index %d", i)
	}
	assert.InDelta(t, (8.0-11)/11, e.Resistance(3).Float(), 1e-12)
	assert.InDelta(t, 1.0/11, e.Resistance(4).Float(), 1e-12)

	buy, sell := e.Crossing(4)
	assert.True(t, buy)
	assert.False(t, sell)

	require.Len(t, alerts, 1)
	assert.Equal(t, Buy, alerts[0].Side)
	assert.Equal(t, 4, alerts[0].CheckIndex)
	assert.Equal(t, 3, alerts[0].PrevIndex)
	assert.Equal(t, Buy, e.State().Last)

	// Re-evaluating the same bar does not alert again
	assert.Empty(t, e.Calculate(4, true).Alerts)
}

func TestEngine_ClosedCandleAlertsOnPreviousBar(t *testing.T) {
	fine := closes(time.Minute, 10, 11, 9, 8, 12, 12.5)
	e, err := NewEngine(Config{Period: 3, Trigger: ClosedCandle, Alerts: true}, fine, nil)
	require.NoError(t, err)

	for i := 0; i < fine.Len()-1; i++ {
		e.Calculate(i, false)
	}
	r := e.Calculate(5, true)
	require.Len(t, r.Alerts, 1)
	assert.Equal(t, Buy, r.Alerts[0].Side)
	assert.Equal(t, 4, r.Alerts[0].CheckIndex)
	assert.Equal(t, fine[5].OpenTime, e.State().LastBuy)
}

func TestEngine_AlertsDisabledOrTooEarly(t *testing.T) {
	fine := closes(time.Minute, 10, 11, 9, 8, 12)

	e, err := NewEngine(Config{Period: 3}, fine, nil)
	require.NoError(t, err)
	for i := 0; i < fine.Len(); i++ {
		assert.Empty(t, e.Calculate(i, true).Alerts)
	}

	e, err = NewEngine(Config{Period: 3, Alerts: true}, fine, nil)
	require.NoError(t, err)
	for i := 0; i < 4; i++ {
		assert.Empty(t, e.Calculate(i, true).Alerts)
	}
}

func TestEngine_Arrows(t *testing.T) {
	fine := closes(time.Minute, 10, 10, 10, 10, 12)
	e, err := NewEngine(Config{Period: 2, Arrows: true, Name: "TBO"}, fine, nil)
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		assert.Empty(t, e.Calculate(i, false).Arrows)
	}

	r := e.Calculate(4, false)
	require.Len(t, r.Arrows, 1)
	draw := r.Arrows[0]
	assert.Equal(t, ArrowDraw, draw.Op)
	assert.Equal(t, Buy, draw.Side)
	assert.Equal(t, 12.0, draw.Price)
	assert.Equal(t, ArrowName("TBO", Buy, fine[4].OpenTime), draw.Name)

	// The live bar clears both sides before redrawing
	r = e.Calculate(4, true)
	require.Len(t, r.Arrows, 3)
	assert.Equal(t, ArrowRemove, r.Arrows[0].Op)
	assert.Equal(t, ArrowRemove, r.Arrows[1].Op)
	assert.Equal(t, ArrowName("TBO", Sell, fine[4].OpenTime), r.Arrows[1].Name)
	assert.Equal(t, draw, r.Arrows[2])
}

// mtfStream feeds one-minute fine bars into a five-minute coarse series
func mtfStream(t *testing.T, cfg Config, values []float64) (*Engine, *liveSeries, []Result) {
	t.Helper()
	fine, coarse := &liveSeries{}, &liveSeries{}
	cfg.MTF = true
	e, err := NewEngine(cfg, fine, coarse)
	require.NoError(t, err)

	all := closes(time.Minute, values...)
	var results []Result
	for i := range all {
		fine.bars = all[:i+1]
		coarse.bars = resample(fine.bars, 5*time.Minute)
		if i > 0 {
			e.Calculate(i-1, false)
		}
		results = append(results, e.Calculate(i, true))
	}
	return e, fine, results
}

func TestEngine_MTFBackfill(t *testing.T) {
	values := []float64{
		10, 10, 10, 10, 10,
		11, 11, 11, 11, 11,
		12, 12, 12, 12, 13,
	}
	e, _, results := mtfStream(t, Config{Period: 2}, values)

	for i := 0; i < 10; i++ {
		assert.False(t, e.Resistance(i).Valid(), "index %d", i)
	}
	want := (13.0 - 11) / 11
	for i := 10; i < 15; i++ {
		assert.InDelta(t, want, e.Resistance(i).Float(), 1e-12, "index %d", i)
		assert.InDelta(t, (13.0-10)/10, e.Support(i).Float(), 1e-12, "index %d", i)
	}
	assert.Equal(t, 5, results[14].Backfilled)
	assert.Equal(t, 2, results[14].CoarseIndex)

	// Idempotent on repeat
	r := e.Calculate(14, true)
	assert.Equal(t, 5, r.Backfilled)
	for i := 10; i < 15; i++ {
		assert.InDelta(t, want, e.Resistance(i).Float(), 1e-12, "index %d", i)
	}
}

func TestEngine_MTFArrowsOnlyOnLastFineBarOfCoarseBar(t *testing.T) {
	values := make([]float64, 15)
	for i := range values {
		values[i] = float64(10 + i)
	}
	e, fine, _ := mtfStream(t, Config{Period: 2, Arrows: true, Name: "TBO"}, values)

	assert.Empty(t, e.Calculate(12, false).Arrows)

	r := e.Calculate(14, true)
	require.NotEmpty(t, r.Arrows)
	// Removals cover every fine bar of the live coarse bar
	removed := 0
	for _, a := range r.Arrows {
		if a.Op == ArrowRemove {
			removed++
			assert.False(t, a.Time.Before(fine.OpenTime(10)))
		}
	}
	assert.Equal(t, 10, removed)
}

func TestEngine_Tail(t *testing.T) {
	fine := closes(time.Minute, 10, 11, 9, 8, 12)
	e, err := NewEngine(Config{Period: 3}, fine, nil)
	require.NoError(t, err)
	for i := 0; i < fine.Len(); i++ {
		e.Calculate(i, i == fine.Len()-1)
	}

	res, sup := e.Tail(2)
	require.Len(t, res, 2)
	require.Len(t, sup, 2)
	assert.InDelta(t, 1.0/11, res[1].Float(), 1e-12)
	assert.Equal(t, 5, e.Len())
	assert.Equal(t, 4, e.CoarseIndex(4))
}
