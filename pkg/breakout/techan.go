package breakout

import (
	"time"

	"github.com/sdcoffey/big"
	"github.com/sdcoffey/techan"
)

// TechanSeries adapts a techan.TimeSeries to Series.
// Candle periods must be added in order, which techan enforces on AddCandle.
type TechanSeries struct {
	ts *techan.TimeSeries
}

// NewTechanSeries wraps ts
func NewTechanSeries(ts *techan.TimeSeries) TechanSeries {
	return TechanSeries{ts: ts}
}

func (t TechanSeries) Len() int                 { return len(t.ts.Candles) }
func (t TechanSeries) OpenTime(i int) time.Time { return t.ts.Candles[i].Period.Start }
func (t TechanSeries) Open(i int) float64       { return t.ts.Candles[i].OpenPrice.Float() }
func (t TechanSeries) High(i int) float64       { return t.ts.Candles[i].MaxPrice.Float() }
func (t TechanSeries) Low(i int) float64        { return t.ts.Candles[i].MinPrice.Float() }
func (t TechanSeries) Close(i int) float64      { return t.ts.Candles[i].ClosePrice.Float() }

// TimeSeries returns the underlying techan series
func (t TechanSeries) TimeSeries() *techan.TimeSeries { return t.ts }

// NewCandle converts one bar to a techan candle of the given duration
func NewCandle(bar Bar, d time.Duration) *techan.Candle {
	candle := techan.NewCandle(techan.NewTimePeriod(bar.OpenTime, d))
	candle.OpenPrice = big.NewDecimal(bar.Open)
	candle.MaxPrice = big.NewDecimal(bar.High)
	candle.MinPrice = big.NewDecimal(bar.Low)
	candle.ClosePrice = big.NewDecimal(bar.Close)
	return candle
}

// ToTechan copies s into a new techan series with bars of duration d and
// returns how many bars techan rejected. A bar is rejected when it starts
// before the previous accepted bar ends, so duplicates keep the first row.
func ToTechan(s Series, d time.Duration) (*techan.TimeSeries, int) {
	ts := techan.NewTimeSeries()
	rejected := 0
	for i := 0; i < s.Len(); i++ {
		added := ts.AddCandle(NewCandle(Bar{
			OpenTime: s.OpenTime(i),
			Open:     s.Open(i),
			High:     s.High(i),
			Low:      s.Low(i),
			Close:    s.Close(i),
		}, d))
		if !added {
			rejected++
		}
	}
	return ts, rejected
}
