package breakout

import "time"

var t0 = time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)

// closes builds bars one minute apart with open=high=low=close
func closes(step time.Duration, values ...float64) Bars {
	bars := make(Bars, len(values))
	for i, v := range values {
		bars[i] = Bar{OpenTime: t0.Add(time.Duration(i) * step), Open: v, High: v, Low: v, Close: v}
	}
	return bars
}

// resample aggregates fine bars into buckets of d
func resample(fine Bars, d time.Duration) Bars {
	var out Bars
	for _, b := range fine {
		open := b.OpenTime.Truncate(d)
		if n := len(out); n > 0 && out[n-1].OpenTime.Equal(open) {
			last := &out[n-1]
			if b.High > last.High {
				last.High = b.High
			}
			if b.Low < last.Low {
				last.Low = b.Low
			}
			last.Close = b.Close
			continue
		}
		out = append(out, Bar{OpenTime: open, Open: b.Open, High: b.High, Low: b.Low, Close: b.Close})
	}
	return out
}

// liveSeries is a growing Series for streaming tests
type liveSeries struct {
	bars Bars
}

func (s *liveSeries) Len() int                 { return len(s.bars) }
func (s *liveSeries) OpenTime(i int) time.Time { return s.bars[i].OpenTime }
func (s *liveSeries) Open(i int) float64       { return s.bars[i].Open }
func (s *liveSeries) High(i int) float64       { return s.bars[i].High }
func (s *liveSeries) Low(i int) float64        { return s.bars[i].Low }
func (s *liveSeries) Close(i int) float64      { return s.bars[i].Close }
