package bars

import (
	"time"

	"github.com/mohamedkhairy/trade-breakout/internal/models"
	"github.com/mohamedkhairy/trade-breakout/pkg/breakout"
)

var _ breakout.Series = (*Series)(nil)

// Series is an append-only bar list for one timeframe. Only the last bar may
// change after it is appended. It is not safe for concurrent use.
type Series struct {
	tf   models.Timeframe
	bars []models.Bar
}

// NewSeries creates an empty series of timeframe tf
func NewSeries(tf models.Timeframe) *Series {
	return &Series{tf: tf}
}

func (s *Series) Timeframe() models.Timeframe { return s.tf }

func (s *Series) Len() int                 { return len(s.bars) }
func (s *Series) OpenTime(i int) time.Time { return s.bars[i].Timestamp }
func (s *Series) Open(i int) float64       { return s.bars[i].Open }
func (s *Series) High(i int) float64       { return s.bars[i].High }
func (s *Series) Low(i int) float64        { return s.bars[i].Low }
func (s *Series) Close(i int) float64      { return s.bars[i].Close }

// Bar returns the bar at i
func (s *Series) Bar(i int) models.Bar {
	return s.bars[i]
}

// Last returns the most recent bar
func (s *Series) Last() (models.Bar, bool) {
	if len(s.bars) == 0 {
		return models.Bar{}, false
	}
	return s.bars[len(s.bars)-1], true
}

// Tail returns a copy of the last n bars (all bars when n <= 0)
func (s *Series) Tail(n int) []models.Bar {
	if n <= 0 || n > len(s.bars) {
		n = len(s.bars)
	}
	out := make([]models.Bar, n)
	copy(out, s.bars[len(s.bars)-n:])
	return out
}

// Upsert appends bar when it opens after the last bar, or replaces the last
// bar when the open times match. Earlier bars are rejected with ErrOutOfOrder.
func (s *Series) Upsert(bar models.Bar) (index int, opened bool, err error) {
	n := len(s.bars)
	if n > 0 {
		last := s.bars[n-1].Timestamp
		switch {
		case bar.Timestamp.Equal(last):
			s.bars[n-1] = bar
			return n - 1, false, nil
		case bar.Timestamp.Before(last):
			return -1, false, models.ErrOutOfOrder
		}
	}
	s.bars = append(s.bars, bar)
	return n, true, nil
}
