package bars

import (
	"time"

	"github.com/mohamedkhairy/trade-breakout/internal/models"
)

// Resampler folds fine bars into a coarser series. The coarse bar of a bucket
// is always recomputed from the fine bars seen in it, so replacing the forming
// fine bar never double counts.
type Resampler struct {
	coarse  *Series
	bucket  time.Time
	members []models.Bar
	base    *models.Bar // stored aggregate of the bucket's earlier fine bars
}

// NewResampler creates a resampler writing into coarse
func NewResampler(coarse *Series) *Resampler {
	return &Resampler{coarse: coarse}
}

// Apply folds fine into its coarse bucket and returns the coarse index
func (r *Resampler) Apply(fine models.Bar) (index int, opened bool, err error) {
	start := r.coarse.Timeframe().BucketStart(fine.Timestamp)
	if last, ok := r.coarse.Last(); ok && start.Before(last.Timestamp) {
		return -1, false, models.ErrOutOfOrder
	}

	if !start.Equal(r.bucket) || (len(r.members) == 0 && r.base == nil) {
		r.bucket = start
		r.members = r.members[:0]
		r.base = nil
	}

	n := len(r.members)
	switch {
	case n > 0 && fine.Timestamp.Equal(r.members[n-1].Timestamp):
		r.members[n-1] = fine
	case n > 0 && fine.Timestamp.Before(r.members[n-1].Timestamp):
		return -1, false, models.ErrOutOfOrder
	default:
		r.members = append(r.members, fine)
	}

	return r.coarse.Upsert(r.aggregate(fine.Symbol))
}

// Prime starts the bucket of base from a stored coarse bar, for history
// whose fine bars begin in the middle of that bucket. Fine bars applied
// afterwards extend it: open stays, high and low widen, close follows the
// latest fine bar.
func (r *Resampler) Prime(base models.Bar) (index int, err error) {
	base.Timestamp = r.coarse.Timeframe().BucketStart(base.Timestamp)
	index, _, err = r.coarse.Upsert(base)
	if err != nil {
		return -1, err
	}
	r.bucket = base.Timestamp
	r.members = r.members[:0]
	r.base = &base
	return index, nil
}

func (r *Resampler) aggregate(symbol string) models.Bar {
	bar := models.Bar{Symbol: symbol, Timestamp: r.bucket}
	var volume int64
	for i := range r.members {
		bar.Merge(&r.members[i])
		volume += r.members[i].Volume
	}
	if r.base == nil {
		return bar
	}

	// the stored bar may already include some of the members, so volume
	// is the larger of the two rather than their sum
	out := *r.base
	out.Timestamp = r.bucket
	if len(r.members) == 0 {
		return out
	}
	if bar.High > out.High {
		out.High = bar.High
	}
	if bar.Low < out.Low {
		out.Low = bar.Low
	}
	out.Close = bar.Close
	if volume > out.Volume {
		out.Volume = volume
	}
	return out
}

// Members returns the number of fine bars in the current bucket
func (r *Resampler) Members() int {
	return len(r.members)
}
