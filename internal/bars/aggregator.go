package bars

import (
	"github.com/mohamedkhairy/trade-breakout/internal/models"
	"github.com/mohamedkhairy/trade-breakout/pkg/logger"
)

// Update describes the effect of one tick on the native series
type Update struct {
	Bar       models.Bar
	Index     int
	Opened    bool        // a new bar was started
	Finalized *models.Bar // the bar closed by this tick, if any
}

// Aggregator folds ticks for one symbol into bars of the series timeframe
type Aggregator struct {
	symbol     string
	series     *Series
	onBarFinal func(*models.Bar)
}

// NewAggregator creates an aggregator writing into series
func NewAggregator(symbol string, series *Series) *Aggregator {
	return &Aggregator{symbol: symbol, series: series}
}

// SetOnBarFinal sets the callback invoked synchronously when a bar closes
func (a *Aggregator) SetOnBarFinal(callback func(*models.Bar)) {
	a.onBarFinal = callback
}

// ProcessTick folds tick into the forming bar, opening a new bar when the
// tick falls into a later bucket. Ticks for other symbols are ignored.
func (a *Aggregator) ProcessTick(tick *models.Tick) (Update, error) {
	if tick == nil || tick.Symbol != a.symbol {
		return Update{Index: -1}, nil
	}
	if err := tick.Validate(); err != nil {
		logger.Warn("Invalid tick, skipping",
			logger.ErrorField(err),
			logger.Symbol(tick.Symbol),
		)
		return Update{Index: -1}, err
	}

	start := a.series.Timeframe().BucketStart(tick.Timestamp)

	var bar models.Bar
	var finalized *models.Bar
	last, ok := a.series.Last()
	switch {
	case ok && start.Equal(last.Timestamp):
		bar = last
	case ok && start.Before(last.Timestamp):
		return Update{Index: -1}, models.ErrOutOfOrder
	default:
		if ok {
			closed := last
			finalized = &closed
		}
		bar = models.Bar{Symbol: a.symbol, Timestamp: start}
	}
	bar.Apply(tick)

	index, opened, err := a.series.Upsert(bar)
	if err != nil {
		return Update{Index: -1}, err
	}

	if finalized != nil {
		logger.Debug("Bar finalized",
			logger.Symbol(a.symbol),
			logger.Time("timestamp", finalized.Timestamp),
			logger.Float64("open", finalized.Open),
			logger.Float64("close", finalized.Close),
			logger.Int64("volume", finalized.Volume),
		)
		if a.onBarFinal != nil {
			a.onBarFinal(finalized)
		}
	}

	return Update{Bar: bar, Index: index, Opened: opened, Finalized: finalized}, nil
}
