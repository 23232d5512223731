package breakout

import "time"

// Decision is the outcome of one alert-state evaluation
type Decision struct {
	Buy  bool
	Sell bool
}

// Any reports whether any alert should be emitted
func (d Decision) Any() bool {
	return d.Buy || d.Sell
}

// AlertState deduplicates alerts across repeated evaluations of the latest bar.
// Last is the last emitted signal; LastBuy and LastSell are the coarse open
// times of the last emitted alert per side.
type AlertState struct {
	Last     Signal    `json:"last"`
	LastBuy  time.Time `json:"last_buy"`
	LastSell time.Time `json:"last_sell"`
}

// NewAlertState returns a neutral state with zero-time watermarks
func NewAlertState() *AlertState {
	return &AlertState{Last: Neutral}
}

// Evaluate applies one tick's crossings and updates the state.
// coarseOpen is the open time of the most recent coarse bar.
func (s *AlertState) Evaluate(price PriceType, shift int, coarseOpen time.Time, buy, sell bool) Decision {
	// Under close pricing with a closed-candle trigger a forming coarse bar
	// alerts at most once, whichever side fired before.
	if price == PriceClose && shift > 0 {
		if !coarseOpen.After(s.LastBuy) || !coarseOpen.After(s.LastSell) {
			return Decision{}
		}
	}

	var d Decision
	if buy {
		if (price == PriceClose && s.Last != Buy) || (price == PriceHighLow && coarseOpen.After(s.LastBuy)) {
			d.Buy = true
			s.LastBuy = coarseOpen
			s.Last = Buy
		}
	}
	if sell {
		if (price == PriceClose && s.Last != Sell) || (price == PriceHighLow && coarseOpen.After(s.LastSell)) {
			d.Sell = true
			s.LastSell = coarseOpen
			s.Last = Sell
		}
	}
	if !buy && !sell {
		s.Last = Neutral
	}
	return d
}
