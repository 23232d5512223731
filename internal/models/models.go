package models

import (
	"time"
)

// Tick represents a single market data tick
type Tick struct {
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	Size      int64     `json:"size"`
	Timestamp time.Time `json:"timestamp"`
	Bid       float64   `json:"bid,omitempty"`
	Ask       float64   `json:"ask,omitempty"`
}

// Validate validates a Tick
func (t *Tick) Validate() error {
	if t.Symbol == "" {
		return ErrInvalidSymbol
	}
	if t.Price <= 0 {
		return ErrInvalidPrice
	}
	if t.Timestamp.IsZero() {
		return ErrInvalidTimestamp
	}
	return nil
}

// Bar is an OHLC bar of one timeframe. Timestamp is the bar open time.
type Bar struct {
	Symbol    string    `json:"symbol" db:"symbol"`
	Timestamp time.Time `json:"timestamp" db:"timestamp"`
	Open      float64   `json:"open" db:"open"`
	High      float64   `json:"high" db:"high"`
	Low       float64   `json:"low" db:"low"`
	Close     float64   `json:"close" db:"close"`
	Volume    int64     `json:"volume" db:"volume"`
}

// Validate validates a Bar
func (b *Bar) Validate() error {
	if b.Symbol == "" {
		return ErrInvalidSymbol
	}
	if b.Timestamp.IsZero() {
		return ErrInvalidTimestamp
	}
	if b.High < b.Low {
		return ErrInvalidBar
	}
	if b.Volume < 0 {
		return ErrInvalidVolume
	}
	return nil
}

// Apply folds a tick into the bar
func (b *Bar) Apply(tick *Tick) {
	if b.Open == 0 {
		b.Open = tick.Price
		b.High = tick.Price
		b.Low = tick.Price
	}
	if tick.Price > b.High {
		b.High = tick.Price
	}
	if tick.Price < b.Low {
		b.Low = tick.Price
	}
	b.Close = tick.Price
	b.Volume += tick.Size
}

// Merge folds a finer bar into the bar
func (b *Bar) Merge(fine *Bar) {
	if b.Open == 0 {
		b.Open = fine.Open
		b.High = fine.High
		b.Low = fine.Low
	}
	if fine.High > b.High {
		b.High = fine.High
	}
	if fine.Low < b.Low {
		b.Low = fine.Low
	}
	b.Close = fine.Close
	b.Volume += fine.Volume
}

// BreakoutAlert is a deduplicated breakout signal ready for delivery
type BreakoutAlert struct {
	ID             string    `json:"id"`
	Symbol         string    `json:"symbol"`
	Side           string    `json:"side"` // "buy" or "sell"
	Timeframe      Timeframe `json:"timeframe"`
	ChartTimeframe Timeframe `json:"chart_timeframe"`
	Message        string    `json:"message"`
	Price          float64   `json:"price"`
	BarTime        time.Time `json:"bar_time"`
	CoarseTime     time.Time `json:"coarse_time"`
	Resistance     *float64  `json:"resistance"`
	Support        *float64  `json:"support"`
	Timestamp      time.Time `json:"timestamp"`
}

// Validate validates a BreakoutAlert
func (a *BreakoutAlert) Validate() error {
	if a.ID == "" {
		return ErrInvalidAlertID
	}
	if a.Symbol == "" {
		return ErrInvalidSymbol
	}
	if a.Side != "buy" && a.Side != "sell" {
		return ErrInvalidSide
	}
	if a.Timestamp.IsZero() {
		return ErrInvalidTimestamp
	}
	return nil
}
