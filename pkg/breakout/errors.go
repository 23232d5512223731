package breakout

import "errors"

var (
	ErrInvalidPeriod        = errors.New("period must be at least 1")
	ErrInvalidPriceType     = errors.New("invalid price type")
	ErrInvalidTriggerCandle = errors.New("invalid trigger candle")
	ErrNilSeries            = errors.New("bar series cannot be nil")
)
