package models

import "errors"

var (
	ErrInvalidSymbol    = errors.New("invalid symbol")
	ErrInvalidPrice     = errors.New("invalid price")
	ErrInvalidTimestamp = errors.New("invalid timestamp")
	ErrInvalidBar       = errors.New("invalid bar (high < low)")
	ErrInvalidVolume    = errors.New("invalid volume")
	ErrInvalidTimeframe = errors.New("invalid timeframe")
	ErrInvalidAlertID   = errors.New("invalid alert ID")
	ErrInvalidSide      = errors.New("invalid alert side")
	ErrOutOfOrder       = errors.New("bar out of order")
)
