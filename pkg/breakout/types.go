package breakout

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// PriceType selects which price fields feed the oscillator
type PriceType int

const (
	// PriceClose compares close to the rolling close extrema
	PriceClose PriceType = iota
	// PriceHighLow compares high to the rolling max high and low to the rolling min low
	PriceHighLow
)

func (p PriceType) String() string {
	switch p {
	case PriceClose:
		return "close"
	case PriceHighLow:
		return "highlow"
	default:
		return fmt.Sprintf("PriceType(%d)", int(p))
	}
}

// ParsePriceType parses "close" or "highlow" (case-insensitive, "high_low" accepted)
func ParsePriceType(s string) (PriceType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "close":
		return PriceClose, nil
	case "highlow", "high_low", "high-low":
		return PriceHighLow, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidPriceType, s)
}

// TriggerCandle is the alert trigger policy under close pricing
type TriggerCandle int

const (
	CurrentCandle TriggerCandle = 0
	ClosedCandle  TriggerCandle = 1
)

func (t TriggerCandle) String() string {
	switch t {
	case CurrentCandle:
		return "current"
	case ClosedCandle:
		return "closed"
	default:
		return fmt.Sprintf("TriggerCandle(%d)", int(t))
	}
}

// ParseTriggerCandle parses "current" or "closed"
func ParseTriggerCandle(s string) (TriggerCandle, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "current", "currentcandle", "current_candle":
		return CurrentCandle, nil
	case "closed", "closedcandle", "closed_candle":
		return ClosedCandle, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidTriggerCandle, s)
}

// Signal is the last emitted non-suppressed signal
type Signal int

const (
	Neutral Signal = 0
	Buy     Signal = 1
	Sell    Signal = -1
)

func (s Signal) String() string {
	switch s {
	case Buy:
		return "buy"
	case Sell:
		return "sell"
	default:
		return "neutral"
	}
}

// MarshalJSON encodes the signal by name
func (s Signal) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// Value is an oscillator output or extremum that may be undefined.
// The zero value is undefined.
type Value struct {
	v  float64
	ok bool
}

// Undefined is the value reported for insufficient data or a degenerate extremum
var Undefined = Value{}

// Some wraps a defined value. NaN is treated as undefined.
func Some(v float64) Value {
	if math.IsNaN(v) {
		return Undefined
	}
	return Value{v: v, ok: true}
}

// Get returns the value and whether it is defined
func (x Value) Get() (float64, bool) {
	return x.v, x.ok
}

// Valid reports whether the value is defined
func (x Value) Valid() bool {
	return x.ok
}

// Float returns the value, or NaN when undefined
func (x Value) Float() float64 {
	if !x.ok {
		return math.NaN()
	}
	return x.v
}

func (x Value) String() string {
	if !x.ok {
		return "undefined"
	}
	return fmt.Sprintf("%g", x.v)
}

// MarshalJSON encodes undefined as null
func (x Value) MarshalJSON() ([]byte, error) {
	if !x.ok {
		return []byte("null"), nil
	}
	return json.Marshal(x.v)
}

// UnmarshalJSON decodes null as undefined
func (x *Value) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*x = Undefined
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*x = Some(v)
	return nil
}
