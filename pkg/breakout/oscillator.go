package breakout

// Oscillator computes the resistance/support deviation ratios of a coarse bar
// relative to the extrema of the Period bars before it.
type Oscillator struct {
	Period int
	Price  PriceType
}

// Ready reports whether coarseIndex has a full window behind it
func (o Oscillator) Ready(coarse Series, coarseIndex int) bool {
	n := coarse.Len()
	return n >= o.Period+1 && coarseIndex >= o.Period && coarseIndex < n
}

// Evaluate returns (resistance, support) for the coarse bar at coarseIndex.
// Resistance crossing above zero is a bullish breakout, support crossing below zero a bearish one.
func (o Oscillator) Evaluate(coarse Series, coarseIndex int) (Value, Value) {
	if !o.Ready(coarse, coarseIndex) {
		return Undefined, Undefined
	}

	from := coarseIndex - o.Period
	switch o.Price {
	case PriceHighLow:
		maxHigh := Highest(coarse, FieldHigh, from, o.Period)
		minLow := Lowest(coarse, FieldLow, from, o.Period)
		return deviation(coarse.High(coarseIndex), maxHigh), deviation(coarse.Low(coarseIndex), minLow)
	default:
		maxClose := Highest(coarse, FieldClose, from, o.Period)
		minClose := Lowest(coarse, FieldClose, from, o.Period)
		current := coarse.Close(coarseIndex)
		return deviation(current, maxClose), deviation(current, minClose)
	}
}

// deviation is (current-extremum)/extremum, undefined for a missing or zero extremum
func deviation(current float64, extremum Value) Value {
	e, ok := extremum.Get()
	if !ok || e == 0 {
		return Undefined
	}
	return Some((current - e) / e)
}
