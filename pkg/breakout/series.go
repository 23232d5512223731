package breakout

import "time"

// Series is a read-only, indexable bar series ordered by non-decreasing open time.
// The engine never mutates it.
type Series interface {
	Len() int
	OpenTime(i int) time.Time
	Open(i int) float64
	High(i int) float64
	Low(i int) float64
	Close(i int) float64
}

// Bar is a single OHLC bar
type Bar struct {
	OpenTime time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
}

// Bars is a slice-backed Series
type Bars []Bar

func (b Bars) Len() int                 { return len(b) }
func (b Bars) OpenTime(i int) time.Time { return b[i].OpenTime }
func (b Bars) Open(i int) float64       { return b[i].Open }
func (b Bars) High(i int) float64       { return b[i].High }
func (b Bars) Low(i int) float64        { return b[i].Low }
func (b Bars) Close(i int) float64      { return b[i].Close }

// Field selects a price field of a series
type Field int

const (
	FieldClose Field = iota
	FieldHigh
	FieldLow
)

func (f Field) value(s Series, i int) float64 {
	switch f {
	case FieldHigh:
		return s.High(i)
	case FieldLow:
		return s.Low(i)
	default:
		return s.Close(i)
	}
}

// Buffer is an engine-owned output series indexed like the fine series.
// It grows on demand; unset positions read as Undefined.
type Buffer struct {
	values []Value
}

// Len returns the number of positions ever written
func (b *Buffer) Len() int {
	return len(b.values)
}

// At returns the value at i, Undefined when out of range
func (b *Buffer) At(i int) Value {
	if i < 0 || i >= len(b.values) {
		return Undefined
	}
	return b.values[i]
}

// Set stores v at i, growing the buffer if needed
func (b *Buffer) Set(i int, v Value) {
	if i < 0 {
		return
	}
	for len(b.values) <= i {
		b.values = append(b.values, Undefined)
	}
	b.values[i] = v
}

// Tail returns a copy of the last n values
func (b *Buffer) Tail(n int) []Value {
	if n <= 0 || n > len(b.values) {
		n = len(b.values)
	}
	out := make([]Value, n)
	copy(out, b.values[len(b.values)-n:])
	return out
}
