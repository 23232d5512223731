package breakout

import (
	"fmt"
	"time"
)

// ArrowOp is a chart annotation operation
type ArrowOp int

const (
	ArrowDraw ArrowOp = iota
	ArrowRemove
)

func (op ArrowOp) String() string {
	if op == ArrowRemove {
		return "remove"
	}
	return "draw"
}

// ArrowAction asks the annotation sink to draw or remove one arrow
type ArrowAction struct {
	Op    ArrowOp   `json:"op"`
	Name  string    `json:"name"`
	Side  Signal    `json:"side"`
	Index int       `json:"index"`
	Time  time.Time `json:"time"`
	Price float64   `json:"price,omitempty"`
}

// unixEpochTicks is 1970-01-01 expressed in 100ns ticks since 0001-01-01
const unixEpochTicks int64 = 621355968000000000

// Ticks returns t as 100ns ticks since 0001-01-01 UTC
func Ticks(t time.Time) int64 {
	return t.Unix()*10_000_000 + int64(t.Nanosecond()/100) + unixEpochTicks
}

// ArrowName returns the deterministic annotation name for a side at a bar time
func ArrowName(prefix string, side Signal, t time.Time) string {
	suffix := "B"
	if side == Sell {
		suffix = "S"
	}
	return fmt.Sprintf("%s-ARWS%s-%d", prefix, suffix, Ticks(t))
}

// planArrows decides which arrows to draw or remove for the fine bar at index
func (e *Engine) planArrows(index int, isLast bool) []ArrowAction {
	if index < e.cfg.Period+1 {
		return nil
	}

	if e.cfg.MTF {
		if e.shift == 1 && index > 0 {
			// Only on the first fine bar of a coarse bar
			if e.aligner.Index(index) == e.aligner.Index(index-1) {
				return nil
			}
		} else if e.shift == 0 && !isLast && index+1 < e.fine.Len() {
			// Only on the last fine bar of a coarse bar
			if e.aligner.Index(index) == e.aligner.Index(index+1) {
				return nil
			}
		}
	}

	var actions []ArrowAction
	if isLast {
		actions = append(actions, e.arrowRemovals(index)...)
	}

	buy, sell := e.detector.Crossing(index)
	if e.cfg.Price == PriceClose {
		if buy {
			actions = append(actions, e.arrowDraw(Buy, index))
		} else if sell {
			actions = append(actions, e.arrowDraw(Sell, index))
		}
		return actions
	}

	if buy {
		actions = append(actions, e.arrowDraw(Buy, index))
	}
	if sell {
		actions = append(actions, e.arrowDraw(Sell, index))
	}
	return actions
}

func (e *Engine) arrowDraw(side Signal, index int) ArrowAction {
	t := e.fine.OpenTime(index)
	price := e.fine.Low(index)
	if side == Sell {
		price = e.fine.High(index)
	}
	return ArrowAction{
		Op:    ArrowDraw,
		Name:  ArrowName(e.cfg.Name, side, t),
		Side:  side,
		Index: index,
		Time:  t,
		Price: price,
	}
}

// arrowRemovals clears both sides on every fine bar of the coarse bar containing index
func (e *Engine) arrowRemovals(index int) []ArrowAction {
	ci := e.aligner.Index(index)
	if ci < 0 {
		return nil
	}
	open := e.coarse.OpenTime(ci)

	var actions []ArrowAction
	for i := index; i >= 0; i-- {
		t := e.fine.OpenTime(i)
		if t.Before(open) {
			break
		}
		for _, side := range []Signal{Buy, Sell} {
			actions = append(actions, ArrowAction{
				Op:    ArrowRemove,
				Name:  ArrowName(e.cfg.Name, side, t),
				Side:  side,
				Index: i,
				Time:  t,
			})
		}
	}
	return actions
}
