package breakout

import (
	"fmt"
	"time"
)

// Config holds engine parameters. It is fixed for the lifetime of an Engine.
type Config struct {
	Period  int           // Window length L, at least 1
	Price   PriceType     // Close or HighLow
	Trigger TriggerCandle // Ignored under HighLow pricing
	MTF     bool          // Coarse timeframe strictly larger than the fine one
	Name    string        // Namespace for drawn objects
	Arrows  bool          // Plan arrow annotations
	Alerts  bool          // Evaluate alerts on the latest bar
}

// Validate rejects misconfiguration before any evaluation
func (c Config) Validate() error {
	if c.Period < 1 {
		return fmt.Errorf("%w, got %d", ErrInvalidPeriod, c.Period)
	}
	if c.Price != PriceClose && c.Price != PriceHighLow {
		return fmt.Errorf("%w: %d", ErrInvalidPriceType, int(c.Price))
	}
	if c.Trigger != CurrentCandle && c.Trigger != ClosedCandle {
		return fmt.Errorf("%w: %d", ErrInvalidTriggerCandle, int(c.Trigger))
	}
	return nil
}

// Shift is the trigger offset: always 0 under HighLow pricing
func (c Config) Shift() int {
	if c.Price == PriceHighLow {
		return 0
	}
	return int(c.Trigger)
}

// AlertEvent is an alert that survived deduplication
type AlertEvent struct {
	Side       Signal    `json:"side"`
	Index      int       `json:"index"`
	CheckIndex int       `json:"check_index"`
	PrevIndex  int       `json:"prev_index"`
	CoarseTime time.Time `json:"coarse_time"`
	Resistance Value     `json:"resistance"`
	Support    Value     `json:"support"`
}

// Result reports what one Calculate call did
type Result struct {
	Index       int           `json:"index"`
	CoarseIndex int           `json:"coarse_index"`
	Resistance  Value         `json:"resistance"`
	Support     Value         `json:"support"`
	Backfilled  int           `json:"backfilled"`
	Arrows      []ArrowAction `json:"arrows,omitempty"`
	Alerts      []AlertEvent  `json:"alerts,omitempty"`
}

// Engine computes the breakout oscillator on the coarse series and publishes
// it at fine resolution. It is not safe for concurrent use.
type Engine struct {
	cfg      Config
	shift    int
	fine     Series
	coarse   Series
	aligner  *TimeAligner
	osc      Oscillator
	res      Buffer
	sup      Buffer
	detector *Detector
	state    *AlertState
}

// NewEngine creates an engine. Without MTF the coarse argument is ignored and
// the fine series is used for both roles.
func NewEngine(cfg Config, fine, coarse Series) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if fine == nil || (cfg.MTF && coarse == nil) {
		return nil, ErrNilSeries
	}
	if !cfg.MTF {
		coarse = fine
	}

	e := &Engine{
		cfg:     cfg,
		shift:   cfg.Shift(),
		fine:    fine,
		coarse:  coarse,
		aligner: NewTimeAligner(fine, coarse, cfg.MTF),
		osc:     Oscillator{Period: cfg.Period, Price: cfg.Price},
		state:   NewAlertState(),
	}
	e.detector = NewDetector(e.aligner, &e.res, &e.sup, e.shift)
	return e, nil
}

// Calculate (re)computes the fine bar at index. isLast marks the most recent,
// still-open fine bar; only then are backfill and alerts applied.
func (e *Engine) Calculate(index int, isLast bool) Result {
	r := Result{Index: index, CoarseIndex: -1}
	if index < 0 || index >= e.fine.Len() {
		return r
	}

	ci := e.aligner.Index(index)
	r.CoarseIndex = ci
	if !e.osc.Ready(e.coarse, ci) {
		e.res.Set(index, Undefined)
		e.sup.Set(index, Undefined)
		return r
	}

	r.Resistance, r.Support = e.osc.Evaluate(e.coarse, ci)
	e.res.Set(index, r.Resistance)
	e.sup.Set(index, r.Support)

	if e.cfg.MTF && isLast {
		r.Backfilled = Backfill(e.fine, &e.res, &e.sup, index, e.coarse.OpenTime(ci))
	}

	if e.cfg.Arrows && index > e.cfg.Period+1 {
		r.Arrows = e.planArrows(index, isLast)
	}

	if isLast {
		r.Alerts = e.checkAlerts(index)
	}
	return r
}

func (e *Engine) checkAlerts(index int) []AlertEvent {
	if !e.cfg.Alerts || index < e.cfg.Period+e.shift+1 {
		return nil
	}

	check, prev, ok := e.detector.Indexes(index)
	if !ok {
		return nil
	}
	buy, sell := e.detector.CrossingAt(check, prev)

	coarseTime := e.coarse.OpenTime(e.coarse.Len() - 1)
	d := e.state.Evaluate(e.cfg.Price, e.shift, coarseTime, buy, sell)
	if !d.Any() {
		return nil
	}

	event := AlertEvent{
		Index:      index,
		CheckIndex: check,
		PrevIndex:  prev,
		CoarseTime: coarseTime,
		Resistance: e.res.At(check),
		Support:    e.sup.At(check),
	}
	var events []AlertEvent
	if d.Buy {
		event.Side = Buy
		events = append(events, event)
	}
	if d.Sell {
		event.Side = Sell
		events = append(events, event)
	}
	return events
}

// Crossing reports the buy/sell crossings at index without touching alert state
func (e *Engine) Crossing(index int) (buy, sell bool) {
	if index < e.cfg.Period+1 {
		return false, false
	}
	return e.detector.Crossing(index)
}

// Resistance returns the resistance value stored at fine index i
func (e *Engine) Resistance(i int) Value { return e.res.At(i) }

// Support returns the support value stored at fine index i
func (e *Engine) Support(i int) Value { return e.sup.At(i) }

// Len returns the number of fine positions computed so far
func (e *Engine) Len() int { return e.res.Len() }

// Tail returns copies of the last n resistance and support values
func (e *Engine) Tail(n int) ([]Value, []Value) {
	return e.res.Tail(n), e.sup.Tail(n)
}

// State returns a copy of the alert state
func (e *Engine) State() AlertState { return *e.state }

// Config returns the engine configuration
func (e *Engine) Config() Config { return e.cfg }

// Shift returns the effective trigger offset
func (e *Engine) Shift() int { return e.shift }

// CoarseIndex returns the coarse bar index containing fine index i
func (e *Engine) CoarseIndex(i int) int { return e.aligner.Index(i) }
