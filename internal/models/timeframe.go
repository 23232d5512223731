package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Timeframe is a bar duration. The zero value means "use the chart timeframe".
type Timeframe time.Duration

const (
	TimeframeCurrent Timeframe = 0
	Minute           Timeframe = Timeframe(time.Minute)
	Minute5          Timeframe = Timeframe(5 * time.Minute)
	Minute15         Timeframe = Timeframe(15 * time.Minute)
	Minute30         Timeframe = Timeframe(30 * time.Minute)
	Hour             Timeframe = Timeframe(time.Hour)
	Hour4            Timeframe = Timeframe(4 * time.Hour)
	Daily            Timeframe = Timeframe(24 * time.Hour)
	Weekly           Timeframe = Timeframe(7 * 24 * time.Hour)
)

var timeframeNames = map[Timeframe]string{
	TimeframeCurrent: "Current",
	Minute:           "Minute",
	Minute5:          "Minute5",
	Minute15:         "Minute15",
	Minute30:         "Minute30",
	Hour:             "Hour",
	Hour4:            "Hour4",
	Daily:            "Daily",
	Weekly:           "Weekly",
}

var timeframeLabels = map[Timeframe]string{
	Minute:   "1m",
	Minute5:  "5m",
	Minute15: "15m",
	Minute30: "30m",
	Hour:     "1h",
	Hour4:    "4h",
	Daily:    "1d",
	Weekly:   "1w",
}

var timeframeAliases = map[string]Timeframe{
	"current": TimeframeCurrent, "": TimeframeCurrent,
	"minute": Minute, "m1": Minute, "1m": Minute,
	"minute5": Minute5, "m5": Minute5, "5m": Minute5,
	"minute15": Minute15, "m15": Minute15, "15m": Minute15,
	"minute30": Minute30, "m30": Minute30, "30m": Minute30,
	"hour": Hour, "h1": Hour, "1h": Hour,
	"hour4": Hour4, "h4": Hour4, "4h": Hour4,
	"daily": Daily, "d1": Daily, "1d": Daily,
	"weekly": Weekly, "w1": Weekly, "1w": Weekly,
}

// ParseTimeframe accepts names like "Hour4", "h4" or "4h"
func ParseTimeframe(s string) (Timeframe, error) {
	tf, ok := timeframeAliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimeframe, s)
	}
	return tf, nil
}

// Duration returns the bar length
func (tf Timeframe) Duration() time.Duration { return time.Duration(tf) }

func (tf Timeframe) String() string {
	if name, ok := timeframeNames[tf]; ok {
		return name
	}
	return time.Duration(tf).String()
}

// Label returns the short storage label ("1m", "4h", ...), empty for Current
func (tf Timeframe) Label() string {
	return timeframeLabels[tf]
}

// Resolve returns the effective coarse timeframe for a chart timeframe and
// whether it is strictly coarser. Current or finer requests fall back to chart.
func (tf Timeframe) Resolve(chart Timeframe) (Timeframe, bool) {
	if tf <= chart {
		return chart, false
	}
	return tf, true
}

// BucketStart returns the open time of the bar containing t.
// Weekly buckets start on Monday 00:00 UTC.
func (tf Timeframe) BucketStart(t time.Time) time.Time {
	if tf <= 0 {
		return t
	}
	return t.UTC().Truncate(time.Duration(tf))
}

func (tf Timeframe) MarshalJSON() ([]byte, error) {
	return json.Marshal(tf.String())
}

func (tf *Timeframe) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseTimeframe(s)
	if err != nil {
		return err
	}
	*tf = parsed
	return nil
}
