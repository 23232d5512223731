package signal

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	barsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "breakout_bars_processed_total",
			Help: "Fine bar evaluations by phase (warmup, live)",
		},
		[]string{"phase"},
	)

	undefinedOutputs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "breakout_oscillator_undefined_total",
			Help: "Undefined oscillator outputs on the live bar by output",
		},
		[]string{"output"},
	)

	signalsDetected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "breakout_signals_detected_total",
			Help: "Zero crossings drawn as arrows by side",
		},
		[]string{"side"},
	)

	alertsEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "breakout_alerts_emitted_total",
			Help: "Alerts emitted by side",
		},
		[]string{"side"},
	)

	backfilledBars = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "breakout_backfilled_bars",
		Help:    "Fine bars rewritten per realtime backfill",
		Buckets: []float64{1, 2, 5, 10, 30, 60, 240, 1440},
	})

	ingestErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "breakout_ingest_errors_total",
			Help: "Rejected ticks and bars by reason",
		},
		[]string{"reason"},
	)
)
