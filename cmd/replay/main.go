// Command replay runs the breakout oscillator over a CSV of native bars and
// prints the oscillator series and the alerts it raises.
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/mohamedkhairy/trade-breakout/internal/chart"
	"github.com/mohamedkhairy/trade-breakout/internal/config"
	"github.com/mohamedkhairy/trade-breakout/internal/models"
	"github.com/mohamedkhairy/trade-breakout/internal/signal"
	"github.com/mohamedkhairy/trade-breakout/pkg/breakout"
	"github.com/mohamedkhairy/trade-breakout/pkg/logger"
)

// alertPrinter collects alerts as they are raised
type alertPrinter struct {
	out    io.Writer
	alerts int
}

func (p *alertPrinter) Notify(ctx context.Context, alert *models.BreakoutAlert) error {
	p.alerts++
	_, err := fmt.Fprintf(p.out, "# %s %s %s\n", alert.BarTime.Format(time.RFC3339), alert.Side, alert.Message)
	return err
}

type options struct {
	in      string
	symbol  string
	chart   string
	tf      string
	period  int
	price   string
	trigger string
}

func main() {
	var opts options
	flag.StringVar(&opts.in, "in", "", "Input CSV (timestamp,open,high,low,close[,volume])")
	flag.StringVar(&opts.symbol, "symbol", "REPLAY", "Instrument symbol")
	flag.StringVar(&opts.chart, "chart", "1m", "Native timeframe of the input bars")
	flag.StringVar(&opts.tf, "tf", "current", "Oscillator timeframe")
	flag.IntVar(&opts.period, "period", 50, "Lookback period L")
	flag.StringVar(&opts.price, "price", "highlow", "Price type (close or highlow)")
	flag.StringVar(&opts.trigger, "trigger", "current", "Trigger candle (current or closed)")
	logLevel := flag.String("log-level", "warn", "Log level")
	flag.Parse()

	if err := logger.Init(*logLevel, "development"); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if opts.in == "" {
		fmt.Fprintln(os.Stderr, "-in is required")
		os.Exit(2)
	}
	f, err := os.Open(opts.in)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open input: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	if err := run(opts, f, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "replay: %v\n", err)
		os.Exit(1)
	}
}

// run replays the bars read from in one at a time, as a live feed would
// deliver them, and writes the oscillator series to out.
func run(opts options, in io.Reader, out io.Writer) error {
	cfg, err := serviceConfig(opts)
	if err != nil {
		return err
	}
	rows, err := readBars(in, opts.symbol)
	if err != nil {
		return err
	}
	series, rejected := loadSeries(rows, cfg.Chart)
	if rejected > 0 {
		logger.Warn("Dropped overlapping bars", logger.Int("rejected", rejected))
	}

	printer := &alertPrinter{out: out}
	annotator := chart.NewAnnotator(config.ArrowsConfig{Enabled: true, BuyGlyph: "▲", SellGlyph: "▼", Size: 1}, cfg.Coarse, nil)
	service, err := signal.NewService(cfg, printer, annotator)
	if err != nil {
		return err
	}

	ctx := context.Background()
	for i := 0; i < series.Len(); i++ {
		bar := models.Bar{
			Symbol:    opts.symbol,
			Timestamp: series.OpenTime(i),
			Open:      series.Open(i),
			High:      series.High(i),
			Low:       series.Low(i),
			Close:     series.Close(i),
		}
		if err := service.ProcessBar(ctx, bar); err != nil {
			logger.Warn("Skipping bar",
				logger.Time("timestamp", bar.Timestamp),
				logger.ErrorField(err),
			)
		}
	}

	w := csv.NewWriter(out)
	_ = w.Write([]string{"time", "close", "resistance", "support"})
	for _, p := range service.Oscillator(0) {
		_ = w.Write([]string{
			p.Time.Format(time.RFC3339),
			strconv.FormatFloat(p.Close, 'f', -1, 64),
			p.Resistance.String(),
			p.Support.String(),
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}

	st := service.Status()
	_, err = fmt.Fprintf(out, "# bars=%d rejected=%d coarse_bars=%d alerts=%d arrows=%d last=%s\n",
		st.Bars, rejected, st.CoarseBars, printer.alerts, len(annotator.Arrows()), st.State.Last)
	return err
}

// loadSeries holds the rows in a techan time series of the chart timeframe.
// Rows that start inside an earlier bar are rejected and counted.
func loadSeries(rows []models.Bar, chart models.Timeframe) (breakout.TechanSeries, int) {
	src := make(breakout.Bars, len(rows))
	for i, r := range rows {
		src[i] = breakout.Bar{OpenTime: r.Timestamp, Open: r.Open, High: r.High, Low: r.Low, Close: r.Close}
	}
	ts, rejected := breakout.ToTechan(src, chart.Duration())
	return breakout.NewTechanSeries(ts), rejected
}

func serviceConfig(opts options) (signal.Config, error) {
	chartTF, err := models.ParseTimeframe(opts.chart)
	if err != nil {
		return signal.Config{}, err
	}
	tf, err := models.ParseTimeframe(opts.tf)
	if err != nil {
		return signal.Config{}, err
	}
	price, err := breakout.ParsePriceType(opts.price)
	if err != nil {
		return signal.Config{}, err
	}
	trigger, err := breakout.ParseTriggerCandle(opts.trigger)
	if err != nil {
		return signal.Config{}, err
	}
	coarse, mtf := tf.Resolve(chartTF)
	return signal.Config{
		Symbol: opts.symbol,
		Chart:  chartTF,
		Coarse: coarse,
		Engine: breakout.Config{
			Period:  opts.period,
			Price:   price,
			Trigger: trigger,
			MTF:     mtf,
			Name:    "TBO",
			Arrows:  true,
			Alerts:  true,
		},
	}, nil
}
