package signal

import (
	"fmt"

	"github.com/mohamedkhairy/trade-breakout/internal/models"
	"github.com/mohamedkhairy/trade-breakout/pkg/breakout"
)

// AlertMessage formats the notification text for an alert
func AlertMessage(symbol string, coarse, chart models.Timeframe, side breakout.Signal) string {
	direction := "below"
	if side == breakout.Sell {
		direction = "above"
	}
	return fmt.Sprintf("TBO: %s - %s on %s - Crossed 0 from %s.", symbol, coarse.Label(), chart.Label(), direction)
}

func valuePtr(v breakout.Value) *float64 {
	f, ok := v.Get()
	if !ok {
		return nil
	}
	return &f
}
