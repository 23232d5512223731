package storage

import (
	"context"
	"fmt"

	"github.com/mohamedkhairy/trade-breakout/internal/config"
	"github.com/mohamedkhairy/trade-breakout/internal/models"
)

// noHistory is used when warm-up history is disabled
type noHistory struct{}

func (noHistory) LoadBars(context.Context, string, models.Timeframe, int) ([]models.Bar, error) {
	return nil, nil
}

func (noHistory) Close() error { return nil }

// NewHistoryStore opens the history backend named in cfg.History.Backend.
// The returned writer is nil unless the backend can persist bars.
func NewHistoryStore(cfg *config.Config) (HistoryStore, BarWriter, error) {
	switch cfg.History.Backend {
	case "timescale":
		store, err := NewTimescaleStore(cfg.Database, DefaultWriteConfig())
		if err != nil {
			return nil, nil, err
		}
		if err := store.Start(); err != nil {
			store.Close()
			return nil, nil, err
		}
		return store, store, nil
	case "clickhouse":
		store, err := NewClickHouseStore(cfg.ClickHouse)
		if err != nil {
			return nil, nil, err
		}
		return store, nil, nil
	case "none", "":
		return noHistory{}, nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown history backend %q", cfg.History.Backend)
	}
}
