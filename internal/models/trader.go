package models

import (
	"time"

	"github.com/address-ranker/internal/backtest"
)

// TraderUpdate is the stored backtest export of a trader
type TraderUpdate struct {
	Trader     string                `json:"trader" db:"trader"`
	ComputedAt time.Time             `json:"computedAt" db:"computed_at"`
	Export     backtest.TraderExport `json:"export" db:"export"`
}
