package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/address-ranker/internal/types"
)

// PerformanceResult is the weighted percentage change of one address between two snapshots
type PerformanceResult struct {
	Address     string          `json:"address" db:"address"`
	StartTime   time.Time       `json:"startTime" db:"start_time"`
	EndTime     time.Time       `json:"endTime" db:"end_time"`
	Performance decimal.Decimal `json:"performance" db:"performance"`
}

// AddressPerformanceRank is the position of an address in a ranking run
type AddressPerformanceRank struct {
	Address        string            `json:"address" db:"address"`
	RankingType    types.RankingType `json:"rankingType" db:"ranking_type"`
	Time           time.Time         `json:"time" db:"time"`
	AvgPerformance decimal.Decimal   `json:"avgPerformance" db:"avg_performance"`
	Rank           int               `json:"rank" db:"rank"`
}

// CoinChangeRank is the position of a symbol in a coin change ranking run
type CoinChangeRank struct {
	Time        time.Time         `json:"time" db:"time"`
	Rank        int               `json:"rank" db:"rank"`
	Symbol      string            `json:"symbol" db:"symbol"`
	PctChange   decimal.Decimal   `json:"pctChange" db:"pct_change"`
	RankingType types.RankingType `json:"rankingType" db:"ranking_type"`
}
