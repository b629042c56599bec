package backtest

import (
	stderrors "errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/address-ranker/internal/types"
)

// ErrTradesOutOfOrder is returned when a trade stream is not time-ascending
var ErrTradesOutOfOrder = stderrors.New("trades are not in chronological order")

// SingleTrade is one swap of a token against the quote token
type SingleTrade struct {
	Timestamp    time.Time       `json:"timestamp"`
	TokenAddress string          `json:"tokenAddress"`
	Symbol       string          `json:"symbol"`
	IsBuy        bool            `json:"isBuy"`
	SizeToken    decimal.Decimal `json:"sizeToken"`
	SizeQuote    decimal.Decimal `json:"sizeQuote"`
	Price        decimal.Decimal `json:"price"` // quote per token
}

// ProfitTrade is a processed trade. Profit is nil for buys.
type ProfitTrade struct {
	SingleTrade
	Profit *decimal.Decimal `json:"profit"`
}

// CoinBalance is the tracked position in one token
type CoinBalance struct {
	Symbol         string           `json:"symbol"`
	TokenAddress   string           `json:"tokenAddress"`
	Blockchain     types.Blockchain `json:"blockchain"`
	AvgBuyPrice    decimal.Decimal  `json:"avgBuyPrice"`
	SizeHeld       decimal.Decimal  `json:"sizeHeld"`
	LastUpdateTime time.Time        `json:"lastUpdateTime"`
}

// WeightedAveragePrice returns Σ(price·size)/Σsize. It returns zero when the
// slices differ in length or the sizes sum to zero.
func WeightedAveragePrice(prices, sizes []decimal.Decimal) decimal.Decimal {
	if len(prices) != len(sizes) {
		return decimal.Zero
	}

	weightedSum := decimal.Zero
	totalWeight := decimal.Zero
	for i := range prices {
		weightedSum = weightedSum.Add(prices[i].Mul(sizes[i]))
		totalWeight = totalWeight.Add(sizes[i])
	}
	if totalWeight.IsZero() {
		return decimal.Zero
	}
	return weightedSum.Div(totalWeight)
}

// ValidateOrder checks that trades are sorted by timestamp
func ValidateOrder(trades []SingleTrade) error {
	for i := 1; i < len(trades); i++ {
		if trades[i].Timestamp.Before(trades[i-1].Timestamp) {
			return fmt.Errorf("%w: trade %d at %s precedes trade %d at %s", ErrTradesOutOfOrder,
				i, trades[i].Timestamp.Format(time.RFC3339), i-1, trades[i-1].Timestamp.Format(time.RFC3339))
		}
	}
	return nil
}
