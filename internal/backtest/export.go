package backtest

import (
	"github.com/shopspring/decimal"

	"github.com/address-ranker/internal/types"
)

// TraderExport summarizes a replayed wallet
type TraderExport struct {
	NumberOfTrades   int             `json:"numberOfTrades"`
	TradedQuote      decimal.Decimal `json:"tradedQuote"`
	AverageQuoteSize decimal.Decimal `json:"averageQuoteSize"`
	SumProfit        decimal.Decimal `json:"sumProfit"`
	Trades           []ProfitTrade   `json:"trades"`
}

// Export summarizes the trades the engine has processed
func (e *Engine) Export() TraderExport {
	trades := e.AllTrades()

	traded := decimal.Zero
	for _, t := range trades {
		traded = traded.Add(t.SizeQuote)
	}

	average := decimal.Zero
	if len(trades) > 0 {
		average = traded.Div(decimal.NewFromInt(int64(len(trades))))
	}

	return TraderExport{
		NumberOfTrades:   len(trades),
		TradedQuote:      traded,
		AverageQuoteSize: average,
		SumProfit:        e.TotalProfit(),
		Trades:           trades,
	}
}

// Replay runs trades through a fresh engine. The trades must be time-ascending.
func Replay(blockchain types.Blockchain, trades []SingleTrade) (*Engine, error) {
	if err := ValidateOrder(trades); err != nil {
		return nil, err
	}

	engine := NewEngine(blockchain)
	for _, t := range trades {
		engine.OnTrade(t)
	}
	return engine, nil
}
