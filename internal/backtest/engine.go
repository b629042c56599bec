// Package backtest replays a wallet's trades to reconstruct its weighted
// average cost basis, position sizes and realized profit.
//
// An Engine is not safe for concurrent use. Use one engine per wallet and
// feed it trades in chronological order.
package backtest

import (
	"github.com/shopspring/decimal"

	"github.com/address-ranker/internal/logging"
	"github.com/address-ranker/internal/types"
)

// Engine is the per-wallet backtest state machine
type Engine struct {
	blockchain types.Blockchain
	balances   map[string]*CoinBalance
	sumProfit  decimal.Decimal
	trades     []ProfitTrade
	logger     *logging.Logger
}

// NewEngine creates an empty engine for trades on the given blockchain
func NewEngine(blockchain types.Blockchain) *Engine {
	return &Engine{
		blockchain: blockchain,
		balances:   make(map[string]*CoinBalance),
		sumProfit:  decimal.Zero,
		logger:     logging.GetGlobalLogger().WithField("component", "backtest"),
	}
}

// WithLogger replaces the engine logger
func (e *Engine) WithLogger(logger *logging.Logger) *Engine {
	e.logger = logger
	return e
}

// OnTrade applies one trade to the engine state
func (e *Engine) OnTrade(trade SingleTrade) {
	if trade.IsBuy {
		e.onBuy(trade)
		return
	}
	e.onSell(trade)
}

func (e *Engine) onBuy(trade SingleTrade) {
	balance, ok := e.balances[trade.TokenAddress]
	if !ok {
		balance = &CoinBalance{
			Symbol:       trade.Symbol,
			TokenAddress: trade.TokenAddress,
			Blockchain:   e.blockchain,
			AvgBuyPrice:  trade.Price,
			SizeHeld:     decimal.Zero,
		}
		e.balances[trade.TokenAddress] = balance
	} else if !balance.SizeHeld.Add(trade.SizeToken).IsZero() {
		balance.AvgBuyPrice = WeightedAveragePrice(
			[]decimal.Decimal{balance.AvgBuyPrice, trade.Price},
			[]decimal.Decimal{balance.SizeHeld, trade.SizeToken},
		)
	}
	balance.SizeHeld = balance.SizeHeld.Add(trade.SizeToken)
	balance.LastUpdateTime = trade.Timestamp

	e.logger.WithFields(map[string]interface{}{
		"symbol":    trade.Symbol,
		"price":     trade.Price.String(),
		"size":      trade.SizeToken.String(),
		"sizeHeld":  balance.SizeHeld.String(),
		"avgPrice":  balance.AvgBuyPrice.String(),
		"timestamp": trade.Timestamp,
	}).Debug("Processed buy")

	e.trades = append(e.trades, ProfitTrade{SingleTrade: trade})
}

func (e *Engine) onSell(trade SingleTrade) {
	balance, ok := e.balances[trade.TokenAddress]
	if !ok {
		// Sold something never bought against the quote token, so there is no cost basis.
		e.logger.WithFields(map[string]interface{}{
			"symbol":       trade.Symbol,
			"tokenAddress": trade.TokenAddress,
			"timestamp":    trade.Timestamp,
		}).Info("Dropping sell of untracked token")
		return
	}

	profit := trade.SizeToken.Mul(trade.Price.Sub(balance.AvgBuyPrice))
	e.sumProfit = e.sumProfit.Add(profit)

	sold := trade.SizeToken
	if sold.GreaterThan(balance.SizeHeld) {
		e.logger.WithFields(map[string]interface{}{
			"symbol":   balance.Symbol,
			"sold":     sold.String(),
			"sizeHeld": balance.SizeHeld.String(),
		}).Warn("Sell exceeds tracked position, clamping to held size")
		sold = balance.SizeHeld
	}
	balance.SizeHeld = balance.SizeHeld.Sub(sold)
	balance.LastUpdateTime = trade.Timestamp

	e.logger.WithFields(map[string]interface{}{
		"symbol":    balance.Symbol,
		"price":     trade.Price.String(),
		"size":      trade.SizeToken.String(),
		"profit":    profit.String(),
		"sumProfit": e.sumProfit.String(),
		"sizeHeld":  balance.SizeHeld.String(),
	}).Debug("Processed sell")

	e.trades = append(e.trades, ProfitTrade{SingleTrade: trade, Profit: &profit})
}

// CurrentSize returns the held size of a token, zero if untracked
func (e *Engine) CurrentSize(tokenAddress string) decimal.Decimal {
	if b, ok := e.balances[tokenAddress]; ok {
		return b.SizeHeld
	}
	return decimal.Zero
}

// CurrentAvgPrice returns the average buy price of a token, zero if untracked
func (e *Engine) CurrentAvgPrice(tokenAddress string) decimal.Decimal {
	if b, ok := e.balances[tokenAddress]; ok {
		return b.AvgBuyPrice
	}
	return decimal.Zero
}

// Balance returns a copy of the tracked position in a token
func (e *Engine) Balance(tokenAddress string) (CoinBalance, bool) {
	b, ok := e.balances[tokenAddress]
	if !ok {
		return CoinBalance{}, false
	}
	return *b, true
}

// TotalProfit returns the realized profit of all scored sells
func (e *Engine) TotalProfit() decimal.Decimal {
	return e.sumProfit
}

// AllTrades returns the processed trades in processing order.
// Sells of untracked tokens are not included.
func (e *Engine) AllTrades() []ProfitTrade {
	out := make([]ProfitTrade, len(e.trades))
	copy(out, e.trades)
	return out
}
