package backtest

import (
	"bytes"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/address-ranker/internal/logging"
	"github.com/address-ranker/internal/types"
)

const token = "0x8b0fde007458ee153bd0f66cd448af5fb3d99b43"

var t0 = time.Date(2022, 5, 1, 1, 1, 1, 0, time.UTC)

func num(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func trade(minute int, isBuy bool, size, price float64) SingleTrade {
	return SingleTrade{
		Timestamp:    t0.Add(time.Duration(minute) * time.Minute),
		TokenAddress: token,
		Symbol:       "MEME",
		IsBuy:        isBuy,
		SizeToken:    num(size),
		SizeQuote:    num(size * price),
		Price:        num(price),
	}
}

func newTestEngine(buf *bytes.Buffer) *Engine {
	return NewEngine(types.BlockchainETH).WithLogger(logging.NewTestLogger(buf))
}

func TestEngine_WeightedCostBasis(t *testing.T) {
	var buf bytes.Buffer
	e := newTestEngine(&buf)

	e.OnTrade(trade(0, true, 10, 1.0))
	e.OnTrade(trade(1, true, 10, 2.0))
	assert.True(t, e.CurrentAvgPrice(token).Equal(num(1.5)), e.CurrentAvgPrice(token).String())
	assert.True(t, e.CurrentSize(token).Equal(num(20)))

	e.OnTrade(trade(2, false, 10, 3.0))
	assert.True(t, e.TotalProfit().Equal(num(15)), e.TotalProfit().String())
	assert.True(t, e.CurrentSize(token).Equal(num(10)))
	assert.True(t, e.CurrentAvgPrice(token).Equal(num(1.5)), "sells leave the cost basis unchanged")

	trades := e.AllTrades()
	require.Len(t, trades, 3)
	assert.Nil(t, trades[0].Profit)
	assert.Nil(t, trades[1].Profit)
	require.NotNil(t, trades[2].Profit)
	assert.True(t, trades[2].Profit.Equal(num(15)))
}

func TestEngine_SamePriceBuysAccumulate(t *testing.T) {
	var buf bytes.Buffer
	e := newTestEngine(&buf)

	e.OnTrade(trade(0, true, 5, 2.0))
	e.OnTrade(trade(1, true, 15, 2.0))
	e.OnTrade(trade(2, true, 20, 4.0))

	assert.True(t, e.CurrentSize(token).Equal(num(40)))
	assert.True(t, e.CurrentAvgPrice(token).Equal(num(3)), e.CurrentAvgPrice(token).String())
}

func TestEngine_OverdrawClampsToZero(t *testing.T) {
	var buf bytes.Buffer
	e := newTestEngine(&buf)

	e.OnTrade(trade(0, true, 10, 1.0))
	e.OnTrade(trade(1, false, 25, 2.0))

	assert.True(t, e.CurrentSize(token).IsZero())
	assert.True(t, e.TotalProfit().Equal(num(25)), "profit is computed on the full sold size")
	assert.Contains(t, buf.String(), "clamping")
}

func TestEngine_SellOfUntrackedTokenDropped(t *testing.T) {
	var buf bytes.Buffer
	e := newTestEngine(&buf)

	e.OnTrade(trade(0, false, 10, 3.0))

	assert.Empty(t, e.AllTrades())
	assert.True(t, e.TotalProfit().IsZero())
	assert.True(t, e.CurrentSize(token).IsZero())
	assert.True(t, e.CurrentAvgPrice(token).IsZero())
	_, ok := e.Balance(token)
	assert.False(t, ok)
	assert.Contains(t, buf.String(), "untracked token")
}

func TestEngine_RebuyAfterFullExit(t *testing.T) {
	var buf bytes.Buffer
	e := newTestEngine(&buf)

	e.OnTrade(trade(0, true, 10, 1.0))
	e.OnTrade(trade(1, false, 10, 2.0))
	e.OnTrade(trade(2, true, 4, 5.0))

	assert.True(t, e.CurrentAvgPrice(token).Equal(num(5)), e.CurrentAvgPrice(token).String())
	assert.True(t, e.CurrentSize(token).Equal(num(4)))
}

func TestEngine_BalanceIsACopy(t *testing.T) {
	var buf bytes.Buffer
	e := newTestEngine(&buf)
	e.OnTrade(trade(0, true, 10, 1.0))

	b, ok := e.Balance(token)
	require.True(t, ok)
	assert.Equal(t, types.BlockchainETH, b.Blockchain)
	assert.Equal(t, "MEME", b.Symbol)
	assert.Equal(t, t0, b.LastUpdateTime)

	b.SizeHeld = num(999)
	assert.True(t, e.CurrentSize(token).Equal(num(10)))
}

func TestEngine_AllTradesIsACopy(t *testing.T) {
	var buf bytes.Buffer
	e := newTestEngine(&buf)
	e.OnTrade(trade(0, true, 10, 1.0))

	trades := e.AllTrades()
	trades[0].Symbol = "CHANGED"
	assert.Equal(t, "MEME", e.AllTrades()[0].Symbol)
}

func TestEngineProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("held size never goes negative", prop.ForAll(
		func(sizes []int64, buys []bool) bool {
			var buf bytes.Buffer
			e := newTestEngine(&buf)
			for i, size := range sizes {
				isBuy := i < len(buys) && buys[i]
				e.OnTrade(trade(i, isBuy, float64(size), 1.5))
				if e.CurrentSize(token).IsNegative() {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.Int64Range(0, 1000)),
		gen.SliceOf(gen.Bool()),
	))

	properties.Property("selling at the cost basis makes no profit", prop.ForAll(
		func(buySizes []int64, sellSize int64) bool {
			var buf bytes.Buffer
			e := newTestEngine(&buf)
			for i, size := range buySizes {
				e.OnTrade(trade(i, true, float64(size), float64(i%7+1)))
			}
			sell := trade(len(buySizes), false, float64(sellSize), 0)
			sell.Price = e.CurrentAvgPrice(token)
			e.OnTrade(sell)
			return e.TotalProfit().Abs().LessThan(decimal.New(1, -9))
		},
		gen.SliceOfN(5, gen.Int64Range(1, 1000)),
		gen.Int64Range(0, 5000),
	))

	properties.TestingRun(t)
}
