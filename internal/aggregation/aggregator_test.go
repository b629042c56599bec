package aggregation

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/address-ranker/internal/errors"
	"github.com/address-ranker/internal/types"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func holding(symbol, amount, price string) types.UsdValuedHolding {
	return types.NewUsdValuedHolding(symbol, d(amount), d(price))
}

func TestCombine_MergesCaseInsensitiveSymbols(t *testing.T) {
	combined, err := Combine([]types.UsdValuedHolding{
		holding("ETH", "1", "1000"),
		holding("usdc", "50", "1"),
		holding("eth", "3", "2000"),
	})
	require.NoError(t, err)
	require.Len(t, combined, 2)

	eth := combined[0]
	assert.Equal(t, "ETH", eth.Symbol)
	assert.True(t, eth.Amount.Equal(d("4")), eth.Amount.String())
	assert.True(t, eth.ValueUSD.Equal(d("7000")), eth.ValueUSD.String())
	assert.True(t, eth.Price.Equal(d("1750")), eth.Price.String())

	assert.Equal(t, "usdc", combined[1].Symbol)
	assert.True(t, combined[1].ValueUSD.Equal(d("50")))
}

func TestCombine_ZeroAmountKeepsZeroPrice(t *testing.T) {
	combined, err := Combine([]types.UsdValuedHolding{
		{Symbol: "DUST", Amount: decimal.Zero, Price: d("3"), ValueUSD: decimal.Zero},
	})
	require.NoError(t, err)
	require.Len(t, combined, 1)
	assert.True(t, combined[0].Price.IsZero())
}

func TestCombine_Empty(t *testing.T) {
	combined, err := Combine(nil)
	require.NoError(t, err)
	assert.Empty(t, combined)
}

func TestCombineGroup_EmptyGroup(t *testing.T) {
	_, err := combineGroup("ETH", nil)
	assert.ErrorIs(t, err, ErrInvalidGrouping)

	catErr := apperrors.Categorize(fmt.Errorf("aggregate 0xabc: %w", err))
	assert.Equal(t, apperrors.CategoryDomain, catErr.Category)
	assert.Equal(t, apperrors.CodeInvalidGrouping, catErr.Code)
	assert.Equal(t, "ETH", catErr.Details["symbol"])
}

func TestAddPercentages(t *testing.T) {
	holdings := []types.UsdValuedHolding{
		holding("ETH", "1", "75"),
		holding("BTC", "1", "25"),
	}

	annotated := AddPercentages(holdings, d("100"), 1640995200)
	require.Len(t, annotated, 2)
	assert.True(t, annotated[0].ValuePct.Equal(d("75")))
	assert.True(t, annotated[1].ValuePct.Equal(d("25")))
	assert.Equal(t, int64(1640995200), annotated[1].Timestamp)
}

func TestAddPercentages_ZeroTotal(t *testing.T) {
	annotated := AddPercentages([]types.UsdValuedHolding{holding("ETH", "1", "0")}, decimal.Zero, 0)
	assert.NotNil(t, annotated)
	assert.Empty(t, annotated)

	assert.Empty(t, AddPercentages(nil, d("10"), 0))
}

func TestSortByValueDesc_Stable(t *testing.T) {
	holdings := []types.UsdValuedHolding{
		holding("A", "1", "10"),
		holding("B", "1", "30"),
		holding("C", "1", "10"),
		holding("D", "1", "20"),
	}

	sorted := SortByValueDesc(holdings)
	symbols := make([]string, 0, len(sorted))
	for _, h := range sorted {
		symbols = append(symbols, h.Symbol)
	}
	assert.Equal(t, []string{"B", "D", "A", "C"}, symbols)
	assert.Equal(t, "A", holdings[0].Symbol, "input must not be reordered")
}

func TestTotalValueUSD(t *testing.T) {
	total := TotalValueUSD([]types.UsdValuedHolding{
		holding("A", "2", "10"),
		holding("B", "1", "5.5"),
	})
	assert.True(t, total.Equal(d("25.5")))
}

func TestBuildSnapshot(t *testing.T) {
	runTime := time.Date(2022, 1, 1, 2, 0, 0, 0, time.UTC)

	snapshot, err := BuildSnapshot("0xABC", []types.UsdValuedHolding{
		holding("usdc", "25", "1"),
		holding("ETH", "0.05", "1000"),
		holding("eth", "0.025", "1000"),
		holding("SCAM", "1000", "0"),
	}, runTime)
	require.NoError(t, err)
	require.NotNil(t, snapshot)

	assert.Equal(t, "0xabc", snapshot.Address)
	assert.Equal(t, types.BlockchainTypeEVM, snapshot.BlockchainType)
	assert.True(t, snapshot.TotalValueUSD.Equal(d("100")))
	require.Len(t, snapshot.Holdings, 2)
	assert.Equal(t, "ETH", snapshot.Holdings[0].Symbol)
	assert.True(t, snapshot.Holdings[0].ValuePct.Equal(d("75")))
	assert.Equal(t, runTime.Unix(), snapshot.Holdings[0].Timestamp)
}

func TestBuildSnapshot_NothingPositive(t *testing.T) {
	snapshot, err := BuildSnapshot("0xabc", []types.UsdValuedHolding{holding("SCAM", "1", "0")}, time.Now())
	require.NoError(t, err)
	assert.Nil(t, snapshot)
}
