package storage

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/address-ranker/internal/errors"
	"github.com/address-ranker/internal/models"
	"github.com/address-ranker/internal/types"
)

const (
	testAddr1 = "0x1111111111111111111111111111111111111111"
	testAddr2 = "0x2222222222222222222222222222222222222222"
)

func snapshotAt(address string, ts time.Time, holdings ...types.PctAnnotatedHolding) *models.AddressSnapshot {
	total := decimal.Zero
	for i := range holdings {
		holdings[i].Timestamp = ts.Unix()
		total = total.Add(holdings[i].ValueUSD)
	}
	return &models.AddressSnapshot{
		Address:        address,
		BlockchainType: types.BlockchainTypeEVM,
		Holdings:       holdings,
		TotalValueUSD:  total,
		Timestamp:      ts,
	}
}

func holding(symbol string, amount, price, pct float64) types.PctAnnotatedHolding {
	return types.PctAnnotatedHolding{
		UsdValuedHolding: types.NewUsdValuedHolding(symbol, decimal.NewFromFloat(amount), decimal.NewFromFloat(price)),
		ValuePct:         decimal.NewFromFloat(pct),
	}
}

func TestAddressRepository(t *testing.T) {
	db := openTestPostgres(t)
	repo := NewAddressRepository(db)
	ctx := testContext(t)

	addr := &models.Address{Address: "0xAbC0000000000000000000000000000000000001"}
	require.NoError(t, repo.Create(ctx, addr))
	assert.Equal(t, "0xabc0000000000000000000000000000000000001", addr.Address)
	assert.Equal(t, types.BlockchainTypeEVM, addr.BlockchainType)
	assert.False(t, addr.CreatedAt.IsZero())

	err := repo.Create(ctx, &models.Address{Address: addr.Address})
	assert.Equal(t, apperrors.CodeAddressAlreadyExists, apperrors.Categorize(err).Code)

	got, err := repo.Get(ctx, "0xABC0000000000000000000000000000000000001")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, addr.Address, got.Address)

	missing, err := repo.Get(ctx, testAddr2)
	require.NoError(t, err)
	assert.Nil(t, missing)

	exists, err := repo.Exists(ctx, addr.Address)
	require.NoError(t, err)
	assert.True(t, exists)

	list, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, repo.Delete(ctx, addr.Address))
	assert.Error(t, repo.Delete(ctx, addr.Address))
}

func TestSnapshotRepository(t *testing.T) {
	db := openTestPostgres(t)
	ctx := testContext(t)
	require.NoError(t, NewAddressRepository(db).Create(ctx, &models.Address{Address: testAddr1}))
	repo := NewSnapshotRepository(db)

	t1 := time.Date(2022, 1, 1, 1, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)

	first := snapshotAt(testAddr1, t1, holding("ETH", 1, 3000, 75), holding("USDC", 1000, 1, 25))
	second := snapshotAt(testAddr1, t2, holding("ETH", 2, 3100, 100))
	require.NoError(t, repo.Save(ctx, first, uuid.New()))
	require.NoError(t, repo.Save(ctx, second, uuid.New()))

	last, err := repo.FindLastSnapshot(ctx, testAddr1)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.True(t, last.Timestamp.Equal(t2))
	require.Len(t, last.Holdings, 1)
	assert.True(t, last.Holdings[0].Amount.Equal(decimal.NewFromInt(2)))
	assert.True(t, last.TotalValueUSD.Equal(decimal.NewFromInt(6200)))

	at, err := repo.FindSnapshotAt(ctx, testAddr1, t2.Add(-time.Minute))
	require.NoError(t, err)
	require.NotNil(t, at)
	assert.True(t, at.Timestamp.Equal(t1))
	require.Len(t, at.Holdings, 2)
	assert.Equal(t, "ETH", at.Holdings[0].Symbol)
	assert.True(t, at.Holdings[1].ValuePct.Equal(decimal.NewFromInt(25)))
	assert.Equal(t, t1.Unix(), at.Holdings[1].Timestamp)

	before, err := repo.FindSnapshotAt(ctx, testAddr1, t1.Add(-time.Second))
	require.NoError(t, err)
	assert.Nil(t, before)

	none, err := repo.FindLastSnapshot(ctx, testAddr2)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestPerformanceRepository(t *testing.T) {
	db := openTestPostgres(t)
	ctx := testContext(t)
	addresses := NewAddressRepository(db)
	require.NoError(t, addresses.Create(ctx, &models.Address{Address: testAddr1}))
	require.NoError(t, addresses.Create(ctx, &models.Address{Address: testAddr2}))
	repo := NewPerformanceRepository(db)

	t0 := time.Date(2022, 1, 1, 1, 0, 0, 0, time.UTC)
	save := func(address string, start time.Time, perf string) {
		require.NoError(t, repo.Save(ctx, &models.PerformanceResult{
			Address:     address,
			StartTime:   start,
			EndTime:     start.Add(time.Hour),
			Performance: decimal.RequireFromString(perf),
		}))
	}
	save(testAddr1, t0, "1.5")
	save(testAddr1, t0.Add(time.Hour), "-0.25")
	save(testAddr2, t0, "0.123456789012345678")
	save(testAddr1, t0, "2") // replaces the first result

	own, err := repo.FindInWindow(ctx, testAddr1, t0, t0.Add(2*time.Hour))
	require.NoError(t, err)
	require.Len(t, own, 2)
	assert.True(t, own[0].Performance.Equal(decimal.NewFromInt(2)))
	assert.True(t, own[1].Performance.Equal(decimal.RequireFromString("-0.25")))

	all, err := repo.FindAllInWindow(ctx, t0, t0.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, testAddr2, all[1].Address)
	assert.Equal(t, "0.123456789012345678", all[1].Performance.String())
}

func TestRankRepository(t *testing.T) {
	db := openTestPostgres(t)
	ctx := testContext(t)
	repo := NewRankRepository(db)
	at := time.Date(2022, 1, 1, 1, 0, 0, 0, time.UTC)

	ranks := []models.AddressPerformanceRank{
		{Address: testAddr1, RankingType: types.RankingHour, Time: at, AvgPerformance: decimal.NewFromInt(1), Rank: 1},
		{Address: testAddr2, RankingType: types.RankingHour, Time: at, AvgPerformance: decimal.RequireFromString("0.5"), Rank: 2},
	}
	require.NoError(t, repo.SaveAddressRanks(ctx, types.RankingHour, at, ranks))
	require.NoError(t, repo.SaveAddressRanks(ctx, types.RankingHour, at, ranks))

	got, err := repo.FindAddressRanks(ctx, at, types.RankingHour)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, testAddr1, got[0].Address)
	assert.Equal(t, types.RankingHour, got[0].RankingType)

	day, err := repo.FindAddressRanks(ctx, at, types.RankingDay)
	require.NoError(t, err)
	assert.Empty(t, day)

	coins := []models.CoinChangeRank{
		{Time: at, Rank: 1, Symbol: "ETH", PctChange: decimal.NewFromInt(10), RankingType: types.RankingDay},
	}
	require.NoError(t, repo.SaveCoinRanks(ctx, types.RankingDay, at, coins))
	gotCoins, err := repo.FindCoinRanks(ctx, at, types.RankingDay)
	require.NoError(t, err)
	require.Len(t, gotCoins, 1)
	assert.True(t, gotCoins[0].PctChange.Equal(decimal.NewFromInt(10)))
}

func TestTraderRepository(t *testing.T) {
	db := openTestPostgres(t)
	ctx := testContext(t)
	repo := NewTraderRepository(db)

	missing, err := repo.Get(ctx, testAddr1)
	require.NoError(t, err)
	assert.Nil(t, missing)

	update := &models.TraderUpdate{
		Trader:     testAddr1,
		ComputedAt: time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	update.Export.NumberOfTrades = 3
	update.Export.SumProfit = decimal.RequireFromString("12.5")
	require.NoError(t, repo.Save(ctx, update))

	got, err := repo.Get(ctx, testAddr1)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 3, got.Export.NumberOfTrades)
	assert.True(t, got.Export.SumProfit.Equal(decimal.RequireFromString("12.5")))
}
