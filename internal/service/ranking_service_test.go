package service

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/address-ranker/internal/models"
	"github.com/address-ranker/internal/types"
)

func TestRankingService_RunRanking_Hour(t *testing.T) {
	now := time.Date(2022, 1, 1, 12, 30, 0, 0, time.UTC)
	windowStart := time.Date(2022, 1, 1, 11, 1, 1, 0, time.UTC)

	result := func(address string, minutes int, perf float64) models.PerformanceResult {
		start := windowStart.Add(time.Duration(minutes) * time.Minute)
		return models.PerformanceResult{
			Address:     address,
			StartTime:   start,
			EndTime:     start.Add(10 * time.Minute),
			Performance: decimal.NewFromFloat(perf),
		}
	}
	performances := &mockPerformanceStore{results: []models.PerformanceResult{
		result(addrA, 0, 1),
		result(addrA, 20, 1),
		result(addrB, 0, 0.5),
		result(addrB, 20, 0.5),
		// ends after the window
		result(addrB, 55, -10),
	}}

	snapshots := newMockSnapshotStore()
	snapshots.atFn = func(ctx context.Context, address string, at time.Time) (*models.AddressSnapshot, error) {
		if at.Equal(windowStart) {
			return snapshotOf(t, address, at, usd("ETH", 1, 50), usd("BTC", 1, 50)), nil
		}
		return snapshotOf(t, address, at, usd("ETH", 1, 75), usd("BTC", 1, 25)), nil
	}

	ranks := newMockRankStore()
	svc := NewRankingService(newMockAddressStore(addrA, addrB), performances, snapshots, ranks, nil, nil)
	svc.now = func() time.Time { return now }

	got, err := svc.RunRanking(context.Background(), types.RankingHour)
	require.NoError(t, err)

	saveTime := time.Date(2022, 1, 1, 11, 0, 0, 0, time.UTC)
	assert.Equal(t, saveTime, got.SaveTime)
	assert.Equal(t, windowStart, got.WindowStart)

	require.Len(t, got.AddressRanks, 2)
	assert.Equal(t, addrA, got.AddressRanks[0].Address)
	assert.Equal(t, 1, got.AddressRanks[0].Rank)
	assert.True(t, got.AddressRanks[0].AvgPerformance.Equal(decimal.NewFromInt(1)))
	assert.Equal(t, addrB, got.AddressRanks[1].Address)
	assert.Equal(t, 2, got.AddressRanks[1].Rank)
	assert.True(t, got.AddressRanks[1].AvgPerformance.Equal(decimal.NewFromFloat(0.5)))

	require.Len(t, got.CoinRanks, 2)
	assert.Equal(t, "ETH", got.CoinRanks[0].Symbol)
	assert.True(t, got.CoinRanks[0].PctChange.Equal(decimal.NewFromInt(25)), "got %s", got.CoinRanks[0].PctChange)
	assert.Equal(t, "BTC", got.CoinRanks[1].Symbol)

	assert.Len(t, ranks.addressRanks[rankStoreKey(types.RankingHour, saveTime)], 2)
	assert.Len(t, ranks.coinRanks[rankStoreKey(types.RankingHour, saveTime)], 2)
}

func TestRankingService_RunRanking_PartialFailure(t *testing.T) {
	performances := &mockPerformanceStore{err: stderrors.New("query canceled")}
	ranks := newMockRankStore()
	svc := NewRankingService(newMockAddressStore(), performances, newMockSnapshotStore(), ranks, nil, nil)

	got, err := svc.RunRanking(context.Background(), types.RankingDay)
	require.Error(t, err)
	assert.ErrorIs(t, err, performances.err)

	// coin ranking still ran, with nobody to rank
	require.NotNil(t, got)
	assert.Empty(t, got.CoinRanks)
	assert.Len(t, ranks.coinRanks, 1)
}

func TestRankingService_RunRanking_UnknownType(t *testing.T) {
	svc := NewRankingService(newMockAddressStore(), &mockPerformanceStore{}, newMockSnapshotStore(), newMockRankStore(), nil, nil)
	_, err := svc.RunRanking(context.Background(), types.RankingType("WEEK"))
	assert.Error(t, err)
}
