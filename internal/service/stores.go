// Package service implements the update cycle, ranking runs, trader backtests
// and the read paths served by the API.
package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/address-ranker/internal/models"
	"github.com/address-ranker/internal/types"
)

// AddressStore persists tracked addresses
type AddressStore interface {
	Create(ctx context.Context, address *models.Address) error
	Get(ctx context.Context, address string) (*models.Address, error)
	List(ctx context.Context) ([]models.Address, error)
}

// SnapshotStore persists address snapshots. Find methods return nil when nothing matches.
type SnapshotStore interface {
	Save(ctx context.Context, snapshot *models.AddressSnapshot, runID uuid.UUID) error
	FindLastSnapshot(ctx context.Context, address string) (*models.AddressSnapshot, error)
	FindSnapshotAt(ctx context.Context, address string, t time.Time) (*models.AddressSnapshot, error)
}

// HistoryStore is the append-only holding history
type HistoryStore interface {
	SaveBatch(ctx context.Context, points []models.HoldingHistoryPoint) error
	FindHistory(ctx context.Context, address, symbol string, from, to time.Time) ([]models.HoldingHistoryPoint, error)
}

// PerformanceStore persists performance results
type PerformanceStore interface {
	Save(ctx context.Context, result *models.PerformanceResult) error
	FindInWindow(ctx context.Context, address string, start, end time.Time) ([]models.PerformanceResult, error)
	FindAllInWindow(ctx context.Context, start, end time.Time) ([]models.PerformanceResult, error)
}

// RankStore persists ranking runs
type RankStore interface {
	SaveAddressRanks(ctx context.Context, rankingType types.RankingType, t time.Time, ranks []models.AddressPerformanceRank) error
	SaveCoinRanks(ctx context.Context, rankingType types.RankingType, t time.Time, ranks []models.CoinChangeRank) error
	FindAddressRanks(ctx context.Context, t time.Time, rankingType types.RankingType) ([]models.AddressPerformanceRank, error)
	FindCoinRanks(ctx context.Context, t time.Time, rankingType types.RankingType) ([]models.CoinChangeRank, error)
}

// TraderStore persists trader backtest exports
type TraderStore interface {
	Save(ctx context.Context, update *models.TraderUpdate) error
	Get(ctx context.Context, trader string) (*models.TraderUpdate, error)
}

// Cache is the JSON read cache in front of the stores
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}) error
	Invalidate(ctx context.Context, keys ...string) error
	InvalidatePattern(ctx context.Context, pattern string) error
	SnapshotKey(address string) string
	RankingKey(kind string, rankingType types.RankingType, at time.Time) string
}
