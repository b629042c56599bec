package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/address-ranker/internal/logging"
	"github.com/address-ranker/internal/models"
	"github.com/address-ranker/internal/monitor"
	"github.com/address-ranker/internal/performance"
	"github.com/address-ranker/internal/ranking"
	"github.com/address-ranker/internal/types"
)

const (
	rankKindAddress = "address"
	rankKindCoin    = "coin"
)

// RankingService runs the HOUR and DAY address and coin change rankings
type RankingService struct {
	addresses    AddressStore
	performances PerformanceStore
	snapshots    SnapshotStore
	ranks        RankStore
	cache        Cache
	logger       *logging.Logger
	now          func() time.Time
}

// NewRankingService creates a new ranking service. cache is optional.
func NewRankingService(addresses AddressStore, performances PerformanceStore, snapshots SnapshotStore, ranks RankStore, cache Cache, logger *logging.Logger) *RankingService {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &RankingService{
		addresses:    addresses,
		performances: performances,
		snapshots:    snapshots,
		ranks:        ranks,
		cache:        cache,
		logger:       logger.WithField("component", "ranking_service"),
		now:          time.Now,
	}
}

// RankingResult is the outcome of one ranking run
type RankingResult struct {
	RankingType  types.RankingType               `json:"rankingType"`
	SaveTime     time.Time                       `json:"saveTime"`
	WindowStart  time.Time                       `json:"windowStart"`
	WindowEnd    time.Time                       `json:"windowEnd"`
	AddressRanks []models.AddressPerformanceRank `json:"addressRanks"`
	CoinRanks    []models.CoinChangeRank         `json:"coinRanks"`
}

// RunRanking computes and stores both rankings for the window ending now.
// A failure of one ranking does not prevent the other.
func (s *RankingService) RunRanking(ctx context.Context, rankingType types.RankingType) (*RankingResult, error) {
	now := s.now().UTC()
	start, end, err := performance.ComparisonWindow(rankingType, now)
	if err != nil {
		return nil, err
	}
	saveTime, err := performance.SavingTime(rankingType, now)
	if err != nil {
		return nil, err
	}

	result := &RankingResult{
		RankingType: rankingType,
		SaveTime:    saveTime,
		WindowStart: start,
		WindowEnd:   end,
	}
	logger := s.logger.WithFields(map[string]interface{}{
		"ranking_type": string(rankingType),
		"window_start": start.Format(time.RFC3339),
		"window_end":   end.Format(time.RFC3339),
		"save_time":    saveTime.Format(time.RFC3339),
	})
	ctx = logging.WithLogger(ctx, logger)

	addressRanks, addrErr := s.rankAddresses(ctx, rankingType, start, end, saveTime)
	result.AddressRanks = addressRanks
	coinRanks, coinErr := s.rankCoins(ctx, rankingType, start, end, saveTime)
	result.CoinRanks = coinRanks

	if err := stderrors.Join(addrErr, coinErr); err != nil {
		return result, err
	}

	logger.WithFields(map[string]interface{}{
		"addresses": len(result.AddressRanks),
		"coins":     len(result.CoinRanks),
	}).Info("Ranking run complete")
	return result, nil
}

func (s *RankingService) rankAddresses(ctx context.Context, rankingType types.RankingType, start, end, saveTime time.Time) (ranks []models.AddressPerformanceRank, err error) {
	defer s.observe(rankingType, rankKindAddress, time.Now(), &err)

	results, err := s.performances.FindAllInWindow(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to load performance results: %w", err)
	}

	ranks = ranking.RankAddresses(ranking.AverageByAddress(results), rankingType, saveTime)
	if err := s.ranks.SaveAddressRanks(ctx, rankingType, saveTime, ranks); err != nil {
		return ranks, fmt.Errorf("failed to save address ranks: %w", err)
	}
	s.invalidate(ctx, rankKindAddress, rankingType, saveTime)
	return ranks, nil
}

func (s *RankingService) rankCoins(ctx context.Context, rankingType types.RankingType, start, end, saveTime time.Time) (ranks []models.CoinChangeRank, err error) {
	defer s.observe(rankingType, rankKindCoin, time.Now(), &err)

	tracked, err := s.addresses.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list addresses: %w", err)
	}
	addresses := make([]string, 0, len(tracked))
	for _, a := range tracked {
		addresses = append(addresses, a.Address)
	}

	changes, err := ranking.ComputeCoinChanges(ctx, addresses, s.snapshots, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to compute coin changes: %w", err)
	}

	ranks = ranking.ToCoinChangeRanks(changes, rankingType, saveTime)
	if err := s.ranks.SaveCoinRanks(ctx, rankingType, saveTime, ranks); err != nil {
		return ranks, fmt.Errorf("failed to save coin ranks: %w", err)
	}
	s.invalidate(ctx, rankKindCoin, rankingType, saveTime)
	return ranks, nil
}

func (s *RankingService) observe(rankingType types.RankingType, kind string, start time.Time, err *error) {
	status := "success"
	if *err != nil {
		status = "error"
		s.logger.WithError(*err).WithFields(map[string]interface{}{
			"ranking_type": string(rankingType),
			"kind":         kind,
		}).Error("Ranking failed")
	}
	monitor.RankingRuns.WithLabelValues(string(rankingType), kind, status).Inc()
	monitor.RankingDuration.WithLabelValues(string(rankingType), kind).Observe(time.Since(start).Seconds())
}

func (s *RankingService) invalidate(ctx context.Context, kind string, rankingType types.RankingType, saveTime time.Time) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, s.cache.RankingKey(kind, rankingType, saveTime)); err != nil {
		s.logger.WithError(err).Warn("Failed to invalidate cached ranking")
	}
}
