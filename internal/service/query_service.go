package service

import (
	"context"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/address-ranker/internal/errors"
	"github.com/address-ranker/internal/logging"
	"github.com/address-ranker/internal/models"
	"github.com/address-ranker/internal/monitor"
	"github.com/address-ranker/internal/types"
)

// QueryService serves the read paths of the API, with a cache in front of
// the latest snapshot and the stored rankings
type QueryService struct {
	snapshots    SnapshotStore
	history      HistoryStore
	performances PerformanceStore
	ranks        RankStore
	cache        Cache
	logger       *logging.Logger
}

// NewQueryService creates a new query service. history and cache are optional.
func NewQueryService(snapshots SnapshotStore, history HistoryStore, performances PerformanceStore, ranks RankStore, cache Cache, logger *logging.Logger) *QueryService {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &QueryService{
		snapshots:    snapshots,
		history:      history,
		performances: performances,
		ranks:        ranks,
		cache:        cache,
		logger:       logger.WithField("component", "query_service"),
	}
}

// cached returns the cached value under key, or loads and caches it
func cached[T any](ctx context.Context, s *QueryService, keyType, key string, load func() (T, error)) (T, error) {
	if s.cache != nil {
		var value T
		hit, err := s.cache.Get(ctx, key, &value)
		if err != nil {
			s.logger.WithError(err).WithField("key", key).Warn("Cache read failed")
		}
		if hit {
			monitor.CacheLookups.WithLabelValues(keyType, "hit").Inc()
			return value, nil
		}
		monitor.CacheLookups.WithLabelValues(keyType, "miss").Inc()
	}

	value, err := load()
	if err != nil {
		return value, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, value); err != nil {
			s.logger.WithError(err).WithField("key", key).Warn("Cache write failed")
		}
	}
	return value, nil
}

// LatestSnapshot returns the most recent snapshot of an address
func (s *QueryService) LatestSnapshot(ctx context.Context, address string) (*models.AddressSnapshot, error) {
	if err := ValidateAddress(address); err != nil {
		return nil, err
	}
	address = strings.ToLower(address)

	key := address
	if s.cache != nil {
		key = s.cache.SnapshotKey(address)
	}
	snapshot, err := cached(ctx, s, "snapshot", key, func() (*models.AddressSnapshot, error) {
		snapshot, err := s.snapshots.FindLastSnapshot(ctx, address)
		if err != nil {
			return nil, apperrors.NewDatabaseError("find last snapshot", err)
		}
		if snapshot == nil {
			return nil, apperrors.NewNotFoundError(apperrors.CodeSnapshotNotFound, "snapshot", address)
		}
		return snapshot, nil
	})
	if err != nil {
		return nil, err
	}
	return snapshot, nil
}

// SnapshotAt returns the latest snapshot of an address taken at or before t
func (s *QueryService) SnapshotAt(ctx context.Context, address string, t time.Time) (*models.AddressSnapshot, error) {
	if err := ValidateAddress(address); err != nil {
		return nil, err
	}
	address = strings.ToLower(address)

	snapshot, err := s.snapshots.FindSnapshotAt(ctx, address, t)
	if err != nil {
		return nil, apperrors.NewDatabaseError("find snapshot", err)
	}
	if snapshot == nil {
		return nil, apperrors.NewNotFoundError(apperrors.CodeSnapshotNotFound, "snapshot", address)
	}
	return snapshot, nil
}

// History returns the holding history of an address. An empty symbol returns every symbol.
func (s *QueryService) History(ctx context.Context, address, symbol string, from, to time.Time) ([]models.HoldingHistoryPoint, error) {
	if err := ValidateAddress(address); err != nil {
		return nil, err
	}
	if err := validateRange(from, to); err != nil {
		return nil, err
	}
	if s.history == nil {
		return nil, &apperrors.CategorizedError{
			Category:   apperrors.CategorySystem,
			StatusCode: http.StatusServiceUnavailable,
			Code:       apperrors.CodeHistoryUnavailable,
			Message:    "holding history is not enabled",
		}
	}

	points, err := s.history.FindHistory(ctx, strings.ToLower(address), symbol, from, to)
	if err != nil {
		return nil, apperrors.NewDatabaseError("find holding history", err)
	}
	return points, nil
}

// Performance returns the performance results of an address inside [from, to]
func (s *QueryService) Performance(ctx context.Context, address string, from, to time.Time) ([]models.PerformanceResult, error) {
	if err := ValidateAddress(address); err != nil {
		return nil, err
	}
	if err := validateRange(from, to); err != nil {
		return nil, err
	}

	results, err := s.performances.FindInWindow(ctx, strings.ToLower(address), from, to)
	if err != nil {
		return nil, apperrors.NewDatabaseError("find performance results", err)
	}
	return results, nil
}

// AddressRanks returns the address ranking stored under rankingType and t
func (s *QueryService) AddressRanks(ctx context.Context, rankingType types.RankingType, t time.Time) ([]models.AddressPerformanceRank, error) {
	return cached(ctx, s, "ranking", s.rankingKey(rankKindAddress, rankingType, t), func() ([]models.AddressPerformanceRank, error) {
		ranks, err := s.ranks.FindAddressRanks(ctx, t, rankingType)
		if err != nil {
			return nil, apperrors.NewDatabaseError("find address ranks", err)
		}
		return ranks, nil
	})
}

// CoinRanks returns the coin change ranking stored under rankingType and t
func (s *QueryService) CoinRanks(ctx context.Context, rankingType types.RankingType, t time.Time) ([]models.CoinChangeRank, error) {
	return cached(ctx, s, "ranking", s.rankingKey(rankKindCoin, rankingType, t), func() ([]models.CoinChangeRank, error) {
		ranks, err := s.ranks.FindCoinRanks(ctx, t, rankingType)
		if err != nil {
			return nil, apperrors.NewDatabaseError("find coin ranks", err)
		}
		return ranks, nil
	})
}

func (s *QueryService) rankingKey(kind string, rankingType types.RankingType, t time.Time) string {
	if s.cache == nil {
		return ""
	}
	return s.cache.RankingKey(kind, rankingType, t)
}

func validateRange(from, to time.Time) error {
	if to.Before(from) {
		return apperrors.NewInvalidParameterError("to", "must not be before from")
	}
	return nil
}
