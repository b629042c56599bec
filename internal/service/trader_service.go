package service

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/address-ranker/internal/adapter"
	"github.com/address-ranker/internal/backtest"
	apperrors "github.com/address-ranker/internal/errors"
	"github.com/address-ranker/internal/logging"
	"github.com/address-ranker/internal/models"
	"github.com/address-ranker/internal/monitor"
	"github.com/address-ranker/internal/types"
)

// TraderServiceConfig configures trader backtests
type TraderServiceConfig struct {
	Blockchain types.Blockchain
	Since      time.Time     // earliest swap to replay
	TTL        time.Duration // how long a stored export is served before recomputing
}

// TraderService replays a trader's swaps and stores the resulting export
type TraderService struct {
	feed   adapter.TradeFeed
	store  TraderStore
	cfg    TraderServiceConfig
	logger *logging.Logger
	now    func() time.Time
}

// NewTraderService creates a new trader service. store is optional.
func NewTraderService(feed adapter.TradeFeed, store TraderStore, cfg TraderServiceConfig, logger *logging.Logger) *TraderService {
	if cfg.Blockchain == "" {
		cfg.Blockchain = types.BlockchainETH
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &TraderService{
		feed:   feed,
		store:  store,
		cfg:    cfg,
		logger: logger.WithField("component", "trader_service"),
		now:    time.Now,
	}
}

// GetTrader returns the stored export of a trader while it is fresh, and
// computes a new one otherwise
func (s *TraderService) GetTrader(ctx context.Context, trader string) (*models.TraderUpdate, error) {
	if err := ValidateAddress(trader); err != nil {
		return nil, err
	}
	trader = strings.ToLower(trader)

	if s.store != nil {
		stored, err := s.store.Get(ctx, trader)
		if err != nil {
			s.logger.WithError(err).WithField("trader", trader).Warn("Failed to load stored trader export")
		} else if stored != nil && (s.cfg.TTL <= 0 || s.now().Sub(stored.ComputedAt) < s.cfg.TTL) {
			return stored, nil
		}
	}

	return s.Backtest(ctx, trader)
}

// Backtest fetches the trader's swaps, replays them and stores the export
func (s *TraderService) Backtest(ctx context.Context, trader string) (*models.TraderUpdate, error) {
	trader = strings.ToLower(trader)
	logger := s.logger.WithField("trader", trader)

	trades, err := s.feed.FetchTrades(ctx, trader, s.cfg.Since)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &apperrors.CategorizedError{
			Category:   apperrors.CategorySystem,
			StatusCode: http.StatusServiceUnavailable,
			Code:       apperrors.CodeTradeFeedUnavailable,
			Message:    "trade feed unavailable",
			Cause:      err,
			Details:    map[string]interface{}{"trader": trader},
		}
	}
	if len(trades) == 0 {
		return nil, apperrors.NewNotFoundError(apperrors.CodeTraderNotFound, "trader", trader)
	}

	export, err := ReplayTrades(s.cfg.Blockchain, trades)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to replay trades", err)
	}

	update := &models.TraderUpdate{
		Trader:     trader,
		ComputedAt: s.now().UTC(),
		Export:     export,
	}
	if s.store != nil {
		if err := s.store.Save(ctx, update); err != nil {
			logger.WithError(err).Warn("Failed to store trader export")
		}
	}

	logger.WithFields(map[string]interface{}{
		"trades":     export.NumberOfTrades,
		"sum_profit": export.SumProfit.String(),
	}).Info("Trader backtest complete")
	return update, nil
}

// ReplayTrades runs time-ascending trades through a fresh engine and summarizes them
func ReplayTrades(blockchain types.Blockchain, trades []backtest.SingleTrade) (backtest.TraderExport, error) {
	engine, err := backtest.Replay(blockchain, trades)
	if err != nil {
		return backtest.TraderExport{}, err
	}
	monitor.BacktestTrades.Add(float64(len(trades)))
	return engine.Export(), nil
}
