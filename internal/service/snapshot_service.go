package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"

	"github.com/address-ranker/internal/adapter"
	apperrors "github.com/address-ranker/internal/errors"
	"github.com/address-ranker/internal/logging"
	"github.com/address-ranker/internal/models"
	"github.com/address-ranker/internal/monitor"
	"github.com/address-ranker/internal/performance"
	"github.com/address-ranker/internal/ratelimit"
	"github.com/address-ranker/internal/storage"
)

// Outcome of one address in an update cycle
type Outcome string

const (
	OutcomeCaptured Outcome = "captured"
	OutcomeSkipped  Outcome = "skipped"
	OutcomeFailed   Outcome = "failed"
)

// SnapshotServiceConfig configures the update cycle
type SnapshotServiceConfig struct {
	Concurrency int
	Pacer       *ratelimit.Pacer
}

// SnapshotService captures a snapshot of every tracked address per run and
// scores it against the address's previous snapshot
type SnapshotService struct {
	addresses    AddressStore
	provider     adapter.AssetProvider
	snapshots    SnapshotStore
	history      HistoryStore
	performances PerformanceStore
	cache        Cache
	pacer        *ratelimit.Pacer
	concurrency  int
	logger       *logging.Logger
	now          func() time.Time
}

// NewSnapshotService creates a new snapshot service. history and cache are optional.
func NewSnapshotService(
	addresses AddressStore,
	provider adapter.AssetProvider,
	snapshots SnapshotStore,
	history HistoryStore,
	performances PerformanceStore,
	cache Cache,
	cfg SnapshotServiceConfig,
	logger *logging.Logger,
) *SnapshotService {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.Pacer == nil {
		cfg.Pacer, _ = ratelimit.NewPacer(nil)
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &SnapshotService{
		addresses:    addresses,
		provider:     provider,
		snapshots:    snapshots,
		history:      history,
		performances: performances,
		cache:        cache,
		pacer:        cfg.Pacer,
		concurrency:  cfg.Concurrency,
		logger:       logger.WithField("component", "snapshot_service"),
		now:          time.Now,
	}
}

// CycleResult summarizes an update cycle
type CycleResult struct {
	RunID     uuid.UUID `json:"runId"`
	RunTime   time.Time `json:"runTime"`
	Addresses int       `json:"addresses"`
	Captured  int       `json:"captured"`
	Skipped   int       `json:"skipped"`
	Failed    int       `json:"failed"`
}

// RunUpdateCycle updates every tracked address under one run id and timestamp.
// A failing address is logged and counted; it never stops the cycle.
func (s *SnapshotService) RunUpdateCycle(ctx context.Context) (*CycleResult, error) {
	start := time.Now()
	defer func() {
		monitor.UpdateCycleDuration.Observe(time.Since(start).Seconds())
	}()

	addresses, err := s.addresses.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list addresses: %w", err)
	}

	result := &CycleResult{
		RunID:     uuid.New(),
		RunTime:   s.now().UTC(),
		Addresses: len(addresses),
	}
	logger := s.logger.WithFields(map[string]interface{}{
		"run_id":    result.RunID.String(),
		"addresses": len(addresses),
	})
	logger.Info("Starting update cycle")

	var mu sync.Mutex
	p := pool.New().WithMaxGoroutines(s.concurrency)
	for i, addr := range addresses {
		if i > 0 {
			if err := s.pacer.Pause(ctx); err != nil {
				break
			}
		}
		if ctx.Err() != nil {
			break
		}

		p.Go(func() {
			outcome := s.UpdateAddress(ctx, result.RunID, result.RunTime, addr.Address)
			mu.Lock()
			defer mu.Unlock()
			switch outcome {
			case OutcomeCaptured:
				result.Captured++
			case OutcomeSkipped:
				result.Skipped++
			default:
				result.Failed++
			}
		})
	}
	p.Wait()

	logger.WithFields(map[string]interface{}{
		"captured": result.Captured,
		"skipped":  result.Skipped,
		"failed":   result.Failed,
		"duration": time.Since(start).String(),
	}).Info("Update cycle complete")

	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

// UpdateAddress fetches, stores and scores one address
func (s *SnapshotService) UpdateAddress(ctx context.Context, runID uuid.UUID, runTime time.Time, address string) Outcome {
	address = strings.ToLower(address)
	logger := s.logger.WithFields(map[string]interface{}{
		"address": address,
		"run_id":  runID.String(),
	})

	previous, err := s.snapshots.FindLastSnapshot(ctx, address)
	if err != nil {
		logger.WithError(err).Error("Failed to load previous snapshot")
		monitor.SnapshotsFailed.Inc()
		return OutcomeFailed
	}

	snapshot, err := s.provider.FetchSnapshot(ctx, address, runTime)
	if err != nil {
		if ctx.Err() != nil {
			return OutcomeSkipped
		}
		s.pacer.RecordFailure()
		if stderrors.Is(err, apperrors.ErrMissingData) {
			logger.WithError(err).Info("No data received, skipping address for this run")
			monitor.SnapshotsSkipped.WithLabelValues("missing_data").Inc()
			return OutcomeSkipped
		}
		logger.WithError(err).Warn("Failed to fetch holdings")
		monitor.SnapshotsFailed.Inc()
		return OutcomeFailed
	}
	s.pacer.RecordSuccess()

	if snapshot.IsEmpty() {
		logger.Info("No holdings received, skipping address for this run")
		monitor.SnapshotsSkipped.WithLabelValues("missing_data").Inc()
		return OutcomeSkipped
	}

	if err := s.snapshots.Save(ctx, snapshot, runID); err != nil {
		logger.WithError(err).Error("Failed to save snapshot")
		monitor.SnapshotsFailed.Inc()
		return OutcomeFailed
	}
	monitor.SnapshotsCaptured.Inc()

	if s.history != nil {
		if err := s.history.SaveBatch(ctx, storage.HistoryPoints(snapshot, runID)); err != nil {
			logger.WithError(err).Warn("Failed to append holding history")
		}
	}
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, s.cache.SnapshotKey(address)); err != nil {
			logger.WithError(err).Warn("Failed to invalidate cached snapshot")
		}
	}

	if previous.IsEmpty() {
		logger.Debug("No previous snapshot to compare with")
		return OutcomeCaptured
	}

	result := Score(previous, snapshot)
	if err := s.performances.Save(ctx, result); err != nil {
		logger.WithError(err).Error("Failed to save performance result")
		return OutcomeCaptured
	}

	logger.WithFields(map[string]interface{}{
		"holdings":    len(snapshot.Holdings),
		"performance": result.Performance.String(),
	}).Debug("Address updated")
	return OutcomeCaptured
}

// Score compares two snapshots of the same address
func Score(previous, current *models.AddressSnapshot) *models.PerformanceResult {
	return &models.PerformanceResult{
		Address:     current.Address,
		StartTime:   previous.Timestamp.UTC(),
		EndTime:     current.Timestamp.UTC(),
		Performance: performance.CalculatePerformance(previous.Holdings, current.Holdings),
	}
}
