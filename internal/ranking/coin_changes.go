package ranking

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/address-ranker/internal/logging"
	"github.com/address-ranker/internal/models"
	"github.com/address-ranker/internal/types"
)

// SnapshotLookup returns the latest snapshot of an address taken at or before t.
// A nil snapshot means the address has no snapshot that early.
type SnapshotLookup interface {
	FindSnapshotAt(ctx context.Context, address string, t time.Time) (*models.AddressSnapshot, error)
}

// CoinChange is the average allocation change of one symbol across the population
type CoinChange struct {
	Symbol    string          `json:"symbol"`
	PctChange decimal.Decimal `json:"pctChange"`
	Rank      int             `json:"rank"`
}

// ComputeCoinChanges averages, over all addresses, the change in each symbol's
// value_pct between the snapshots nearest before start and end.
//
// Addresses missing either snapshot are skipped but still count towards the divisor.
func ComputeCoinChanges(ctx context.Context, addresses []string, lookup SnapshotLookup, start, end time.Time) ([]CoinChange, error) {
	logger := logging.FromContext(ctx)

	if len(addresses) == 0 {
		logger.Warn("No addresses to compute coin changes for")
		return []CoinChange{}, nil
	}

	sums := make(map[string]decimal.Decimal)
	for _, address := range addresses {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		startSnap, err := lookup.FindSnapshotAt(ctx, address, start)
		if err != nil {
			logger.WithField("address", address).WithError(err).Warn("Failed to load start snapshot, skipping address")
			continue
		}
		endSnap, err := lookup.FindSnapshotAt(ctx, address, end)
		if err != nil {
			logger.WithField("address", address).WithError(err).Warn("Failed to load end snapshot, skipping address")
			continue
		}
		if startSnap.IsEmpty() || endSnap.IsEmpty() {
			logger.WithField("address", address).Debug("Missing snapshot for coin change window, skipping address")
			continue
		}

		for symbol, delta := range symbolDeltas(startSnap.Holdings, endSnap.Holdings) {
			sums[symbol] = sums[symbol].Add(delta)
		}
	}

	divisor := decimal.NewFromInt(int64(len(addresses)))
	changes := make([]CoinChange, 0, len(sums))
	for symbol, sum := range sums {
		changes = append(changes, CoinChange{Symbol: symbol, PctChange: sum.Div(divisor)})
	}

	sort.Slice(changes, func(i, j int) bool {
		if c := changes[i].PctChange.Cmp(changes[j].PctChange); c != 0 {
			return c > 0
		}
		return changes[i].Symbol < changes[j].Symbol
	})
	for i := range changes {
		changes[i].Rank = i + 1
	}
	return changes, nil
}

// symbolDeltas returns end.value_pct - start.value_pct per exact symbol, a
// missing side counting as zero. A symbol repeated within one snapshot keeps
// its last value_pct.
func symbolDeltas(start, end []types.PctAnnotatedHolding) map[string]decimal.Decimal {
	before := lastValuePct(start)
	after := lastValuePct(end)

	deltas := make(map[string]decimal.Decimal, len(before)+len(after))
	for symbol, pct := range before {
		deltas[symbol] = after[symbol].Sub(pct)
	}
	for symbol, pct := range after {
		if _, ok := before[symbol]; !ok {
			deltas[symbol] = pct
		}
	}
	return deltas
}

func lastValuePct(holdings []types.PctAnnotatedHolding) map[string]decimal.Decimal {
	pcts := make(map[string]decimal.Decimal, len(holdings))
	for _, h := range holdings {
		pcts[h.Symbol] = h.ValuePct
	}
	return pcts
}

// ToCoinChangeRanks prepares coin changes for storage under one ranking run
func ToCoinChangeRanks(changes []CoinChange, rankingType types.RankingType, saveTime time.Time) []models.CoinChangeRank {
	ranks := make([]models.CoinChangeRank, 0, len(changes))
	for _, c := range changes {
		ranks = append(ranks, models.CoinChangeRank{
			Time:        saveTime.UTC(),
			Rank:        c.Rank,
			Symbol:      c.Symbol,
			PctChange:   c.PctChange,
			RankingType: rankingType,
		})
	}
	return ranks
}
