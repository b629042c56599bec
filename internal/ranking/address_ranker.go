// Package ranking orders addresses by average performance and symbols by
// population-wide allocation change.
package ranking

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/address-ranker/internal/models"
	"github.com/address-ranker/internal/types"
)

// AveragePerformance returns the mean performance of the results, or false when there are none
func AveragePerformance(results []models.PerformanceResult) (decimal.Decimal, bool) {
	if len(results) == 0 {
		return decimal.Zero, false
	}

	sum := decimal.Zero
	for _, r := range results {
		sum = sum.Add(r.Performance)
	}
	return sum.Div(decimal.NewFromInt(int64(len(results)))), true
}

// AverageByAddress groups results by address and averages each group
func AverageByAddress(results []models.PerformanceResult) map[string]decimal.Decimal {
	grouped := make(map[string][]models.PerformanceResult)
	for _, r := range results {
		grouped[r.Address] = append(grouped[r.Address], r)
	}

	averages := make(map[string]decimal.Decimal, len(grouped))
	for address, group := range grouped {
		if avg, ok := AveragePerformance(group); ok {
			averages[address] = avg
		}
	}
	return averages
}

// RankAddresses orders addresses by average performance, best first, and
// assigns 1-based ranks. Equal averages are ordered by address.
func RankAddresses(avgByAddress map[string]decimal.Decimal, rankingType types.RankingType, saveTime time.Time) []models.AddressPerformanceRank {
	ranks := make([]models.AddressPerformanceRank, 0, len(avgByAddress))
	for address, avg := range avgByAddress {
		ranks = append(ranks, models.AddressPerformanceRank{
			Address:        address,
			RankingType:    rankingType,
			Time:           saveTime.UTC(),
			AvgPerformance: avg,
		})
	}

	sort.Slice(ranks, func(i, j int) bool {
		if c := ranks[i].AvgPerformance.Cmp(ranks[j].AvgPerformance); c != 0 {
			return c > 0
		}
		return ranks[i].Address < ranks[j].Address
	})

	for i := range ranks {
		ranks[i].Rank = i + 1
	}
	return ranks
}
