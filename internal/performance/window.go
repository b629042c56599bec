package performance

import (
	"fmt"
	"time"

	"github.com/address-ranker/internal/types"
)

// ComparisonWindow returns the [start, end] interval a ranking run of the
// given type compares over when executed at now.
//
// HOUR ends at minute 1 second 1 of the current hour and spans one hour.
// DAY covers the previous calendar day from 00:00:01 to 23:59:59.
func ComparisonWindow(rankingType types.RankingType, now time.Time) (time.Time, time.Time, error) {
	now = now.UTC()

	switch rankingType {
	case types.RankingHour:
		end := time.Date(now.Year(), now.Month(), now.Day(), now.Hour(), 1, 1, 0, time.UTC)
		return end.Add(-time.Hour), end, nil
	case types.RankingDay:
		prev := now.AddDate(0, 0, -1)
		start := time.Date(prev.Year(), prev.Month(), prev.Day(), 0, 0, 1, 0, time.UTC)
		end := time.Date(prev.Year(), prev.Month(), prev.Day(), 23, 59, 59, 0, time.UTC)
		return start, end, nil
	default:
		return time.Time{}, time.Time{}, fmt.Errorf("unknown ranking type %q", rankingType)
	}
}

// SavingTime returns the timestamp a ranking run executed at now is stored under.
// HOUR rankings are stored at the start of the previous hour, DAY rankings at
// the start of the previous day.
func SavingTime(rankingType types.RankingType, now time.Time) (time.Time, error) {
	now = now.UTC()

	switch rankingType {
	case types.RankingHour:
		return now.Add(-time.Hour).Truncate(time.Hour), nil
	case types.RankingDay:
		prev := now.AddDate(0, 0, -1)
		return time.Date(prev.Year(), prev.Month(), prev.Day(), 0, 0, 0, 0, time.UTC), nil
	default:
		return time.Time{}, fmt.Errorf("unknown ranking type %q", rankingType)
	}
}
