package performance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/address-ranker/internal/types"
)

func TestComparisonWindow_Hour(t *testing.T) {
	now := time.Date(2022, 1, 1, 2, 0, 11, 0, time.UTC)

	start, end, err := ComparisonWindow(types.RankingHour, now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2022, 1, 1, 1, 1, 1, 0, time.UTC), start)
	assert.Equal(t, time.Date(2022, 1, 1, 2, 1, 1, 0, time.UTC), end)
}

func TestComparisonWindow_HourAcrossMidnight(t *testing.T) {
	now := time.Date(2022, 1, 2, 0, 30, 0, 0, time.UTC)

	start, end, err := ComparisonWindow(types.RankingHour, now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2022, 1, 1, 23, 1, 1, 0, time.UTC), start)
	assert.Equal(t, time.Date(2022, 1, 2, 0, 1, 1, 0, time.UTC), end)
}

func TestComparisonWindow_Day(t *testing.T) {
	now := time.Date(2022, 1, 2, 0, 0, 1, 0, time.UTC)

	start, end, err := ComparisonWindow(types.RankingDay, now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2022, 1, 1, 0, 0, 1, 0, time.UTC), start)
	assert.Equal(t, time.Date(2022, 1, 1, 23, 59, 59, 0, time.UTC), end)
}

func TestComparisonWindow_NormalizesToUTC(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*60*60)
	now := time.Date(2022, 1, 1, 5, 0, 11, 0, loc)

	start, end, err := ComparisonWindow(types.RankingHour, now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2022, 1, 1, 1, 1, 1, 0, time.UTC), start)
	assert.Equal(t, time.Date(2022, 1, 1, 2, 1, 1, 0, time.UTC), end)
}

func TestComparisonWindow_UnknownType(t *testing.T) {
	_, _, err := ComparisonWindow(types.RankingType("WEEK"), time.Now())
	assert.Error(t, err)
}

func TestSavingTime(t *testing.T) {
	hour, err := SavingTime(types.RankingHour, time.Date(2022, 1, 1, 2, 0, 1, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2022, 1, 1, 1, 0, 0, 0, time.UTC), hour)

	day, err := SavingTime(types.RankingDay, time.Date(2022, 3, 1, 0, 5, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2022, 2, 28, 0, 0, 0, 0, time.UTC), day)

	_, err = SavingTime(types.RankingType(""), time.Now())
	assert.Error(t, err)
}
