package api

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/address-ranker/internal/errors"
	"github.com/address-ranker/internal/types"
)

// defaultLookback is the range served when from is not given
const defaultLookback = 24 * time.Hour

// parseUnixParam reads a unix seconds query parameter, returning fallback when it is absent
func parseUnixParam(query url.Values, name string, fallback time.Time) (time.Time, error) {
	raw := strings.TrimSpace(query.Get(name))
	if raw == "" {
		return fallback, nil
	}
	seconds, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || seconds < 0 {
		return time.Time{}, apperrors.NewInvalidParameterError(name, "must be a unix timestamp in seconds")
	}
	return time.Unix(seconds, 0).UTC(), nil
}

// parseRange reads the from and to parameters, defaulting to the last day
func parseRange(query url.Values, now time.Time) (time.Time, time.Time, error) {
	to, err := parseUnixParam(query, "to", now.UTC())
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	from, err := parseUnixParam(query, "from", to.Add(-defaultLookback))
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return from, to, nil
}

// parseRankingType reads the type parameter, HOUR when absent
func parseRankingType(query url.Values) (types.RankingType, error) {
	raw := strings.TrimSpace(query.Get("type"))
	if raw == "" {
		return types.RankingHour, nil
	}
	rankingType, ok := types.ParseRankingType(raw)
	if !ok {
		return "", apperrors.NewInvalidParameterError("type", "must be HOUR or DAY")
	}
	return rankingType, nil
}
