package api

import (
	"net/http"
	"time"

	"github.com/address-ranker/internal/performance"
	"github.com/address-ranker/internal/types"
)

// rankingParams reads the ranking type and time. Without a time the latest
// completed run of that type is served.
func (s *Server) rankingParams(r *http.Request) (types.RankingType, time.Time, error) {
	query := r.URL.Query()
	rankingType, err := parseRankingType(query)
	if err != nil {
		return "", time.Time{}, err
	}

	latest, err := performance.SavingTime(rankingType, s.now())
	if err != nil {
		return "", time.Time{}, err
	}
	at, err := parseUnixParam(query, "time", latest)
	if err != nil {
		return "", time.Time{}, err
	}
	return rankingType, at, nil
}

// handleGetAddressRanks handles GET /api/rankings/addresses?type=&time=
func (s *Server) handleGetAddressRanks(w http.ResponseWriter, r *http.Request) {
	rankingType, at, err := s.rankingParams(r)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	ranks, err := s.queryService.AddressRanks(r.Context(), rankingType, at)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"rankingType": rankingType,
		"time":        at.Unix(),
		"ranks":       ranks,
	})
}

// handleGetCoinRanks handles GET /api/rankings/coins?type=&time=
func (s *Server) handleGetCoinRanks(w http.ResponseWriter, r *http.Request) {
	rankingType, at, err := s.rankingParams(r)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	ranks, err := s.queryService.CoinRanks(r.Context(), rankingType, at)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"rankingType": rankingType,
		"time":        at.Unix(),
		"ranks":       ranks,
	})
}
