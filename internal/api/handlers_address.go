package api

import (
	"net/http"

	"github.com/gorilla/mux"

	apperrors "github.com/address-ranker/internal/errors"
)

// handleAddAddress handles POST /api/addresses
func (s *Server) handleAddAddress(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Address string `json:"address"`
	}
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, apperrors.CodeInvalidParameter, "Invalid request body", nil)
		return
	}

	address, err := s.addressService.AddAddress(r.Context(), req.Address)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, address)
}

// handleListAddresses handles GET /api/addresses
func (s *Server) handleListAddresses(w http.ResponseWriter, r *http.Request) {
	addresses, err := s.addressService.ListAddresses(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"addresses": addresses,
		"count":     len(addresses),
	})
}

// handleGetLatestSnapshot handles GET /api/addresses/{address}
func (s *Server) handleGetLatestSnapshot(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.queryService.LatestSnapshot(r.Context(), mux.Vars(r)["address"])
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, snapshot)
}

// handleGetSnapshotAt handles GET /api/addresses/{address}/snapshot?at=
func (s *Server) handleGetSnapshotAt(w http.ResponseWriter, r *http.Request) {
	at, err := parseUnixParam(r.URL.Query(), "at", s.now().UTC())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	snapshot, err := s.queryService.SnapshotAt(r.Context(), mux.Vars(r)["address"], at)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, snapshot)
}

// handleGetHistory handles GET /api/addresses/{address}/history?symbol=&from=&to=
func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	from, to, err := parseRange(query, s.now())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	address := mux.Vars(r)["address"]
	points, err := s.queryService.History(r.Context(), address, query.Get("symbol"), from, to)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"address": address,
		"from":    from.Unix(),
		"to":      to.Unix(),
		"history": points,
	})
}

// handleGetPerformance handles GET /api/addresses/{address}/performance?from=&to=
func (s *Server) handleGetPerformance(w http.ResponseWriter, r *http.Request) {
	from, to, err := parseRange(r.URL.Query(), s.now())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	address := mux.Vars(r)["address"]
	results, err := s.queryService.Performance(r.Context(), address, from, to)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"address":     address,
		"from":        from.Unix(),
		"to":          to.Unix(),
		"performance": results,
	})
}
