package api

import (
	"net/http"

	"github.com/gorilla/mux"
)

// handleGetTrader handles GET /api/traders/{address}
func (s *Server) handleGetTrader(w http.ResponseWriter, r *http.Request) {
	update, err := s.traderService.GetTrader(r.Context(), mux.Vars(r)["address"])
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"trader":     update.Trader,
		"computedAt": update.ComputedAt,
		"export":     update.Export,
	})
}
