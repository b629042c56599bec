package api

import (
	"encoding/json"
	"net/http"

	apperrors "github.com/address-ranker/internal/errors"
	"github.com/address-ranker/internal/logging"
	"github.com/address-ranker/internal/types"
)

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error types.ServiceError `json:"error"`
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, statusCode int, code, message string, details map[string]interface{}) {
	respondJSON(w, statusCode, ErrorResponse{
		Error: types.ServiceError{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// parseJSONBody parses JSON request body.
func parseJSONBody(r *http.Request, v interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}

// respondServiceError maps a service error onto its status code. Causes of
// server side errors are logged and never returned to the client.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	catErr := apperrors.Categorize(err)

	logger := logging.FromContext(r.Context()).WithError(err).WithField("code", catErr.Code)
	if catErr.StatusCode >= http.StatusInternalServerError {
		logger.Error("Request failed")
	} else {
		logger.Debug("Request rejected")
	}

	svcErr := catErr.ToServiceError()
	if catErr.StatusCode == http.StatusInternalServerError {
		svcErr.Message = "An internal error occurred"
		svcErr.Details = nil
	}
	respondJSON(w, catErr.StatusCode, ErrorResponse{Error: *svcErr})
}
