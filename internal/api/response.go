package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/wren-reads/wren/internal/models"
)

// Pre-marshaled fallback responses to avoid runtime JSON encoding failures
var (
	fallbackErrorResponse []byte
)

// init validates that our fallback responses can be marshaled
func init() {
	var err error
	fallbackErrorResponse, err = json.Marshal(models.Error("Internal server error"))
	if err != nil {
		panic(fmt.Sprintf("Failed to marshal fallback error response at startup: %v", err))
	}
}

// writeJSONResponse writes a JSON response to the http.ResponseWriter with the given status code.
func writeJSONResponse(w http.ResponseWriter, statusCode int, response interface{}) {
	// Marshal first so encoding errors surface before headers are written
	jsonData, err := json.Marshal(response)
	if err != nil {
		slog.Error("Server.writeJSONResponse: failed to marshal JSON response", "error", err)
		jsonData = fallbackErrorResponse
		statusCode = http.StatusInternalServerError
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if _, writeErr := w.Write(jsonData); writeErr != nil {
		slog.Error("Server.writeJSONResponse: failed to write JSON response", "error", writeErr)
	}
}

// writeError maps an interview error onto a status code and envelope.
func writeError(w http.ResponseWriter, err error) {
	status, resp := errorResponse(err)
	if status >= http.StatusInternalServerError {
		slog.Error("Server.writeError: request failed", "status", status, "error", err)
	}
	writeJSONResponse(w, status, resp)
}

func errorResponse(err error) (int, models.APIResponse) {
	var parseErr *models.SynthesisParseError
	switch {
	case errors.Is(err, models.ErrSessionNotFound):
		return http.StatusNotFound, models.Error("Session not found")
	case errors.Is(err, models.ErrSessionAlreadyComplete):
		return http.StatusConflict, models.Error("Session is already complete")
	case errors.Is(err, models.ErrEmptySessionID):
		return http.StatusBadRequest, models.Error("Session id is required")
	case errors.Is(err, models.ErrMalformedInput):
		return http.StatusBadRequest, models.Error(err.Error())
	case errors.As(err, &parseErr):
		return http.StatusBadGateway, models.Error("Profile synthesis returned an unreadable profile")
	case models.IsRetryable(err):
		return http.StatusServiceUnavailable, models.RetryableError(err.Error())
	default:
		return http.StatusInternalServerError, models.Error("Internal server error")
	}
}
