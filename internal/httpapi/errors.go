package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"aidispatch/internal/backend"
	"aidispatch/internal/dispatcher"
	"aidispatch/pkg/types"
)

// HTTPError allows services to provide an HTTP status code for an error.
type HTTPError interface {
	error
	StatusCode() int
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg, Code: status})
}

// statusFor maps dispatcher and backend errors to an HTTP status code.
func statusFor(err error) int {
	var he HTTPError
	switch {
	case errors.As(err, &he):
		return he.StatusCode()
	case errors.Is(err, dispatcher.ErrUnknownBackend):
		return http.StatusNotFound
	case backend.IsUnsupportedCapability(err), errors.Is(err, dispatcher.ErrModelManagementUnsupported):
		return http.StatusBadRequest
	case backend.IsNotInitialized(err), backend.IsNoBackendAvailable(err), backend.IsInitialization(err), backend.IsUnavailable(err):
		return http.StatusServiceUnavailable
	case backend.IsRequestTimeout(err), backend.IsStartupTimeout(err), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	var te *backend.TransportError
	if errors.As(err, &te) {
		if te.Kind == backend.TransportTimeout {
			return http.StatusGatewayTimeout
		}
		// Upstream "model not found" is passed through.
		if te.Kind == backend.TransportStatus && te.StatusCode == http.StatusNotFound {
			return http.StatusNotFound
		}
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	writeJSONError(w, statusFor(err), err.Error())
}
