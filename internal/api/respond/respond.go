// Package respond centralizes JSON response writing and the mapping
// from fault kinds to HTTP status codes.
package respond

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/signalhq/signal/pkg/fault"
	"github.com/signalhq/signal/pkg/logging"
)

// JSON writes v with the given status. Encoding failures are swallowed;
// headers are already gone by then.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Error maps err to a status code and a small {"error": ...} body.
// Internal details are logged, never echoed to the client.
func Error(w http.ResponseWriter, logger *logging.Logger, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError && logger != nil {
		logger.Error("request failed", "error", err)
	}
	JSON(w, status, map[string]string{"error": msg})
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, fault.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, fault.ErrExpired):
		return http.StatusGone, "expired"
	}
	switch fault.KindOf(err) {
	case fault.KindValidation:
		return http.StatusBadRequest, fault.MessageOf(err)
	case fault.KindUpstream, fault.KindDataQuality:
		return http.StatusBadGateway, fault.MessageOf(err)
	default:
		return http.StatusInternalServerError, "internal error"
	}
}
