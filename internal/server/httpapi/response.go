package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/photogate/internal/common"
	"github.com/dmitrijs2005/photogate/internal/logging"
)

type errorBody struct {
	Error    string `json:"error"`
	Redirect string `json:"redirect,omitempty"`
}

type messageBody struct {
	Message string `json:"message"`
}

// writeJSON writes payload with the given status.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, messageBody{Message: msg})
}

// statusFor maps a failure to the status and message shown to the client.
// Anything it does not recognise is an opaque 500.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, common.ErrBadRequest):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, common.ErrUnauthenticated):
		return http.StatusUnauthorized, "authorization header required"
	case errors.Is(err, common.ErrTokenExpired):
		return http.StatusForbidden, "token expired"
	case errors.Is(err, common.ErrInvalidToken):
		return http.StatusForbidden, "invalid token"
	case errors.Is(err, common.ErrorUnauthorized):
		return http.StatusUnauthorized, "invalid username or password"
	case errors.Is(err, common.ErrAlreadyExists):
		return http.StatusConflict, "username already exists"
	case errors.Is(err, common.ErrObjectNotFound):
		return http.StatusNotFound, "object not found"
	case errors.Is(err, common.ErrorNotFound):
		return http.StatusNotFound, "not found"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// writeError renders err as {"error": msg}. Server-side failures are logged
// with their detail; the client only sees the opaque message.
func writeError(w http.ResponseWriter, r *http.Request, log logging.Logger, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Error(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	} else {
		log.Debug(r.Context(), "request rejected", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	}
	writeJSON(w, status, errorBody{Error: msg})
}
