package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/spacesedan/quiznox/internal/apperr"
)

// envelope is the response shape of the bookmark routes.
type envelope struct {
	Success    bool   `json:"success"`
	Data       any    `json:"data"`
	Message    string `json:"message"`
	StatusCode int    `json:"statusCode"`
}

type messageBody struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("[Server] Failed to encode response", slog.String("error", err.Error()))
	}
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, messageBody{Message: msg})
}

func writeEnvelope(w http.ResponseWriter, status int, data any, msg string) {
	writeJSON(w, status, envelope{
		Success:    status < http.StatusBadRequest,
		Data:       data,
		Message:    msg,
		StatusCode: status,
	})
}

// statusOf maps an error to its HTTP status and a message safe to return.
func statusOf(err error) (int, string) {
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		return http.StatusInternalServerError, "internal server error"
	}
	switch ae.Kind {
	case apperr.KindInvalidArgument:
		return http.StatusBadRequest, ae.Msg
	case apperr.KindNotFound:
		return http.StatusNotFound, "not found"
	case apperr.KindForbidden:
		return http.StatusForbidden, "forbidden"
	case apperr.KindStoreUnavailable:
		return http.StatusServiceUnavailable, "store unavailable"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}
