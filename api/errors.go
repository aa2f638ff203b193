package api

import (
	"encoding/json"
	"net/http"

	"github.com/wricardo/escape-room-game/game/engine"
)

// ErrorResponse is the body of every non-2xx reply
type ErrorResponse struct {
	Error string      `json:"error"`
	Code  engine.Kind `json:"code"`
}

// StatusFor maps an engine error kind onto an HTTP status.
func StatusFor(kind engine.Kind) int {
	switch kind {
	case engine.KindNotFound:
		return http.StatusNotFound
	case engine.KindInvalidPhase, engine.KindInvalidState, engine.KindInvalidArgument:
		return http.StatusBadRequest
	case engine.KindForbidden:
		return http.StatusForbidden
	case engine.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Response helpers
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, err error) {
	kind := engine.KindOf(err)
	respondJSON(w, StatusFor(kind), ErrorResponse{Error: err.Error(), Code: kind})
}
