package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/seyuan/msig_coordinator/engine"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Warnw("encode response", "err", err)
	}
}

// writeError maps the engine's error taxonomy onto HTTP statuses. Engine
// errors surface their caller-safe message; anything unclassified becomes
// a bare 500 so store internals never leak.
func writeError(w http.ResponseWriter, err error) {
	var engErr *engine.Error
	if !errors.As(err, &engErr) {
		log.Errorw("unclassified error", "err", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}

	status := http.StatusInternalServerError
	switch engErr.Kind {
	case engine.KindValidation:
		status = http.StatusBadRequest
	case engine.KindAuthorization:
		status = http.StatusForbidden
	case engine.KindConflict:
		status = http.StatusConflict
	case engine.KindCapacity:
		status = http.StatusTooManyRequests
	case engine.KindNotFound:
		status = http.StatusNotFound
	case engine.KindStore:
		log.Errorw("store error", "err", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}
	writeJSON(w, status, errorResponse{Error: engErr.Message()})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg})
}
