package www

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"

	"washfleet/dispatch"
)

func (h *Handlers) jsonOK(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func (h *Handlers) jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// jsonDispatchError maps the dispatch sentinels onto HTTP status codes:
// precondition failures are conflicts, exhausted fleets are unavailability,
// unknown entities are not-found, bad input is a bad request.
func (h *Handlers) jsonDispatchError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, dispatch.ErrWrongStatus):
		h.jsonError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, dispatch.ErrNoRobots):
		h.jsonError(w, err.Error(), http.StatusServiceUnavailable)
	case errors.Is(err, dispatch.ErrUnknownRequest), errors.Is(err, dispatch.ErrUnknownRobot):
		h.jsonError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, dispatch.ErrRoomUnknown), errors.Is(err, dispatch.ErrNeedDisposition):
		h.jsonError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, sql.ErrNoRows):
		h.jsonError(w, "not found", http.StatusNotFound)
	default:
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
	}
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}
