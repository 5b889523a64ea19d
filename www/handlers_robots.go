package www

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (h *Handlers) apiListRobots(w http.ResponseWriter, r *http.Request) {
	h.jsonOK(w, h.engine.Robots().Statuses())
}

func (h *Handlers) apiForceStop(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	ids, err := h.engine.Dispatcher().ForceStop(name)
	if err != nil {
		h.jsonDispatchError(w, err)
		return
	}
	if ids == nil {
		ids = []int64{}
	}
	h.jsonOK(w, map[string]any{"status": "ok", "cancelled": ids})
}

func (h *Handlers) apiClearEmergencyStop(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := h.engine.Dispatcher().ClearEmergencyStop(name); err != nil {
		h.jsonDispatchError(w, err)
		return
	}
	h.jsonOK(w, map[string]string{"status": "ok"})
}

func (h *Handlers) apiNavigate(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	var in struct {
		Room   string `json:"room"`
		Beacon string `json:"beacon"`
	}
	if err := decodeJSON(r, &in); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	// A bare beacon target still needs its room for the record.
	if in.Room == "" && in.Beacon != "" {
		if b, ok := h.engine.Nav().Beacon(in.Beacon); ok {
			in.Room = b.RoomName
		}
	}
	req, err := h.engine.Dispatcher().Navigate(name, in.Room, in.Beacon)
	if err != nil {
		h.jsonDispatchError(w, err)
		return
	}
	h.jsonOK(w, req)
}

func (h *Handlers) apiClearNavigation(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := h.engine.Dispatcher().ClearNavigation(name); err != nil {
		h.jsonDispatchError(w, err)
		return
	}
	h.jsonOK(w, map[string]string{"status": "ok"})
}

func (h *Handlers) apiSetAcceptRequests(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	var in struct {
		Accept bool `json:"accept"`
	}
	if err := decodeJSON(r, &in); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	robot, ok := h.engine.Robots().Get(name)
	if !ok {
		h.jsonError(w, "unknown robot", http.StatusNotFound)
		return
	}
	robot.SetCanAccept(in.Accept)
	h.jsonOK(w, map[string]string{"status": "ok"})
}

func (h *Handlers) apiSetMaintenance(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	var in struct {
		Maintenance bool `json:"maintenance"`
	}
	if err := decodeJSON(r, &in); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	robot, ok := h.engine.Robots().Get(name)
	if !ok {
		h.jsonError(w, "unknown robot", http.StatusNotFound)
		return
	}
	robot.SetMaintenance(in.Maintenance)
	h.jsonOK(w, map[string]string{"status": "ok"})
}
