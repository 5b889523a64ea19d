package www

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"washfleet/store"
)

func (h *Handlers) apiListRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := h.engine.DB().ListRooms()
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.jsonOK(w, rooms)
}

func (h *Handlers) apiUpsertRoom(w http.ResponseWriter, r *http.Request) {
	var in store.Room
	if err := decodeJSON(r, &in); err != nil || in.Name == "" {
		h.jsonError(w, "room name is required", http.StatusBadRequest)
		return
	}
	if err := h.engine.DB().UpsertRoom(&in); err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.reloadNav(w)
}

func (h *Handlers) apiDeleteRoom(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.DB().DeleteRoom(chi.URLParam(r, "name")); err != nil {
		h.jsonDispatchError(w, err)
		return
	}
	h.reloadNav(w)
}

func (h *Handlers) apiListBeacons(w http.ResponseWriter, r *http.Request) {
	beacons, err := h.engine.DB().ListBeacons()
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.jsonOK(w, beacons)
}

func (h *Handlers) apiUpsertBeacon(w http.ResponseWriter, r *http.Request) {
	var in store.Beacon
	if err := decodeJSON(r, &in); err != nil || in.MAC == "" {
		h.jsonError(w, "beacon mac is required", http.StatusBadRequest)
		return
	}
	if err := h.engine.DB().UpsertBeacon(&in); err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.reloadNav(w)
}

func (h *Handlers) apiDeleteBeacon(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.DB().DeleteBeacon(chi.URLParam(r, "mac")); err != nil {
		h.jsonDispatchError(w, err)
		return
	}
	h.reloadNav(w)
}

// reloadNav refreshes the in-memory beacon/room snapshot after any
// configuration change, then acknowledges.
func (h *Handlers) reloadNav(w http.ResponseWriter) {
	if err := h.engine.Nav().Reload(); err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.jsonOK(w, map[string]string{"status": "ok"})
}

func (h *Handlers) apiHealth(w http.ResponseWriter, r *http.Request) {
	messagingOK := false
	if mc := h.engine.MsgClient(); mc != nil {
		messagingOK = mc.IsConnected()
	}
	h.jsonOK(w, map[string]any{
		"status":    "ok",
		"messaging": messagingOK,
		"robots":    len(h.engine.Robots().List()),
	})
}
