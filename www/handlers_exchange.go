package www

import (
	"net/http"

	"washfleet/engine"
)

// handleRobotExchange is the robots' ~1 Hz telemetry poll.
func (h *Handlers) handleRobotExchange(w http.ResponseWriter, r *http.Request) {
	var in engine.ExchangeRequest
	if err := decodeJSON(r, &in); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if in.Addr == "" {
		in.Addr = r.RemoteAddr
	}
	resp, err := h.engine.ProcessExchange(in)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.jsonOK(w, resp)
}

// apiConfirmLoad is the customer's "laundry is on board" button.
func (h *Handlers) apiConfirmLoad(w http.ResponseWriter, r *http.Request) {
	id, ok := requestID(r)
	if !ok {
		h.jsonError(w, "invalid id", http.StatusBadRequest)
		return
	}
	if err := h.engine.Dispatcher().ConfirmLoad(id); err != nil {
		h.jsonDispatchError(w, err)
		return
	}
	h.jsonOK(w, map[string]string{"status": "ok"})
}

// apiConfirmUnload is the customer's "clean laundry received" button.
func (h *Handlers) apiConfirmUnload(w http.ResponseWriter, r *http.Request) {
	id, ok := requestID(r)
	if !ok {
		h.jsonError(w, "invalid id", http.StatusBadRequest)
		return
	}
	if err := h.engine.Dispatcher().ConfirmUnload(id); err != nil {
		h.jsonDispatchError(w, err)
		return
	}
	h.jsonOK(w, map[string]string{"status": "ok"})
}
