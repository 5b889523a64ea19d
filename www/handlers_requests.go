package www

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

func requestID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil
}

// apiCreateRequest is the customer intake boundary.
func (h *Handlers) apiCreateRequest(w http.ResponseWriter, r *http.Request) {
	var in struct {
		CustomerID   string `json:"customer_id"`
		CustomerName string `json:"customer_name"`
		Room         string `json:"room"`
	}
	if err := decodeJSON(r, &in); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if in.CustomerID == "" || in.Room == "" {
		h.jsonError(w, "customer_id and room are required", http.StatusBadRequest)
		return
	}
	req, err := h.engine.Dispatcher().CreateRequest(in.CustomerID, in.CustomerName, in.Room)
	if err != nil {
		h.jsonDispatchError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	h.jsonOK(w, req)
}

func (h *Handlers) apiListRequests(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	limit := 100
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			limit = n
		}
	}
	reqs, err := h.engine.DB().ListRequests(status, limit)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.jsonOK(w, reqs)
}

func (h *Handlers) apiGetRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := requestID(r)
	if !ok {
		h.jsonError(w, "invalid id", http.StatusBadRequest)
		return
	}
	req, err := h.engine.DB().GetRequest(id)
	if err != nil {
		h.jsonDispatchError(w, err)
		return
	}
	h.jsonOK(w, req)
}

func (h *Handlers) apiRequestHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := requestID(r)
	if !ok {
		h.jsonError(w, "invalid id", http.StatusBadRequest)
		return
	}
	history, err := h.engine.DB().ListRequestHistory(id)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.jsonOK(w, history)
}

func (h *Handlers) apiAcceptRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := requestID(r)
	if !ok {
		h.jsonError(w, "invalid id", http.StatusBadRequest)
		return
	}
	if err := h.engine.Dispatcher().Accept(id); err != nil {
		h.jsonDispatchError(w, err)
		return
	}
	h.jsonOK(w, map[string]string{"status": "ok"})
}

func (h *Handlers) apiDeclineRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := requestID(r)
	if !ok {
		h.jsonError(w, "invalid id", http.StatusBadRequest)
		return
	}
	var in struct {
		Reason string `json:"reason"`
	}
	decodeJSON(r, &in)
	if in.Reason == "" {
		in.Reason = "declined by operator"
	}
	if err := h.engine.Dispatcher().Decline(id, in.Reason); err != nil {
		h.jsonDispatchError(w, err)
		return
	}
	h.jsonOK(w, map[string]string{"status": "ok"})
}

func (h *Handlers) apiCancelRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := requestID(r)
	if !ok {
		h.jsonError(w, "invalid id", http.StatusBadRequest)
		return
	}
	var in struct {
		Reason      string `json:"reason"`
		Disposition string `json:"disposition"`
	}
	decodeJSON(r, &in)
	if in.Reason == "" {
		in.Reason = "cancelled by operator"
	}
	if err := h.engine.Dispatcher().Cancel(id, in.Reason, in.Disposition); err != nil {
		h.jsonDispatchError(w, err)
		return
	}
	h.jsonOK(w, map[string]string{"status": "ok"})
}

func (h *Handlers) apiAssignRobot(w http.ResponseWriter, r *http.Request) {
	id, ok := requestID(r)
	if !ok {
		h.jsonError(w, "invalid id", http.StatusBadRequest)
		return
	}
	var in struct {
		Robot string `json:"robot"`
	}
	if err := decodeJSON(r, &in); err != nil || in.Robot == "" {
		h.jsonError(w, "robot is required", http.StatusBadRequest)
		return
	}
	if err := h.engine.Dispatcher().AssignRobot(id, in.Robot); err != nil {
		h.jsonDispatchError(w, err)
		return
	}
	h.jsonOK(w, map[string]string{"status": "ok"})
}

func (h *Handlers) apiMarkWashDone(w http.ResponseWriter, r *http.Request) {
	id, ok := requestID(r)
	if !ok {
		h.jsonError(w, "invalid id", http.StatusBadRequest)
		return
	}
	if err := h.engine.Dispatcher().MarkWashDone(id); err != nil {
		h.jsonDispatchError(w, err)
		return
	}
	h.jsonOK(w, map[string]string{"status": "ok"})
}

func (h *Handlers) apiStartDelivery(w http.ResponseWriter, r *http.Request) {
	id, ok := requestID(r)
	if !ok {
		h.jsonError(w, "invalid id", http.StatusBadRequest)
		return
	}
	if err := h.engine.Dispatcher().StartDelivery(id); err != nil {
		h.jsonDispatchError(w, err)
		return
	}
	h.jsonOK(w, map[string]string{"status": "ok"})
}

func (h *Handlers) apiCompleteRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := requestID(r)
	if !ok {
		h.jsonError(w, "invalid id", http.StatusBadRequest)
		return
	}
	if err := h.engine.Dispatcher().Complete(id); err != nil {
		h.jsonDispatchError(w, err)
		return
	}
	h.jsonOK(w, map[string]string{"status": "ok"})
}
