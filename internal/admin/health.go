package admin

import (
	"encoding/json"
	"net/http"
	"time"
)

type healthResponse struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Timestamp string `json:"timestamp"`
	Error     string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// health is a combined liveness+readiness view for dashboards that only
// poll one endpoint.
func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	h.ready(w, r)
}

// live reports process liveness only: it never touches the store or the
// backend, so a dependency outage never flips a liveness probe and causes
// an unnecessary restart.
func (h *handlers) live(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "ok",
		Service:   "zmc-alarm-reconciler",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// ready checks the store gateway and backend client are reachable.
func (h *handlers) ready(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:    "ok",
		Service:   "zmc-alarm-reconciler",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	if err := h.cfg.Engine.Health(r.Context()); err != nil {
		resp.Status = "unavailable"
		resp.Error = err.Error()
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}
