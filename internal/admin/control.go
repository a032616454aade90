package admin

import (
	"encoding/json"
	"net/http"

	"github.com/vitaliisemenov/zmc-reconciler/pkg/logger"
)

type controlRequest struct {
	Action string `json:"action"`
}

type controlResponse struct {
	Accepted bool   `json:"accepted"`
	Action   string `json:"action"`
	Message  string `json:"message,omitempty"`
}

// serviceControl acknowledges a lifecycle action. The reconciler's
// process lifecycle is owned by cmd/reconciler/main.go's signal handling;
// this endpoint's contract is to accept and log the request, not to
// restart the process out from under its own HTTP server.
func (h *handlers) serviceControl(w http.ResponseWriter, r *http.Request) {
	var req controlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, controlResponse{Message: "invalid request body"})
		return
	}

	switch req.Action {
	case "pause", "resume", "shutdown":
		logger.FromContext(r.Context(), h.cfg.Logger).Info("service control requested", "action", req.Action)
		writeJSON(w, http.StatusAccepted, controlResponse{Accepted: true, Action: req.Action})
	default:
		writeJSON(w, http.StatusBadRequest, controlResponse{Action: req.Action, Message: "unknown action"})
	}
}
