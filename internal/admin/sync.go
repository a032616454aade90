package admin

import (
	"net/http"
	"strconv"
	"time"
)

type cycleSummary struct {
	BatchID   string `json:"batch_id"`
	Duration  string `json:"duration"`
	Processed int    `json:"processed"`
	Failed    int    `json:"failed"`
	Error     string `json:"error,omitempty"`
}

// triggerSync runs one reconciliation cycle synchronously and reports its
// summary. A long cycle on a large backlog ties up the request for that
// long — operators trigger this sparingly, outside the scheduled loop.
func (h *handlers) triggerSync(w http.ResponseWriter, r *http.Request) {
	result, err := h.cfg.Engine.RunCycle(r.Context())

	summary := cycleSummary{
		BatchID:   result.BatchID,
		Duration:  result.Duration.String(),
		Processed: result.TotalProcessed(),
		Failed:    result.TotalFailed(),
	}
	if err != nil {
		summary.Error = err.Error()
		writeJSON(w, http.StatusAccepted, summary)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// syncAlarms reports how many SyncRecords sit in each bookkeeping state.
func (h *handlers) syncAlarms(w http.ResponseWriter, r *http.Request) {
	counts, err := h.cfg.Audit.StateCounts(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

// syncLogs returns the most recent audit log entries. ?limit= bounds the
// page size (default 100).
func (h *handlers) syncLogs(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	entries, err := h.cfg.Audit.Recent(r.Context(), limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

type statisticsResponse struct {
	StatesByCount map[string]int64 `json:"states_by_count"`
	Total         int64            `json:"total"`
}

// syncStatistics aggregates the per-state counts into a total alongside
// the breakdown, for the operator dashboard's summary tile.
func (h *handlers) syncStatistics(w http.ResponseWriter, r *http.Request) {
	counts, err := h.cfg.Audit.StateCounts(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	resp := statisticsResponse{StatesByCount: map[string]int64{}}
	for state, n := range counts {
		resp.StatesByCount[string(state)] = n
		resp.Total += n
	}
	writeJSON(w, http.StatusOK, resp)
}

type statusResponse struct {
	Healthy   bool   `json:"healthy"`
	Error     string `json:"error,omitempty"`
	Timestamp string `json:"timestamp"`
}

// syncStatus is the engine-level up/down view distinct from /health/ready:
// it exists under the sync API prefix for clients already polling
// /api/v1/sync/* rather than the top-level health endpoints.
func (h *handlers) syncStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{Healthy: true, Timestamp: time.Now().UTC().Format(time.RFC3339)}
	if err := h.cfg.Engine.Health(r.Context()); err != nil {
		resp.Healthy = false
		resp.Error = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}
