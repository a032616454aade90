package admin

import (
	"net/http"

	"gopkg.in/yaml.v3"
)

// currentConfig serves the sanitized, currently-applied configuration and
// its version hash, for operators diagnosing whether a SIGHUP reload took
// effect. ?format=yaml returns the same view as YAML instead of JSON.
func (h *handlers) currentConfig(w http.ResponseWriter, r *http.Request) {
	if h.cfg.Exporter == nil {
		writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "config export not configured"})
		return
	}
	view, err := h.cfg.Exporter.View()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	if r.URL.Query().Get("format") == "yaml" {
		body, err := yaml.Marshal(view)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		w.Header().Set("Content-Type", "application/yaml")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body)
		return
	}

	writeJSON(w, http.StatusOK, view)
}
