package gateway

import (
	"encoding/json"
	"net/http"
	"time"
)

// HealthResponse is the health report. The public HTTP endpoint fills
// only Status; the authenticated health method fills the rest.
type HealthResponse struct {
	Status  string   `json:"status"`
	Version string   `json:"version,omitempty"`
	Uptime  string   `json:"uptime,omitempty"`
	Clients int      `json:"clients,omitempty"`
	Windows []string `json:"windows,omitempty"`
}

func (s *Server) health() HealthResponse {
	h := HealthResponse{
		Status:  "ok",
		Version: s.version,
		Clients: s.peers.size(),
		Windows: s.windows.List(),
	}
	if !s.startedAt.IsZero() {
		h.Uptime = time.Since(s.startedAt).Truncate(time.Second).String()
	}
	return h
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) serveHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

func serveNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found", "path": r.URL.Path})
}
