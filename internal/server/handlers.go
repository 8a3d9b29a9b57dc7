// ABOUTME: Administrative HTTP handlers served once the application has started
// ABOUTME: Index page, health check and build/startup info as JSON

package server

import (
	"encoding/json"
	"net/http"
	"time"
)

// infoResponse is the /info payload.
type infoResponse struct {
	Name       string    `json:"name"`
	Version    string    `json:"version"`
	StartedAt  time.Time `json:"started_at"`
	Completed  bool      `json:"completed"`
	Components []string  `json:"components"`
	Events     int       `json:"events"`
}

// handleIndex answers the application root.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("bootwatch is running\n"))
}

// handleHealth returns {"status":"UP"}. While starting up the gate answers
// this path instead.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "UP"})
}

// handleInfo describes this instance and its startup progress.
func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, infoResponse{
		Name:       "bootwatch",
		Version:    Version,
		StartedAt:  s.startedAt.UTC(),
		Completed:  s.bus.Completed(),
		Components: s.container.Names(),
		Events:     len(s.bus.Events()),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
