// internal/handlers/health.go
package handlers

import (
	"encoding/json"
	"net/http"
)

type healthStatus struct {
	Status      string `json:"status"`
	LiveMatches int    `json:"liveMatches"`
	QueueLength int    `json:"queueLength"`
}

// HealthHandler reports liveness plus a couple of cheap gauges.
func HealthHandler(ms *MatchServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(healthStatus{
			Status:      "ok",
			LiveMatches: ms.MatchStore.Count(),
			QueueLength: ms.Queue.Len(),
		})
	}
}
