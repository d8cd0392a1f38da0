// internal/handlers/stats.go
package handlers

import (
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/bearpark/arcade/internal/leaderboard"
)

// StatsHandler serves GET /stats/{wallet}, proxying the leaderboard profile
// with a cache behind it so the page keeps working through API hiccups.
func StatsHandler(logger *logrus.Logger, svc *leaderboard.StatsService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		wallet := strings.TrimPrefix(r.URL.Path, "/stats/")
		if wallet == "" || strings.Contains(wallet, "/") {
			http.Error(w, "missing wallet in path (/stats/{wallet})", http.StatusBadRequest)
			return
		}

		payload, err := svc.PlayerStats(r.Context(), wallet)
		if err != nil {
			logger.WithError(err).WithField("wallet", wallet).Error("stats lookup failed")
			http.Error(w, "stats unavailable", http.StatusBadGateway)
			return
		}
		if payload == nil {
			http.NotFound(w, r)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write(payload)
	}
}
