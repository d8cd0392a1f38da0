// internal/handlers/admin.go
package handlers

import (
	"encoding/json"
	"net/http"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/bearpark/arcade/internal/auth"
	"github.com/bearpark/arcade/internal/cache"
	"github.com/bearpark/arcade/internal/database"
	"github.com/bearpark/arcade/internal/leaderboard"
)

// AdminAuthMiddleware guards the admin endpoints with a bearer token checked
// against the Argon2id hash in ADMIN_TOKEN_HASH. With no hash configured the
// endpoints are disabled outright.
func AdminAuthMiddleware(logger *logrus.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		encodedHash := os.Getenv("ADMIN_TOKEN_HASH")
		if encodedHash == "" {
			http.Error(w, "admin endpoints disabled", http.StatusForbidden)
			return
		}

		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if token == "" || token == r.Header.Get("Authorization") {
			http.Error(w, "missing bearer token", http.StatusUnauthorized)
			return
		}

		ok, err := auth.VerifyAdminToken(token, encodedHash)
		if err != nil {
			logger.WithError(err).Error("admin token hash is unreadable")
			http.Error(w, "server misconfiguration", http.StatusInternalServerError)
			return
		}
		if !ok {
			logger.Warnf("rejected admin request from %s", r.RemoteAddr)
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

type blacklistRequest struct {
	Wallet string `json:"wallet"`
	Reason string `json:"reason,omitempty"`
}

// BlacklistHandler adds (POST) or removes (DELETE) a wallet on the
// matchmaking blacklist.
func BlacklistHandler(logger *logrus.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req blacklistRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Wallet == "" {
			http.Error(w, "body must include a wallet", http.StatusBadRequest)
			return
		}

		var err error
		switch r.Method {
		case http.MethodPost:
			err = database.AddToBlacklist(r.Context(), req.Wallet, req.Reason)
		case http.MethodDelete:
			err = database.RemoveFromBlacklist(r.Context(), req.Wallet)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if err != nil {
			logger.WithError(err).WithField("wallet", req.Wallet).Error("blacklist update failed")
			http.Error(w, "blacklist update failed", http.StatusInternalServerError)
			return
		}

		logger.WithFields(logrus.Fields{"wallet": req.Wallet, "method": r.Method}).Info("blacklist updated")
		w.WriteHeader(http.StatusOK)
	}
}

type resetScoreRequest struct {
	Wallet string `json:"wallet"`
	GameID string `json:"gameId,omitempty"`
}

// ResetScoreHandler wipes a wallet's leaderboard entry and cached stats, for
// cleaning up exploited scores.
func ResetScoreHandler(logger *logrus.Logger, lb *leaderboard.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req resetScoreRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Wallet == "" {
			http.Error(w, "body must include a wallet", http.StatusBadRequest)
			return
		}
		if req.GameID == "" {
			req.GameID = leaderboard.GamePong
		}

		if err := lb.ResetScore(r.Context(), req.GameID, req.Wallet); err != nil {
			logger.WithError(err).WithField("wallet", req.Wallet).Error("leaderboard reset failed")
			http.Error(w, "leaderboard reset failed", http.StatusBadGateway)
			return
		}
		if cache.Rdb != nil {
			if err := cache.InvalidatePlayerStats(r.Context(), req.Wallet); err != nil {
				logger.WithError(err).WithField("wallet", req.Wallet).Warn("failed to invalidate stats cache")
			}
		}

		logger.WithFields(logrus.Fields{"wallet": req.Wallet, "game": req.GameID}).Info("leaderboard entry reset")
		w.WriteHeader(http.StatusOK)
	}
}
