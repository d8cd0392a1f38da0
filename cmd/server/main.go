// cmd/server/main.go
package main

import (
	"log"
	"net/http"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/bearpark/arcade/internal/auth"
	"github.com/bearpark/arcade/internal/cache"
	"github.com/bearpark/arcade/internal/database"
	"github.com/bearpark/arcade/internal/handlers"
	"github.com/bearpark/arcade/internal/leaderboard"
	"github.com/bearpark/arcade/internal/matchmaking"
	"github.com/bearpark/arcade/internal/middleware"
)

func main() {
	auth.Init()

	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)

	// Postgres and Redis are optional in local play: without them matches run
	// but nothing is settled or recorded.
	var blacklist matchmaking.Blacklist
	if os.Getenv("PG_HOST") != "" || os.Getenv("DATABASE_URL") != "" {
		database.ConnectDB()
		blacklist = database.BlacklistStore{}
	} else {
		logger.Warn("no database configured, settlement and blacklist disabled")
	}
	if os.Getenv("REDIS_ADDR") != "" {
		if err := cache.ConnectRedis(); err != nil {
			log.Fatalf("redis: %v", err)
		}
	} else {
		logger.Warn("no redis configured, stats cache and historian queue disabled")
	}

	var lb *leaderboard.Client
	if base := os.Getenv("LEADERBOARD_API_URL"); base != "" {
		lb = leaderboard.NewClient(base)
	} else {
		logger.Warn("no leaderboard service configured, scores will not be submitted")
	}

	ms := handlers.NewMatchServer(logger, blacklist, lb)

	mux := http.NewServeMux()

	// game websocket
	mux.Handle("/pong/ws", middleware.LogMiddleware(logger)(http.HandlerFunc(
		handlers.WSHandler(logger, ms),
	)))

	// health endpoint
	mux.HandleFunc("/health", handlers.HealthHandler(ms))

	// player stats, read-through cached
	if lb != nil {
		stats := leaderboard.NewStatsService(lb)
		mux.Handle("/stats/", middleware.LogMiddleware(logger)(http.HandlerFunc(
			handlers.StatsHandler(logger, stats),
		)))

		// admin endpoints
		mux.Handle("/admin/leaderboard/reset", middleware.LogMiddleware(logger)(
			handlers.AdminAuthMiddleware(logger, handlers.ResetScoreHandler(logger, lb)),
		))
	}
	mux.Handle("/admin/blacklist", middleware.LogMiddleware(logger)(
		handlers.AdminAuthMiddleware(logger, handlers.BlacklistHandler(logger)),
	))

	addr := ":8080"
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}
	logger.Infof("Running on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}
