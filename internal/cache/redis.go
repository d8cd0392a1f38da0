// internal/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Rdb is the global Redis client. Connect it once at application startup.
var Rdb *redis.Client

// DefaultQueueName is the Redis list (queue) name for finished match records.
var DefaultQueueName = "arcade_match_results"

// StatsTTL bounds how stale a cached player-stats payload may get before the
// next read goes back to the leaderboard service.
var StatsTTL = 5 * time.Minute

// MatchRecord holds the minimal info the historian microservice needs to
// persist a finished match.
type MatchRecord struct {
	MatchID      uuid.UUID `json:"match_id"`
	WinnerWallet string    `json:"winner_wallet"`
	LoserWallet  string    `json:"loser_wallet"`
	ScoreLeft    int       `json:"score_left"`
	ScoreRight   int       `json:"score_right"`
	Stake        int       `json:"stake"`
	EndReason    string    `json:"end_reason"`
	Timestamp    int64     `json:"timestamp"`
}

// ConnectRedis initializes the global Redis client with environment variables:
//   - REDIS_ADDR (default "localhost:6379")
//   - REDIS_DB (optional, default 0)
func ConnectRedis() error {
	addr := getEnv("REDIS_ADDR", "localhost:6379")
	dbIdx := getEnvInt("REDIS_DB", 0)

	Rdb = redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   dbIdx,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := Rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return nil
}

// PublishMatchResult serializes the given record to JSON, then pushes it to
// the Redis queue for the historian to consume. This does not block the match
// teardown path beyond a quick network send.
func PublishMatchResult(ctx context.Context, record MatchRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal MatchRecord: %w", err)
	}

	queueName := getEnv("HISTORIAN_QUEUE_NAME", DefaultQueueName)
	if err := Rdb.RPush(ctx, queueName, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list '%s': %w", queueName, err)
	}
	return nil
}

// PopMatchResult blocks up to timeout waiting for the next queued match
// record. It returns redis.Nil-wrapped errors when the queue stays empty.
func PopMatchResult(ctx context.Context, timeout time.Duration) (MatchRecord, error) {
	queueName := getEnv("HISTORIAN_QUEUE_NAME", DefaultQueueName)

	var record MatchRecord
	vals, err := Rdb.BLPop(ctx, timeout, queueName).Result()
	if err != nil {
		return record, err
	}
	if len(vals) < 2 {
		return record, fmt.Errorf("unexpected BLPop reply of length %d", len(vals))
	}
	if err := json.Unmarshal([]byte(vals[1]), &record); err != nil {
		return record, fmt.Errorf("failed to unmarshal MatchRecord: %w", err)
	}
	return record, nil
}

func statsKey(wallet string) string {
	return "arcade:stats:" + wallet
}

// SetPlayerStats caches a raw player-stats payload under the wallet's key.
func SetPlayerStats(ctx context.Context, wallet string, payload []byte) error {
	if err := Rdb.Set(ctx, statsKey(wallet), payload, StatsTTL).Err(); err != nil {
		return fmt.Errorf("failed to cache stats for %s: %w", wallet, err)
	}
	return nil
}

// GetPlayerStats returns the cached payload for wallet, or (nil, nil) on a
// cache miss.
func GetPlayerStats(ctx context.Context, wallet string) ([]byte, error) {
	data, err := Rdb.Get(ctx, statsKey(wallet)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cached stats for %s: %w", wallet, err)
	}
	return data, nil
}

// InvalidatePlayerStats drops the cached payload so the next read refetches.
func InvalidatePlayerStats(ctx context.Context, wallet string) error {
	return Rdb.Del(ctx, statsKey(wallet)).Err()
}

// getEnv is a helper to read an environment variable or return a default value.
func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

// getEnvInt is a helper to parse an environment variable as integer, else a default value.
func getEnvInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
