// cmd/historian/main.go is an asynchronous historian service that pops
// finished-match records from a Redis queue and folds them into per-wallet
// aggregate stats in PostgreSQL.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	_ "github.com/joho/godotenv/autoload"
	"github.com/redis/go-redis/v9"

	"github.com/bearpark/arcade/internal/cache"
	"github.com/bearpark/arcade/internal/database"
)

// HistorianService encapsulates the Redis + DB logic for archiving match
// records and maintaining the per-wallet win/loss aggregates.
type HistorianService struct {
	redisClient *redis.Client
	batchSize   int
	flushDelay  time.Duration

	batchMu  sync.Mutex
	batch    []cache.MatchRecord
	ctx      context.Context
	cancelFn context.CancelFunc
}

// NewHistorianService constructs a HistorianService instance from environment variables or defaults.
func NewHistorianService() *HistorianService {
	batchSize := getEnvInt("HISTORIAN_BATCH_SIZE", 20)
	flushMs := getEnvInt("HISTORIAN_FLUSH_MS", 500)

	redisAddr := getEnv("REDIS_ADDR", "localhost:6379")
	rdb := redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})

	ctx, cancel := context.WithCancel(context.Background())
	return &HistorianService{
		redisClient: rdb,
		batchSize:   batchSize,
		flushDelay:  time.Duration(flushMs) * time.Millisecond,
		batch:       make([]cache.MatchRecord, 0, batchSize),
		ctx:         ctx,
		cancelFn:    cancel,
	}
}

// Run connects the database and starts the queue consumer.
func (hs *HistorianService) Run() {
	database.ConnectDB()

	go hs.readRedisLoop()

	log.Println("arcade-historian service started.")
	<-hs.ctx.Done()
	log.Println("arcade-historian shutting down.")
}

// readRedisLoop continuously uses BLPop to retrieve match records from the Redis queue.
func (hs *HistorianService) readRedisLoop() {
	ticker := time.NewTicker(hs.flushDelay)
	defer ticker.Stop()

	queueName := getEnv("HISTORIAN_QUEUE_NAME", cache.DefaultQueueName)

	for {
		select {
		case <-hs.ctx.Done():
			hs.flushBatchToDB()
			return

		case <-ticker.C:
			hs.flushBatchToDB()

		default:
			// BLPop with a 3-second timeout so context cancellation is handled.
			res, err := hs.redisClient.BLPop(hs.ctx, 3*time.Second, queueName).Result()
			if err != nil && !errors.Is(err, redis.Nil) {
				if hs.ctx.Err() != nil {
					continue
				}
				log.Printf("[ERROR] BLPop: %v\n", err)
				continue
			}
			if len(res) < 2 {
				// No message popped.
				continue
			}

			var record cache.MatchRecord
			if err := json.Unmarshal([]byte(res[1]), &record); err != nil {
				log.Printf("invalid match record: %v\n", err)
				continue
			}

			hs.appendToBatch(record)
		}
	}
}

// appendToBatch adds a record to the in-memory batch and flushes if the threshold is reached.
func (hs *HistorianService) appendToBatch(record cache.MatchRecord) {
	hs.batchMu.Lock()
	defer hs.batchMu.Unlock()

	hs.batch = append(hs.batch, record)
	if len(hs.batch) >= hs.batchSize {
		hs.flushBatchLocked()
	}
}

// flushBatchToDB flushes the current batch to the database in a single transaction.
func (hs *HistorianService) flushBatchToDB() {
	hs.batchMu.Lock()
	defer hs.batchMu.Unlock()
	hs.flushBatchLocked()
}

// flushBatchLocked does the actual flush. Assumes batchMu is held.
func (hs *HistorianService) flushBatchLocked() {
	if len(hs.batch) == 0 {
		return
	}
	batchCopy := make([]cache.MatchRecord, len(hs.batch))
	copy(batchCopy, hs.batch)
	hs.batch = hs.batch[:0]

	ctx := context.Background()
	err := pgx.BeginTxFunc(ctx, database.DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, rec := range batchCopy {
			if err := archiveMatchTx(ctx, tx, rec); err != nil {
				return fmt.Errorf("archiveMatchTx: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		log.Printf("[ERROR] flushBatchToDB: %v\n", err)
	} else {
		log.Printf("Flushed %d match records to DB.\n", len(batchCopy))
	}
}

// archiveMatchTx stores one match record and bumps both wallets' aggregates.
func archiveMatchTx(ctx context.Context, tx pgx.Tx, rec cache.MatchRecord) error {
	archiveQ := `
		INSERT INTO match_archive (
			match_id, winner_wallet, loser_wallet, score_left, score_right, stake, end_reason, played_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, to_timestamp($8))
		ON CONFLICT (match_id) DO NOTHING
	`
	_, err := tx.Exec(ctx, archiveQ,
		rec.MatchID, rec.WinnerWallet, rec.LoserWallet,
		rec.ScoreLeft, rec.ScoreRight, rec.Stake, rec.EndReason, rec.Timestamp,
	)
	if err != nil {
		return err
	}

	statsQ := `
		INSERT INTO player_stats (wallet, wins, losses, honey_won, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (wallet) DO UPDATE SET
			wins = player_stats.wins + EXCLUDED.wins,
			losses = player_stats.losses + EXCLUDED.losses,
			honey_won = player_stats.honey_won + EXCLUDED.honey_won,
			updated_at = NOW()
	`
	if _, err := tx.Exec(ctx, statsQ, rec.WinnerWallet, 1, 0, rec.Stake); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, statsQ, rec.LoserWallet, 0, 1, -rec.Stake); err != nil {
		return err
	}
	return nil
}

// Stop gracefully stops the historian service.
func (hs *HistorianService) Stop() {
	hs.cancelFn()
}

func main() {
	hs := NewHistorianService()
	go hs.Run()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	hs.Stop()
	log.Println("Historian shutdown complete.")
}

// getEnv retrieves an environment variable's value or returns a default.
func getEnv(key, defVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defVal
}

// getEnvInt retrieves an integer value from an environment variable or returns a default value.
func getEnvInt(key string, defVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defVal
	}
	return i
}
