package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/bearpark/arcade/internal/game"
	"github.com/bearpark/arcade/internal/models"
)

// SettleStake moves the locked stake between the two wallets in a single
// transaction: the winner gains the stake, the loser pays it. A zero stake
// is a no-op so friendly matches never touch balances.
func SettleStake(ctx context.Context, winnerWallet, loserWallet string, stake int) error {
	if stake == 0 {
		return nil
	}

	winnerDelta, loserDelta := game.Payout(stake)

	return pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		creditQuery := `
			INSERT INTO honey_balances (wallet, balance, updated_at)
			VALUES ($1, $2, NOW())
			ON CONFLICT (wallet) DO UPDATE
			SET balance = honey_balances.balance + EXCLUDED.balance, updated_at = NOW();
		`
		if _, err := tx.Exec(ctx, creditQuery, winnerWallet, winnerDelta); err != nil {
			return fmt.Errorf("failed to credit winner %s: %w", winnerWallet, err)
		}
		if _, err := tx.Exec(ctx, creditQuery, loserWallet, loserDelta); err != nil {
			return fmt.Errorf("failed to debit loser %s: %w", loserWallet, err)
		}
		return nil
	})
}

// InsertMatchResult persists one finished match for history queries.
func InsertMatchResult(ctx context.Context, res game.Result, endedAt time.Time) error {
	query := `
		INSERT INTO match_results
			(id, winner_side, winner_wallet, loser_wallet, score_left, score_right, stake, end_reason, ended_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING;
	`
	_, err := DB.Exec(ctx, query,
		res.MatchID, string(res.Winner), res.WinnerWallet, res.LoserWallet,
		res.ScoreLeft, res.ScoreRight, res.Stake, string(res.Reason), endedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert match result %s: %w", res.MatchID, err)
	}
	return nil
}

// GetRecentResults returns the latest finished matches involving wallet,
// newest first.
func GetRecentResults(ctx context.Context, wallet string, limit int) ([]game.Result, error) {
	query := `
		SELECT id, winner_side, winner_wallet, loser_wallet, score_left, score_right, stake, end_reason
		FROM match_results
		WHERE winner_wallet = $1 OR loser_wallet = $1
		ORDER BY ended_at DESC
		LIMIT $2;
	`
	rows, err := DB.Query(ctx, query, wallet, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query match results for %s: %w", wallet, err)
	}
	defer rows.Close()

	var results []game.Result
	for rows.Next() {
		var res game.Result
		var id string
		var winnerSide, reason string
		if err := rows.Scan(&id, &winnerSide, &res.WinnerWallet, &res.LoserWallet,
			&res.ScoreLeft, &res.ScoreRight, &res.Stake, &reason); err != nil {
			return nil, fmt.Errorf("failed to scan match result row: %w", err)
		}
		res.MatchID, err = uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("invalid match id %q: %w", id, err)
		}
		res.Winner = models.Side(winnerSide)
		res.Reason = game.EndReason(reason)
		results = append(results, res)
	}
	return results, rows.Err()
}
