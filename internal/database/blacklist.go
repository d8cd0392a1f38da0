package database

import (
	"context"
	"fmt"
)

// BlacklistStore answers whether a wallet is barred from matchmaking.
// It satisfies matchmaking.Blacklist.
type BlacklistStore struct{}

func (BlacklistStore) IsBlacklisted(ctx context.Context, wallet string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM wallet_blacklist WHERE wallet = $1);`
	if err := DB.QueryRow(ctx, query, wallet).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check blacklist for %s: %w", wallet, err)
	}
	return exists, nil
}

func AddToBlacklist(ctx context.Context, wallet, reason string) error {
	query := `
		INSERT INTO wallet_blacklist (wallet, reason, created_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (wallet) DO UPDATE SET reason = EXCLUDED.reason;
	`
	if _, err := DB.Exec(ctx, query, wallet, reason); err != nil {
		return fmt.Errorf("failed to blacklist %s: %w", wallet, err)
	}
	return nil
}

func RemoveFromBlacklist(ctx context.Context, wallet string) error {
	query := `DELETE FROM wallet_blacklist WHERE wallet = $1;`
	if _, err := DB.Exec(ctx, query, wallet); err != nil {
		return fmt.Errorf("failed to unblacklist %s: %w", wallet, err)
	}
	return nil
}
