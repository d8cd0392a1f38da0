package leaderboard

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/bearpark/arcade/internal/cache"
)

// StatsService serves player profile payloads, preferring the live
// leaderboard API and falling back to the Redis cache when the API is down.
// Successful fetches refresh the cache.
type StatsService struct {
	Client *Client
}

func NewStatsService(client *Client) *StatsService {
	return &StatsService{Client: client}
}

// PlayerStats returns the raw profile payload for wallet. A nil payload with
// a nil error means the wallet has no profile anywhere. Without a connected
// Redis client the service still works, just without the fallback.
func (s *StatsService) PlayerStats(ctx context.Context, wallet string) ([]byte, error) {
	payload, err := s.Client.GetProfileRaw(ctx, wallet)
	if err == nil {
		if cache.Rdb != nil {
			if cacheErr := cache.SetPlayerStats(ctx, wallet, payload); cacheErr != nil {
				logrus.WithError(cacheErr).WithField("wallet", wallet).Warn("failed to refresh stats cache")
			}
		}
		return payload, nil
	}
	if IsNotFound(err) {
		return nil, nil
	}
	if cache.Rdb == nil {
		return nil, err
	}

	logrus.WithError(err).WithField("wallet", wallet).Warn("leaderboard API unavailable, serving cached stats")
	cached, cacheErr := cache.GetPlayerStats(ctx, wallet)
	if cacheErr != nil {
		return nil, err
	}
	if cached == nil {
		return nil, err
	}
	return cached, nil
}
