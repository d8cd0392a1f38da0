// internal/handlers/match_server.go
package handlers

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"github.com/bearpark/arcade/internal/cache"
	"github.com/bearpark/arcade/internal/database"
	"github.com/bearpark/arcade/internal/game"
	"github.com/bearpark/arcade/internal/leaderboard"
	"github.com/bearpark/arcade/internal/matchmaking"
	"github.com/bearpark/arcade/internal/models"
	"github.com/bearpark/arcade/internal/protocol"
)

// MatchServer owns the matchmaking queue and every live match. It is the glue
// between connections, the game logic and the settlement side effects.
type MatchServer struct {
	MatchStore  *game.MatchStore
	Queue       *matchmaking.Queue
	Config      game.Config
	Clock       clockwork.Clock
	Leaderboard *leaderboard.Client
	Logger      *logrus.Logger

	mu       sync.Mutex
	byPlayer map[uuid.UUID]*game.Match
}

// NewMatchServer wires a queue to match creation. The blacklist may be nil.
func NewMatchServer(logger *logrus.Logger, blacklist matchmaking.Blacklist, lb *leaderboard.Client) *MatchServer {
	ms := &MatchServer{
		MatchStore:  game.NewMatchStore(),
		Queue:       matchmaking.NewQueue(blacklist),
		Config:      game.DefaultConfig(),
		Clock:       clockwork.NewRealClock(),
		Leaderboard: lb,
		Logger:      logger,
		byPlayer:    make(map[uuid.UUID]*game.Match),
	}
	ms.Queue.OnPair = ms.startMatch
	return ms
}

// MatchFor returns the live match a player belongs to, if any.
func (ms *MatchServer) MatchFor(playerID uuid.UUID) (*game.Match, bool) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	m, ok := ms.byPlayer[playerID]
	return m, ok
}

// startMatch creates a match for a freshly formed pair, announces it to both
// players and opens the betting window.
func (ms *MatchServer) startMatch(left, right *models.Player) {
	m := game.NewMatch(ms.Config, ms.Clock, left, right)
	m.BroadcastFn = ms.createBroadcastFunc(m)
	m.SendToFn = ms.createSendToFunc(m)
	m.OnMatchEnd = ms.handleMatchEnd

	ms.MatchStore.AddMatch(m)
	ms.mu.Lock()
	ms.byPlayer[left.ID] = m
	ms.byPlayer[right.ID] = m
	ms.mu.Unlock()

	ms.Logger.WithFields(logrus.Fields{
		"match": m.ID,
		"left":  left.Data.Wallet,
		"right": right.Data.Wallet,
	}).Info("match created")

	for _, p := range []*models.Player{left, right} {
		opp := m.Players[p.Side.Opposite()]
		ms.sendToPlayer(p, protocol.ServerMessage{
			Type:     protocol.TypeMatchFound,
			Opponent: &opp.Data,
			YourSide: p.Side,
		})
	}

	m.StartBetting()
}

// handleMatchEnd runs settlement, history and leaderboard submission once a
// match finishes. Every side effect here is best-effort: a failure is logged
// and must never take the game server down with it.
func (ms *MatchServer) handleMatchEnd(res game.Result) {
	if res.Reason == game.EndAbandoned {
		ms.Logger.WithField("match", res.MatchID).Info("match abandoned, nothing to settle")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	log := ms.Logger.WithFields(logrus.Fields{
		"match":  res.MatchID,
		"winner": res.WinnerWallet,
		"stake":  res.Stake,
	})

	if database.DB != nil {
		if err := database.SettleStake(ctx, res.WinnerWallet, res.LoserWallet, res.Stake); err != nil {
			log.WithError(err).Error("failed to settle stake")
		}
		if err := database.InsertMatchResult(ctx, res, time.Now()); err != nil {
			log.WithError(err).Error("failed to record match result")
		}
	}

	if cache.Rdb != nil {
		record := cache.MatchRecord{
			MatchID:      res.MatchID,
			WinnerWallet: res.WinnerWallet,
			LoserWallet:  res.LoserWallet,
			ScoreLeft:    res.ScoreLeft,
			ScoreRight:   res.ScoreRight,
			Stake:        res.Stake,
			EndReason:    string(res.Reason),
			Timestamp:    time.Now().Unix(),
		}
		if err := cache.PublishMatchResult(ctx, record); err != nil {
			log.WithError(err).Error("failed to queue match record for historian")
		}
		for _, wallet := range []string{res.WinnerWallet, res.LoserWallet} {
			if err := cache.InvalidatePlayerStats(ctx, wallet); err != nil {
				log.WithError(err).WithField("wallet", wallet).Warn("failed to invalidate stats cache")
			}
		}
	}

	if ms.Leaderboard != nil {
		winnerScore := res.ScoreLeft
		if res.Winner == models.SideRight {
			winnerScore = res.ScoreRight
		}
		meta := map[string]any{"stake": res.Stake, "reason": string(res.Reason)}
		if _, err := ms.Leaderboard.SubmitScore(ctx, res.WinnerWallet, leaderboard.GamePong, winnerScore, meta); err != nil {
			log.WithError(err).Warn("failed to submit leaderboard score")
		}
		if res.Stake > 0 {
			if err := ms.Leaderboard.AwardPoints(ctx, res.WinnerWallet, res.Stake, "pong_win"); err != nil {
				log.WithError(err).Warn("failed to award win points")
			}
		}
	}

	log.Info("match settled")
}

// releasePlayer drops the player's match association and garbage-collects the
// match once nobody is attached to it anymore.
func (ms *MatchServer) releasePlayer(playerID uuid.UUID) {
	ms.mu.Lock()
	m, ok := ms.byPlayer[playerID]
	delete(ms.byPlayer, playerID)
	orphaned := ok
	for _, other := range ms.byPlayer {
		if other == m {
			orphaned = false
			break
		}
	}
	ms.mu.Unlock()

	if orphaned {
		ms.MatchStore.DeleteMatch(m.ID)
		ms.Logger.WithField("match", m.ID).Info("match removed from store")
	}
}

// createBroadcastFunc returns a Match.BroadcastFn. It is invoked while the
// match lock is held, so the actual socket writes happen on a goroutine.
func (ms *MatchServer) createBroadcastFunc(m *game.Match) func(msg protocol.ServerMessage) {
	return func(msg protocol.ServerMessage) {
		for _, p := range m.Players {
			ms.sendToPlayer(p, msg)
		}
	}
}

// createSendToFunc returns a Match.SendToFn targeting a single side.
func (ms *MatchServer) createSendToFunc(m *game.Match) func(side models.Side, msg protocol.ServerMessage) {
	return func(side models.Side, msg protocol.ServerMessage) {
		ms.sendToPlayer(m.Players[side], msg)
	}
}

// sendToPlayer marshals and writes one frame, asynchronously, with a write
// timeout. Disconnected players are skipped silently.
func (ms *MatchServer) sendToPlayer(p *models.Player, msg protocol.ServerMessage) {
	if p == nil || !p.Connected || p.Conn == nil {
		return
	}
	data, err := json.Marshal(msg)
	if err != nil {
		ms.Logger.WithError(err).Errorf("failed to marshal %s frame", msg.Type)
		return
	}
	conn := p.Conn
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
			ms.Logger.WithError(err).WithField("player", p.ID).Warn("failed to write frame")
		}
	}()
}
