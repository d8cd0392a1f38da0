// internal/game/match_test.go
package game

import (
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bearpark/arcade/internal/models"
	"github.com/bearpark/arcade/internal/protocol"
)

// mockSender collects outgoing frames instead of writing to sockets.
type mockSender struct {
	mu         sync.Mutex
	broadcasts []protocol.ServerMessage
	perSide    map[models.Side][]protocol.ServerMessage
}

func newMockSender() *mockSender {
	return &mockSender{perSide: make(map[models.Side][]protocol.ServerMessage)}
}

func (ms *mockSender) broadcastFn(msg protocol.ServerMessage) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.broadcasts = append(ms.broadcasts, msg)
}

func (ms *mockSender) sendToFn(side models.Side, msg protocol.ServerMessage) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.perSide[side] = append(ms.perSide[side], msg)
}

func (ms *mockSender) lastBroadcast() *protocol.ServerMessage {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if len(ms.broadcasts) == 0 {
		return nil
	}
	return &ms.broadcasts[len(ms.broadcasts)-1]
}

func (ms *mockSender) broadcastsOfType(msgType string) []protocol.ServerMessage {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	var out []protocol.ServerMessage
	for _, m := range ms.broadcasts {
		if m.Type == msgType {
			out = append(out, m)
		}
	}
	return out
}

func (ms *mockSender) sideReceived(side models.Side, msgType string) bool {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	for _, m := range ms.perSide[side] {
		if m.Type == msgType {
			return true
		}
	}
	return false
}

// setupTestMatchClock builds a match driven by a fake clock with mock senders.
func setupTestMatchClock(t *testing.T) (*Match, *mockSender, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClock()
	left := &models.Player{Data: models.PlayerData{Wallet: "left.hive"}, Connected: true}
	right := &models.Player{Data: models.PlayerData{Wallet: "right.hive"}, Connected: true}
	m := NewMatch(DefaultConfig(), clock, left, right)
	sender := newMockSender()
	m.BroadcastFn = sender.broadcastFn
	m.SendToFn = sender.sendToFn
	return m, sender, clock
}

func TestBettingFlowLocksAndStartsCountdown(t *testing.T) {
	m, sender, _ := setupTestMatchClock(t)
	m.StartBetting()

	require.NoError(t, m.SetBet(models.SideLeft, 50))
	assert.True(t, sender.sideReceived(models.SideRight, protocol.TypeOpponentBetSet))

	require.NoError(t, m.Ready(models.SideLeft))
	assert.True(t, sender.sideReceived(models.SideRight, protocol.TypeOpponentReady))

	require.NoError(t, m.SetBet(models.SideRight, 20))
	require.NoError(t, m.Ready(models.SideRight))

	finals := sender.broadcastsOfType(protocol.TypeFinalBetAmount)
	require.Len(t, finals, 1)
	require.NotNil(t, finals[0].Amount)
	assert.Equal(t, 20, *finals[0].Amount)
	assert.Equal(t, 20, m.Stake())
}

func TestBettingTimeoutNobodyReadyAbandons(t *testing.T) {
	m, sender, clock := setupTestMatchClock(t)
	m.StartBetting()

	require.NoError(t, m.SetBet(models.SideLeft, 50))
	clock.Advance(m.Config.BettingTimeout)

	require.Eventually(t, m.Over, time.Second, 5*time.Millisecond)
	assert.NotEmpty(t, sender.broadcastsOfType(protocol.TypeBettingTimeout))
	assert.Empty(t, sender.broadcastsOfType(protocol.TypeFinalBetAmount))
}

func TestBettingTimeoutOneReadyForcesResolution(t *testing.T) {
	m, sender, clock := setupTestMatchClock(t)
	m.StartBetting()

	require.NoError(t, m.SetBet(models.SideLeft, 40))
	require.NoError(t, m.SetBet(models.SideRight, 15))
	require.NoError(t, m.Ready(models.SideLeft))

	clock.Advance(m.Config.BettingTimeout)

	require.Eventually(t, func() bool {
		return len(sender.broadcastsOfType(protocol.TypeFinalBetAmount)) == 1
	}, time.Second, 5*time.Millisecond)

	finals := sender.broadcastsOfType(protocol.TypeFinalBetAmount)
	require.NotNil(t, finals[0].Amount)
	assert.Equal(t, 15, *finals[0].Amount)
	assert.False(t, m.Over())
}

func TestBettingTimeoutUnreadySideDefaultsToZero(t *testing.T) {
	m, sender, clock := setupTestMatchClock(t)
	m.StartBetting()

	// Left proposes and readies; right never engages. The right side's
	// implicit proposal of zero voids the stake.
	require.NoError(t, m.SetBet(models.SideLeft, 40))
	require.NoError(t, m.Ready(models.SideLeft))

	clock.Advance(m.Config.BettingTimeout)

	require.Eventually(t, func() bool {
		return len(sender.broadcastsOfType(protocol.TypeFinalBetAmount)) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, m.Stake())
	assert.False(t, m.Over())
}

func TestCountdownBroadcastsThenGameStarts(t *testing.T) {
	m, sender, _ := setupTestMatchClock(t)
	m.StartBetting()
	require.NoError(t, m.Ready(models.SideLeft))
	require.NoError(t, m.Ready(models.SideRight))

	totalTicks := m.Config.CountdownSeconds * m.Config.TickRate
	for i := 0; i < totalTicks; i++ {
		m.tick()
	}

	counts := sender.broadcastsOfType(protocol.TypeCountdown)
	require.Len(t, counts, m.Config.CountdownSeconds)
	assert.Equal(t, 3, counts[0].Count)
	assert.Equal(t, 2, counts[1].Count)
	assert.Equal(t, 1, counts[2].Count)

	m.tick()
	last := sender.lastBroadcast()
	require.NotNil(t, last)
	require.Equal(t, protocol.TypeGameState, last.Type)
	assert.True(t, last.State.GameStarted)
}

func TestUltimateOncePerMatchUntilRefreshed(t *testing.T) {
	m, sender, _ := setupTestMatchClock(t)
	m.started = true
	m.stakeResolved = true

	require.NoError(t, m.UseUltimate(models.SideLeft, AbilityTimeFreeze))
	activations := sender.broadcastsOfType(protocol.TypeUltimateActivated)
	require.Len(t, activations, 1)
	assert.Equal(t, models.SideLeft, activations[0].Side)
	assert.Equal(t, string(AbilityTimeFreeze), activations[0].AbilityType)

	assert.ErrorIs(t, m.UseUltimate(models.SideLeft, AbilityTimeFreeze), ErrAbilityUsed)
	// Each ultimate is tracked per side and per ability.
	require.NoError(t, m.UseUltimate(models.SideLeft, AbilityPowerHit))
	require.NoError(t, m.UseUltimate(models.SideRight, AbilityTimeFreeze))

	// A scoring event re-arms everything.
	m.onScore(models.SideLeft)
	assert.NotEmpty(t, sender.broadcastsOfType(protocol.TypePowerupsRefreshed))
	require.NoError(t, m.UseUltimate(models.SideLeft, AbilityTimeFreeze))
}

func TestUltimateRejectedOutsidePlay(t *testing.T) {
	m, _, _ := setupTestMatchClock(t)
	assert.ErrorIs(t, m.UseUltimate(models.SideLeft, AbilityTimeFreeze), ErrMatchNotLive)

	m.started = true
	assert.ErrorIs(t, m.UseUltimate(models.SideLeft, AbilityType("laser")), ErrUnknownAbility)
}

func TestGameOverIsFinalFrame(t *testing.T) {
	m, sender, _ := setupTestMatchClock(t)
	m.started = true
	m.stakeResolved = true
	m.stake = 25

	resultCh := make(chan Result, 1)
	m.OnMatchEnd = func(res Result) { resultCh <- res }

	m.scores[models.SideLeft] = 2
	m.onScore(models.SideLeft)

	overs := sender.broadcastsOfType(protocol.TypeGameOver)
	require.Len(t, overs, 1)
	assert.Equal(t, models.SideLeft, overs[0].Winner)
	require.NotNil(t, overs[0].FinalScore)
	assert.Equal(t, 3, overs[0].FinalScore.Left)
	require.NotNil(t, overs[0].BetAmount)
	assert.Equal(t, 25, *overs[0].BetAmount)

	// game_over is the last frame: ticks after the end produce nothing.
	last := sender.lastBroadcast()
	m.tick()
	m.tick()
	assert.Equal(t, last, sender.lastBroadcast())

	select {
	case res := <-resultCh:
		assert.Equal(t, models.SideLeft, res.Winner)
		assert.Equal(t, "left.hive", res.WinnerWallet)
		assert.Equal(t, "right.hive", res.LoserWallet)
		assert.Equal(t, 25, res.Stake)
		assert.Equal(t, EndByScore, res.Reason)
	case <-time.After(time.Second):
		t.Fatal("OnMatchEnd was never invoked")
	}
}

func TestHandleLeaveMidGameForfeits(t *testing.T) {
	m, sender, _ := setupTestMatchClock(t)
	m.started = true
	m.stakeResolved = true

	resultCh := make(chan Result, 1)
	m.OnMatchEnd = func(res Result) { resultCh <- res }

	m.HandleLeave(models.SideLeft)

	overs := sender.broadcastsOfType(protocol.TypeGameOver)
	require.Len(t, overs, 1)
	assert.Equal(t, models.SideRight, overs[0].Winner)

	// An intentional leave never reads as a connection drop.
	assert.False(t, sender.sideReceived(models.SideRight, protocol.TypeOpponentDisconnected))

	res := <-resultCh
	assert.Equal(t, EndByForfeit, res.Reason)
}

func TestHandleLeaveDuringBettingAbandons(t *testing.T) {
	m, sender, _ := setupTestMatchClock(t)
	m.StartBetting()

	resultCh := make(chan Result, 1)
	m.OnMatchEnd = func(res Result) { resultCh <- res }

	m.HandleLeave(models.SideLeft)

	assert.True(t, sender.sideReceived(models.SideRight, protocol.TypeError))
	assert.False(t, sender.sideReceived(models.SideRight, protocol.TypeOpponentDisconnected))
	assert.Empty(t, sender.broadcastsOfType(protocol.TypeGameOver))

	res := <-resultCh
	assert.Equal(t, EndAbandoned, res.Reason)
	assert.Zero(t, res.Stake)
}

func TestHandleDisconnectMidGameAwardsWin(t *testing.T) {
	m, sender, _ := setupTestMatchClock(t)
	m.started = true
	m.stakeResolved = true
	m.stake = 10

	resultCh := make(chan Result, 1)
	m.OnMatchEnd = func(res Result) { resultCh <- res }

	m.HandleDisconnect(models.SideLeft, nil)

	assert.True(t, sender.sideReceived(models.SideRight, protocol.TypeOpponentDisconnected))
	overs := sender.broadcastsOfType(protocol.TypeGameOver)
	require.Len(t, overs, 1)
	assert.Equal(t, models.SideRight, overs[0].Winner)

	res := <-resultCh
	assert.Equal(t, EndByDisconnect, res.Reason)
	assert.Equal(t, 10, res.Stake)

	// A second disconnect event for the same side is a no-op.
	m.HandleDisconnect(models.SideLeft, nil)
	assert.Len(t, sender.broadcastsOfType(protocol.TypeGameOver), 1)
}

func TestHandleDisconnectBeforeStakeAbandons(t *testing.T) {
	m, sender, _ := setupTestMatchClock(t)
	m.StartBetting()

	resultCh := make(chan Result, 1)
	m.OnMatchEnd = func(res Result) { resultCh <- res }

	m.HandleDisconnect(models.SideLeft, nil)

	assert.True(t, sender.sideReceived(models.SideRight, protocol.TypeOpponentDisconnected))
	assert.Empty(t, sender.broadcastsOfType(protocol.TypeGameOver))

	res := <-resultCh
	assert.Equal(t, EndAbandoned, res.Reason)
}

func TestStaleSocketDisconnectIgnoredAfterReconnect(t *testing.T) {
	m, sender, _ := setupTestMatchClock(t)
	m.started = true
	m.stakeResolved = true
	m.stake = 10

	oldConn := &websocket.Conn{}
	newConn := &websocket.Conn{}
	m.Players[models.SideLeft].Conn = oldConn

	// Player re-binds to a new socket, then the old socket's read loop exits.
	m.HandleReconnect(models.SideLeft, newConn)
	m.HandleDisconnect(models.SideLeft, oldConn)

	assert.False(t, m.Over(), "closure of a superseded socket must not forfeit the match")
	assert.Empty(t, sender.broadcastsOfType(protocol.TypeGameOver))

	// The socket that currently owns the seat still counts.
	m.HandleDisconnect(models.SideLeft, newConn)
	assert.True(t, m.Over())
	overs := sender.broadcastsOfType(protocol.TypeGameOver)
	require.Len(t, overs, 1)
	assert.Equal(t, models.SideRight, overs[0].Winner)
}

func TestRematchResetsForFreshBetting(t *testing.T) {
	m, sender, _ := setupTestMatchClock(t)
	m.started = true
	m.stakeResolved = true
	m.stake = 30
	m.scores[models.SideLeft] = 2
	m.onScore(models.SideLeft)
	require.True(t, m.Over())

	m.RequestRematch(models.SideLeft)
	assert.True(t, sender.sideReceived(models.SideRight, protocol.TypeRematchRequested))
	assert.True(t, m.Over(), "match stays over until both sides agree")

	m.RequestRematch(models.SideRight)
	assert.NotEmpty(t, sender.broadcastsOfType(protocol.TypeRematchAccepted))
	assert.False(t, m.Over())

	// The stake is renegotiated from scratch.
	assert.Zero(t, m.Stake())
	assert.Equal(t, PhaseAwaitingBets, m.Betting.Phase())
	left, right := m.Scores()
	assert.Zero(t, left)
	assert.Zero(t, right)
}

func TestRematchIgnoredAfterAbandon(t *testing.T) {
	m, sender, _ := setupTestMatchClock(t)
	m.StartBetting()
	m.HandleLeave(models.SideLeft)
	require.True(t, m.Over())

	m.RequestRematch(models.SideRight)
	assert.False(t, sender.sideReceived(models.SideLeft, protocol.TypeRematchRequested))
	assert.True(t, m.Over())
}

func TestSetPaddleYClampsAndRateLimits(t *testing.T) {
	m, _, _ := setupTestMatchClock(t)
	start := m.Config.CanvasHeight / 2

	// A huge jump is rate-limited to the per-update cap.
	m.SetPaddleY(models.SideLeft, 0)
	assert.Equal(t, start-m.Config.PaddleMaxVelocity, m.paddleY[models.SideLeft])

	// Small moves pass through untouched.
	cur := m.paddleY[models.SideLeft]
	m.SetPaddleY(models.SideLeft, cur+10)
	assert.Equal(t, cur+10, m.paddleY[models.SideLeft])
}

func TestPaddleDashAllowsOneUnclampedMove(t *testing.T) {
	m, _, _ := setupTestMatchClock(t)
	m.started = true
	m.stakeResolved = true
	require.NoError(t, m.UseUltimate(models.SideLeft, AbilityPaddleDash))

	half := m.paddleHeight[models.SideLeft] / 2
	m.SetPaddleY(models.SideLeft, 0)
	// Court clamp still applies, but the velocity cap does not.
	assert.Equal(t, half, m.paddleY[models.SideLeft])

	// The dash is spent: the next move is rate-limited again.
	m.SetPaddleY(models.SideLeft, m.Config.CanvasHeight)
	assert.Equal(t, half+m.Config.PaddleMaxVelocity, m.paddleY[models.SideLeft])
}
