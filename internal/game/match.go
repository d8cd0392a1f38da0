// internal/game/match.go
package game

import (
	"log"
	"sync"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/bearpark/arcade/internal/models"
	"github.com/bearpark/arcade/internal/protocol"
)

// EndReason explains why a match finished.
type EndReason string

const (
	EndByScore      EndReason = "score"
	EndByForfeit    EndReason = "forfeit"
	EndByDisconnect EndReason = "disconnect"
	EndAbandoned    EndReason = "abandoned"
)

// Result summarizes a finished match for settlement and history.
type Result struct {
	MatchID      uuid.UUID
	Winner       models.Side
	WinnerWallet string
	LoserWallet  string
	ScoreLeft    int
	ScoreRight   int
	Stake        int
	Reason       EndReason
}

// OnMatchEndFunc receives the final result once, when the match ends in any
// way. Settlement, history and leaderboard submission hang off this.
type OnMatchEndFunc func(res Result)

// Match holds the entire authoritative state for one pong session: betting
// negotiation, countdown, ball/paddle physics and score. The server is the
// sole writer; clients only ever send their own ghost paddle position.
type Match struct {
	ID     uuid.UUID
	Config Config

	Players map[models.Side]*models.Player

	Betting *BettingSession

	// Physics state. Ball coordinates are the ball's center; paddle Y is the
	// paddle's center.
	ballX, ballY   float64
	ballVX, ballVY float64
	paddleY        map[models.Side]float64
	paddleHeight   map[models.Side]float64
	scores         map[models.Side]int

	// Ultimate ability state.
	abilities       *abilityTracker
	freezeTicksLeft int
	powerHitArmed   map[models.Side]bool
	dashArmed       map[models.Side]bool

	countdownTicksLeft int
	started            bool // ball in motion (gameStarted flag in snapshots)
	over               bool
	abandoned          bool

	stake         int
	stakeResolved bool

	rematchWanted map[models.Side]bool

	clock        clockwork.Clock
	bettingTimer clockwork.Timer
	stopCh       chan struct{}
	running      bool

	Mu sync.Mutex

	// BroadcastFn sends a message to both players. If nil, no broadcast is done.
	BroadcastFn func(msg protocol.ServerMessage)
	// SendToFn sends a message to a single side.
	SendToFn func(side models.Side, msg protocol.ServerMessage)
	// OnMatchEnd is invoked exactly once when the match ends.
	OnMatchEnd OnMatchEndFunc
}

// NewMatch builds an idle match between two paired players. The clock is
// injected so tests can drive the tick loop and timeouts deterministically.
func NewMatch(cfg Config, clock clockwork.Clock, left, right *models.Player) *Match {
	id, _ := uuid.NewRandom()
	left.Side = models.SideLeft
	right.Side = models.SideRight
	m := &Match{
		ID:     id,
		Config: cfg,
		Players: map[models.Side]*models.Player{
			models.SideLeft:  left,
			models.SideRight: right,
		},
		Betting:       NewBettingSession(),
		paddleY:       make(map[models.Side]float64),
		paddleHeight:  make(map[models.Side]float64),
		scores:        make(map[models.Side]int),
		abilities:     newAbilityTracker(),
		powerHitArmed: make(map[models.Side]bool),
		dashArmed:     make(map[models.Side]bool),
		rematchWanted: make(map[models.Side]bool),
		clock:         clock,
	}
	m.resetCourt()
	return m
}

// resetCourt restores paddles, scores and the ball to their initial state.
// Assumes lock is held (or the match is not yet shared).
func (m *Match) resetCourt() {
	for _, side := range []models.Side{models.SideLeft, models.SideRight} {
		m.paddleY[side] = m.Config.CanvasHeight / 2
		m.paddleHeight[side] = m.Config.PaddleHeight
		m.scores[side] = 0
		m.powerHitArmed[side] = false
		m.dashArmed[side] = false
	}
	m.freezeTicksLeft = 0
	m.resetBall(models.SideRight)
}

// StartBetting opens the negotiation window and arms the wall-clock timeout
// that forces resolution.
func (m *Match) StartBetting() {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.bettingTimer = m.clock.AfterFunc(m.Config.BettingTimeout, m.handleBettingTimeout)
}

// SetBet records a side's proposed stake and tells the opponent.
func (m *Match) SetBet(side models.Side, amount int) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if m.over {
		return ErrBetsLocked
	}
	if err := m.Betting.SetBet(side, amount); err != nil {
		return err
	}
	m.sendTo(side.Opposite(), protocol.ServerMessage{
		Type:   protocol.TypeOpponentBetSet,
		Amount: protocol.IntPtr(amount),
	})
	return nil
}

// Ready marks a side as ready to start. When both sides are ready the stake
// locks and the countdown begins.
func (m *Match) Ready(side models.Side) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if m.over {
		return ErrBetsLocked
	}
	locked, err := m.Betting.Ready(side)
	if err != nil {
		return err
	}
	m.sendTo(side.Opposite(), protocol.ServerMessage{Type: protocol.TypeOpponentReady})
	if locked {
		m.finalizeStake()
	}
	return nil
}

// handleBettingTimeout fires when the 30s negotiation window closes. Nobody
// ready means the session is abandoned; one ready side forces resolution with
// whatever proposals are on the table.
func (m *Match) handleBettingTimeout() {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if m.over || m.stakeResolved {
		return // stale timer
	}
	if m.Betting.ReadyCount() == 0 {
		m.broadcast(protocol.ServerMessage{Type: protocol.TypeBettingTimeout})
		m.abandonLocked()
		return
	}
	m.Betting.ForceResolve()
	m.finalizeStake()
}

// finalizeStake locks the wager, announces it and starts the countdown.
// Assumes lock is held.
func (m *Match) finalizeStake() {
	if m.bettingTimer != nil {
		m.bettingTimer.Stop()
		m.bettingTimer = nil
	}
	m.stake = m.Betting.Stake()
	m.stakeResolved = true
	m.broadcast(protocol.ServerMessage{
		Type:   protocol.TypeFinalBetAmount,
		Amount: protocol.IntPtr(m.stake),
	})
	m.beginCountdown()
}

// beginCountdown seeds the pre-game countdown and starts the tick loop.
// Assumes lock is held.
func (m *Match) beginCountdown() {
	m.countdownTicksLeft = m.Config.CountdownSeconds * m.Config.TickRate
	m.startLoopLocked()
}

// startLoopLocked spawns the fixed-rate simulation goroutine once.
// Assumes lock is held.
func (m *Match) startLoopLocked() {
	if m.running {
		return
	}
	m.running = true
	m.stopCh = make(chan struct{})
	go m.run(m.stopCh)
}

// run is the per-match tick loop. Each match owns exactly one; there is no
// shared mutable state across matches.
func (m *Match) run(stop chan struct{}) {
	ticker := m.clock.NewTicker(m.Config.TickInterval())
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.Chan():
			m.tick()
		}
	}
}

// tick advances the countdown or the physics by one step and broadcasts the
// resulting snapshot. No snapshots are sent once the match is over.
func (m *Match) tick() {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if m.over {
		return
	}
	if m.countdownTicksLeft > 0 {
		if m.countdownTicksLeft%m.Config.TickRate == 0 {
			m.broadcast(protocol.ServerMessage{
				Type:  protocol.TypeCountdown,
				Count: m.countdownTicksLeft / m.Config.TickRate,
			})
		}
		m.countdownTicksLeft--
		if m.countdownTicksLeft == 0 {
			m.started = true
		}
	} else if m.started {
		m.stepPhysics()
	}
	if !m.over {
		state := m.snapshotLocked()
		m.broadcast(protocol.ServerMessage{
			Type:  protocol.TypeGameState,
			State: &state,
		})
	}
}

// SetPaddleY accepts a client's ghost paddle position. The position is
// clamped to the court and rate-limited per update; it is echoed back in the
// next snapshot but never reconciled against a server-side paddle simulation.
func (m *Match) SetPaddleY(side models.Side, y float64) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if m.over {
		return
	}
	half := m.paddleHeight[side] / 2
	if y < half {
		y = half
	}
	if y > m.Config.CanvasHeight-half {
		y = m.Config.CanvasHeight - half
	}
	cur := m.paddleY[side]
	delta := y - cur
	if m.dashArmed[side] {
		// One unclamped reposition per paddle_dash.
		m.dashArmed[side] = false
	} else {
		if delta > m.Config.PaddleMaxVelocity {
			y = cur + m.Config.PaddleMaxVelocity
		} else if delta < -m.Config.PaddleMaxVelocity {
			y = cur - m.Config.PaddleMaxVelocity
		}
	}
	m.paddleY[side] = y
}

// UseUltimate validates and applies a one-shot ability, then announces it so
// both clients render matching effects.
func (m *Match) UseUltimate(side models.Side, ability AbilityType) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if !m.started || m.over {
		return ErrMatchNotLive
	}
	if err := m.abilities.Use(side, ability); err != nil {
		return err
	}
	switch ability {
	case AbilityTimeFreeze:
		m.freezeTicksLeft = int(m.Config.TimeFreezeDuration / m.Config.TickInterval())
	case AbilityPaddleDash:
		m.dashArmed[side] = true
	case AbilityPowerHit:
		m.powerHitArmed[side] = true
	}
	m.broadcast(protocol.ServerMessage{
		Type:        protocol.TypeUltimateActivated,
		Side:        side,
		AbilityType: string(ability),
	})
	return nil
}

// onScore credits the scoring side, re-arms ultimates, and either ends the
// match or serves the next rally. Assumes lock is held.
func (m *Match) onScore(side models.Side) {
	m.scores[side]++
	m.abilities.Refresh()
	m.broadcast(protocol.ServerMessage{Type: protocol.TypePowerupsRefreshed})
	if m.scores[side] >= m.Config.WinningScore {
		m.endGameLocked(side, EndByScore)
		return
	}
	// The rally ramp resets between points: paddles regrow, ball re-serves
	// at base speed toward the conceding side.
	for _, s := range []models.Side{models.SideLeft, models.SideRight} {
		m.paddleHeight[s] = m.Config.PaddleHeight
		m.powerHitArmed[s] = false
	}
	m.freezeTicksLeft = 0
	m.resetBall(side.Opposite())
}

// endGameLocked finishes the match, broadcasts game_over as the final frame,
// stops the loop and hands the result to OnMatchEnd. Assumes lock is held.
func (m *Match) endGameLocked(winner models.Side, reason EndReason) {
	if m.over {
		return
	}
	m.over = true
	m.stopLoopLocked()
	m.broadcast(protocol.ServerMessage{
		Type:   protocol.TypeGameOver,
		Winner: winner,
		FinalScore: &protocol.FinalScore{
			Left:  m.scores[models.SideLeft],
			Right: m.scores[models.SideRight],
		},
		BetAmount: protocol.IntPtr(m.stake),
	})
	m.fireMatchEnd(Result{
		MatchID:      m.ID,
		Winner:       winner,
		WinnerWallet: m.Players[winner].Data.Wallet,
		LoserWallet:  m.Players[winner.Opposite()].Data.Wallet,
		ScoreLeft:    m.scores[models.SideLeft],
		ScoreRight:   m.scores[models.SideRight],
		Stake:        m.stake,
		Reason:       reason,
	})
}

// abandonLocked tears the session down with no winner and no settlement.
// Assumes lock is held.
func (m *Match) abandonLocked() {
	if m.over {
		return
	}
	m.over = true
	m.abandoned = true
	m.stopLoopLocked()
	m.fireMatchEnd(Result{MatchID: m.ID, Stake: 0, Reason: EndAbandoned})
}

func (m *Match) stopLoopLocked() {
	if m.bettingTimer != nil {
		m.bettingTimer.Stop()
		m.bettingTimer = nil
	}
	if m.running {
		close(m.stopCh)
		m.running = false
	}
}

// fireMatchEnd invokes the callback off the lock. Assumes lock is held.
func (m *Match) fireMatchEnd(res Result) {
	if m.OnMatchEnd == nil {
		return
	}
	go m.OnMatchEnd(res)
}

// HandleLeave processes an intentional exit. The opponent is never sent an
// opponent_disconnected event for a deliberate leave: mid-game they receive a
// normal game_over awarding them the match; during betting the session is
// simply abandoned.
func (m *Match) HandleLeave(side models.Side) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if m.over {
		return
	}
	log.Printf("Match %s: player %s (%s) left intentionally.", m.ID, m.Players[side].Data.Wallet, side)
	if m.started {
		m.endGameLocked(side.Opposite(), EndByForfeit)
		return
	}
	m.sendTo(side.Opposite(), protocol.ErrorMessage("Opponent left the match."))
	m.abandonLocked()
}

// HandleReconnect re-binds a fresh socket to a side that is still in a live
// match and replays the current snapshot so the client can resume rendering.
func (m *Match) HandleReconnect(side models.Side, conn *websocket.Conn) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	p := m.Players[side]
	p.Conn = conn
	p.Connected = true
	if m.over {
		return
	}
	log.Printf("Match %s: player %s (%s) reconnected.", m.ID, p.Data.Wallet, side)
	state := m.snapshotLocked()
	m.sendTo(side, protocol.ServerMessage{
		Type:  protocol.TypeGameState,
		State: &state,
	})
}

// HandleDisconnect processes an involuntary socket closure. The remaining
// player is notified and, once a stake has been resolved, awarded the win by
// default rather than voiding the match. conn is the socket the reporting
// handler owns: if the seat has already re-bound to a newer socket, the
// closure is stale and ignored.
func (m *Match) HandleDisconnect(side models.Side, conn *websocket.Conn) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	p := m.Players[side]
	if conn != nil && p.Conn != conn {
		return // a newer socket owns this seat
	}
	if !p.Connected {
		return // already handled
	}
	p.Connected = false
	p.Conn = nil
	if m.over {
		return
	}
	log.Printf("Match %s: player %s (%s) disconnected.", m.ID, p.Data.Wallet, side)
	m.sendTo(side.Opposite(), protocol.ServerMessage{Type: protocol.TypeOpponentDisconnected})
	if m.stakeResolved {
		m.endGameLocked(side.Opposite(), EndByDisconnect)
	} else {
		m.abandonLocked()
	}
}

// RequestRematch records one side's rematch wish. When both sides have asked,
// the match resets to a fresh betting phase with all ultimates re-armed.
func (m *Match) RequestRematch(side models.Side) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if !m.over || m.abandoned {
		return
	}
	if m.rematchWanted[side] {
		return
	}
	m.rematchWanted[side] = true
	if !m.rematchWanted[side.Opposite()] {
		m.sendTo(side.Opposite(), protocol.ServerMessage{Type: protocol.TypeRematchRequested})
		return
	}
	m.broadcast(protocol.ServerMessage{Type: protocol.TypeRematchAccepted})
	m.resetForRematch()
}

// resetForRematch restores a clean match and reopens betting. The stake is
// renegotiated from scratch. Assumes lock is held.
func (m *Match) resetForRematch() {
	m.resetCourt()
	m.abilities.Refresh()
	m.Betting = NewBettingSession()
	m.stake = 0
	m.stakeResolved = false
	m.started = false
	m.over = false
	m.abandoned = false
	m.countdownTicksLeft = 0
	m.rematchWanted = make(map[models.Side]bool)
	m.bettingTimer = m.clock.AfterFunc(m.Config.BettingTimeout, m.handleBettingTimeout)
}

// Over reports whether the match has ended.
func (m *Match) Over() bool {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	return m.over
}

// Scores returns the current totals.
func (m *Match) Scores() (left, right int) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	return m.scores[models.SideLeft], m.scores[models.SideRight]
}

// Stake returns the resolved wager (zero until betting locks).
func (m *Match) Stake() int {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	return m.stake
}

// Snapshot returns the current authoritative state.
func (m *Match) Snapshot() protocol.GameState {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	return m.snapshotLocked()
}

// snapshotLocked builds the broadcast snapshot. Assumes lock is held.
func (m *Match) snapshotLocked() protocol.GameState {
	countdown := 0
	if m.countdownTicksLeft > 0 {
		countdown = (m.countdownTicksLeft + m.Config.TickRate - 1) / m.Config.TickRate
	}
	return protocol.GameState{
		BallX:         m.ballX,
		BallY:         m.ballY,
		BallVelocityX: m.ballVX,
		BallVelocityY: m.ballVY,
		Paddle1Y:      m.paddleY[models.SideLeft],
		Paddle2Y:      m.paddleY[models.SideRight],
		Paddle1Height: m.paddleHeight[models.SideLeft],
		Paddle2Height: m.paddleHeight[models.SideRight],
		Score1:        m.scores[models.SideLeft],
		Score2:        m.scores[models.SideRight],
		GameStarted:   m.started,
		Countdown:     countdown,
	}
}

// broadcast sends to both players. Assumes lock is held.
func (m *Match) broadcast(msg protocol.ServerMessage) {
	if m.BroadcastFn != nil {
		m.BroadcastFn(msg)
	}
}

// sendTo sends to one side. Assumes lock is held.
func (m *Match) sendTo(side models.Side, msg protocol.ServerMessage) {
	if m.SendToFn != nil {
		m.SendToFn(side, msg)
	}
}
