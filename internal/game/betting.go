// internal/game/betting.go
package game

import (
	"errors"

	"github.com/bearpark/arcade/internal/models"
)

// Betting phase errors surfaced to the WS handler as error frames.
var (
	ErrBetsLocked   = errors.New("bets are locked")
	ErrAlreadyReady = errors.New("cannot change bet after readying up")
	ErrNegativeBet  = errors.New("bet amount cannot be negative")
)

// BettingPhase tracks the pre-match negotiation state machine:
// AWAITING_BETS -> AWAITING_READY -> LOCKED.
type BettingPhase int

const (
	PhaseAwaitingBets BettingPhase = iota
	PhaseAwaitingReady
	PhaseLocked
)

func (p BettingPhase) String() string {
	switch p {
	case PhaseAwaitingBets:
		return "AWAITING_BETS"
	case PhaseAwaitingReady:
		return "AWAITING_READY"
	case PhaseLocked:
		return "LOCKED"
	default:
		return "UNKNOWN"
	}
}

// BettingSession holds each side's proposed stake and readiness. It is a pure
// state machine; the owning Match serializes access and drives the timeout.
type BettingSession struct {
	bets  map[models.Side]int
	ready map[models.Side]bool
	stake int
	phase BettingPhase
}

// NewBettingSession starts a fresh negotiation with both bets at zero.
func NewBettingSession() *BettingSession {
	return &BettingSession{
		bets:  map[models.Side]int{models.SideLeft: 0, models.SideRight: 0},
		ready: map[models.Side]bool{models.SideLeft: false, models.SideRight: false},
		phase: PhaseAwaitingBets,
	}
}

// Phase reports the session-wide state.
func (b *BettingSession) Phase() BettingPhase { return b.phase }

// Bet returns the given side's current proposal.
func (b *BettingSession) Bet(side models.Side) int { return b.bets[side] }

// IsReady reports whether the given side has readied up.
func (b *BettingSession) IsReady(side models.Side) bool { return b.ready[side] }

// Stake returns the resolved stake. Only meaningful once Phase() == PhaseLocked.
func (b *BettingSession) Stake() int { return b.stake }

// SetBet records a side's proposal. A player may only change their bet before
// they have readied up and before the session locks.
func (b *BettingSession) SetBet(side models.Side, amount int) error {
	if amount < 0 {
		return ErrNegativeBet
	}
	if b.phase == PhaseLocked {
		return ErrBetsLocked
	}
	if b.ready[side] {
		return ErrAlreadyReady
	}
	b.bets[side] = amount
	return nil
}

// Ready marks a side as ready. Once both sides are ready the session locks
// and the final stake is computed; the return value reports whether this call
// caused the lock.
func (b *BettingSession) Ready(side models.Side) (locked bool, err error) {
	if b.phase == PhaseLocked {
		return false, ErrBetsLocked
	}
	if b.ready[side] {
		return false, nil
	}
	b.ready[side] = true
	b.phase = PhaseAwaitingReady
	if b.ready[side.Opposite()] {
		b.lock()
		return true, nil
	}
	return false, nil
}

// ReadyCount returns how many sides have readied up.
func (b *BettingSession) ReadyCount() int {
	n := 0
	for _, r := range b.ready {
		if r {
			n++
		}
	}
	return n
}

// ForceResolve is invoked when the betting countdown expires with at least one
// ready side: the session locks with whatever proposals are on the table (an
// absent proposal is zero, which zeroes the stake).
func (b *BettingSession) ForceResolve() int {
	b.lock()
	return b.stake
}

func (b *BettingSession) lock() {
	b.stake = ResolveStake(b.bets[models.SideLeft], b.bets[models.SideRight])
	b.phase = PhaseLocked
}

// ResolveStake computes the wager both players are held to: zero if either
// side proposed zero, otherwise the minimum of the two proposals.
func ResolveStake(a, b int) int {
	if a == 0 || b == 0 {
		return 0
	}
	if a < b {
		return a
	}
	return b
}

// Payout maps a resolved stake onto balance deltas: the winner gains the
// stake and the loser pays it. A zero stake moves nothing.
func Payout(stake int) (winnerDelta, loserDelta int) {
	return stake, -stake
}
