// internal/game/betting_test.go
package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bearpark/arcade/internal/models"
)

func TestResolveStake(t *testing.T) {
	tests := []struct {
		name string
		a, b int
		want int
	}{
		{"both zero", 0, 0, 0},
		{"left zero voids", 0, 100, 0},
		{"right zero voids", 50, 0, 0},
		{"minimum wins", 50, 20, 20},
		{"minimum wins reversed", 20, 50, 20},
		{"equal bets", 30, 30, 30},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveStake(tt.a, tt.b))
		})
	}
}

func TestPayout(t *testing.T) {
	win, lose := Payout(20)
	assert.Equal(t, 20, win)
	assert.Equal(t, -20, lose)

	win, lose = Payout(0)
	assert.Zero(t, win)
	assert.Zero(t, lose)
}

func TestBettingSessionLocksWhenBothReady(t *testing.T) {
	b := NewBettingSession()
	require.Equal(t, PhaseAwaitingBets, b.Phase())

	require.NoError(t, b.SetBet(models.SideLeft, 50))
	require.NoError(t, b.SetBet(models.SideRight, 20))

	locked, err := b.Ready(models.SideLeft)
	require.NoError(t, err)
	assert.False(t, locked)
	assert.Equal(t, PhaseAwaitingReady, b.Phase())

	locked, err = b.Ready(models.SideRight)
	require.NoError(t, err)
	assert.True(t, locked)
	assert.Equal(t, PhaseLocked, b.Phase())
	assert.Equal(t, 20, b.Stake())
}

func TestBettingSessionRejectsChangesAfterReady(t *testing.T) {
	b := NewBettingSession()
	require.NoError(t, b.SetBet(models.SideLeft, 10))

	_, err := b.Ready(models.SideLeft)
	require.NoError(t, err)

	err = b.SetBet(models.SideLeft, 99)
	assert.ErrorIs(t, err, ErrAlreadyReady)

	// The opponent can still adjust until they ready up.
	require.NoError(t, b.SetBet(models.SideRight, 5))
}

func TestBettingSessionRejectsNegativeBet(t *testing.T) {
	b := NewBettingSession()
	assert.ErrorIs(t, b.SetBet(models.SideLeft, -1), ErrNegativeBet)
}

func TestBettingSessionRejectsBetsOnceLocked(t *testing.T) {
	b := NewBettingSession()
	_, err := b.Ready(models.SideLeft)
	require.NoError(t, err)
	_, err = b.Ready(models.SideRight)
	require.NoError(t, err)

	assert.ErrorIs(t, b.SetBet(models.SideLeft, 10), ErrBetsLocked)
	_, err = b.Ready(models.SideLeft)
	assert.ErrorIs(t, err, ErrBetsLocked)
}

func TestForceResolveUsesProposalsOnTable(t *testing.T) {
	b := NewBettingSession()
	require.NoError(t, b.SetBet(models.SideLeft, 40))
	_, err := b.Ready(models.SideLeft)
	require.NoError(t, err)

	// The right side never proposed: its bet is zero, so the stake resolves
	// to zero.
	stake := b.ForceResolve()
	assert.Zero(t, stake)
	assert.Equal(t, PhaseLocked, b.Phase())

	b2 := NewBettingSession()
	require.NoError(t, b2.SetBet(models.SideLeft, 40))
	require.NoError(t, b2.SetBet(models.SideRight, 15))
	_, err = b2.Ready(models.SideLeft)
	require.NoError(t, err)
	assert.Equal(t, 15, b2.ForceResolve())
}

func TestReadyCount(t *testing.T) {
	b := NewBettingSession()
	assert.Zero(t, b.ReadyCount())
	_, err := b.Ready(models.SideRight)
	require.NoError(t, err)
	assert.Equal(t, 1, b.ReadyCount())
}
