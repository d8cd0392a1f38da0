// internal/game/ultimate.go
package game

import (
	"errors"

	"github.com/bearpark/arcade/internal/models"
)

// AbilityType names one of the three one-shot ultimates.
type AbilityType string

const (
	AbilityTimeFreeze AbilityType = "time_freeze"
	AbilityPaddleDash AbilityType = "paddle_dash"
	AbilityPowerHit   AbilityType = "power_hit"
)

var (
	ErrUnknownAbility = errors.New("unknown ultimate ability")
	ErrAbilityUsed    = errors.New("ultimate already used this match")
)

// Valid reports whether the ability name is one the server recognises.
func (a AbilityType) Valid() bool {
	switch a {
	case AbilityTimeFreeze, AbilityPaddleDash, AbilityPowerHit:
		return true
	}
	return false
}

// abilityTracker records one-time-per-match usage per side. Each ability stays
// consumed until Refresh re-arms everything after a scoring event.
type abilityTracker struct {
	used map[models.Side]map[AbilityType]bool
}

func newAbilityTracker() *abilityTracker {
	t := &abilityTracker{used: make(map[models.Side]map[AbilityType]bool)}
	t.Refresh()
	return t
}

// Use consumes the ability for the given side, or reports why it cannot.
func (t *abilityTracker) Use(side models.Side, ability AbilityType) error {
	if !ability.Valid() {
		return ErrUnknownAbility
	}
	if t.used[side][ability] {
		return ErrAbilityUsed
	}
	t.used[side][ability] = true
	return nil
}

// Used reports whether the side has already spent the ability.
func (t *abilityTracker) Used(side models.Side, ability AbilityType) bool {
	return t.used[side][ability]
}

// Refresh re-arms every ability for both sides.
func (t *abilityTracker) Refresh() {
	for _, side := range []models.Side{models.SideLeft, models.SideRight} {
		t.used[side] = make(map[AbilityType]bool)
	}
}
