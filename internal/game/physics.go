// internal/game/physics.go
package game

import (
	"errors"
	"math"
	"math/rand"

	"github.com/bearpark/arcade/internal/models"
)

// ErrMatchNotLive is returned for in-game actions outside the playing phase.
var ErrMatchNotLive = errors.New("match is not in play")

// maxBounceAngle is the steepest deflection off a paddle edge, in radians.
const maxBounceAngle = math.Pi / 3

// resetBall centers the ball and serves it at base speed toward the given
// side. Assumes lock is held.
func (m *Match) resetBall(toward models.Side) {
	m.ballX = m.Config.CanvasWidth / 2
	m.ballY = m.Config.CanvasHeight / 2
	// Serve at a shallow random angle so rallies don't repeat.
	angle := (rand.Float64()*2 - 1) * (math.Pi / 6)
	dir := 1.0
	if toward == models.SideLeft {
		dir = -1.0
	}
	m.ballVX = dir * m.Config.InitialBallSpeed * math.Cos(angle)
	m.ballVY = m.Config.InitialBallSpeed * math.Sin(angle)
}

// ballSpeed returns the current scalar ball speed. Assumes lock is held.
func (m *Match) ballSpeed() float64 {
	return math.Hypot(m.ballVX, m.ballVY)
}

// stepPhysics advances the ball one tick, resolving wall bounces, paddle
// collisions and scoring. Assumes lock is held.
func (m *Match) stepPhysics() {
	factor := 1.0
	if m.freezeTicksLeft > 0 {
		m.freezeTicksLeft--
		factor = m.Config.TimeFreezeFactor
	}
	m.ballX += m.ballVX * factor
	m.ballY += m.ballVY * factor

	r := m.Config.BallSize / 2

	// Top/bottom walls.
	if m.ballY-r < 0 {
		m.ballY = r
		m.ballVY = -m.ballVY
	} else if m.ballY+r > m.Config.CanvasHeight {
		m.ballY = m.Config.CanvasHeight - r
		m.ballVY = -m.ballVY
	}

	leftFace := m.Config.PaddleOffset
	rightFace := m.Config.CanvasWidth - m.Config.PaddleOffset

	if m.ballVX < 0 && m.ballX-r <= leftFace && m.ballX-r >= leftFace-m.Config.PaddleWidth {
		if m.paddleCovers(models.SideLeft, r) {
			m.ballX = leftFace + r
			m.hitPaddle(models.SideLeft)
			return
		}
	}
	if m.ballVX > 0 && m.ballX+r >= rightFace && m.ballX+r <= rightFace+m.Config.PaddleWidth {
		if m.paddleCovers(models.SideRight, r) {
			m.ballX = rightFace - r
			m.hitPaddle(models.SideRight)
			return
		}
	}

	// Past a paddle boundary: the opposing side scores.
	if m.ballX+r < 0 {
		m.onScore(models.SideRight)
	} else if m.ballX-r > m.Config.CanvasWidth {
		m.onScore(models.SideLeft)
	}
}

// paddleCovers reports whether the paddle on the given side spans the ball's
// current Y. Assumes lock is held.
func (m *Match) paddleCovers(side models.Side, ballRadius float64) bool {
	half := m.paddleHeight[side] / 2
	dy := m.ballY - m.paddleY[side]
	return dy >= -(half+ballRadius) && dy <= half+ballRadius
}

// hitPaddle applies the rally ramp: the ball speeds up by a fixed fraction
// per hit (capped), deflects by where it struck the paddle, and the struck
// paddle shrinks (floored). A pending power_hit adds an extra speed kick,
// still within the cap. Assumes lock is held.
func (m *Match) hitPaddle(side models.Side) {
	boost := 1 + m.Config.BallSpeedIncrement
	if m.powerHitArmed[side] {
		boost += m.Config.PowerHitBoost
		m.powerHitArmed[side] = false
	}
	speed := m.ballSpeed() * boost
	if speed > m.Config.MaxBallSpeed {
		speed = m.Config.MaxBallSpeed
	}

	half := m.paddleHeight[side] / 2
	offset := (m.ballY - m.paddleY[side]) / half
	if offset > 1 {
		offset = 1
	} else if offset < -1 {
		offset = -1
	}
	angle := offset * maxBounceAngle

	dir := 1.0
	if side == models.SideRight {
		dir = -1.0
	}
	m.ballVX = dir * speed * math.Cos(angle)
	m.ballVY = speed * math.Sin(angle)

	h := m.paddleHeight[side] - m.Config.PaddleShrinkPerHit
	if h < m.Config.MinPaddleHeight {
		h = m.Config.MinPaddleHeight
	}
	m.paddleHeight[side] = h
}
