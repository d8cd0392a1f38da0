// internal/game/config.go
package game

import "time"

// Config holds the tunables for a single match. Values mirror the portal's
// shared game constants so the client-side renderer and the authoritative
// simulation agree on the court geometry.
type Config struct {
	CanvasWidth  float64
	CanvasHeight float64

	PaddleWidth     float64
	PaddleHeight    float64
	MinPaddleHeight float64
	// PaddleOffset is the distance from the wall to the paddle's inner face.
	PaddleOffset float64
	// PaddleMaxVelocity caps how far a ghost position may move per update.
	PaddleMaxVelocity float64

	BallSize           float64
	InitialBallSpeed   float64
	BallSpeedIncrement float64 // fractional increase per paddle hit
	MaxBallSpeed       float64
	PaddleShrinkPerHit float64

	WinningScore     int
	TickRate         int
	CountdownSeconds int

	BettingTimeout time.Duration

	// Ultimate ability tuning.
	TimeFreezeDuration time.Duration
	TimeFreezeFactor   float64 // ball speed multiplier while frozen
	PowerHitBoost      float64 // extra fractional speed kick on the boosted hit
	PaddleDashDuration time.Duration
}

// DefaultConfig returns the production match configuration.
func DefaultConfig() Config {
	return Config{
		CanvasWidth:  1280,
		CanvasHeight: 720,

		PaddleWidth:       20,
		PaddleHeight:      120,
		MinPaddleHeight:   40,
		PaddleOffset:      40,
		PaddleMaxVelocity: 45,

		BallSize:           20,
		InitialBallSpeed:   8,
		BallSpeedIncrement: 0.02,
		MaxBallSpeed:       35,
		PaddleShrinkPerHit: 3,

		WinningScore:     3,
		TickRate:         60,
		CountdownSeconds: 3,

		BettingTimeout: 30 * time.Second,

		TimeFreezeDuration: 3 * time.Second,
		TimeFreezeFactor:   0.5,
		PowerHitBoost:      0.5,
		PaddleDashDuration: time.Second,
	}
}

// TickInterval is the wall-clock duration of one simulation step.
func (c Config) TickInterval() time.Duration {
	return time.Second / time.Duration(c.TickRate)
}
