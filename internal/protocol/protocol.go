// internal/protocol/protocol.go
//
// JSON wire messages exchanged between the pong client and the match server.
// Every frame is a single JSON object with a "type" discriminator; unused
// fields are omitted. There is no protocol versioning.
package protocol

import "github.com/bearpark/arcade/internal/models"

// Client -> server message types.
const (
	TypeJoinQueue    = "join_queue"
	TypePaddleMove   = "paddle_move"
	TypeSetBet       = "set_bet"
	TypeReadyToStart = "ready_to_start"
	TypeUseUltimate  = "use_ultimate"
	TypeRematch      = "rematch"
	TypeLeave        = "leave"
)

// Server -> client message types.
const (
	TypeQueueJoined          = "queue_joined"
	TypeMatchFound           = "match_found"
	TypeOpponentBetSet       = "opponent_bet_set"
	TypeOpponentReady        = "opponent_ready"
	TypeFinalBetAmount       = "final_bet_amount"
	TypeBettingTimeout       = "betting_timeout"
	TypeCountdown            = "countdown"
	TypeGameState            = "game_state"
	TypeUltimateActivated    = "ultimate_activated"
	TypePowerupsRefreshed    = "powerups_refreshed"
	TypeGameOver             = "game_over"
	TypeOpponentDisconnected = "opponent_disconnected"
	TypeRematchRequested     = "rematch_requested"
	TypeRematchAccepted      = "rematch_accepted"
	TypeError                = "error"
)

// ClientMessage is the envelope for everything a client sends.
type ClientMessage struct {
	Type string `json:"type"`

	// Data carries PlayerData for join_queue.
	Data *models.PlayerData `json:"data,omitempty"`

	// Y and Timestamp carry the ghost paddle position for paddle_move.
	Y         *float64 `json:"y,omitempty"`
	Timestamp int64    `json:"timestamp,omitempty"`

	// Amount carries the proposed stake for set_bet. Pointer so that an
	// explicit zero bet survives marshaling.
	Amount *int `json:"amount,omitempty"`

	// AbilityType names the ultimate for use_ultimate.
	AbilityType string `json:"abilityType,omitempty"`
}

// GameState is the authoritative snapshot broadcast every tick. Clients treat
// it as read-only; only their own paddle's ghost position is ever sent the
// other way.
type GameState struct {
	BallX         float64 `json:"ballX"`
	BallY         float64 `json:"ballY"`
	BallVelocityX float64 `json:"ballVelocityX"`
	BallVelocityY float64 `json:"ballVelocityY"`
	Paddle1Y      float64 `json:"paddle1Y"`
	Paddle2Y      float64 `json:"paddle2Y"`
	Paddle1Height float64 `json:"paddle1Height"`
	Paddle2Height float64 `json:"paddle2Height"`
	Score1        int     `json:"score1"`
	Score2        int     `json:"score2"`
	GameStarted   bool    `json:"gameStarted"`
	Countdown     int     `json:"countdown,omitempty"`
}

// FinalScore reports both sides' totals in a game_over message.
type FinalScore struct {
	Left  int `json:"left"`
	Right int `json:"right"`
}

// ServerMessage is the envelope for everything the server sends.
type ServerMessage struct {
	Type string `json:"type"`

	// Position is the 1-based queue slot for queue_joined.
	Position int `json:"position,omitempty"`

	// SessionToken accompanies queue_joined so the client can reclaim its
	// identity after a socket drop.
	SessionToken string `json:"sessionToken,omitempty"`

	// Opponent and YourSide describe the pairing in match_found.
	Opponent *models.PlayerData `json:"opponent,omitempty"`
	YourSide models.Side        `json:"yourSide,omitempty"`

	// Amount carries a stake for opponent_bet_set and final_bet_amount.
	// Pointer: a resolved stake of zero is meaningful.
	Amount *int `json:"amount,omitempty"`

	// Count is the pre-game countdown value (3, 2, 1).
	Count int `json:"count,omitempty"`

	// State is the snapshot for game_state.
	State *GameState `json:"state,omitempty"`

	// Side and AbilityType identify an ultimate_activated event.
	Side        models.Side `json:"side,omitempty"`
	AbilityType string      `json:"abilityType,omitempty"`

	// Winner, FinalScore and BetAmount populate game_over.
	Winner     models.Side `json:"winner,omitempty"`
	FinalScore *FinalScore `json:"finalScore,omitempty"`
	BetAmount  *int        `json:"betAmount,omitempty"`

	// Message carries human-readable detail for error frames.
	Message string `json:"message,omitempty"`
}

// ErrorMessage builds an error frame.
func ErrorMessage(msg string) ServerMessage {
	return ServerMessage{Type: TypeError, Message: msg}
}

// IntPtr is a small helper for the pointer-typed amount fields.
func IntPtr(v int) *int { return &v }
