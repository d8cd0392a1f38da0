// internal/models/player.go
package models

import (
	"github.com/coder/websocket"
	"github.com/google/uuid"
)

// Side identifies which half of the court a player controls.
type Side string

const (
	SideLeft  Side = "left"
	SideRight Side = "right"
)

// Opposite returns the other side of the court.
func (s Side) Opposite() Side {
	if s == SideLeft {
		return SideRight
	}
	return SideLeft
}

// CosmeticData describes a single equippable cosmetic from the portal.
type CosmeticData struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	ImageURL    string `json:"image_url"`
	IsAnimated  bool   `json:"is_animated,omitempty"`
	CSSGradient string `json:"css_gradient,omitempty"`
}

// EquippedCosmetics holds the cosmetics a player carries into a match.
type EquippedCosmetics struct {
	Ring   *CosmeticData `json:"ring"`
	Banner *CosmeticData `json:"banner"`
}

// PlayerData is the portal identity a client presents when joining the queue.
// It is immutable for the duration of a session once a match is made.
type PlayerData struct {
	Wallet            string             `json:"wallet"`
	DisplayName       string             `json:"displayName"`
	AvatarURL         string             `json:"avatarUrl,omitempty"`
	EquippedCosmetics *EquippedCosmetics `json:"equippedCosmetics,omitempty"`
}

// Player is a live connection participating in matchmaking or a match.
type Player struct {
	ID        uuid.UUID
	Data      PlayerData
	Side      Side
	Connected bool
	Conn      *websocket.Conn
}
