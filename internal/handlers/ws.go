// internal/handlers/ws.go
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/bearpark/arcade/internal/auth"
	"github.com/bearpark/arcade/internal/game"
	"github.com/bearpark/arcade/internal/models"
	"github.com/bearpark/arcade/internal/protocol"
)

// WSHandler upgrades the connection and runs the session read loop. One
// socket is one player: it joins the queue, gets paired, plays, and the
// session ends when the socket closes.
func WSHandler(logger *logrus.Logger, ms *MatchServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{"pong"},
			OriginPatterns: []string{"*"}, // Adjust for production security.
		})
		if err != nil {
			logger.Warnf("WebSocket accept error: %v", err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "Internal server error during handler exit.")

		player := &models.Player{
			ID:        uuid.New(),
			Connected: true,
			Conn:      c,
		}

		// A valid session token lets a dropped client reclaim its identity,
		// and its seat if the match is still alive.
		if token := r.URL.Query().Get("token"); token != "" {
			if idStr, wallet, err := auth.AuthenticateSessionToken(token); err == nil {
				if id, parseErr := uuid.Parse(idStr); parseErr == nil {
					player.ID = id
					player.Data.Wallet = wallet
					if m, ok := ms.MatchFor(player.ID); ok && !m.Over() {
						side := models.SideLeft
						if m.Players[models.SideRight].ID == player.ID {
							side = models.SideRight
						}
						// Resume the seat's existing player state.
						player = m.Players[side]
						m.HandleReconnect(side, c)
					}
				}
			} else {
				logger.Warnf("Rejected stale session token from %s: %v", r.RemoteAddr, err)
			}
		}
		logger.Infof("WebSocket connection established for player %s from %s", player.ID, r.RemoteAddr)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		readMessages(ctx, c, player, ms, logger)

		// Cleanup after the read loop exits (error, closure, or cancellation).
		ms.Queue.Leave(player.ID)
		if m, ok := ms.MatchFor(player.ID); ok {
			m.HandleDisconnect(player.Side, c)
			if m.Over() {
				ms.releasePlayer(player.ID)
			}
		}
		logger.Infof("Player %s cleanup complete.", player.ID)
	}
}

// readMessages reads, decodes and routes client frames until the connection
// drops. Unknown message types are logged and ignored so an old client cannot
// crash a session.
func readMessages(ctx context.Context, c *websocket.Conn, player *models.Player, ms *MatchServer, logger *logrus.Logger) {
	for {
		msgType, data, err := c.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
				logger.Infof("WebSocket closed normally for player %s.", player.ID)
			} else if strings.Contains(err.Error(), "context canceled") {
				logger.Infof("WebSocket context canceled for player %s.", player.ID)
			} else {
				logger.Warnf("Error reading from WebSocket for player %s: %v (Status: %d)", player.ID, err, status)
			}
			return
		}

		if msgType != websocket.MessageText {
			logger.Warnf("Received non-text message type %d from player %s. Ignoring.", msgType, player.ID)
			continue
		}

		var msg protocol.ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			logger.Warnf("Invalid JSON from player %s: %v. Data: %s", player.ID, err, string(data))
			sendWsError(ctx, c, "Invalid JSON format.")
			continue
		}

		switch msg.Type {
		case protocol.TypeJoinQueue:
			handleJoinQueue(ctx, c, player, ms, logger, msg)

		case protocol.TypePaddleMove:
			m, ok := ms.MatchFor(player.ID)
			if !ok || msg.Y == nil {
				continue
			}
			m.SetPaddleY(player.Side, *msg.Y)

		case protocol.TypeSetBet:
			m, ok := ms.MatchFor(player.ID)
			if !ok {
				sendWsError(ctx, c, "Not in a match.")
				continue
			}
			if msg.Amount == nil {
				sendWsError(ctx, c, "set_bet requires an amount.")
				continue
			}
			if err := m.SetBet(player.Side, *msg.Amount); err != nil {
				sendWsError(ctx, c, err.Error())
			}

		case protocol.TypeReadyToStart:
			m, ok := ms.MatchFor(player.ID)
			if !ok {
				sendWsError(ctx, c, "Not in a match.")
				continue
			}
			if err := m.Ready(player.Side); err != nil {
				sendWsError(ctx, c, err.Error())
			}

		case protocol.TypeUseUltimate:
			m, ok := ms.MatchFor(player.ID)
			if !ok {
				continue
			}
			if err := m.UseUltimate(player.Side, game.AbilityType(msg.AbilityType)); err != nil {
				sendWsError(ctx, c, err.Error())
			}

		case protocol.TypeRematch:
			m, ok := ms.MatchFor(player.ID)
			if !ok {
				continue
			}
			m.RequestRematch(player.Side)

		case protocol.TypeLeave:
			ms.Queue.Leave(player.ID)
			if m, ok := ms.MatchFor(player.ID); ok {
				m.HandleLeave(player.Side)
				ms.releasePlayer(player.ID)
			}

		default:
			logger.Warnf("Unknown message type '%s' from player %s. Ignoring.", msg.Type, player.ID)
		}
	}
}

// handleJoinQueue validates the player profile and enters matchmaking.
func handleJoinQueue(ctx context.Context, c *websocket.Conn, player *models.Player, ms *MatchServer, logger *logrus.Logger, msg protocol.ClientMessage) {
	if msg.Data == nil || msg.Data.Wallet == "" {
		sendWsError(ctx, c, "join_queue requires player data with a wallet.")
		return
	}
	if _, ok := ms.MatchFor(player.ID); ok {
		sendWsError(ctx, c, "Already in a match.")
		return
	}
	player.Data = *msg.Data

	position, err := ms.Queue.Join(ctx, player)
	if err != nil {
		logger.Warnf("Player %s (%s) rejected from queue: %v", player.ID, player.Data.Wallet, err)
		sendWsError(ctx, c, err.Error())
		return
	}
	token, err := auth.CreateSessionToken(player.ID.String(), player.Data.Wallet)
	if err != nil {
		logger.Warnf("Failed to mint session token for player %s: %v", player.ID, err)
	}
	// Position 0 means the pairing happened immediately; match_found carries
	// the details either way.
	sendJSON(ctx, c, protocol.ServerMessage{
		Type:         protocol.TypeQueueJoined,
		Position:     position,
		SessionToken: token,
	})
}

// sendWsError sends an error frame. Write failures surface on the read loop.
func sendWsError(ctx context.Context, c *websocket.Conn, message string) {
	sendJSON(ctx, c, protocol.ErrorMessage(message))
}

func sendJSON(ctx context.Context, c *websocket.Conn, msg protocol.ServerMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	_ = c.Write(ctx, websocket.MessageText, data)
}
