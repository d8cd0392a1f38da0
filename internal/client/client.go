// Package client is a Go client for the arcade match server, used by bots and
// integration tests. It mirrors the browser client's behavior, including its
// reconnection backoff.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"

	"github.com/bearpark/arcade/internal/models"
	"github.com/bearpark/arcade/internal/protocol"
)

// EventConnectionFailed fires after the reconnect policy gives up for good.
const EventConnectionFailed = "connection_failed"

// ReconnectPolicy controls how a dropped connection is retried. The delay
// before attempt n is BaseDelay*n, so retries spread out as they fail.
type ReconnectPolicy struct {
	BaseDelay   time.Duration
	MaxAttempts int
}

// DefaultReconnectPolicy matches the browser client: 2s, 4s, 6s, 8s, 10s,
// then give up.
func DefaultReconnectPolicy() ReconnectPolicy {
	return ReconnectPolicy{BaseDelay: 2 * time.Second, MaxAttempts: 5}
}

// Delay returns how long to wait before reconnect attempt n (1-based), or
// false when the policy is exhausted.
func (p ReconnectPolicy) Delay(attempt int) (time.Duration, bool) {
	if attempt < 1 || attempt > p.MaxAttempts {
		return 0, false
	}
	return p.BaseDelay * time.Duration(attempt), true
}

// Handler consumes one decoded server message.
type Handler func(msg protocol.ServerMessage)

// Client maintains a websocket connection to the match server and dispatches
// incoming messages to registered handlers by message type.
type Client struct {
	URL       string
	Reconnect ReconnectPolicy

	mu       sync.Mutex
	conn     *websocket.Conn
	handlers map[string][]Handler
	closed   bool
}

func New(url string) *Client {
	return &Client{
		URL:       url,
		Reconnect: DefaultReconnectPolicy(),
		handlers:  make(map[string][]Handler),
	}
}

// On registers a handler for a server message type. Handlers run on the read
// loop goroutine, so they must not block.
func (c *Client) On(msgType string, h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[msgType] = append(c.handlers[msgType], h)
}

// Connect dials the server and starts the read loop. The read loop reconnects
// on failure per the client's ReconnectPolicy until Close is called or the
// policy is exhausted.
func (c *Client) Connect(ctx context.Context) error {
	conn, _, err := websocket.Dial(ctx, c.URL, &websocket.DialOptions{
		Subprotocols: []string{"pong"},
	})
	if err != nil {
		return fmt.Errorf("failed to dial %s: %w", c.URL, err)
	}
	c.mu.Lock()
	c.conn = conn
	c.closed = false
	c.mu.Unlock()

	go c.readLoop(ctx)
	return nil
}

// Close shuts the connection down without triggering reconnects.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	if c.conn == nil {
		return nil
	}
	return c.conn.Close(websocket.StatusNormalClosure, "client closed")
}

func (c *Client) readLoop(ctx context.Context) {
	for {
		c.mu.Lock()
		conn := c.conn
		closed := c.closed
		c.mu.Unlock()
		if closed || conn == nil {
			return
		}

		_, data, err := conn.Read(ctx)
		if err != nil {
			c.mu.Lock()
			closed = c.closed
			c.mu.Unlock()
			if closed || ctx.Err() != nil {
				return
			}
			logrus.WithError(err).Warn("connection lost, attempting reconnect")
			if !c.reconnect(ctx) {
				c.dispatch(protocol.ServerMessage{Type: EventConnectionFailed})
				return
			}
			continue
		}

		var msg protocol.ServerMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			logrus.WithError(err).Warn("discarding malformed server message")
			continue
		}
		c.dispatch(msg)
	}
}

// reconnect retries the dial per the policy. It returns false once every
// attempt has failed.
func (c *Client) reconnect(ctx context.Context) bool {
	for attempt := 1; ; attempt++ {
		delay, ok := c.Reconnect.Delay(attempt)
		if !ok {
			logrus.WithField("attempts", attempt-1).Error("reconnect attempts exhausted")
			return false
		}

		select {
		case <-ctx.Done():
			return false
		case <-time.After(delay):
		}

		conn, _, err := websocket.Dial(ctx, c.URL, &websocket.DialOptions{
			Subprotocols: []string{"pong"},
		})
		if err != nil {
			logrus.WithError(err).WithField("attempt", attempt).Warn("reconnect attempt failed")
			continue
		}

		c.mu.Lock()
		c.conn = conn
		c.mu.Unlock()
		logrus.WithField("attempt", attempt).Info("reconnected")
		return true
	}
}

func (c *Client) dispatch(msg protocol.ServerMessage) {
	c.mu.Lock()
	handlers := append([]Handler(nil), c.handlers[msg.Type]...)
	c.mu.Unlock()
	for _, h := range handlers {
		h(msg)
	}
}

func (c *Client) send(ctx context.Context, msg protocol.ClientMessage) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("not connected")
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", msg.Type, err)
	}
	return conn.Write(ctx, websocket.MessageText, data)
}

// JoinQueue enters matchmaking with the given player profile.
func (c *Client) JoinQueue(ctx context.Context, data models.PlayerData) error {
	return c.send(ctx, protocol.ClientMessage{Type: protocol.TypeJoinQueue, Data: &data})
}

// MovePaddle reports the paddle's desired center Y position.
func (c *Client) MovePaddle(ctx context.Context, y float64) error {
	return c.send(ctx, protocol.ClientMessage{
		Type:      protocol.TypePaddleMove,
		Y:         &y,
		Timestamp: time.Now().UnixMilli(),
	})
}

// SetBet proposes a honey stake for the current match.
func (c *Client) SetBet(ctx context.Context, amount int) error {
	return c.send(ctx, protocol.ClientMessage{Type: protocol.TypeSetBet, Amount: &amount})
}

// ReadyToStart accepts the current pair of proposed bets.
func (c *Client) ReadyToStart(ctx context.Context) error {
	return c.send(ctx, protocol.ClientMessage{Type: protocol.TypeReadyToStart})
}

// UseUltimate fires a one-shot ability.
func (c *Client) UseUltimate(ctx context.Context, ability string) error {
	return c.send(ctx, protocol.ClientMessage{Type: protocol.TypeUseUltimate, AbilityType: ability})
}

// RequestRematch asks the opponent for another game.
func (c *Client) RequestRematch(ctx context.Context) error {
	return c.send(ctx, protocol.ClientMessage{Type: protocol.TypeRematch})
}

// Leave exits the match or queue intentionally.
func (c *Client) Leave(ctx context.Context) error {
	return c.send(ctx, protocol.ClientMessage{Type: protocol.TypeLeave})
}
