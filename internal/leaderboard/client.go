// Package leaderboard talks to the portal's leaderboard REST API. Every call
// is best-effort from the match server's point of view: a failed submission is
// logged and dropped rather than delaying match teardown.
package leaderboard

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"
)

// GamePong is the game_id the Pong server reports scores under.
const GamePong = "pong"

// Client is a thin REST client for the leaderboard service.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Entry is one ranked row of a game's leaderboard.
type Entry struct {
	Rank          int            `json:"rank"`
	WalletAddress string         `json:"wallet_address"`
	Score         int            `json:"score"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	DisplayName   string         `json:"display_name,omitempty"`
	AvatarURL     string         `json:"avatar_url,omitempty"`
}

// SubmitScoreResponse reports whether the submission beat the wallet's
// previous best.
type SubmitScoreResponse struct {
	Success     bool `json:"success"`
	IsHighScore bool `json:"is_high_score"`
}

type submitScoreRequest struct {
	WalletAddress string         `json:"wallet_address"`
	GameID        string         `json:"game_id"`
	Score         int            `json:"score"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

type awardPointsRequest struct {
	WalletAddress string `json:"wallet_address"`
	Amount        int    `json:"amount"`
	Reason        string `json:"reason,omitempty"`
}

// SubmitScore posts a score for wallet under gameID. The service keeps only
// the wallet's personal best, so lower scores are accepted and ignored.
func (c *Client) SubmitScore(ctx context.Context, wallet, gameID string, score int, metadata map[string]any) (SubmitScoreResponse, error) {
	var out SubmitScoreResponse
	req := submitScoreRequest{WalletAddress: wallet, GameID: gameID, Score: score, Metadata: metadata}
	err := c.post(ctx, "/leaderboard", req, &out)
	return out, err
}

// AwardPoints credits portal points to a wallet, e.g. a win bonus.
func (c *Client) AwardPoints(ctx context.Context, wallet string, amount int, reason string) error {
	req := awardPointsRequest{WalletAddress: wallet, Amount: amount, Reason: reason}
	return c.post(ctx, "/points", req, nil)
}

// GetLeaderboard returns the top entries for gameID, best score first.
func (c *Client) GetLeaderboard(ctx context.Context, gameID string, limit int) ([]Entry, error) {
	path := fmt.Sprintf("/leaderboard/%s?limit=%d", url.PathEscape(gameID), limit)
	var out struct {
		Leaderboard []Entry `json:"leaderboard"`
	}
	if err := c.get(ctx, path, &out); err != nil {
		return nil, err
	}
	return out.Leaderboard, nil
}

// GetPlayerEntry returns wallet's ranked entry for gameID, or nil if the
// wallet has never posted a score.
func (c *Client) GetPlayerEntry(ctx context.Context, gameID, wallet string) (*Entry, error) {
	path := fmt.Sprintf("/leaderboard/%s/%s", url.PathEscape(gameID), url.PathEscape(wallet))
	var out Entry
	err := c.get(ctx, path, &out)
	if err == errNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ResetScore removes a wallet's entry from a game's leaderboard. Admin only.
func (c *Client) ResetScore(ctx context.Context, gameID, wallet string) error {
	path := fmt.Sprintf("/leaderboard/%s/%s", url.PathEscape(gameID), url.PathEscape(wallet))
	resp, err := c.do(ctx, http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("leaderboard service returned %d for DELETE %s", resp.StatusCode, path)
	}
	return nil
}

// GetProfileRaw fetches a wallet's profile payload without decoding it, so
// callers can cache the bytes as-is.
func (c *Client) GetProfileRaw(ctx context.Context, wallet string) ([]byte, error) {
	resp, err := c.do(ctx, http.MethodGet, "/profile/"+url.PathEscape(wallet), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, errNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("leaderboard service returned %d for profile %s", resp.StatusCode, wallet)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 1<<20))
}

var errNotFound = fmt.Errorf("leaderboard: not found")

// IsNotFound reports whether err means the requested entry does not exist.
func IsNotFound(err error) bool {
	return err == errNotFound
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request for %s: %w", path, err)
	}
	resp, err := c.do(ctx, http.MethodPost, path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("leaderboard service returned %d for POST %s", resp.StatusCode, path)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response for POST %s: %w", path, err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return errNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("leaderboard service returned %d for GET %s", resp.StatusCode, path)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response for GET %s: %w", path, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s %s: %w", method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"method": method,
			"path":   path,
		}).Warn("leaderboard request failed")
		return nil, fmt.Errorf("leaderboard request %s %s failed: %w", method, path, err)
	}
	return resp, nil
}
