// internal/handlers/match_server_test.go
package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bearpark/arcade/internal/auth"
	"github.com/bearpark/arcade/internal/models"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func queuedPlayer(wallet string) *models.Player {
	return &models.Player{
		ID:        uuid.New(),
		Data:      models.PlayerData{Wallet: wallet},
		Connected: true,
	}
}

func TestPairingCreatesMatchAndOpensBetting(t *testing.T) {
	ms := NewMatchServer(testLogger(), nil, nil)
	ms.Clock = clockwork.NewFakeClock()

	left := queuedPlayer("left.hive")
	right := queuedPlayer("right.hive")

	pos, err := ms.Queue.Join(context.Background(), left)
	require.NoError(t, err)
	assert.Equal(t, 1, pos)

	pos, err = ms.Queue.Join(context.Background(), right)
	require.NoError(t, err)
	assert.Zero(t, pos)

	require.Equal(t, 1, ms.MatchStore.Count())
	m, ok := ms.MatchFor(left.ID)
	require.True(t, ok)
	m2, ok := ms.MatchFor(right.ID)
	require.True(t, ok)
	assert.Same(t, m, m2)

	assert.Equal(t, models.SideLeft, left.Side)
	assert.Equal(t, models.SideRight, right.Side)
	assert.False(t, m.Over())
}

func TestReleasePlayerRemovesMatchWhenOrphaned(t *testing.T) {
	ms := NewMatchServer(testLogger(), nil, nil)
	ms.Clock = clockwork.NewFakeClock()

	left := queuedPlayer("left.hive")
	right := queuedPlayer("right.hive")
	ms.startMatch(left, right)
	require.Equal(t, 1, ms.MatchStore.Count())

	ms.releasePlayer(left.ID)
	assert.Equal(t, 1, ms.MatchStore.Count(), "match survives while one player is attached")

	ms.releasePlayer(right.ID)
	assert.Zero(t, ms.MatchStore.Count())

	_, ok := ms.MatchFor(left.ID)
	assert.False(t, ok)
}

func TestAdminAuthMiddleware(t *testing.T) {
	hash, err := auth.HashAdminToken("letmein", auth.Params)
	require.NoError(t, err)
	t.Setenv("ADMIN_TOKEN_HASH", hash)

	var reached bool
	h := AdminAuthMiddleware(testLogger(), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
	}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/admin/blacklist", nil)
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, reached)

	rec = httptest.NewRecorder()
	req.Header.Set("Authorization", "Bearer wrong")
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	req.Header.Set("Authorization", "Bearer letmein")
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, reached)
}

func TestAdminAuthMiddlewareDisabledWithoutHash(t *testing.T) {
	t.Setenv("ADMIN_TOKEN_HASH", "")
	h := AdminAuthMiddleware(testLogger(), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/admin/blacklist", nil)
	req.Header.Set("Authorization", "Bearer anything")
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
