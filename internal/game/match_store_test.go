// internal/game/match_store_test.go
package game

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchStore(t *testing.T) {
	s := NewMatchStore()
	assert.Zero(t, s.Count())

	m := newTestMatch()
	s.AddMatch(m)
	assert.Equal(t, 1, s.Count())

	got, ok := s.GetMatch(m.ID)
	require.True(t, ok)
	assert.Same(t, m, got)

	_, ok = s.GetMatch(uuid.New())
	assert.False(t, ok)

	s.DeleteMatch(m.ID)
	assert.Zero(t, s.Count())
}
