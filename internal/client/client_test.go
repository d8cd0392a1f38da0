package client

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconnectPolicyDelays(t *testing.T) {
	p := DefaultReconnectPolicy()

	var delays []time.Duration
	for attempt := 1; ; attempt++ {
		d, ok := p.Delay(attempt)
		if !ok {
			break
		}
		delays = append(delays, d)
	}

	require.Len(t, delays, 5)
	assert.Equal(t, []time.Duration{
		2 * time.Second,
		4 * time.Second,
		6 * time.Second,
		8 * time.Second,
		10 * time.Second,
	}, delays)

	// strictly increasing
	for i := 1; i < len(delays); i++ {
		assert.Greater(t, delays[i], delays[i-1])
	}
}

func TestReconnectPolicyExhausted(t *testing.T) {
	p := ReconnectPolicy{BaseDelay: time.Second, MaxAttempts: 2}

	_, ok := p.Delay(3)
	assert.False(t, ok)
	_, ok = p.Delay(0)
	assert.False(t, ok)
}
