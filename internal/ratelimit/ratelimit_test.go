package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPerProviderLimit(t *testing.T) {
	rl := NewDailyLimiter(map[string]int{OpenAI: 2}, 0)

	require.NoError(t, rl.Use(OpenAI))
	require.NoError(t, rl.Use(OpenAI))
	assert.False(t, rl.CanUse(OpenAI))
	assert.Error(t, rl.Use(OpenAI))

	// Unlisted providers are unlimited.
	assert.NoError(t, rl.Use(SerpAPI))
}

func TestTotalLimit(t *testing.T) {
	rl := NewDailyLimiter(nil, 1)
	require.NoError(t, rl.Use(Gemini))
	assert.Error(t, rl.Use(SerpAPI))
}

func TestDailyReset(t *testing.T) {
	rl := NewDailyLimiter(map[string]int{Gemini: 1}, 0)
	now := time.Now()
	rl.now = func() time.Time { return now }

	require.NoError(t, rl.Use(Gemini))
	assert.False(t, rl.CanUse(Gemini))

	now = now.Add(25 * time.Hour)
	assert.True(t, rl.CanUse(Gemini))

	stats := rl.GetStats()
	assert.Equal(t, 0, stats["gemini_used"])
	assert.Equal(t, 1, stats["gemini_limit"])
}
