package main

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/md-rashed-zaman/deltacal/libs/httpx"
	"github.com/md-rashed-zaman/deltacal/libs/runtime"
)

func TestRateLimiterSelection(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)

	t.Setenv("REDIS_ADDR", "")
	var checks []runtime.ReadyCheck
	l, err := rateLimiter(logger, &checks)
	require.NoError(t, err)
	assert.IsType(t, &httpx.RateLimiter{}, l)
	assert.Empty(t, checks)

	t.Setenv("REDIS_ADDR", "redis:6379")
	l, err = rateLimiter(logger, &checks)
	require.NoError(t, err)
	assert.IsType(t, &httpx.RedisRateLimiter{}, l)
	require.Len(t, checks, 1)
	assert.Equal(t, "redis", checks[0].Name)

	t.Setenv("RATE_LIMIT_PER_MINUTE", "0")
	_, err = rateLimiter(logger, &checks)
	assert.Error(t, err)
}
