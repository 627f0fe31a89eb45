package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DisabledReturnsNil(t *testing.T) {
	t.Parallel()

	l := New(Config{})
	assert.Nil(t, l)
	require.NoError(t, l.Wait(context.Background(), "https://example.com"))
	assert.Zero(t, l.Hosts())
}

func TestLimiter_WaitSpacesSameHost(t *testing.T) {
	t.Parallel()

	// 10 RPS with burst 1: the second call on a host waits ~100ms.
	l := New(Config{PerHostRPS: 10, Burst: 1})
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx, "https://test.com/a"))
	start := time.Now()
	require.NoError(t, l.Wait(ctx, "https://TEST.com/b"))
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
	assert.Equal(t, 1, l.Hosts())
}

func TestLimiter_HostsAreIndependent(t *testing.T) {
	t.Parallel()

	l := New(Config{PerHostRPS: 1, Burst: 1})
	ctx := context.Background()

	start := time.Now()
	require.NoError(t, l.Wait(ctx, "https://a.example"))
	require.NoError(t, l.Wait(ctx, "https://b.example"))
	require.NoError(t, l.Wait(ctx, "not a url"))
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Equal(t, 3, l.Hosts())
}

func TestLimiter_WaitHonorsContext(t *testing.T) {
	t.Parallel()

	l := New(Config{PerHostRPS: 0.1, Burst: 1})
	require.NoError(t, l.Wait(context.Background(), "https://slow.example"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.Error(t, l.Wait(ctx, "https://slow.example"))
}
