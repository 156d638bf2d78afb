package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/shardmesh/netcore/wire"
)

func TestAcquireWithinBurstDoesNotBlock(t *testing.T) {
	l := New(Config{QPS: 10, Burst: 100})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.NoError(t, l.Acquire(ctx, 80))
}

func TestAcquireBeyondBurstWaitsForRefill(t *testing.T) {
	l := New(Config{QPS: 1000, Burst: 10})
	ctx := context.Background()
	require.NoError(t, l.Acquire(ctx, 10))

	start := time.Now()
	require.NoError(t, l.Acquire(ctx, 10))
	require.GreaterOrEqual(t, time.Since(start), 5*time.Millisecond)
}

func TestAcquireRespectsContextCancellation(t *testing.T) {
	l := New(Config{QPS: 1, Burst: 1})
	require.NoError(t, l.Acquire(context.Background(), 1))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := l.Acquire(ctx, 1)
	require.Error(t, err)
}

func TestTieredForSelectsByTier(t *testing.T) {
	tiered := NewTiered(Config{QPS: 1, Burst: 1}, Config{QPS: 2, Burst: 2})
	require.Same(t, tiered.T1, tiered.For(wire.T1))
	require.Same(t, tiered.T2, tiered.For(wire.T2))
}
