// Package ratelimit implements the token-bucket RateLimiter shared across
// all connections of one admission class (spec §4.3). A bursty peer delays
// itself first; the bucket never grows past its configured burst, and
// suspended acquires are released in the order tokens refill.
package ratelimit

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/shardmesh/netcore/wire"
)

// Config carries the two knobs a RateLimiter is built from, sized as a
// plain struct rather than functional options since there's exactly one
// construction path per limiter instance.
type Config struct {
	QPS   float64
	Burst int
}

// Limiter wraps golang.org/x/time/rate.Limiter: acquire(n) suspends until n
// tokens are available, then deducts them, refilling continuously at qps
// per second up to burst (spec §4.3). rate.Limiter.WaitN is exactly this
// contract, so there is no reason to hand-roll a bucket.
type Limiter struct {
	inner *rate.Limiter
}

// New constructs a Limiter from the given Config.
func New(cfg Config) *Limiter {
	return &Limiter{inner: rate.NewLimiter(rate.Limit(cfg.QPS), cfg.Burst)}
}

// Acquire suspends until n tokens are available and deducts them. It
// returns ctx.Err() if ctx is cancelled first, or an error if n exceeds the
// limiter's burst (a request that can never be satisfied).
func (l *Limiter) Acquire(ctx context.Context, n int) error {
	return l.inner.WaitN(ctx, n)
}

// Tiered holds the two shared limiters named in spec §4.3: one for inbound
// bytes on all T1 connections, one for all T2 connections. Per-connection
// recv consumes from whichever of the two matches its tier.
type Tiered struct {
	T1 *Limiter
	T2 *Limiter
}

// NewTiered builds the pair of shared per-tier limiters from their configs.
func NewTiered(t1, t2 Config) *Tiered {
	return &Tiered{T1: New(t1), T2: New(t2)}
}

// For returns the shared limiter a connection of the given tier consumes
// inbound-byte budget from.
func (t *Tiered) For(tier wire.Tier) *Limiter {
	if tier == wire.T1 {
		return t.T1
	}
	return t.T2
}
