// Package ratelimiter throttles byte streams with a token bucket.
//
// Maintenance reads every stored byte when it verifies a cache. The limiter
// caps that bandwidth so foreground readers keep most of the disk.
package ratelimiter

import (
	"context"
	"io"

	"golang.org/x/time/rate"
)

// minBurst is the smallest bucket, large enough for one copy buffer.
const minBurst = 64 * 1024

// Limiter caps throughput in bytes per second.
//
// One token is one byte. A nil *Limiter, or one created with a
// non-positive rate, never waits.
//
// Thread safety:
// All methods are safe for concurrent use. Readers sharing a Limiter share
// its bandwidth.
type Limiter struct {
	limiter *rate.Limiter
}

// New creates a Limiter allowing bytesPerSecond sustained throughput.
//
// burst is the bucket capacity in bytes; values below 64 KiB are raised to it.
// bytesPerSecond <= 0 disables limiting.
func New(bytesPerSecond int64, burst int) *Limiter {
	if bytesPerSecond <= 0 {
		return &Limiter{}
	}
	if burst < minBurst {
		burst = minBurst
	}
	return &Limiter{
		limiter: rate.NewLimiter(rate.Limit(bytesPerSecond), burst),
	}
}

// Unlimited reports whether the limiter never waits.
func (l *Limiter) Unlimited() bool {
	return l == nil || l.limiter == nil
}

// WaitN blocks until n bytes may pass or ctx is cancelled.
//
// Requests larger than the burst are split, so any n is accepted.
func (l *Limiter) WaitN(ctx context.Context, n int) error {
	if l.Unlimited() {
		return ctx.Err()
	}

	burst := l.limiter.Burst()
	for n > 0 {
		chunk := min(n, burst)
		if err := l.limiter.WaitN(ctx, chunk); err != nil {
			return err
		}
		n -= chunk
	}
	return nil
}

// Reader wraps r so that bytes read from it are charged against the limiter.
// Waiting stops with ctx's error once ctx is cancelled.
func (l *Limiter) Reader(ctx context.Context, r io.Reader) io.Reader {
	if l.Unlimited() {
		return r
	}
	return &reader{ctx: ctx, r: r, l: l}
}

// Rate returns the configured bytes per second, or 0 when unlimited.
func (l *Limiter) Rate() int64 {
	if l.Unlimited() {
		return 0
	}
	return int64(l.limiter.Limit())
}

type reader struct {
	ctx context.Context
	r   io.Reader
	l   *Limiter
}

func (t *reader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if n > 0 {
		if werr := t.l.WaitN(t.ctx, n); werr != nil {
			return n, werr
		}
	}
	return n, err
}
