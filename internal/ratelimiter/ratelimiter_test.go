package ratelimiter

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"
)

// TestNew verifies limiter creation with different parameters.
func TestNew(t *testing.T) {
	tests := []struct {
		name          string
		rate          int64
		burst         int
		wantUnlimited bool
		wantBurst     int
	}{
		{name: "standard rate", rate: 1 << 20, burst: 1 << 20, wantBurst: 1 << 20},
		{name: "small burst raised", rate: 1024, burst: 10, wantBurst: minBurst},
		{name: "unlimited (zero rate)", rate: 0, wantUnlimited: true},
		{name: "unlimited (negative rate)", rate: -5, wantUnlimited: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := New(tt.rate, tt.burst)
			if l.Unlimited() != tt.wantUnlimited {
				t.Fatalf("Unlimited() = %v, want %v", l.Unlimited(), tt.wantUnlimited)
			}
			if tt.wantUnlimited {
				if l.Rate() != 0 {
					t.Errorf("Rate() = %d, want 0", l.Rate())
				}
				return
			}
			if got := l.limiter.Burst(); got != tt.wantBurst {
				t.Errorf("burst = %d, want %d", got, tt.wantBurst)
			}
			if l.Rate() != tt.rate {
				t.Errorf("Rate() = %d, want %d", l.Rate(), tt.rate)
			}
		})
	}
}

func TestNilLimiter(t *testing.T) {
	var l *Limiter
	if !l.Unlimited() {
		t.Fatal("nil limiter must be unlimited")
	}
	if err := l.WaitN(context.Background(), 1<<30); err != nil {
		t.Fatalf("WaitN on nil limiter: %v", err)
	}

	src := strings.NewReader("data")
	if l.Reader(context.Background(), src) != io.Reader(src) {
		t.Error("unlimited Reader should return the source unchanged")
	}
}

// TestWaitNLargerThanBurst verifies requests above the burst are split
// instead of failing.
func TestWaitNLargerThanBurst(t *testing.T) {
	l := New(10*minBurst, minBurst)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := l.WaitN(ctx, 3*minBurst); err != nil {
		t.Fatalf("WaitN failed: %v", err)
	}
}

// TestReaderThrottles verifies that draining more than the burst takes at
// least as long as the configured rate allows.
func TestReaderThrottles(t *testing.T) {
	const rateBps = 4 * minBurst
	l := New(rateBps, minBurst)

	// One burst is free, the remaining 2*minBurst cost about 0.5s.
	data := bytes.Repeat([]byte{'x'}, 3*minBurst)

	start := time.Now()
	n, err := io.Copy(io.Discard, l.Reader(context.Background(), bytes.NewReader(data)))
	elapsed := time.Since(start)

	if err != nil {
		t.Fatalf("copy failed: %v", err)
	}
	if n != int64(len(data)) {
		t.Fatalf("copied %d bytes, want %d", n, len(data))
	}
	if elapsed < 400*time.Millisecond {
		t.Errorf("copy finished in %v, expected throttling to about 500ms", elapsed)
	}
}

// TestReaderCancellation verifies that a cancelled context stops a
// throttled read.
func TestReaderCancellation(t *testing.T) {
	l := New(1024, minBurst)

	// Drain the initial burst.
	if err := l.WaitN(context.Background(), minBurst); err != nil {
		t.Fatalf("WaitN failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := l.Reader(ctx, strings.NewReader("more bytes"))
	if _, err := io.ReadAll(r); err == nil {
		t.Fatal("expected an error after cancellation")
	}
}
