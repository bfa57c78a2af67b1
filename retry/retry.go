// Package retry provides the infrastructure-retry policy used around
// provider calls: a transient-error classifier plus an exponential-backoff
// loop covering HTTP 408/429/5xx, common transport error strings, and
// context deadline races, beyond schema.IsRetryable's narrow sentinel set.
package retry

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"strings"
	"time"

	"github.com/voocel/mas/schema"
)

// Policy controls the backoff loop. Zero-value Policy falls back to
// sensible defaults.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Multiplier  float64
	Jitter      bool // multiply each delay by a random factor in [0.5, 1.5)
}

// DefaultPolicy is the backoff used when a caller doesn't override one.
var DefaultPolicy = Policy{
	MaxAttempts: 3,
	BaseDelay:   200 * time.Millisecond,
	MaxDelay:    2 * time.Second,
	Multiplier:  2,
	Jitter:      true,
}

func (p Policy) normalize() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultPolicy.MaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = DefaultPolicy.BaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = DefaultPolicy.MaxDelay
	}
	if p.Multiplier <= 0 {
		p.Multiplier = DefaultPolicy.Multiplier
	}
	return p
}

// transientSubstrings catches provider/transport failures that don't carry
// a typed sentinel, matched case-insensitively against err.Error().
var transientSubstrings = []string{
	"rate limit",
	"too many requests",
	"timeout",
	"timed out",
	"connection reset",
	"connection refused",
	"broken pipe",
	"temporarily unavailable",
	"service unavailable",
	"bad gateway",
	"gateway timeout",
	"overloaded",
}

// IsTransient reports whether err is worth retrying: the well-known
// sentinels (schema.IsRetryable), network-level errors, and common
// provider throttling/5xx substrings that don't carry a typed sentinel.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if schema.IsRetryable(err) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout() || !errors.Is(err, context.DeadlineExceeded)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	if code, ok := httpStatusOf(err); ok {
		return code == 408 || code == 429 || code >= 500
	}

	msg := strings.ToLower(err.Error())
	for _, s := range transientSubstrings {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// httpStatusError is implemented by client errors that carry an HTTP
// status code (e.g. litellm's provider error types), checked via errors.As
// rather than a concrete type import to avoid a hard provider dependency.
type httpStatusError interface {
	StatusCode() int
}

func httpStatusOf(err error) (int, bool) {
	var hs httpStatusError
	if errors.As(err, &hs) {
		return hs.StatusCode(), true
	}
	return 0, false
}

// Do runs fn, retrying while IsTransient(err) and attempts remain, with
// exponential backoff and jitter between attempts. It returns the last
// error if all attempts are exhausted, or ctx.Err() if ctx is cancelled
// while waiting.
func Do(ctx context.Context, policy Policy, fn func(ctx context.Context) error) error {
	policy = policy.normalize()

	var lastErr error
	delay := policy.BaseDelay
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !IsTransient(lastErr) {
			return lastErr
		}
		if attempt == policy.MaxAttempts {
			break
		}

		wait := jitter(delay, policy.Jitter)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
		delay = time.Duration(float64(delay) * policy.Multiplier)
		if delay > policy.MaxDelay {
			delay = policy.MaxDelay
		}
	}
	return lastErr
}

func jitter(d time.Duration, enabled bool) time.Duration {
	if !enabled {
		return d
	}
	factor := 0.5 + rand.Float64() // [0.5, 1.5)
	return time.Duration(float64(d) * factor)
}

// WithTimeout wraps ctx with a deadline; a zero or negative d means
// unbounded, and ctx is returned with a no-op cancel.
func WithTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}
