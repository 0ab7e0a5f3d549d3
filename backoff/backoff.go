// Package backoff provides pluggable delay strategies. The dispatch loop
// uses them to pace itself while the cluster is full or the queue is
// empty. All strategies are safe for concurrent use (they are stateless).
package backoff

import (
	"math"
	"math/rand/v2"
	"time"
)

// Strategy computes the delay before the next attempt.
type Strategy interface {
	// Delay returns how long to wait before attempt n (1-indexed).
	// Attempts below 1 are treated as 1.
	Delay(attempt int) time.Duration
}

// ──────────────────────────────────────────────────
// Constant
// ──────────────────────────────────────────────────

// Constant always returns the same delay regardless of attempt number.
type Constant struct {
	Interval time.Duration
}

// NewConstant creates a constant backoff strategy.
func NewConstant(interval time.Duration) *Constant {
	return &Constant{Interval: interval}
}

// Delay returns the fixed interval.
func (c *Constant) Delay(_ int) time.Duration {
	return c.Interval
}

// ──────────────────────────────────────────────────
// Linear
// ──────────────────────────────────────────────────

// Linear increases the delay linearly with the attempt number.
// Delay = min(Initial * attempt, Max).
type Linear struct {
	Initial time.Duration
	Max     time.Duration
}

// NewLinear creates a linear backoff strategy.
func NewLinear(initial, maxDelay time.Duration) *Linear {
	return &Linear{Initial: initial, Max: maxDelay}
}

// Delay returns Initial * attempt, capped at Max.
func (l *Linear) Delay(attempt int) time.Duration {
	attempt = max(attempt, 1)
	if l.Max > 0 && attempt > int(l.Max/max(l.Initial, 1)) {
		return l.Max
	}
	d := l.Initial * time.Duration(attempt)
	if l.Max > 0 && d > l.Max {
		return l.Max
	}
	return d
}

// ──────────────────────────────────────────────────
// Exponential
// ──────────────────────────────────────────────────

// Exponential doubles the delay each attempt.
// Delay = min(Initial * 2^(attempt-1), Max).
type Exponential struct {
	Initial time.Duration
	Max     time.Duration
}

// NewExponential creates an exponential backoff strategy.
func NewExponential(initial, maxDelay time.Duration) *Exponential {
	return &Exponential{Initial: initial, Max: maxDelay}
}

// Delay returns Initial * 2^(attempt-1), capped at Max.
func (e *Exponential) Delay(attempt int) time.Duration {
	return time.Duration(exponentialBase(e.Initial, e.Max, attempt))
}

// exponentialBase computes Initial * 2^(attempt-1) in float64 and caps it
// before converting, so long idle streaks cannot overflow.
func exponentialBase(initial, maxDelay time.Duration, attempt int) float64 {
	attempt = max(attempt, 1)
	base := float64(initial) * math.Pow(2, float64(attempt-1))
	if maxDelay > 0 && base > float64(maxDelay) {
		return float64(maxDelay)
	}
	if base > 1<<62 {
		return 1 << 62
	}
	return base
}

// ──────────────────────────────────────────────────
// ExponentialWithJitter (full jitter)
// ──────────────────────────────────────────────────

// ExponentialWithJitter applies full jitter to an exponential base.
// Delay = random value in [0, min(Initial * 2^(attempt-1), Max)].
// This prevents thundering herd when many retries happen simultaneously.
type ExponentialWithJitter struct {
	Initial time.Duration
	Max     time.Duration
}

// NewExponentialWithJitter creates an exponential backoff with full jitter.
func NewExponentialWithJitter(initial, maxDelay time.Duration) *ExponentialWithJitter {
	return &ExponentialWithJitter{Initial: initial, Max: maxDelay}
}

// Delay returns a random duration in [0, min(Initial * 2^(attempt-1), Max)].
func (e *ExponentialWithJitter) Delay(attempt int) time.Duration {
	base := exponentialBase(e.Initial, e.Max, attempt)
	return time.Duration(rand.Float64() * base) //nolint:gosec // jitter intentionally uses non-crypto rand
}

// ──────────────────────────────────────────────────
// Default
// ──────────────────────────────────────────────────

// DefaultStrategy returns a general purpose backoff:
// ExponentialWithJitter with 1s initial and 1m max.
func DefaultStrategy() Strategy {
	return NewExponentialWithJitter(1*time.Second, 1*time.Minute)
}

// Idle returns the strategy the dispatch loop uses between unproductive
// cycles: exponential from initial, capped at maxDelay. A zero initial
// yields a tight loop.
func Idle(initial, maxDelay time.Duration) Strategy {
	if initial <= 0 {
		return NewConstant(0)
	}
	return NewExponential(initial, maxDelay)
}
