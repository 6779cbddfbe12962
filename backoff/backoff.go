// Package backoff provides retry delay strategies. All strategies are
// stateless and safe for concurrent use. None of them add jitter: the
// schedule of a failing job is fully determined by its attempt count.
package backoff

import (
	"math"
	"time"
)

// Strategy computes the delay before a retry.
type Strategy interface {
	// Delay returns how long to wait after the given attempt failed.
	// attempt is the attempts counter after it was incremented for that
	// failure, so the first retry is attempt 1.
	Delay(attempt int) time.Duration
}

// NextRunAt returns when a job whose attempt just failed becomes eligible.
func NextRunAt(now time.Time, s Strategy, attempt int) time.Time {
	return now.Add(s.Delay(attempt))
}

// ──────────────────────────────────────────────────
// Power
// ──────────────────────────────────────────────────

// Power grows the delay as Base^attempt seconds, rounded up to a whole
// second. There is no cap.
type Power struct {
	Base float64
}

// NewPower creates a power backoff strategy.
func NewPower(base float64) *Power {
	return &Power{Base: base}
}

// Delay returns ceil(Base^attempt) seconds.
func (p *Power) Delay(attempt int) time.Duration {
	secs := math.Ceil(math.Pow(p.Base, float64(attempt)))
	if secs >= math.MaxInt64/float64(time.Second) {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(secs) * time.Second
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
	d := l.Initial * time.Duration(attempt)
	if l.Max > 0 && d > l.Max {
		return l.Max
	}
	return d
}

// DefaultStrategy returns the engine default: Power with base 2.
func DefaultStrategy() Strategy {
	return NewPower(2)
}
