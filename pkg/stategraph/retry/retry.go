// Package retry runs an operation again after transient failures, with
// exponential backoff and jitter.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"
)

// Policy configures retry behavior.
type Policy struct {
	// MaxAttempts is the maximum number of attempts, including the first.
	MaxAttempts int

	// InitialBackoff is the wait before the second attempt.
	InitialBackoff time.Duration

	// MaxBackoff caps the wait between attempts.
	MaxBackoff time.Duration

	// BackoffFactor multiplies the wait after each attempt.
	BackoffFactor float64

	// Jitter is the random jitter factor (0.0-1.0).
	Jitter float64

	// Retryable decides whether err is worth another attempt.
	// Default: everything except Permanent errors and context errors.
	Retryable func(error) bool
}

// Default suits local stores such as SQLite, whose transient failures
// (a locked database) clear within milliseconds.
var Default = Policy{
	MaxAttempts:    3,
	InitialBackoff: 10 * time.Millisecond,
	MaxBackoff:     250 * time.Millisecond,
	BackoffFactor:  2.0,
	Jitter:         0.1,
}

// NoRetry makes a single attempt.
var NoRetry = Policy{
	MaxAttempts: 1,
}

// Result describes a finished Do.
type Result struct {
	// Err is nil on success, otherwise the last error, wrapped in an
	// *ExhaustedError when every attempt failed.
	Err error

	// Attempts is the number of attempts made.
	Attempts int

	// Duration is the total time spent, backoff included.
	Duration time.Duration
}

// Do calls fn until it succeeds, returns a non-retryable error, ctx is done,
// or the policy's attempts are used up.
func Do(ctx context.Context, p Policy, fn func(context.Context) error) Result {
	start := time.Now()
	attempts := max(p.MaxAttempts, 1)
	backoff := p.InitialBackoff
	retryable := p.Retryable
	if retryable == nil {
		retryable = isRetryable
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return Result{Err: err, Attempts: attempt - 1, Duration: time.Since(start)}
		}

		err := fn(ctx)
		if err == nil {
			return Result{Attempts: attempt, Duration: time.Since(start)}
		}
		lastErr = err
		if !retryable(err) {
			return Result{Err: err, Attempts: attempt, Duration: time.Since(start)}
		}

		if attempt < attempts {
			select {
			case <-ctx.Done():
				return Result{Err: ctx.Err(), Attempts: attempt, Duration: time.Since(start)}
			case <-time.After(withJitter(backoff, p.Jitter)):
			}
			backoff = time.Duration(float64(backoff) * p.BackoffFactor)
			if p.MaxBackoff > 0 && backoff > p.MaxBackoff {
				backoff = p.MaxBackoff
			}
		}
	}

	if attempts == 1 {
		return Result{Err: lastErr, Attempts: 1, Duration: time.Since(start)}
	}
	return Result{
		Err:      &ExhaustedError{Attempts: attempts, Err: lastErr},
		Attempts: attempts,
		Duration: time.Since(start),
	}
}

// withJitter returns base +/- (base * jitter * random).
func withJitter(base time.Duration, jitter float64) time.Duration {
	if jitter <= 0 {
		return base
	}
	return time.Duration(float64(base) + float64(base)*jitter*(rand.Float64()*2-1))
}

func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var perm *permanentError
	return !errors.As(err, &perm)
}

// ExhaustedError reports that every attempt failed.
type ExhaustedError struct {
	Attempts int
	Err      error
}

// Error implements the error interface.
func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("failed after %d attempts: %v", e.Attempts, e.Err)
}

// Unwrap returns the last attempt's error.
func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying under the default check.
// A nil err stays nil.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Option adjusts a Policy.
type Option func(*Policy)

// WithMaxAttempts sets the maximum number of attempts.
func WithMaxAttempts(n int) Option {
	return func(p *Policy) {
		p.MaxAttempts = n
	}
}

// WithInitialBackoff sets the wait before the second attempt.
func WithInitialBackoff(d time.Duration) Option {
	return func(p *Policy) {
		p.InitialBackoff = d
	}
}

// WithMaxBackoff caps the wait between attempts.
func WithMaxBackoff(d time.Duration) Option {
	return func(p *Policy) {
		p.MaxBackoff = d
	}
}

// WithBackoffFactor sets the backoff multiplier.
func WithBackoffFactor(f float64) Option {
	return func(p *Policy) {
		p.BackoffFactor = f
	}
}

// WithJitter sets the jitter factor.
func WithJitter(j float64) Option {
	return func(p *Policy) {
		p.Jitter = j
	}
}

// WithRetryable sets a custom retryability check.
func WithRetryable(fn func(error) bool) Option {
	return func(p *Policy) {
		p.Retryable = fn
	}
}

// NewPolicy starts from Default and applies opts.
func NewPolicy(opts ...Option) Policy {
	p := Default
	for _, opt := range opts {
		opt(&p)
	}
	return p
}
