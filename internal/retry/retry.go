// Package retry re-runs transactional work that lost a race against another
// writer. Only store.ErrTransient is retried; every other error fails fast.
package retry

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/shelfkeep/shelfkeep-server/internal/store"
)

const (
	// DefaultMaxAttempts counts the first run, so five retries follow it.
	DefaultMaxAttempts = 6

	// DefaultBaseDelay is the wait before the first retry. It doubles on
	// every later attempt.
	DefaultBaseDelay = 10 * time.Millisecond

	// DefaultJitterFactor adds up to 30% of each delay at random.
	DefaultJitterFactor = 0.3
)

var (
	// ErrInvalidMaxAttempts is returned when max attempts are not positive.
	ErrInvalidMaxAttempts = errors.New("max attempts must be positive")

	// ErrNegativeBaseDelay is returned when the base delay is negative.
	ErrNegativeBaseDelay = errors.New("base delay must not be negative")

	// ErrInvalidJitterFactor is returned when the jitter factor is not between 0.0 and 1.0.
	ErrInvalidJitterFactor = errors.New("jitter factor must be between 0.0 and 1.0")
)

// Func is a unit of work that can be retried.
type Func func(ctx context.Context) error

// Policy holds a validated retry configuration. The zero value is not
// usable; build one with New.
type Policy struct {
	maxAttempts  int
	baseDelay    time.Duration
	jitterFactor float64
	logger       *slog.Logger
}

// Option configures a Policy.
type Option func(*Policy) error

// New builds a Policy from the defaults and the given options.
func New(options ...Option) (*Policy, error) {
	p := &Policy{
		maxAttempts:  DefaultMaxAttempts,
		baseDelay:    DefaultBaseDelay,
		jitterFactor: DefaultJitterFactor,
	}
	for _, option := range options {
		if err := option(p); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Default returns the default policy.
func Default() *Policy {
	p, _ := New()
	return p
}

// WithMaxAttempts sets the total number of attempts, the first one included.
func WithMaxAttempts(attempts int) Option {
	return func(p *Policy) error {
		if attempts <= 0 {
			return ErrInvalidMaxAttempts
		}
		p.maxAttempts = attempts
		return nil
	}
}

// WithBaseDelay sets the base delay for exponential backoff.
// Actual delays: baseDelay, baseDelay*2, baseDelay*4, ...
func WithBaseDelay(delay time.Duration) Option {
	return func(p *Policy) error {
		if delay < 0 {
			return ErrNegativeBaseDelay
		}
		p.baseDelay = delay
		return nil
	}
}

// WithJitterFactor sets the share of each delay added as random jitter.
// Valid range: 0.0 (no jitter) to 1.0.
func WithJitterFactor(factor float64) Option {
	return func(p *Policy) error {
		if factor < 0.0 || factor > 1.0 {
			return ErrInvalidJitterFactor
		}
		p.jitterFactor = factor
		return nil
	}
}

// WithLogger logs every retried attempt at debug level.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Policy) error {
		p.logger = logger
		return nil
	}
}

// MaxAttempts returns the configured attempt limit.
func (p *Policy) MaxAttempts() int {
	return p.maxAttempts
}

// Do runs fn until it succeeds, fails with a non-retryable error, the
// context ends or the attempts run out. The last error is returned.
//
// Default schedule: 0, 10, 20, 40, 80, 160 ms, each plus up to 30% jitter.
func (p *Policy) Do(ctx context.Context, fn Func) error {
	var lastErr error

	for attempt := 0; attempt < p.maxAttempts; attempt++ {
		if attempt > 0 {
			delay := p.backoff(attempt)
			if p.logger != nil {
				p.logger.Debug("retrying after transient conflict",
					"attempt", attempt+1,
					"delay", delay,
					"error", lastErr,
				)
			}

			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			}
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !Retryable(lastErr) {
			return lastErr
		}
	}

	if p.logger != nil {
		p.logger.Warn("retries exhausted", "attempts", p.maxAttempts, "error", lastErr)
	}
	return lastErr
}

func (p *Policy) backoff(attempt int) time.Duration {
	delay := p.baseDelay * time.Duration(1<<(attempt-1))
	jitter := rand.Float64() * float64(delay) * p.jitterFactor //nolint:gosec // jitter does not need crypto randomness
	return delay + time.Duration(jitter)
}

// Retryable reports whether err is a transient storage conflict. Deadline
// errors are not retried; a timeout under load should surface.
func Retryable(err error) bool {
	return errors.Is(err, store.ErrTransient)
}
