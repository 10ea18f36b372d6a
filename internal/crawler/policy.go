package crawler

import (
	"errors"
	"math"
	"time"
)

// Policy validation errors.
var (
	ErrInvalidConcurrency    = errors.New("concurrency must be at least 1")
	ErrInvalidDelay          = errors.New("delay must be non-negative")
	ErrInvalidMaxRetries     = errors.New("max retries must be non-negative")
	ErrInvalidBackoff        = errors.New("backoff base must be positive and max backoff non-negative")
	ErrInvalidAttemptCeiling = errors.New("attempt ceiling must be greater than max retries")
	ErrInvalidRequestTimeout = errors.New("request timeout must be positive")
)

// Policy controls pacing and retries of a run.
//
// Two budgets apply to every item. MaxRetries counts only transient
// failures, so a channel behind a long rate limit is not given up early.
// AttemptCeiling counts every call, so a platform that rate limits forever
// still lets the run finish. Validate checks that the ceiling leaves room
// for all transient retries.
type Policy struct {
	// Concurrency is the number of workers. It is capped at the number of
	// items, and a worker whose session cannot be opened is not started.
	Concurrency int
	// Delay is the pause a worker takes between two items. A worker's
	// first item starts without it.
	Delay time.Duration
	// MaxRetries is the number of transient retries per item. Zero fails
	// an item on its first transient error.
	MaxRetries int
	// BackoffBase is the pause before the first transient retry; it doubles per retry.
	BackoffBase time.Duration
	// MaxBackoff caps a single backoff. Zero means uncapped.
	MaxBackoff time.Duration
	// AttemptCeiling bounds all calls for one item, rate-limit retries included.
	AttemptCeiling int
	// RequestTimeout bounds one adapter call. A call that times out is a
	// transient failure, not a cancellation of the run.
	RequestTimeout time.Duration
}

// DefaultPolicy is sequential crawling with a three second pause.
func DefaultPolicy() Policy {
	return Policy{
		Concurrency:    1,
		Delay:          3 * time.Second,
		MaxRetries:     3,
		BackoffBase:    2 * time.Second,
		MaxBackoff:     time.Minute,
		AttemptCeiling: 10,
		RequestTimeout: 30 * time.Second,
	}
}

// Validate returns the first invalid field.
func (p Policy) Validate() error {
	switch {
	case p.Concurrency < 1:
		return ErrInvalidConcurrency
	case p.Delay < 0:
		return ErrInvalidDelay
	case p.MaxRetries < 0:
		return ErrInvalidMaxRetries
	case p.BackoffBase <= 0 || p.MaxBackoff < 0:
		return ErrInvalidBackoff
	case p.AttemptCeiling < p.MaxRetries+1:
		return ErrInvalidAttemptCeiling
	case p.RequestTimeout <= 0:
		return ErrInvalidRequestTimeout
	}
	return nil
}

// normalized replaces invalid fields with the closest valid value.
func (p Policy) normalized() Policy {
	def := DefaultPolicy()
	if p.Concurrency < 1 {
		p.Concurrency = 1
	}
	if p.Delay < 0 {
		p.Delay = 0
	}
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	if p.BackoffBase <= 0 {
		p.BackoffBase = def.BackoffBase
	}
	if p.MaxBackoff < 0 {
		p.MaxBackoff = 0
	}
	if p.AttemptCeiling < p.MaxRetries+1 {
		p.AttemptCeiling = p.MaxRetries + 1
	}
	if p.RequestTimeout <= 0 {
		p.RequestTimeout = def.RequestTimeout
	}
	return p
}

// Backoff returns the pause before transient retry number n (0-based):
// BackoffBase * 2^n, capped by MaxBackoff when it is set.
func (p Policy) Backoff(n int) time.Duration {
	d := p.BackoffBase
	for range n {
		if d > math.MaxInt64/2 {
			d = math.MaxInt64
			break
		}
		d *= 2
		if p.MaxBackoff > 0 && d >= p.MaxBackoff {
			break
		}
	}
	if p.MaxBackoff > 0 && d > p.MaxBackoff {
		return p.MaxBackoff
	}
	return d
}
