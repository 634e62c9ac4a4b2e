// Package retry is the one retry policy applied at every suspension point:
// bounded attempts with exponential backoff, cancellable through ctx.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy bounds an operation's attempts and shapes the backoff between
// them. The zero value is usable: 3 attempts, 500ms initial interval.
type Policy struct {
	Attempts        int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

func (p Policy) defaults() Policy {
	if p.Attempts <= 0 {
		p.Attempts = 3
	}
	if p.InitialInterval <= 0 {
		p.InitialInterval = 500 * time.Millisecond
	}
	if p.MaxInterval <= 0 {
		p.MaxInterval = 10 * time.Second
	}
	return p
}

// Do runs op up to Attempts times, backing off between failures. It stops
// early on ctx cancellation or a Permanent error, returning the last error
// seen.
func (p Policy) Do(ctx context.Context, op func() error) error {
	p = p.defaults()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialInterval
	b.MaxInterval = p.MaxInterval

	return backoff.Retry(op, backoff.WithContext(
		backoff.WithMaxRetries(b, uint64(p.Attempts-1)), ctx))
}

// Permanent marks err as non-retryable so Do returns it immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return backoff.Permanent(err)
}
