package utils

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// RetryableError marks an error as transient. Retry only repeats calls that
// fail with an error wrapping a RetryableError.
type RetryableError struct {
	Err error
	// After, when positive, replaces the exponential wait before the next attempt.
	After time.Duration
}

func (e *RetryableError) Error() string {
	return e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// Retryable wraps err so IsRetryable reports true for it. Nil stays nil.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err}
}

// RetryAfter is Retryable with a server-supplied wait, such as a Retry-After header.
func RetryAfter(err error, d time.Duration) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err, After: d}
}

// IsRetryable reports whether err or anything it wraps is a RetryableError.
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}

// RetryPolicy bounds how often and how patiently a call is repeated.
type RetryPolicy struct {
	MaxRetries  int
	BaseBackoff time.Duration
}

// DefaultRetryPolicy retries three times starting at 500ms.
var DefaultRetryPolicy = RetryPolicy{MaxRetries: 3, BaseBackoff: 500 * time.Millisecond}

// maxBackoff caps a single exponential wait.
const maxBackoff = 30 * time.Second

func (p RetryPolicy) backOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.BaseBackoff
	b.RandomizationFactor = 0
	b.Multiplier = 2
	b.MaxInterval = maxBackoff
	return b
}

// Retry calls fn until it succeeds, returns a non-retryable error, the context
// is done, or MaxRetries retries have been spent. The wait doubles each attempt.
func Retry(ctx context.Context, p RetryPolicy, fn func(ctx context.Context) error) error {
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}

	var lastErr error
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := fn(ctx)
		lastErr = err
		if err == nil {
			return struct{}{}, nil
		}
		var re *RetryableError
		if !errors.As(err, &re) {
			return struct{}{}, backoff.Permanent(err)
		}
		if re.After > 0 {
			return struct{}{}, &backoff.RetryAfterError{Duration: re.After}
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(p.backOff()),
		backoff.WithMaxTries(uint(p.MaxRetries+1)),
		backoff.WithMaxElapsedTime(0),
	)

	switch {
	case err == nil:
		return nil
	case !IsRetryable(lastErr):
		return err
	case context.Cause(ctx) != nil && errors.Is(err, context.Cause(ctx)):
		return err
	default:
		return fmt.Errorf("max retries exceeded: %w", lastErr)
	}
}
