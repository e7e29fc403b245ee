// Package retry provides utilities for polling operations at a fixed interval.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Policy describes a bounded poll: a fixed interval between attempts and a maximum
// number of attempts. A Policy is a value; every call to Await starts a fresh count.
type Policy struct {
	// Name identifies the call site in errors, logs and metrics (e.g. "discovery").
	Name        string
	Interval    time.Duration
	MaxAttempts int
}

// Attempt is invoked before every sleep with the 1-based number of the attempt that
// just failed and its error. It is used for human-readable progress lines.
type Attempt func(attempt int, err error)

// Option is a functional option for Await.
type Option func(*awaitConfig)

type awaitConfig struct {
	onFailure Attempt
	observe   func(policy string, attempts int, succeeded bool)
}

// OnFailure registers a callback invoked after every failed attempt that will be retried.
func OnFailure(fn Attempt) Option {
	return func(c *awaitConfig) {
		c.onFailure = fn
	}
}

// WithObserver registers a callback invoked once when Await returns, with the number of
// attempts made and whether the operation eventually succeeded.
func WithObserver(fn func(policy string, attempts int, succeeded bool)) Option {
	return func(c *awaitConfig) {
		c.observe = fn
	}
}

// ErrExhausted is matched by errors.Is for every ExhaustedError.
var ErrExhausted = errors.New("retry attempts exhausted")

// ExhaustedError is returned when every attempt of a Policy failed.
type ExhaustedError struct {
	Policy   string
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	name := e.Policy
	if name == "" {
		name = "operation"
	}
	return fmt.Sprintf("%s failed after %d attempts: %v", name, e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Last
}

// Is reports ErrExhausted as a match so callers need not know the concrete type.
func (e *ExhaustedError) Is(target error) bool {
	return target == ErrExhausted
}

// Await calls operation until it returns a nil error, at most p.MaxAttempts times,
// sleeping p.Interval between attempts. There is no jitter and no backoff.
//
// Errors wrapped with Fatal() stop the loop immediately and are returned as-is.
// Context cancellation during a sleep ends the loop with the context's error.
func Await[T any](ctx context.Context, p Policy, operation func() (T, error), opts ...Option) (T, error) {
	cfg := &awaitConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	var zero T
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result, err := operation()
		if err == nil {
			cfg.report(p.Name, attempt, true)
			return result, nil
		}

		lastErr = err

		if IsFatal(err) {
			cfg.report(p.Name, attempt, false)
			return zero, err
		}

		if attempt == maxAttempts {
			break
		}

		if cfg.onFailure != nil {
			cfg.onFailure(attempt, err)
		}

		select {
		case <-ctx.Done():
			cfg.report(p.Name, attempt, false)
			return zero, fmt.Errorf("%s interrupted after %d attempts: %w", p.Name, attempt, ctx.Err())
		case <-time.After(p.Interval):
		}
	}

	cfg.report(p.Name, maxAttempts, false)
	return zero, &ExhaustedError{Policy: p.Name, Attempts: maxAttempts, Last: lastErr}
}

// Do is Await for operations that produce no value.
func Do(ctx context.Context, p Policy, operation func() error, opts ...Option) error {
	_, err := Await(ctx, p, func() (struct{}, error) {
		return struct{}{}, operation()
	}, opts...)
	return err
}

func (c *awaitConfig) report(policy string, attempts int, succeeded bool) {
	if c.observe != nil {
		c.observe(policy, attempts, succeeded)
	}
}

// FatalError wraps an error to mark it as fatal (non-retryable).
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string {
	return e.Err.Error()
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// Fatal marks an error as fatal (non-retryable).
// Operations that encounter fatal errors will not be retried.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &FatalError{Err: err}
}

// IsFatal checks if an error is fatal (non-retryable).
func IsFatal(err error) bool {
	var fatalErr *FatalError
	return errors.As(err, &fatalErr)
}

// IsExhausted reports whether err is (or wraps) an ExhaustedError.
func IsExhausted(err error) bool {
	return errors.Is(err, ErrExhausted)
}
