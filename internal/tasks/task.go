// Package tasks runs release pipelines on a bounded worker pool.
//
// A publish or revoke is a Task: a function plus a bounded retry policy.
// Every attempt resumes the event chains of its history where the previous
// attempt stopped, so re-running an attempt never duplicates a step.
package tasks

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/go-logr/logr"

	"github.com/stacklok/gateway-release-server/internal/releasedata"
)

const (
	defaultMaxAttempts     = 5
	defaultInitialInterval = time.Second
	defaultMaxInterval     = 30 * time.Second
)

// Task is a unit of work run by the Pool
type Task struct {
	// Name labels logs and metrics
	Name string
	// Key identifies the work for liveness checks; several tasks may share one
	Key string
	// Run performs one attempt. attempt starts at 1.
	Run func(ctx context.Context, attempt uint) error
	// Retry bounds the attempts of Run
	Retry RetryPolicy
	// OnFailure is called once when the last attempt failed or the error was permanent
	OnFailure func(ctx context.Context, err error)
}

// RetryPolicy is an exponential backoff with a bounded number of attempts
type RetryPolicy struct {
	MaxAttempts     uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryPolicy returns the policy used when none is configured
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     defaultMaxAttempts,
		InitialInterval: defaultInitialInterval,
		MaxInterval:     defaultMaxInterval,
	}
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts == 0 {
		p.MaxAttempts = defaultMaxAttempts
	}
	if p.InitialInterval <= 0 {
		p.InitialInterval = defaultInitialInterval
	}
	if p.MaxInterval < p.InitialInterval {
		p.MaxInterval = max(defaultMaxInterval, p.InitialInterval)
	}
	return p
}

// Do calls fn until it succeeds, fails permanently or runs out of attempts.
// Input errors are permanent.
func (p RetryPolicy) Do(ctx context.Context, name string, fn func(ctx context.Context, attempt uint) error) error {
	p = p.withDefaults()
	logger := logr.FromContextOrDiscard(ctx)

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialInterval
	b.MaxInterval = p.MaxInterval

	var attempt uint
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		err := fn(ctx, attempt)
		if err != nil && IsPermanent(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(p.MaxAttempts),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			logger.Info("Task attempt failed, retrying",
				"task", name, "attempt", attempt, "retryIn", next.String(), "error", err.Error())
		}),
	)
	return err
}

// IsPermanent reports whether retrying cannot change the outcome of err.
// A joined error is permanent only when all of its parts are.
func IsPermanent(err error) bool {
	if err == nil {
		return false
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		parts := joined.Unwrap()
		if len(parts) == 0 {
			return false
		}
		for _, part := range parts {
			if !IsPermanent(part) {
				return false
			}
		}
		return true
	}
	if releasedata.IsInputError(err) {
		return true
	}
	var permanent *backoff.PermanentError
	return errors.As(err, &permanent)
}
