// Package wait provides the bounded polling primitive used by every crawl step.
//
// A wait repeatedly sleeps a short interval and re-evaluates a condition over
// the current page state until it holds or the timeout elapses. No wait blocks
// longer than its timeout plus one poll interval.
package wait

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmylchreest/educrawler/internal/failure"
	"github.com/jmylchreest/educrawler/internal/logger"
)

// DefaultInterval is the poll cadence used when Options.Interval is zero.
const DefaultInterval = 50 * time.Millisecond

// Options bounds a single wait.
type Options struct {
	Operation string        // Name reported in logs and timeout errors
	Timeout   time.Duration // Maximum cumulative wait
	Interval  time.Duration // Sleep between evaluations (default: DefaultInterval)
}

// Condition reports whether the awaited page state has been reached.
// A non-nil error aborts the wait immediately.
type Condition func(ctx context.Context) (bool, error)

// Probe is a Condition that also returns the value it read.
type Probe[T any] func(ctx context.Context) (T, bool, error)

// TimeoutError is returned when a wait exceeds its deadline.
type TimeoutError struct {
	Operation string
	Timeout   time.Duration
	Polls     int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: timed out after %s (%d polls)", e.Operation, e.Timeout, e.Polls)
}

// Is makes errors.Is(err, failure.ErrTimeout) match.
func (e *TimeoutError) Is(target error) bool {
	return target == failure.ErrTimeout
}

// Until polls cond until it holds or opts.Timeout elapses.
func Until(ctx context.Context, opts Options, cond Condition) error {
	_, err := For(ctx, opts, func(ctx context.Context) (struct{}, bool, error) {
		ok, err := cond(ctx)
		return struct{}{}, ok, err
	})
	return err
}

// For polls probe until it reports success and returns the value it read.
// On timeout the zero value is returned with a *TimeoutError.
func For[T any](ctx context.Context, opts Options, probe Probe[T]) (T, error) {
	var zero T

	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	start := time.Now()
	deadline := start.Add(opts.Timeout)
	polls := 0

	// Evaluations share the wait's bound so a stalled read cannot outlive it.
	pctx, cancel := context.WithDeadline(ctx, deadline.Add(interval))
	defer cancel()

	for {
		// Never sleep past the deadline; the last evaluation happens at it.
		sleep := interval
		if remaining := time.Until(deadline); remaining < sleep {
			sleep = max(remaining, 0)
		}
		if err := Sleep(ctx, sleep); err != nil {
			return zero, fmt.Errorf("%s: %w", opts.Operation, err)
		}

		polls++
		logger.Trace("polling", "operation", opts.Operation, "poll", polls, "interval", interval)

		v, ok, err := probe(pctx)
		if err != nil {
			if pctx.Err() != nil && ctx.Err() == nil {
				return zero, &TimeoutError{Operation: opts.Operation, Timeout: opts.Timeout, Polls: polls}
			}
			return zero, err
		}
		if ok {
			logger.Debug("wait satisfied",
				"operation", opts.Operation,
				"polls", polls,
				"elapsed", time.Since(start).Round(time.Millisecond))
			return v, nil
		}

		if !time.Now().Before(deadline) || pctx.Err() != nil {
			return zero, &TimeoutError{Operation: opts.Operation, Timeout: opts.Timeout, Polls: polls}
		}
	}
}

// Sleep pauses for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Settle applies a coarse fixed delay after an action that triggers a
// panel transition, giving the remote UI time to start rendering.
func Settle(ctx context.Context, d time.Duration, reason string) error {
	if d > 0 {
		logger.Trace("settling", "reason", reason, "delay", d)
	}
	return Sleep(ctx, d)
}

// IsTimeout reports whether err is a wait timeout.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}
