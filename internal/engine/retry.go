package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tapfarm/internal/logbus"
	"tapfarm/internal/metrics"
)

// ErrRetryExhausted is matched by every error returned after the last
// attempt of a remote call failed.
var ErrRetryExhausted = errors.New("max retries reached")

type RetryPolicy struct {
	Attempts int
	Wait     time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 5, Wait: 2 * time.Second}
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.Attempts <= 0 {
		p.Attempts = 5
	}
	if p.Wait < 0 {
		p.Wait = 0
	}
	return p
}

// RetryError wraps the last failure of an exhausted call.
type RetryError struct {
	Op       string
	Attempts int
	Err      error
}

func (e *RetryError) Error() string {
	return fmt.Sprintf("%s: giving up after %d attempts: %v", e.Op, e.Attempts, e.Err)
}

func (e *RetryError) Unwrap() []error { return []error{ErrRetryExhausted, e.Err} }

// SleepFunc blocks for d and reports false when ctx ended first.
type SleepFunc func(ctx context.Context, d time.Duration) bool

// Retrier runs one remote call with bounded attempts and a fixed wait
// between a failed attempt and the next one.
type Retrier struct {
	policy  RetryPolicy
	sleep   SleepFunc
	gate    func(ctx context.Context) error
	bus     *logbus.Bus
	metrics *metrics.Metrics
}

func NewRetrier(policy RetryPolicy, sleep SleepFunc, bus *logbus.Bus, m *metrics.Metrics) *Retrier {
	if sleep == nil {
		sleep = sleepCtx
	}
	return &Retrier{
		policy:  policy.normalized(),
		sleep:   sleep,
		bus:     bus,
		metrics: m,
	}
}

// withGate makes every attempt wait on gate first (the request limiter).
func (r *Retrier) withGate(gate func(ctx context.Context) error) *Retrier {
	r.gate = gate
	return r
}

func (r *Retrier) Policy() RetryPolicy { return r.policy }

// Do invokes fn at most policy.Attempts times. Success returns at once;
// after the final failure a *RetryError is returned and nothing else runs.
func Do[T any](ctx context.Context, r *Retrier, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error
	for attempt := 1; attempt <= r.policy.Attempts; attempt++ {
		if r.gate != nil {
			if err := r.gate(ctx); err != nil {
				return zero, err
			}
		}
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return zero, ctxErr
		}
		lastErr = err
		r.metrics.CallFailed(op)
		if attempt == r.policy.Attempts {
			break
		}
		if r.bus != nil {
			r.bus.Log("debug", "remote call failed, retrying", map[string]any{
				"op":      op,
				"attempt": attempt,
				"error":   err.Error(),
				"waitMs":  r.policy.Wait.Milliseconds(),
			})
		}
		if !r.sleep(ctx, r.policy.Wait) {
			return zero, ctx.Err()
		}
	}

	r.metrics.RetryExhausted(op)
	if r.bus != nil {
		r.bus.Log("error", "max retries reached, giving up", map[string]any{
			"op":       op,
			"attempts": r.policy.Attempts,
			"error":    lastErr.Error(),
		})
	}
	return zero, &RetryError{Op: op, Attempts: r.policy.Attempts, Err: lastErr}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
