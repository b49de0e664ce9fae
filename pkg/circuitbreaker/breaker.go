// Package circuitbreaker wraps sony/gobreaker with a fallback-style API:
// when the call fails or the breaker is open, the fallback decides what the
// caller sees.
package circuitbreaker

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"
)

type State = gobreaker.State

const (
	StateClosed   = gobreaker.StateClosed
	StateHalfOpen = gobreaker.StateHalfOpen
	StateOpen     = gobreaker.StateOpen
)

var (
	// ErrOpen is handed to the fallback when the breaker rejected the call
	// without running it.
	ErrOpen = errors.New("circuit breaker is open")
)

type Config struct {
	Name string
	// FailureThreshold consecutive failures trip the breaker.
	FailureThreshold uint32
	// OpenTimeout is how long the breaker stays open before probing.
	OpenTimeout time.Duration
	// HalfOpenMaxRequests probes are allowed through while half-open.
	HalfOpenMaxRequests uint32
	// Interval clears closed-state counts periodically; zero never clears.
	Interval time.Duration
}

func DefaultConfig(name string) Config {
	return Config{
		Name:                name,
		FailureThreshold:    5,
		OpenTimeout:         30 * time.Second,
		HalfOpenMaxRequests: 1,
		Interval:            60 * time.Second,
	}
}

type Option func(*gobreaker.Settings)

// WithStateChange registers a hook called on every transition.
func WithStateChange(fn func(name string, from, to State)) Option {
	return func(s *gobreaker.Settings) {
		s.OnStateChange = fn
	}
}

type Breaker[T any] struct {
	cb *gobreaker.CircuitBreaker[T]
}

func New[T any](cfg Config, opts ...Option) *Breaker[T] {
	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = 1
	}

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.HalfOpenMaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		// a caller hanging up says nothing about the remote
		IsExcluded: callerCancelled,
	}
	for _, opt := range opts {
		opt(&settings)
	}

	return &Breaker[T]{cb: gobreaker.NewCircuitBreaker[T](settings)}
}

// Execute runs fn through the breaker. A non-nil fallback replaces the
// result whenever fn failed or the breaker refused the call; the fallback
// sees ErrOpen in the last case. A done context is returned as-is: it is
// neither counted by the breaker nor handed to the fallback.
func (b *Breaker[T]) Execute(ctx context.Context, fn func(context.Context) (T, error), fallback func(error) (T, error)) (T, error) {
	if err := ctx.Err(); err != nil {
		var zero T
		return zero, err
	}

	result, err := b.cb.Execute(func() (T, error) {
		return fn(ctx)
	})
	if err == nil {
		return result, nil
	}
	if callerCancelled(err) {
		return result, err
	}

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		err = ErrOpen
	}

	if fallback == nil {
		return result, err
	}
	return fallback(err)
}

func callerCancelled(err error) bool {
	return errors.Is(err, context.Canceled)
}

func (b *Breaker[T]) Name() string {
	return b.cb.Name()
}

func (b *Breaker[T]) State() State {
	return b.cb.State()
}

func (b *Breaker[T]) Counts() gobreaker.Counts {
	return b.cb.Counts()
}
