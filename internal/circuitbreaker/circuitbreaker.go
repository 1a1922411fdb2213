// Package circuitbreaker wraps sony/gobreaker with application defaults.
package circuitbreaker

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/dlemos/perparb/internal/apperror"
	"github.com/dlemos/perparb/internal/logger"
)

// Config holds circuit breaker tuning knobs.
type Config struct {
	MaxRequests         uint32        // allowed requests in half-open state
	Interval            time.Duration // counters reset interval in closed state
	Timeout             time.Duration // open -> half-open transition delay
	ConsecutiveFailures uint32        // failures before tripping
}

// DefaultConfig returns the defaults used for venue-facing calls.
func DefaultConfig() Config {
	return Config{
		MaxRequests:         2,
		Interval:            60 * time.Second,
		Timeout:             30 * time.Second,
		ConsecutiveFailures: 5,
	}
}

// CircuitBreaker is a typed circuit breaker around a remote dependency.
type CircuitBreaker[T any] struct {
	name string
	cb   *gobreaker.CircuitBreaker[T]
}

// New creates a circuit breaker named after the dependency it guards.
func New[T any](name string, cfg Config, log logger.LoggerInterface) *CircuitBreaker[T] {
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
	}

	if log != nil {
		settings.OnStateChange = func(name string, from, to gobreaker.State) {
			log.Warn(context.Background(), "circuit breaker state change",
				"name", name, "from", from.String(), "to", to.String())
		}
	}

	return &CircuitBreaker[T]{
		name: name,
		cb:   gobreaker.NewCircuitBreaker[T](settings),
	}
}

// Execute runs fn behind the breaker. When the breaker is open the call is
// rejected immediately with a CIRCUIT_OPEN error.
func (c *CircuitBreaker[T]) Execute(fn func() (T, error)) (T, error) {
	result, err := c.cb.Execute(fn)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return result, apperror.New(apperror.CodeCircuitOpen,
				apperror.WithContext(c.name), apperror.WithCause(err))
		}
		return result, err
	}
	return result, nil
}

// State returns the current breaker state.
func (c *CircuitBreaker[T]) State() gobreaker.State {
	return c.cb.State()
}
