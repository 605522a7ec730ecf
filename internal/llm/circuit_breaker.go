package llm

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
)

// ErrCircuitOpen is returned when the circuit breaker is open and rejects
// generation requests to keep a failing backend from being hammered.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreakerConfig holds the breaker thresholds.
type CircuitBreakerConfig struct {
	// MaxFailures is the number of consecutive failures that trips the
	// circuit. Default: 3.
	MaxFailures uint32

	// Timeout is how long the circuit stays open before allowing test
	// requests. Default: 30 seconds.
	Timeout time.Duration

	// HalfOpenMaxSuccesses is the number of successes in half-open state
	// required to close the circuit again. Default: 2.
	HalfOpenMaxSuccesses uint32
}

// CircuitBreaker wraps a TextGenerator behind gobreaker. Unavailability
// (ErrUnavailable) is not counted as a failure: a generator that is simply
// absent in this context should not trip the circuit for everyone else.
type CircuitBreaker struct {
	gen     TextGenerator
	breaker *gobreaker.CircuitBreaker
}

// NewCircuitBreaker wraps gen with default thresholds.
func NewCircuitBreaker(gen TextGenerator) *CircuitBreaker {
	return NewCircuitBreakerWithConfig(gen, CircuitBreakerConfig{
		MaxFailures:          3,
		Timeout:              30 * time.Second,
		HalfOpenMaxSuccesses: 2,
	})
}

// NewCircuitBreakerWithConfig wraps gen with custom thresholds.
func NewCircuitBreakerWithConfig(gen TextGenerator, config CircuitBreakerConfig) *CircuitBreaker {
	settings := gobreaker.Settings{
		Name:        "text-generator",
		MaxRequests: config.HalfOpenMaxSuccesses,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= config.MaxFailures
		},
		// A generator that is merely absent in this context, or a caller
		// that cancelled, says nothing about backend health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrUnavailable) ||
				errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
		},
	}
	return &CircuitBreaker{
		gen:     gen,
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

// Generate runs the wrapped generator through the breaker. An open circuit
// yields ErrCircuitOpen immediately; a cancelled context never reaches the
// backend.
func (cb *CircuitBreaker) Generate(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	result, err := cb.breaker.Execute(func() (interface{}, error) {
		return cb.gen.Generate(ctx, prompt)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", ErrCircuitOpen
		}
		return "", err
	}
	return result.(string), nil
}

// State returns the breaker state as a string: closed, open or half-open.
func (cb *CircuitBreaker) State() string {
	switch cb.breaker.State() {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateOpen:
		return "open"
	case gobreaker.StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}
