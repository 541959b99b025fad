package errors

import (
	"context"
	"fmt"
	"sync"
	"time"

	"finbench/internal/logging"
)

// CircuitState is the breaker position.
type CircuitState int

const (
	StateClosed CircuitState = iota
	StateOpen
	StateHalfOpen
)

func (s CircuitState) String() string {
	return [...]string{"closed", "open", "half-open"}[s]
}

// CircuitBreakerConfig: FailureThreshold consecutive transient failures open
// the breaker, Timeout later one probe is let through, and SuccessThreshold
// probe successes close it again.
type CircuitBreakerConfig struct {
	FailureThreshold int           `mapstructure:"failure_threshold" yaml:"failure_threshold"`
	SuccessThreshold int           `mapstructure:"success_threshold" yaml:"success_threshold"`
	Timeout          time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// DefaultCircuitBreakerConfig opens after 5 failures for 30s and closes
// after 2 successes.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{FailureThreshold: 5, SuccessThreshold: 2, Timeout: 30 * time.Second}
}

// CircuitBreaker sheds calls to an upstream that keeps failing transiently.
// Permanent errors are the caller's problem and do not count.
type CircuitBreaker struct {
	name   string
	config CircuitBreakerConfig
	logger logging.Logger
	now    func() time.Time

	mu        sync.Mutex
	state     CircuitState
	failures  int
	successes int
	openedAt  time.Time
}

// NewCircuitBreaker builds a closed breaker; zero config fields take defaults.
func NewCircuitBreaker(name string, config CircuitBreakerConfig) *CircuitBreaker {
	defaults := DefaultCircuitBreakerConfig()
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = defaults.FailureThreshold
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = defaults.SuccessThreshold
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	return &CircuitBreaker{
		name:   name,
		config: config,
		logger: logging.NewComponentLogger("CircuitBreaker"),
		now:    time.Now,
	}
}

// Execute runs fn unless the breaker is open.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	_, err := ExecuteFunc(cb, ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// ExecuteFunc is Execute for functions returning a value.
func ExecuteFunc[T any](cb *CircuitBreaker, ctx context.Context, fn func(ctx context.Context) (T, error)) (T, error) {
	if err := cb.admit(); err != nil {
		var zero T
		return zero, err
	}
	result, err := fn(ctx)
	cb.record(IsTransient(err))
	return result, err
}

// State returns the current position.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) admit() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state != StateOpen {
		return nil
	}
	remaining := cb.config.Timeout - cb.now().Sub(cb.openedAt)
	if remaining > 0 {
		return NewDegradedError(
			fmt.Errorf("circuit breaker open for %s", cb.name),
			fmt.Sprintf("%s is temporarily unavailable after repeated failures; retry in %s", cb.name, remaining.Round(time.Second)),
		)
	}
	cb.state = StateHalfOpen
	cb.successes = 0
	cb.logger.Info("[%s] half-open, probing upstream", cb.name)
	return nil
}

func (cb *CircuitBreaker) record(failed bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if failed {
		if cb.state == StateHalfOpen {
			cb.trip("probe failed")
			return
		}
		cb.failures++
		if cb.state == StateClosed && cb.failures >= cb.config.FailureThreshold {
			cb.trip(fmt.Sprintf("%d consecutive failures", cb.failures))
		}
		return
	}

	cb.failures = 0
	if cb.state == StateHalfOpen {
		cb.successes++
		if cb.successes >= cb.config.SuccessThreshold {
			cb.state = StateClosed
			cb.successes = 0
			cb.logger.Info("[%s] closed", cb.name)
		}
	}
}

func (cb *CircuitBreaker) trip(reason string) {
	cb.state = StateOpen
	cb.openedAt = cb.now()
	cb.successes = 0
	cb.logger.Warn("[%s] opened: %s", cb.name, reason)
}
