package llm

import (
	"context"

	fberrors "finbench/internal/errors"
	"finbench/internal/logging"
)

// breakerClient guards an upstream with a circuit breaker. It does not retry;
// an open circuit surfaces as a DegradedError so callers stop hammering a
// failing provider.
type breakerClient struct {
	underlying Completer
	breaker    *fberrors.CircuitBreaker
	logger     logging.Logger
}

// WithCircuitBreaker wraps client so consecutive transient failures open the circuit.
func WithCircuitBreaker(client Completer, breaker *fberrors.CircuitBreaker, logger logging.Logger) Completer {
	if breaker == nil {
		return client
	}
	return &breakerClient{underlying: client, breaker: breaker, logger: logging.OrNop(logger)}
}

func (c *breakerClient) Model() string { return c.underlying.Model() }

func (c *breakerClient) Complete(ctx context.Context, req Request) (Response, error) {
	resp, err := fberrors.ExecuteFunc(c.breaker, ctx, func(ctx context.Context) (Response, error) {
		return c.underlying.Complete(ctx, req)
	})
	if err != nil && fberrors.IsDegraded(err) {
		logging.FromContext(ctx, c.logger).Warn("completion rejected, circuit %s", c.breaker.State())
	}
	return resp, err
}
