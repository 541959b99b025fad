// Package httpclient builds the outbound HTTP clients used for the generator
// and candidate exchanges.
package httpclient

import (
	"net/http"
	"time"

	"finbench/internal/logging"
)

// New builds an HTTP client with a request timeout and debug-level request logging.
func New(timeout time.Duration, logger logging.Logger) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &loggingRoundTripper{
			base:   http.DefaultTransport.(*http.Transport).Clone(),
			logger: logging.OrNop(logger),
		},
	}
}

type loggingRoundTripper struct {
	base   http.RoundTripper
	logger logging.Logger
}

func (t *loggingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.base.RoundTrip(req)
	elapsed := time.Since(start).Round(time.Millisecond)
	logger := logging.FromContext(req.Context(), t.logger)
	if err != nil {
		logger.Debug("%s %s failed after %s: %v", req.Method, req.URL.Redacted(), elapsed, err)
		return nil, err
	}
	logger.Debug("%s %s -> %d (%s)", req.Method, req.URL.Redacted(), resp.StatusCode, elapsed)
	return resp, nil
}
