// Package candidate talks to the agent under evaluation over A2A JSON-RPC.
package candidate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"finbench/internal/a2a"
	"finbench/internal/domain/benchmark"
	"finbench/internal/httpclient"
	"finbench/internal/jsonrpc"
	"finbench/internal/logging"
	"finbench/internal/observability"
	id "finbench/internal/utils/id"
	"finbench/internal/utils/textutil"
)

const (
	defaultTimeout          = 180 * time.Second
	defaultMaxResponseBytes = 4 << 20
)

// Asker sends one task prompt to a candidate and returns its answer.
// Failures are CandidateTimeout or CandidateProtocolError; a cancelled
// caller gets ctx.Err().
type Asker interface {
	Ask(ctx context.Context, endpoint string, task benchmark.TaskID, prompt string) (benchmark.Answer, error)
}

// Client is the A2A implementation of Asker.
type Client struct {
	http     *http.Client
	timeout  time.Duration
	maxBytes int64
	logger   logging.Logger
	metrics  *observability.MetricsCollector
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout bounds each exchange.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithMaxResponseBytes caps the response body size.
func WithMaxResponseBytes(n int64) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxBytes = n
		}
	}
}

// WithLogger sets the client logger.
func WithLogger(logger logging.Logger) Option {
	return func(c *Client) { c.logger = logging.OrNop(logger) }
}

// WithMetrics records exchange outcomes.
func WithMetrics(m *observability.MetricsCollector) Option {
	return func(c *Client) { c.metrics = m }
}

// WithHTTPClient replaces the transport client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// NewClient builds a candidate client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		timeout:  defaultTimeout,
		maxBytes: defaultMaxResponseBytes,
		logger:   logging.NewComponentLogger("CandidateClient"),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		// Deadlines come from the per-exchange context.
		c.http = httpclient.New(0, c.logger)
	}
	return c
}

// Ask implements Asker via message/send.
func (c *Client) Ask(ctx context.Context, endpoint string, task benchmark.TaskID, prompt string) (benchmark.Answer, error) {
	start := time.Now()
	answer, err := c.ask(ctx, endpoint, task, prompt)
	status := "ok"
	switch {
	case err == nil:
	case ctx.Err() != nil:
		status = "canceled"
	case errors.Is(err, benchmark.ErrCandidateTimeout):
		status = "timeout"
	default:
		status = "protocol_error"
	}
	c.metrics.RecordCandidateExchange(ctx, string(task), status, time.Since(start))
	if err != nil {
		logging.FromContext(ctx, c.logger).Warn("candidate exchange for %s failed (%s): %v", task, status, err)
	}
	return answer, err
}

func (c *Client) ask(parent context.Context, endpoint string, task benchmark.TaskID, prompt string) (benchmark.Answer, error) {
	if strings.TrimSpace(endpoint) == "" {
		return benchmark.Answer{}, protocolError(task, errors.New("no candidate endpoint"))
	}
	ctx, cancel := context.WithTimeout(parent, c.timeout)
	defer cancel()

	msg := a2a.NewTextMessage(a2a.RoleUser, prompt)
	rpcReq, err := jsonrpc.NewRequest(id.NewMessageID(), a2a.MethodMessageSend, a2a.MessageSendParams{Message: msg})
	if err != nil {
		return benchmark.Answer{}, protocolError(task, err)
	}
	body, err := json.Marshal(rpcReq)
	if err != nil {
		return benchmark.Answer{}, protocolError(task, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return benchmark.Answer{}, protocolError(task, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if logID := id.LogIDFromContext(parent); logID != "" {
		httpReq.Header.Set("X-Log-Id", logID)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return benchmark.Answer{}, c.transportError(parent, ctx, task, err)
	}
	data, err := httpclient.ReadResponse(resp, c.maxBytes)
	if err != nil {
		if errors.Is(err, httpclient.ErrBodyTooLarge) {
			return benchmark.Answer{}, protocolError(task, err)
		}
		return benchmark.Answer{}, c.transportError(parent, ctx, task, err)
	}
	if resp.StatusCode != http.StatusOK {
		return benchmark.Answer{}, protocolError(task, fmt.Errorf("HTTP %d: %s", resp.StatusCode, snippet(data)))
	}

	rpcResp, err := jsonrpc.UnmarshalResponse(data)
	if err != nil {
		return benchmark.Answer{}, protocolError(task, err)
	}
	if rpcResp.IsError() {
		return benchmark.Answer{}, protocolError(task, rpcResp.Error)
	}
	result, err := a2a.DecodeResult(rpcResp.Result)
	if err != nil {
		return benchmark.Answer{}, protocolError(task, err)
	}
	if result.Task != nil && result.Task.Status.State != a2a.TaskStateCompleted {
		return benchmark.Answer{}, protocolError(task, fmt.Errorf("candidate task ended in state %q", result.Task.Status.State))
	}

	parts := result.Parts()
	if payload, ok := a2a.FirstData(parts); ok {
		if answer, err := ParseValue(task, payload); err == nil {
			return answer, nil
		}
	}
	text := a2a.JoinText(parts)
	if strings.TrimSpace(text) == "" {
		return benchmark.Answer{}, protocolError(task, errors.New("candidate returned no content"))
	}
	answer, err := ParseText(task, text)
	if err != nil {
		return benchmark.Answer{}, protocolError(task, fmt.Errorf("%w (response: %s)", err, snippet([]byte(text))))
	}
	return answer, nil
}

func (c *Client) transportError(parent, ctx context.Context, task benchmark.TaskID, err error) error {
	if parent.Err() != nil {
		return parent.Err()
	}
	var netErr net.Error
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return benchmark.NewError(benchmark.KindCandidateTimeout, task, fmt.Errorf("no answer within %s", c.timeout))
	}
	return protocolError(task, err)
}

func protocolError(task benchmark.TaskID, err error) error {
	return benchmark.NewError(benchmark.KindCandidateProtocolError, task, err)
}

func snippet(data []byte) string {
	s, cut := textutil.TruncateRunes(strings.TrimSpace(string(data)), 200)
	if cut {
		return s + "..."
	}
	return s
}
