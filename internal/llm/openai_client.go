package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	fberrors "finbench/internal/errors"
	"finbench/internal/httpclient"
	"finbench/internal/logging"
)

// openaiClient speaks the OpenAI-compatible chat completions API
// (OpenRouter by default).
type openaiClient struct {
	client *openai.Client
	model  string
	logger logging.Logger
}

// NewOpenAIClient constructs a Completer for an OpenAI-compatible endpoint.
func NewOpenAIClient(cfg Config, logger logging.Logger) (Completer, error) {
	logger = logging.OrNop(logger)
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"); base != "" {
		clientConfig.BaseURL = base
	}
	hc := httpclient.New(cfg.Timeout, logger)
	if len(cfg.Headers) > 0 {
		hc.Transport = &headerRoundTripper{base: hc.Transport, headers: cfg.Headers}
	}
	clientConfig.HTTPClient = hc

	return &openaiClient{
		client: openai.NewClientWithConfig(clientConfig),
		model:  cfg.Model,
		logger: logger,
	}, nil
}

func (c *openaiClient) Model() string { return c.model }

func (c *openaiClient) Complete(ctx context.Context, req Request) (Response, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.Prompt})

	oaiReq := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: float32(req.Temperature),
		MaxTokens:   maxTokensOrDefault(req.MaxTokens),
	}
	if req.JSON {
		oaiReq.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}

	logging.FromContext(ctx, c.logger).Debug("chat completion: model=%s prompt_chars=%d", c.model, len(req.Prompt))
	resp, err := c.client.CreateChatCompletion(ctx, oaiReq)
	if err != nil {
		return Response{}, classifyOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return Response{}, fberrors.NewTransientError(errors.New("no choices in response"), "model returned an empty completion")
	}

	return Response{
		Content: resp.Choices[0].Message.Content,
		Model:   resp.Model,
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
		},
	}, nil
}

func classifyOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fberrors.ClassifyHTTPStatus(apiErr.HTTPStatusCode, fmt.Errorf("openai: %w", err))
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return fberrors.ClassifyHTTPStatus(reqErr.HTTPStatusCode, fmt.Errorf("openai: %w", err))
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if fberrors.IsTransient(err) {
		return fberrors.NewTransientError(err, "completion request failed")
	}
	return err
}

type headerRoundTripper struct {
	base    http.RoundTripper
	headers map[string]string
}

func (t *headerRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(req)
}
