package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	fberrors "finbench/internal/errors"
	"finbench/internal/httpclient"
	"finbench/internal/logging"
)

// jsonOnlyInstruction is appended to the system prompt because the Messages
// API has no JSON response mode.
const jsonOnlyInstruction = "Respond with a single JSON object and nothing else."

type anthropicClient struct {
	client anthropic.Client
	model  string
	logger logging.Logger
}

// NewAnthropicClient constructs a Completer for the Anthropic Messages API.
func NewAnthropicClient(cfg Config, logger logging.Logger) (Completer, error) {
	logger = logging.OrNop(logger)
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("anthropic: API key is required")
	}
	options := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpclient.New(cfg.Timeout, logger)),
		// Retries belong to the caller.
		option.WithMaxRetries(0),
	}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		options = append(options, option.WithBaseURL(base))
	}
	for k, v := range cfg.Headers {
		options = append(options, option.WithHeader(k, v))
	}
	return &anthropicClient{
		client: anthropic.NewClient(options...),
		model:  cfg.Model,
		logger: logger,
	}, nil
}

func (c *anthropicClient) Model() string { return c.model }

func (c *anthropicClient) Complete(ctx context.Context, req Request) (Response, error) {
	system := req.System
	if req.JSON {
		system = strings.TrimSpace(system + "\n" + jsonOnlyInstruction)
	}
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		MaxTokens:   int64(maxTokensOrDefault(req.MaxTokens)),
		Messages:    []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt))},
		Temperature: anthropic.Float(req.Temperature),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	logging.FromContext(ctx, c.logger).Debug("messages request: model=%s prompt_chars=%d", c.model, len(req.Prompt))
	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return Response{}, classifyAnthropicError(err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return Response{}, fberrors.NewTransientError(errors.New("no text content in response"), "model returned an empty completion")
	}
	return Response{
		Content: sb.String(),
		Model:   string(msg.Model),
		Usage: Usage{
			PromptTokens:     int(msg.Usage.InputTokens),
			CompletionTokens: int(msg.Usage.OutputTokens),
		},
	}, nil
}

func classifyAnthropicError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return fberrors.ClassifyHTTPStatus(apiErr.StatusCode, fmt.Errorf("anthropic: %w", err))
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if fberrors.IsTransient(err) {
		return fberrors.NewTransientError(err, "messages request failed")
	}
	return err
}
