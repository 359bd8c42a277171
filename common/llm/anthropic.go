package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const defaultAnthropicMaxTokens = 1024

type AnthropicConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

type anthropicProvider struct {
	client anthropic.Client
	cfg    AnthropicConfig
}

// NewAnthropicProvider creates a Provider using the Anthropic Messages API.
func NewAnthropicProvider(cfg AnthropicConfig, timeout time.Duration) Provider {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(timeout))
	}

	return &anthropicProvider{
		client: anthropic.NewClient(opts...),
		cfg:    cfg,
	}
}

func (p *anthropicProvider) ChatCompletion(ctx context.Context, req Request) (*Response, error) {
	model := req.Model
	if model == "" {
		model = p.cfg.Model
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}

	// Anthropic takes system content separately from the turn list.
	system, messages := toAnthropicMessages(req.Messages)

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(model),
		MaxTokens:   int64(maxTokens),
		Messages:    messages,
		Temperature: anthropic.Float(req.Temperature),
	}
	if len(system) > 0 {
		params.System = system
	}

	var reqOpts []option.RequestOption
	for k, v := range req.ExtraParams {
		reqOpts = append(reqOpts, option.WithJSONSet(k, v))
	}

	start := time.Now()
	resp, err := p.client.Messages.New(ctx, params, reqOpts...)
	if err != nil {
		return nil, p.classify(err)
	}

	slog.DebugContext(ctx, "llm chat completed",
		"provider", p.Name(),
		"model", resp.Model,
		"duration_ms", time.Since(start).Milliseconds(),
		"input_tokens", resp.Usage.InputTokens,
		"output_tokens", resp.Usage.OutputTokens,
		"stop_reason", resp.StopReason)

	var content strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			content.WriteString(block.Text)
		}
	}
	if content.Len() == 0 {
		return nil, fmt.Errorf("%w: %s returned no text content", ErrMalformedResponse, p.Name())
	}

	return &Response{
		Content: content.String(),
		Model:   string(resp.Model),
		Usage: &Usage{
			PromptTokens:     int(resp.Usage.InputTokens),
			CompletionTokens: int(resp.Usage.OutputTokens),
			TotalTokens:      int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
		},
	}, nil
}

func (p *anthropicProvider) ValidateConfig() bool {
	return p.cfg.APIKey != "" && p.cfg.Model != ""
}

func (p *anthropicProvider) Name() string {
	return string(ProviderAnthropic)
}

func (p *anthropicProvider) Model() string {
	return p.cfg.Model
}

func (p *anthropicProvider) classify(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		var header http.Header
		if apiErr.Response != nil {
			header = apiErr.Response.Header
		}
		return statusError(p.Name(), apiErr.StatusCode, header, err)
	}
	return fmt.Errorf("%w: %s: %w", ErrProviderUnavailable, p.Name(), err)
}

func toAnthropicMessages(msgs []Message) ([]anthropic.TextBlockParam, []anthropic.MessageParam) {
	var system []anthropic.TextBlockParam
	messages := make([]anthropic.MessageParam, 0, len(msgs))

	for _, msg := range msgs {
		switch msg.Role {
		case RoleSystem:
			system = append(system, anthropic.TextBlockParam{Text: msg.Content})
		case RoleAssistant:
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		default:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}

	return system, messages
}
