package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const defaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"

// OpenRouterConfig configures the hosted, OpenAI-compatible backend.
type OpenRouterConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Referer string // sent as HTTP-Referer for OpenRouter attribution
	Title   string // sent as X-Title
}

type openRouterProvider struct {
	client openai.Client
	cfg    OpenRouterConfig
}

// NewOpenRouterProvider creates a Provider backed by the OpenRouter chat
// completions API. SDK retries are disabled so one call means one request.
func NewOpenRouterProvider(cfg OpenRouterConfig, timeout time.Duration) Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultOpenRouterBaseURL
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(cfg.BaseURL),
		option.WithMaxRetries(0),
	}
	if cfg.Referer != "" {
		opts = append(opts, option.WithHeader("HTTP-Referer", cfg.Referer))
	}
	if cfg.Title != "" {
		opts = append(opts, option.WithHeader("X-Title", cfg.Title))
	}
	if timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(timeout))
	}

	return &openRouterProvider{
		client: openai.NewClient(opts...),
		cfg:    cfg,
	}
}

func (p *openRouterProvider) ChatCompletion(ctx context.Context, req Request) (*Response, error) {
	model := req.Model
	if model == "" {
		model = p.cfg.Model
	}

	params := openai.ChatCompletionNewParams{
		Model:       model,
		Messages:    toOpenAIMessages(req.Messages),
		Temperature: openai.Float(req.Temperature),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}

	var reqOpts []option.RequestOption
	for k, v := range req.ExtraParams {
		reqOpts = append(reqOpts, option.WithJSONSet(k, v))
	}

	start := time.Now()
	resp, err := p.client.Chat.Completions.New(ctx, params, reqOpts...)
	if err != nil {
		return nil, p.classify(err)
	}

	slog.DebugContext(ctx, "llm chat completed",
		"provider", p.Name(),
		"model", resp.Model,
		"duration_ms", time.Since(start).Milliseconds(),
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens)

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: %s returned no choices", ErrMalformedResponse, p.Name())
	}

	return &Response{
		Content: resp.Choices[0].Message.Content,
		Model:   resp.Model,
		Usage: &Usage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
	}, nil
}

func (p *openRouterProvider) ValidateConfig() bool {
	return p.cfg.APIKey != "" && p.cfg.Model != ""
}

func (p *openRouterProvider) Name() string {
	return string(ProviderOpenRouter)
}

func (p *openRouterProvider) Model() string {
	return p.cfg.Model
}

func (p *openRouterProvider) classify(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		var header http.Header
		if apiErr.Response != nil {
			header = apiErr.Response.Header
		}
		return statusError(p.Name(), apiErr.StatusCode, header, err)
	}
	return fmt.Errorf("%w: %s: %w", ErrProviderUnavailable, p.Name(), err)
}

func toOpenAIMessages(msgs []Message) []openai.ChatCompletionMessageParamUnion {
	result := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, msg := range msgs {
		switch msg.Role {
		case RoleSystem:
			result = append(result, openai.SystemMessage(msg.Content))
		case RoleAssistant:
			result = append(result, openai.AssistantMessage(msg.Content))
		default:
			result = append(result, openai.UserMessage(msg.Content))
		}
	}
	return result
}
