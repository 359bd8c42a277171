package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const defaultOllamaTimeout = 60 * time.Second

// OllamaConfig configures the local Ollama daemon backend.
type OllamaConfig struct {
	BaseURL string
	Model   string
}

type ollamaProvider struct {
	cfg        OllamaConfig
	httpClient *http.Client
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatResponse struct {
	Model           string        `json:"model"`
	CreatedAt       string        `json:"created_at"`
	Message         ollamaMessage `json:"message"`
	Done            bool          `json:"done"`
	PromptEvalCount int           `json:"prompt_eval_count"`
	EvalCount       int           `json:"eval_count"`
	TotalDuration   int64         `json:"total_duration"`
}

// NewOllamaProvider creates a Provider talking to Ollama's native /api/chat
// endpoint with streaming disabled.
func NewOllamaProvider(cfg OllamaConfig, timeout time.Duration) Provider {
	if timeout <= 0 {
		timeout = defaultOllamaTimeout
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &ollamaProvider{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				TLSHandshakeTimeout: 10 * time.Second,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

func (p *ollamaProvider) ChatCompletion(ctx context.Context, req Request) (*Response, error) {
	model := req.Model
	if model == "" {
		model = p.cfg.Model
	}

	messages := make([]ollamaMessage, 0, len(req.Messages))
	for _, msg := range req.Messages {
		messages = append(messages, ollamaMessage{Role: string(msg.Role), Content: msg.Content})
	}

	options := map[string]any{"temperature": req.Temperature}
	if req.MaxTokens > 0 {
		options["num_predict"] = req.MaxTokens
	}

	body := map[string]any{
		"model":    model,
		"messages": messages,
		"stream":   false,
		"options":  options,
	}
	for k, v := range req.ExtraParams {
		body[k] = v
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal ollama request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/api/chat", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create ollama request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrProviderUnavailable, p.Name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, statusError(p.Name(), resp.StatusCode, resp.Header, errors.New(strings.TrimSpace(string(raw))))
	}

	var out ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode %s response: %w", ErrMalformedResponse, p.Name(), err)
	}

	slog.DebugContext(ctx, "llm chat completed",
		"provider", p.Name(),
		"model", out.Model,
		"duration_ms", time.Since(start).Milliseconds(),
		"prompt_tokens", out.PromptEvalCount,
		"completion_tokens", out.EvalCount)

	return &Response{
		Content: out.Message.Content,
		Model:   out.Model,
		Usage: &Usage{
			PromptTokens:     out.PromptEvalCount,
			CompletionTokens: out.EvalCount,
			TotalTokens:      out.PromptEvalCount + out.EvalCount,
		},
	}, nil
}

func (p *ollamaProvider) ValidateConfig() bool {
	return p.cfg.BaseURL != "" && p.cfg.Model != ""
}

func (p *ollamaProvider) Name() string {
	return string(ProviderOllama)
}

func (p *ollamaProvider) Model() string {
	return p.cfg.Model
}
