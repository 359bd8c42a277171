package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// ProviderKey identifies one of the supported chat backends.
type ProviderKey string

const (
	ProviderOpenRouter ProviderKey = "openrouter"
	ProviderOllama     ProviderKey = "ollama"
	ProviderAnthropic  ProviderKey = "anthropic"
)

// ProviderKeys lists every supported key in a stable order.
func ProviderKeys() []ProviderKey {
	return []ProviderKey{ProviderOpenRouter, ProviderOllama, ProviderAnthropic}
}

// ParseProviderKey resolves a configuration value to a ProviderKey.
func ParseProviderKey(s string) (ProviderKey, error) {
	key := ProviderKey(strings.ToLower(strings.TrimSpace(s)))
	for _, k := range ProviderKeys() {
		if key == k {
			return k, nil
		}
	}

	supported := make([]string, 0, len(ProviderKeys()))
	for _, k := range ProviderKeys() {
		supported = append(supported, string(k))
	}
	return "", fmt.Errorf("%w: unsupported provider %q (supported: %s)",
		ErrConfiguration, s, strings.Join(supported, ", "))
}

// Role tags a message in a chat completion request.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role
	Content string
}

// Request is a provider-agnostic chat completion request.
type Request struct {
	Messages    []Message
	Model       string // empty = provider default
	MaxTokens   int
	Temperature float64
	ExtraParams map[string]any // merged into the provider's request body
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type Response struct {
	Content string
	Model   string
	Usage   *Usage
}

// Provider is the capability every chat backend implements.
// ChatCompletion performs exactly one outbound call and never retries.
type Provider interface {
	ChatCompletion(ctx context.Context, req Request) (*Response, error)
	// ValidateConfig reports whether required credentials and endpoints are
	// present. It never touches the network.
	ValidateConfig() bool
	Name() string
	Model() string
}

var (
	ErrRateLimited         = errors.New("llm provider rate limited")
	ErrProviderUnavailable = errors.New("llm provider unavailable")
	ErrConfiguration       = errors.New("llm provider misconfigured")
	ErrMalformedResponse   = errors.New("llm provider returned a malformed response")
)

// DefaultRetryAfter is suggested when a throttled provider sends no hint.
const DefaultRetryAfter = time.Minute

// RateLimitError reports provider throttling together with retry guidance.
type RateLimitError struct {
	Provider   string
	RetryAfter time.Duration
	Err        error
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s rate limited, retry after %s", e.Provider, e.RetryAfter)
}

func (e *RateLimitError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrRateLimited}
	}
	return []error{ErrRateLimited, e.Err}
}

// IsRateLimited returns the RateLimitError in err's chain, if any.
func IsRateLimited(err error) (*RateLimitError, bool) {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return rl, true
	}
	return nil, false
}

// Config carries the settings of every backend; New picks the one named by Provider.
type Config struct {
	Provider   string
	OpenRouter OpenRouterConfig
	Ollama     OllamaConfig
	Anthropic  AnthropicConfig
	Timeout    time.Duration
}

// New builds the provider selected by cfg.Provider and validates its
// configuration. Unknown keys and incomplete settings fail with ErrConfiguration.
func New(cfg Config) (Provider, error) {
	key, err := ParseProviderKey(cfg.Provider)
	if err != nil {
		return nil, err
	}

	var p Provider
	switch key {
	case ProviderOpenRouter:
		p = NewOpenRouterProvider(cfg.OpenRouter, cfg.Timeout)
	case ProviderOllama:
		p = NewOllamaProvider(cfg.Ollama, cfg.Timeout)
	case ProviderAnthropic:
		p = NewAnthropicProvider(cfg.Anthropic, cfg.Timeout)
	default:
		return nil, fmt.Errorf("%w: no constructor for provider %q", ErrConfiguration, key)
	}

	if !p.ValidateConfig() {
		return nil, fmt.Errorf("%w: %s provider settings are incomplete, check the environment", ErrConfiguration, p.Name())
	}
	return p, nil
}

// statusError classifies a non-2xx HTTP status from a provider.
func statusError(provider string, status int, header http.Header, cause error) error {
	if status == http.StatusTooManyRequests {
		return &RateLimitError{
			Provider:   provider,
			RetryAfter: parseRetryAfter(header),
			Err:        cause,
		}
	}
	if cause == nil {
		return fmt.Errorf("%w: %s returned status %d", ErrProviderUnavailable, provider, status)
	}
	return fmt.Errorf("%w: %s returned status %d: %w", ErrProviderUnavailable, provider, status, cause)
}

func parseRetryAfter(header http.Header) time.Duration {
	if header == nil {
		return DefaultRetryAfter
	}
	value := strings.TrimSpace(header.Get("Retry-After"))
	if value == "" {
		return DefaultRetryAfter
	}
	if secs, err := strconv.Atoi(value); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := time.Until(at); d > 0 {
			return d.Round(time.Second)
		}
		return 0
	}
	return DefaultRetryAfter
}
