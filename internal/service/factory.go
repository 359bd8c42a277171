package service

import (
	"github.com/Hyun-Jun-Lee/MoreThanHuman/common/llm"
	"github.com/Hyun-Jun-Lee/MoreThanHuman/core/config"
	"github.com/Hyun-Jun-Lee/MoreThanHuman/internal/queue"
	"github.com/Hyun-Jun-Lee/MoreThanHuman/internal/search"
	"github.com/Hyun-Jun-Lee/MoreThanHuman/internal/store"
)

type Services struct {
	stores    *store.Stores
	txRunner  TxRunner
	provider  llm.Provider
	searcher  search.Searcher
	publisher queue.Publisher
	cfg       config.Config
}

func NewServices(stores *store.Stores, txRunner TxRunner, provider llm.Provider, searcher search.Searcher, publisher queue.Publisher, cfg config.Config) *Services {
	return &Services{
		stores:    stores,
		txRunner:  txRunner,
		provider:  provider,
		searcher:  searcher,
		publisher: publisher,
		cfg:       cfg,
	}
}

func (s *Services) Conversations() ConversationService {
	return NewConversationService(
		s.stores.Conversations(),
		s.stores.Messages(),
		s.txRunner,
		s.provider,
		s.Grammar(),
		s.publisher,
		ReplySettings{
			MaxTokens:       s.cfg.Generation.MaxTokens,
			Temperature:     s.cfg.Generation.Temperature,
			MaxHistoryTurns: s.cfg.Conversation.MaxHistoryTurns,
		},
	)
}

func (s *Services) Grammar() GrammarService {
	return NewGrammarService(
		s.provider,
		s.stores.GrammarFeedback(),
		s.stores.Messages(),
		GrammarSettings{
			MaxTokens:   s.cfg.Grammar.MaxTokens,
			Temperature: s.cfg.Grammar.Temperature,
		},
	)
}

func (s *Services) FeedbackWatcher() FeedbackWatcher {
	return NewFeedbackWatcher(s.stores.GrammarFeedback(), WatchSettings{
		PollInterval: s.cfg.FeedbackStream.PollInterval,
		MaxWait:      s.cfg.FeedbackStream.MaxWait,
	})
}

func (s *Services) Search() SearchService {
	return NewSearchService(s.searcher)
}

// NewProvider builds the configured chat provider.
func NewProvider(cfg config.LLMConfig) (llm.Provider, error) {
	return llm.New(llm.Config{
		Provider: cfg.Provider,
		OpenRouter: llm.OpenRouterConfig{
			APIKey:  cfg.OpenRouterAPIKey,
			BaseURL: cfg.OpenRouterBaseURL,
			Model:   cfg.OpenRouterModel,
			Referer: cfg.OpenRouterReferer,
			Title:   cfg.OpenRouterTitle,
		},
		Ollama: llm.OllamaConfig{
			BaseURL: cfg.OllamaBaseURL,
			Model:   cfg.OllamaModel,
		},
		Anthropic: llm.AnthropicConfig{
			APIKey:  cfg.AnthropicAPIKey,
			BaseURL: cfg.AnthropicBaseURL,
			Model:   cfg.AnthropicModel,
		},
		Timeout: cfg.Timeout,
	})
}
