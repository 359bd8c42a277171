package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Hyun-Jun-Lee/MoreThanHuman/common/id"
	"github.com/Hyun-Jun-Lee/MoreThanHuman/common/llm"
	"github.com/Hyun-Jun-Lee/MoreThanHuman/internal/model"
	"github.com/Hyun-Jun-Lee/MoreThanHuman/internal/store"
)

// GrammarSettings tunes the critic call. It runs cooler and shorter than the
// reply call.
type GrammarSettings struct {
	MaxTokens   int
	Temperature float64
}

type GrammarService interface {
	// Analyze sends text to the critic. Provider failures are returned; bad
	// critic output is not an error.
	Analyze(ctx context.Context, text string, previousAssistant *string) (*model.GrammarAnalysis, error)
	// Check analyzes text without linking it to any message.
	Check(ctx context.Context, text string) (*model.GrammarAnalysis, error)
	SaveFeedback(ctx context.Context, messageID int64, text string, analysis *model.GrammarAnalysis) (*model.GrammarFeedback, error)
	GetFeedback(ctx context.Context, messageID int64) (*model.GrammarFeedback, error)
	Stats(ctx context.Context, timeRange string) (model.GrammarStats, error)
	Backfill(ctx context.Context, messageID int64) (*model.GrammarFeedback, bool, error)
}

type grammarService struct {
	provider llm.Provider
	feedback store.GrammarFeedbackStore
	messages store.MessageStore
	settings GrammarSettings
	now      func() time.Time
}

func NewGrammarService(provider llm.Provider, feedback store.GrammarFeedbackStore, messages store.MessageStore, settings GrammarSettings) GrammarService {
	return &grammarService{
		provider: provider,
		feedback: feedback,
		messages: messages,
		settings: settings,
		now:      time.Now,
	}
}

func (s *grammarService) Analyze(ctx context.Context, text string, previousAssistant *string) (*model.GrammarAnalysis, error) {
	resp, err := s.provider.ChatCompletion(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: BuildGrammarPrompt(text, previousAssistant)},
		},
		Model:       s.provider.Model(),
		MaxTokens:   s.settings.MaxTokens,
		Temperature: s.settings.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("grammar analysis: %w", err)
	}

	analysis := ParseGrammarResponse(resp.Content)
	return &analysis, nil
}

func (s *grammarService) Check(ctx context.Context, text string) (*model.GrammarAnalysis, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: text is required", ErrInvalidInput)
	}
	return s.Analyze(ctx, text, nil)
}

func (s *grammarService) SaveFeedback(ctx context.Context, messageID int64, text string, analysis *model.GrammarAnalysis) (*model.GrammarFeedback, error) {
	fb := &model.GrammarFeedback{
		ID:            id.New(),
		MessageID:     messageID,
		OriginalText:  text,
		CorrectedText: analysis.CorrectedSentence,
		HasErrors:     analysis.HasErrors,
		Errors:        analysis.Errors,
	}
	if fb.Errors == nil {
		fb.Errors = []model.GrammarError{}
	}

	if err := s.feedback.Create(ctx, fb); err != nil {
		return nil, fmt.Errorf("saving grammar feedback: %w", err)
	}

	slog.InfoContext(ctx, "grammar feedback saved",
		"feedback_id", fb.ID,
		"has_errors", fb.HasErrors,
		"error_count", len(fb.Errors))
	return fb, nil
}

func (s *grammarService) GetFeedback(ctx context.Context, messageID int64) (*model.GrammarFeedback, error) {
	fb, err := s.feedback.GetByMessageID(ctx, messageID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrFeedbackNotFound
		}
		return nil, fmt.Errorf("getting grammar feedback: %w", err)
	}
	return fb, nil
}

func (s *grammarService) Stats(ctx context.Context, timeRange string) (model.GrammarStats, error) {
	since, ok := model.StatsRange(strings.ToLower(strings.TrimSpace(timeRange))).Since(s.now())
	if !ok {
		return model.GrammarStats{}, fmt.Errorf("%w: time_range must be one of 7d, 30d, 90d, all", ErrInvalidInput)
	}

	stats, err := s.feedback.Stats(ctx, since)
	if err != nil {
		return model.GrammarStats{}, fmt.Errorf("computing grammar stats: %w", err)
	}
	return stats, nil
}

// Backfill analyzes a user message that finished its turn without feedback.
// It reports false when there was nothing to do.
func (s *grammarService) Backfill(ctx context.Context, messageID int64) (*model.GrammarFeedback, bool, error) {
	if _, err := s.feedback.GetByMessageID(ctx, messageID); err == nil {
		return nil, false, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, false, fmt.Errorf("checking existing feedback: %w", err)
	}

	msg, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// conversation deleted since the turn
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("loading message: %w", err)
	}
	if msg.Role != model.MessageRoleUser {
		return nil, false, nil
	}

	var previous *string
	prev, err := s.messages.LatestBefore(ctx, messageID, model.MessageRoleAssistant)
	switch {
	case err == nil:
		previous = &prev.Content
	case !errors.Is(err, store.ErrNotFound):
		return nil, false, fmt.Errorf("loading previous assistant message: %w", err)
	}

	analysis, err := s.Analyze(ctx, msg.Content, previous)
	if err != nil {
		return nil, false, err
	}

	fb, err := s.SaveFeedback(ctx, messageID, msg.Content, analysis)
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return fb, true, nil
}
