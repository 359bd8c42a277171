package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/Hyun-Jun-Lee/MoreThanHuman/common/llm"
	"github.com/Hyun-Jun-Lee/MoreThanHuman/common/logger"
	"github.com/Hyun-Jun-Lee/MoreThanHuman/internal/model"
)

// outcome holds one branch's result or failure.
type outcome[T any] struct {
	value T
	err   error
}

type turnInput struct {
	systemPrompt      string
	history           []model.Message
	userText          string
	previousAssistant *string
}

type turnOutcome struct {
	reply   outcome[string]
	grammar outcome[*model.GrammarAnalysis]
}

// runTurn calls the reply model and the grammar critic concurrently and waits
// for both. Branches never return errors to the group, so one failing cannot
// cancel the other.
func (s *conversationService) runTurn(ctx context.Context, in turnInput) turnOutcome {
	var (
		out turnOutcome
		g   errgroup.Group
	)

	g.Go(func() error {
		out.reply = s.generateReply(ctx, in)
		return nil
	})
	g.Go(func() error {
		out.grammar = s.analyzeGrammar(ctx, in)
		return nil
	})
	_ = g.Wait()

	return out
}

func (s *conversationService) generateReply(ctx context.Context, in turnInput) outcome[string] {
	ctx = logger.WithLogFields(ctx, logger.LogFields{Branch: logger.Ptr("reply")})
	sc := logger.StartSpan(ctx, "conversation.reply",
		attribute.String("llm.provider", s.provider.Name()),
		attribute.Int("history.messages", len(in.history)))
	defer sc.End()
	ctx = sc.Context()

	start := time.Now()
	resp, err := s.provider.ChatCompletion(ctx, llm.Request{
		Messages:    BuildReplyMessages(in.systemPrompt, in.history, in.userText),
		Model:       s.provider.Model(),
		MaxTokens:   s.settings.MaxTokens,
		Temperature: s.settings.Temperature,
	})
	if err != nil {
		sc.RecordError(err)
		slog.ErrorContext(ctx, "reply generation failed",
			"error", err,
			"duration_ms", time.Since(start).Milliseconds())
		return outcome[string]{err: err}
	}

	if resp.Usage != nil {
		sc.SetAttributes(
			attribute.Int("llm.prompt_tokens", resp.Usage.PromptTokens),
			attribute.Int("llm.completion_tokens", resp.Usage.CompletionTokens))
	}
	reply, stripped := SanitizeReply(resp.Content)
	if reply == "" {
		err := fmt.Errorf("%w: empty reply", llm.ErrMalformedResponse)
		sc.RecordError(err)
		slog.ErrorContext(ctx, "reply generation returned no content",
			"raw_length", len(resp.Content))
		return outcome[string]{err: err}
	}

	slog.DebugContext(ctx, "reply generated",
		"duration_ms", time.Since(start).Milliseconds(),
		"reply_length", len(reply),
		"artifacts_stripped", stripped)

	return outcome[string]{value: reply}
}

func (s *conversationService) analyzeGrammar(ctx context.Context, in turnInput) outcome[*model.GrammarAnalysis] {
	ctx = logger.WithLogFields(ctx, logger.LogFields{Branch: logger.Ptr("grammar")})
	sc := logger.StartSpan(ctx, "conversation.grammar",
		attribute.Bool("grammar.has_context", in.previousAssistant != nil))
	defer sc.End()
	ctx = sc.Context()

	start := time.Now()
	analysis, err := s.grammar.Analyze(ctx, in.userText, in.previousAssistant)
	if err != nil {
		sc.RecordError(err)
		return outcome[*model.GrammarAnalysis]{err: err}
	}

	sc.SetAttributes(
		attribute.Bool("grammar.has_errors", analysis.HasErrors),
		attribute.Int("grammar.error_count", len(analysis.Errors)))
	slog.DebugContext(ctx, "grammar analyzed",
		"duration_ms", time.Since(start).Milliseconds(),
		"has_errors", analysis.HasErrors)

	return outcome[*model.GrammarAnalysis]{value: analysis}
}
