package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"go.opentelemetry.io/otel/trace"

	"github.com/Hyun-Jun-Lee/MoreThanHuman/common/id"
	"github.com/Hyun-Jun-Lee/MoreThanHuman/common/llm"
	"github.com/Hyun-Jun-Lee/MoreThanHuman/common/logger"
	"github.com/Hyun-Jun-Lee/MoreThanHuman/internal/model"
	"github.com/Hyun-Jun-Lee/MoreThanHuman/internal/queue"
	"github.com/Hyun-Jun-Lee/MoreThanHuman/internal/store"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 200
)

// ReplySettings tunes the conversational reply call.
type ReplySettings struct {
	MaxTokens       int
	Temperature     float64
	MaxHistoryTurns int
}

type StartParams struct {
	FirstMessage  string
	SearchContext string
	Mode          model.ConversationMode
	RoleCharacter *string
}

type StartResult struct {
	Conversation     *model.Conversation
	UserMessage      *model.Message
	AssistantMessage *model.Message
	GrammarFeedback  *model.GrammarFeedback
}

type ContinueResult struct {
	Conversation     *model.Conversation
	UserMessage      *model.Message
	AssistantMessage *model.Message
	GrammarFeedback  *model.GrammarFeedback
	TurnCount        int
}

type ConversationService interface {
	Start(ctx context.Context, params StartParams) (*StartResult, error)
	Continue(ctx context.Context, conversationID int64, text string) (*ContinueResult, error)
	Get(ctx context.Context, id int64) (*model.Conversation, error)
	List(ctx context.Context, limit, offset int) ([]model.Conversation, error)
	Messages(ctx context.Context, conversationID int64, limit, offset int) ([]model.Message, error)
	Message(ctx context.Context, messageID int64) (*model.Message, error)
	End(ctx context.Context, id int64) (*model.Conversation, error)
	Rename(ctx context.Context, id int64, title string) (*model.Conversation, error)
	Delete(ctx context.Context, id int64) error
}

type conversationService struct {
	conversations store.ConversationStore
	messages      store.MessageStore
	txRunner      TxRunner
	provider      llm.Provider
	grammar       GrammarService
	publisher     queue.Publisher
	settings      ReplySettings
}

func NewConversationService(
	conversations store.ConversationStore,
	messages store.MessageStore,
	txRunner TxRunner,
	provider llm.Provider,
	grammar GrammarService,
	publisher queue.Publisher,
	settings ReplySettings,
) ConversationService {
	if publisher == nil {
		publisher = queue.NewNoopPublisher()
	}
	return &conversationService{
		conversations: conversations,
		messages:      messages,
		txRunner:      txRunner,
		provider:      provider,
		grammar:       grammar,
		publisher:     publisher,
		settings:      settings,
	}
}

func (s *conversationService) Start(ctx context.Context, params StartParams) (*StartResult, error) {
	text := strings.TrimSpace(params.FirstMessage)
	if text == "" {
		return nil, fmt.Errorf("%w: first_message is required", ErrInvalidInput)
	}

	mode := params.Mode
	if mode == "" {
		mode = model.ConversationModeFreeChat
	}
	if !mode.IsValid() {
		return nil, fmt.Errorf("%w: unknown conversation_type %q", ErrInvalidInput, mode)
	}

	var roleCharacter *string
	if params.RoleCharacter != nil && strings.TrimSpace(*params.RoleCharacter) != "" {
		roleCharacter = logger.Ptr(strings.TrimSpace(*params.RoleCharacter))
	}
	if mode == model.ConversationModeRolePlaying && roleCharacter == nil {
		return nil, fmt.Errorf("%w: role_character is required for role play", ErrInvalidInput)
	}

	// Provider calls must finish even if the client goes away mid-turn.
	ctx = context.WithoutCancel(ctx)

	conv := &model.Conversation{
		ID:            id.New(),
		Title:         logger.Ptr(model.DeriveTitle(text)),
		Mode:          mode,
		RoleCharacter: roleCharacter,
		Status:        model.ConversationStatusActive,
	}
	if err := s.conversations.Create(ctx, conv); err != nil {
		return nil, fmt.Errorf("creating conversation: %w", err)
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		ConversationID: &conv.ID,
		Provider:       logger.Ptr(s.provider.Name()),
		Component:      "service.conversation",
	})

	userMsg := &model.Message{
		ID:             id.New(),
		ConversationID: conv.ID,
		Role:           model.MessageRoleUser,
		Content:        text,
	}
	if err := s.messages.Create(ctx, userMsg); err != nil {
		s.discardConversation(ctx, conv.ID)
		return nil, fmt.Errorf("saving user message: %w", err)
	}

	out := s.runTurn(ctx, turnInput{
		systemPrompt: BuildSystemPrompt(mode, roleCharacter, params.SearchContext),
		history:      nil,
		userText:     text,
	})
	if out.reply.err != nil {
		s.discardConversation(ctx, conv.ID)
		return nil, fmt.Errorf("generating reply: %w", out.reply.err)
	}

	feedback := s.reconcileGrammar(ctx, userMsg, out.grammar)

	assistantMsg, count, err := s.appendAssistant(ctx, conv.ID, out.reply.value)
	if err != nil {
		s.discardConversation(ctx, conv.ID)
		return nil, err
	}
	conv.MessageCount = count

	s.publishTurn(ctx, conv.ID, userMsg.ID, assistantMsg.ID, count, feedback != nil)

	slog.InfoContext(ctx, "conversation started",
		"mode", mode,
		"has_feedback", feedback != nil)

	return &StartResult{
		Conversation:     conv,
		UserMessage:      userMsg,
		AssistantMessage: assistantMsg,
		GrammarFeedback:  feedback,
	}, nil
}

func (s *conversationService) Continue(ctx context.Context, conversationID int64, text string) (*ContinueResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: message is required", ErrInvalidInput)
	}

	ctx = context.WithoutCancel(ctx)
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		ConversationID: &conversationID,
		Provider:       logger.Ptr(s.provider.Name()),
		Component:      "service.conversation",
	})

	conv, err := s.Get(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	userMsg := &model.Message{
		ID:             id.New(),
		ConversationID: conv.ID,
		Role:           model.MessageRoleUser,
		Content:        text,
	}
	if err := s.messages.Create(ctx, userMsg); err != nil {
		return nil, fmt.Errorf("saving user message: %w", err)
	}

	// One extra row so the window is still full after dropping the new message.
	recent, err := s.messages.ListRecent(ctx, conv.ID, int32(s.settings.MaxHistoryTurns*2+1))
	if err != nil {
		s.discardMessage(ctx, userMsg.ID)
		return nil, fmt.Errorf("loading history: %w", err)
	}
	history := WindowHistory(withoutMessage(recent, userMsg.ID), s.settings.MaxHistoryTurns)

	out := s.runTurn(ctx, turnInput{
		systemPrompt:      BuildSystemPrompt(conv.Mode, conv.RoleCharacter, ""),
		history:           history,
		userText:          text,
		previousAssistant: PreviousAssistantMessage(history),
	})
	if out.reply.err != nil {
		s.discardMessage(ctx, userMsg.ID)
		return nil, fmt.Errorf("generating reply: %w", out.reply.err)
	}

	feedback := s.reconcileGrammar(ctx, userMsg, out.grammar)

	assistantMsg, count, err := s.appendAssistant(ctx, conv.ID, out.reply.value)
	if err != nil {
		// feedback saved for the user message goes with it
		s.discardMessage(ctx, userMsg.ID)
		return nil, err
	}
	conv.MessageCount = count

	s.publishTurn(ctx, conv.ID, userMsg.ID, assistantMsg.ID, count, feedback != nil)

	slog.InfoContext(ctx, "conversation continued",
		"turn_count", conv.TurnCount(),
		"history_messages", len(history),
		"has_feedback", feedback != nil)

	return &ContinueResult{
		Conversation:     conv,
		UserMessage:      userMsg,
		AssistantMessage: assistantMsg,
		GrammarFeedback:  feedback,
		TurnCount:        conv.TurnCount(),
	}, nil
}

// reconcileGrammar persists a successful analysis. Any failure on this path is
// logged and yields nil so the reply still goes out.
func (s *conversationService) reconcileGrammar(ctx context.Context, userMsg *model.Message, result outcome[*model.GrammarAnalysis]) *model.GrammarFeedback {
	ctx = logger.WithLogFields(ctx, logger.LogFields{MessageID: &userMsg.ID})

	if result.err != nil {
		if rl, ok := llm.IsRateLimited(result.err); ok {
			slog.WarnContext(ctx, "grammar analysis rate limited, continuing without feedback",
				"retry_after", rl.RetryAfter)
		} else {
			slog.ErrorContext(ctx, "grammar analysis failed, continuing without feedback",
				"error", result.err)
		}
		return nil
	}

	feedback, err := s.grammar.SaveFeedback(ctx, userMsg.ID, userMsg.Content, result.value)
	if err != nil {
		slog.ErrorContext(ctx, "saving grammar feedback failed, continuing without feedback",
			"error", err)
		return nil
	}
	return feedback
}

// appendAssistant stores the reply and bumps message_count by the whole turn
// in one transaction.
func (s *conversationService) appendAssistant(ctx context.Context, conversationID int64, reply string) (*model.Message, int, error) {
	msg := &model.Message{
		ID:             id.New(),
		ConversationID: conversationID,
		Role:           model.MessageRoleAssistant,
		Content:        reply,
	}

	var count int
	err := s.txRunner.WithTx(ctx, func(sp StoreProvider) error {
		if err := sp.Messages().Create(ctx, msg); err != nil {
			return fmt.Errorf("saving assistant message: %w", err)
		}
		var err error
		count, err = sp.Conversations().AddMessageCount(ctx, conversationID, 2)
		if err != nil {
			return fmt.Errorf("updating message count: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return msg, count, nil
}

// discardConversation undoes a first turn that could not be completed.
func (s *conversationService) discardConversation(ctx context.Context, conversationID int64) {
	if err := s.conversations.Delete(ctx, conversationID); err != nil && !errors.Is(err, store.ErrNotFound) {
		slog.ErrorContext(ctx, "failed to discard conversation after failed turn", "error", err)
	}
}

// discardMessage removes the user message of a turn that could not be completed, keeping
// message_count equal to the stored messages.
func (s *conversationService) discardMessage(ctx context.Context, messageID int64) {
	if err := s.messages.Delete(ctx, messageID); err != nil && !errors.Is(err, store.ErrNotFound) {
		slog.ErrorContext(ctx, "failed to discard user message after failed turn",
			"error", err,
			"user_message_id", messageID)
	}
}

func (s *conversationService) publishTurn(ctx context.Context, conversationID, userMessageID, assistantMessageID int64, count int, hasFeedback bool) {
	event := queue.TurnEvent{
		ConversationID:     conversationID,
		UserMessageID:      userMessageID,
		AssistantMessageID: assistantMessageID,
		TurnCount:          count / 2,
		HasFeedback:        hasFeedback,
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		event.TraceID = sc.TraceID().String()
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		slog.WarnContext(ctx, "failed to publish turn event", "error", err)
	}
}

func (s *conversationService) Get(ctx context.Context, id int64) (*model.Conversation, error) {
	conv, err := s.conversations.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, fmt.Errorf("getting conversation: %w", err)
	}
	return conv, nil
}

func (s *conversationService) List(ctx context.Context, limit, offset int) ([]model.Conversation, error) {
	limit, offset = normalizePage(limit, offset)
	convs, err := s.conversations.List(ctx, int32(limit), int32(offset))
	if err != nil {
		return nil, fmt.Errorf("listing conversations: %w", err)
	}
	return convs, nil
}

func (s *conversationService) Messages(ctx context.Context, conversationID int64, limit, offset int) ([]model.Message, error) {
	if _, err := s.Get(ctx, conversationID); err != nil {
		return nil, err
	}

	limit, offset = normalizePage(limit, offset)
	msgs, err := s.messages.List(ctx, conversationID, int32(limit), int32(offset))
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	return msgs, nil
}

func (s *conversationService) Message(ctx context.Context, messageID int64) (*model.Message, error) {
	msg, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, fmt.Errorf("getting message: %w", err)
	}
	return msg, nil
}

// End marks a conversation completed. Ending twice is a no-op.
func (s *conversationService) End(ctx context.Context, id int64) (*model.Conversation, error) {
	conv, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !conv.IsActive() {
		return conv, nil
	}

	if err := s.conversations.UpdateStatus(ctx, id, model.ConversationStatusCompleted); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, fmt.Errorf("ending conversation: %w", err)
	}
	conv.Status = model.ConversationStatusCompleted

	slog.InfoContext(ctx, "conversation ended",
		"conversation_id", id,
		"turn_count", conv.TurnCount())
	return conv, nil
}

func (s *conversationService) Rename(ctx context.Context, id int64, title string) (*model.Conversation, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if utf8.RuneCountInString(title) > model.MaxRenameLength {
		return nil, fmt.Errorf("%w: title must be at most %d characters", ErrInvalidInput, model.MaxRenameLength)
	}

	if err := s.conversations.UpdateTitle(ctx, id, title); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, fmt.Errorf("renaming conversation: %w", err)
	}
	return s.Get(ctx, id)
}

func (s *conversationService) Delete(ctx context.Context, id int64) error {
	if err := s.conversations.Delete(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrConversationNotFound
		}
		return fmt.Errorf("deleting conversation: %w", err)
	}

	slog.InfoContext(ctx, "conversation deleted", "conversation_id", id)
	return nil
}

func normalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
