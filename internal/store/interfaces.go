package store

import (
	"context"
	"errors"
	"time"

	"github.com/Hyun-Jun-Lee/MoreThanHuman/internal/model"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ConversationStore defines the contract for conversation data access
type ConversationStore interface {
	Create(ctx context.Context, conv *model.Conversation) error
	GetByID(ctx context.Context, id int64) (*model.Conversation, error)
	List(ctx context.Context, limit, offset int32) ([]model.Conversation, error) // newest first
	AddMessageCount(ctx context.Context, id int64, delta int) (int, error)       // returns the new count
	UpdateStatus(ctx context.Context, id int64, status model.ConversationStatus) error
	UpdateTitle(ctx context.Context, id int64, title string) error
	Delete(ctx context.Context, id int64) error // cascades to messages and feedback
}

// MessageStore defines the contract for message data access
type MessageStore interface {
	Create(ctx context.Context, msg *model.Message) error
	GetByID(ctx context.Context, id int64) (*model.Message, error)
	// ListRecent returns up to limit most recent messages in chronological order.
	ListRecent(ctx context.Context, conversationID int64, limit int32) ([]model.Message, error)
	// List pages through messages oldest first with their grammar feedback attached.
	List(ctx context.Context, conversationID int64, limit, offset int32) ([]model.Message, error)
	// LatestBefore finds the newest message with role in the same conversation
	// that precedes messageID.
	LatestBefore(ctx context.Context, messageID int64, role model.MessageRole) (*model.Message, error)
	Delete(ctx context.Context, id int64) error
}

// GrammarFeedbackStore defines the contract for grammar feedback data access
type GrammarFeedbackStore interface {
	Create(ctx context.Context, fb *model.GrammarFeedback) error
	GetByMessageID(ctx context.Context, messageID int64) (*model.GrammarFeedback, error)
	Stats(ctx context.Context, since *time.Time) (model.GrammarStats, error)
}
