package model

import "time"

type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
	MessageRoleSystem    MessageRole = "system"
)

type Message struct {
	ID             int64       `json:"id,string"`
	ConversationID int64       `json:"conversation_id,string"`
	Role           MessageRole `json:"role"`
	Content        string      `json:"content"`
	CreatedAt      time.Time   `json:"created_at"`

	// Only set on user messages that have been analyzed.
	GrammarFeedback *GrammarFeedback `json:"grammar_feedback"`
}
