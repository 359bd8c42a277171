package model

import "time"

type ConversationMode string

const (
	ConversationModeFreeChat    ConversationMode = "FREE_CHAT"
	ConversationModeRolePlaying ConversationMode = "ROLE_PLAYING"
)

func (m ConversationMode) IsValid() bool {
	switch m {
	case ConversationModeFreeChat, ConversationModeRolePlaying:
		return true
	}
	return false
}

type ConversationStatus string

const (
	ConversationStatusActive    ConversationStatus = "ACTIVE"
	ConversationStatusCompleted ConversationStatus = "COMPLETED"
)

// MaxTitleLength bounds titles derived from the first user message.
const MaxTitleLength = 50

// MaxRenameLength bounds titles set explicitly through a rename.
const MaxRenameLength = 200

type Conversation struct {
	ID            int64              `json:"id,string"`
	Title         *string            `json:"title,omitempty"`
	Mode          ConversationMode   `json:"conversation_type"`
	RoleCharacter *string            `json:"role_character,omitempty"`
	MessageCount  int                `json:"message_count"`
	Status        ConversationStatus `json:"status"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

// TurnCount is the number of completed user/assistant exchanges.
func (c *Conversation) TurnCount() int {
	return c.MessageCount / 2
}

func (c *Conversation) IsActive() bool {
	return c.Status == ConversationStatusActive
}

// DeriveTitle builds a conversation title from its first message, keeping it
// within MaxTitleLength characters.
func DeriveTitle(firstMessage string) string {
	runes := []rune(firstMessage)
	if len(runes) <= MaxTitleLength {
		return firstMessage
	}
	return string(runes[:MaxTitleLength-3]) + "..."
}
