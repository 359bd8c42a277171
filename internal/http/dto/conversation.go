package dto

import (
	"time"

	"github.com/Hyun-Jun-Lee/MoreThanHuman/internal/model"
	"github.com/Hyun-Jun-Lee/MoreThanHuman/internal/service"
)

type StartConversationRequest struct {
	FirstMessage     string                 `json:"first_message" binding:"required"`
	SearchContext    string                 `json:"search_context,omitempty"`
	ConversationType model.ConversationMode `json:"conversation_type,omitempty"`
	RoleCharacter    *string                `json:"role_character,omitempty" binding:"omitempty,max=200"`
}

type SendMessageRequest struct {
	Message string `json:"message" binding:"required"`
}

type RenameConversationRequest struct {
	Title string `json:"title" binding:"required,max=200"`
}

// PageQuery binds ?limit&offset. Zero limit means the service default.
type PageQuery struct {
	Limit  int `form:"limit" binding:"omitempty,min=1,max=200"`
	Offset int `form:"offset" binding:"omitempty,min=0"`
}

type ConversationResponse struct {
	ID               int64                    `json:"id,string"`
	Title            *string                  `json:"title,omitempty"`
	ConversationType model.ConversationMode   `json:"conversation_type"`
	RoleCharacter    *string                  `json:"role_character,omitempty"`
	MessageCount     int                      `json:"message_count"`
	TurnCount        int                      `json:"turn_count"`
	Status           model.ConversationStatus `json:"status"`
	CreatedAt        time.Time                `json:"created_at"`
	UpdatedAt        time.Time                `json:"updated_at"`
}

func ToConversationResponse(c *model.Conversation) *ConversationResponse {
	return &ConversationResponse{
		ID:               c.ID,
		Title:            c.Title,
		ConversationType: c.Mode,
		RoleCharacter:    c.RoleCharacter,
		MessageCount:     c.MessageCount,
		TurnCount:        c.TurnCount(),
		Status:           c.Status,
		CreatedAt:        c.CreatedAt,
		UpdatedAt:        c.UpdatedAt,
	}
}

func ToConversationList(convs []model.Conversation) []*ConversationResponse {
	out := make([]*ConversationResponse, len(convs))
	for i := range convs {
		out[i] = ToConversationResponse(&convs[i])
	}
	return out
}

type MessageResponse struct {
	ID              int64                  `json:"id,string"`
	ConversationID  int64                  `json:"conversation_id,string"`
	Role            model.MessageRole      `json:"role"`
	Content         string                 `json:"content"`
	CreatedAt       time.Time              `json:"created_at"`
	GrammarFeedback *model.GrammarFeedback `json:"grammar_feedback,omitempty"`
}

func ToMessageResponse(m *model.Message) *MessageResponse {
	return &MessageResponse{
		ID:              m.ID,
		ConversationID:  m.ConversationID,
		Role:            m.Role,
		Content:         m.Content,
		CreatedAt:       m.CreatedAt,
		GrammarFeedback: m.GrammarFeedback,
	}
}

func ToMessageList(msgs []model.Message) []*MessageResponse {
	out := make([]*MessageResponse, len(msgs))
	for i := range msgs {
		out[i] = ToMessageResponse(&msgs[i])
	}
	return out
}

// StartConversationResponse carries the first turn. MessageID is the
// assistant reply; UserMessageID keys the grammar feedback stream.
type StartConversationResponse struct {
	ConversationID   int64                  `json:"conversation_id,string"`
	Title            *string                `json:"title,omitempty"`
	ConversationType model.ConversationMode `json:"conversation_type"`
	RoleCharacter    *string                `json:"role_character,omitempty"`
	MessageID        int64                  `json:"message_id,string"`
	UserMessageID    int64                  `json:"user_message_id,string"`
	Response         string                 `json:"response"`
	GrammarFeedback  *model.GrammarFeedback `json:"grammar_feedback"`
	TurnCount        int                    `json:"turn_count"`
}

func ToStartConversationResponse(r *service.StartResult) *StartConversationResponse {
	return &StartConversationResponse{
		ConversationID:   r.Conversation.ID,
		Title:            r.Conversation.Title,
		ConversationType: r.Conversation.Mode,
		RoleCharacter:    r.Conversation.RoleCharacter,
		MessageID:        r.AssistantMessage.ID,
		UserMessageID:    r.UserMessage.ID,
		Response:         r.AssistantMessage.Content,
		GrammarFeedback:  r.GrammarFeedback,
		TurnCount:        r.Conversation.TurnCount(),
	}
}

type SendMessageResponse struct {
	MessageID       int64                  `json:"message_id,string"`
	UserMessageID   int64                  `json:"user_message_id,string"`
	Response        string                 `json:"response"`
	GrammarFeedback *model.GrammarFeedback `json:"grammar_feedback"`
	TurnCount       int                    `json:"turn_count"`
}

func ToSendMessageResponse(r *service.ContinueResult) *SendMessageResponse {
	return &SendMessageResponse{
		MessageID:       r.AssistantMessage.ID,
		UserMessageID:   r.UserMessage.ID,
		Response:        r.AssistantMessage.Content,
		GrammarFeedback: r.GrammarFeedback,
		TurnCount:       r.TurnCount,
	}
}
