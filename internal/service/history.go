package service

import (
	"github.com/Hyun-Jun-Lee/MoreThanHuman/internal/model"
)

// WindowHistory keeps the most recent turns*2 messages of prior, preserving
// chronological order. prior must not contain the message being answered.
func WindowHistory(prior []model.Message, turns int) []model.Message {
	limit := turns * 2
	if limit <= 0 {
		return []model.Message{}
	}
	if len(prior) <= limit {
		return prior
	}
	return prior[len(prior)-limit:]
}

// PreviousAssistantMessage returns the content of the latest assistant message
// in history, or nil when there is none.
func PreviousAssistantMessage(history []model.Message) *string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == model.MessageRoleAssistant {
			content := history[i].Content
			return &content
		}
	}
	return nil
}

func withoutMessage(messages []model.Message, messageID int64) []model.Message {
	out := make([]model.Message, 0, len(messages))
	for _, m := range messages {
		if m.ID != messageID {
			out = append(out, m)
		}
	}
	return out
}
