package service

import "errors"

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrMessageNotFound      = errors.New("message not found")
	ErrFeedbackNotFound     = errors.New("grammar feedback not found")
	ErrInvalidInput         = errors.New("invalid input")
)
