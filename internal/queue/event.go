package queue

type EventType string

const (
	EventTypeTurnCompleted EventType = "turn_completed"
)

// TurnEvent announces a finished conversation turn. HasFeedback is false when
// the grammar branch produced nothing for the user message.
type TurnEvent struct {
	ConversationID     int64
	UserMessageID      int64
	AssistantMessageID int64
	TurnCount          int
	HasFeedback        bool
	TraceID            string
	Attempt            int
}
