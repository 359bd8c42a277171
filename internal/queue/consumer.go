package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Hyun-Jun-Lee/MoreThanHuman/common/logger"
)

type ConsumerConfig struct {
	Stream       string        // Redis stream name
	Group        string        // Redis consumer group name
	Consumer     string        // Redis consumer name
	DLQStream    string        // Dead letter queue stream for failed messages
	BatchSize    int64         // Number of messages to process per batch
	Block        time.Duration // How long to block/poll for new messages
	RequeueDelay time.Duration // Delay before retrying failed messages
}

type Message struct {
	ID    string
	Type  EventType
	Event TurnEvent
	Raw   redis.XMessage
}

// MessageProcessor processes a queue message.
type MessageProcessor func(ctx context.Context, msg Message) error

type RedisConsumer struct {
	client *redis.Client
	cfg    ConsumerConfig
}

func NewRedisConsumer(ctx context.Context, client *redis.Client, cfg ConsumerConfig) (*RedisConsumer, error) {
	consumer := &RedisConsumer{
		client: client,
		cfg:    cfg,
	}

	if err := consumer.ensureGroup(ctx); err != nil {
		return nil, err
	}

	return consumer, nil
}

func (c *RedisConsumer) ensureGroup(ctx context.Context) error {
	// "0" so a recreated group still sees events already in the stream.
	if err := c.client.XGroupCreateMkStream(ctx, c.cfg.Stream, c.cfg.Group, "0").Err(); err != nil && err.Error() != "BUSYGROUP Consumer Group name already exists" {
		return fmt.Errorf("creating consumer group: %w", err)
	}
	return nil
}

func (c *RedisConsumer) Read(ctx context.Context) ([]Message, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: "queue.consumer",
	})

	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.cfg.Group,
		Consumer: c.cfg.Consumer,
		// ">" = never delivered. Stale pending entries belong to the reclaimer.
		Streams: []string{c.cfg.Stream, ">"},
		Count:   c.cfg.BatchSize,
		Block:   c.cfg.Block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []Message{}, nil
		}
		return nil, fmt.Errorf("reading from stream: %w", err)
	}

	var messages []Message
	for _, stream := range streams {
		messages = append(messages, c.parseAll(ctx, stream.Messages)...)
	}

	if len(messages) > 0 {
		slog.DebugContext(ctx, "read messages from stream",
			"count", len(messages),
			"stream", c.cfg.Stream,
			"consumer", c.cfg.Consumer)
	}

	return messages, nil
}

// ClaimStale takes over up to count events that were delivered to any
// consumer of the group but not acked within minIdle.
func (c *RedisConsumer) ClaimStale(ctx context.Context, minIdle time.Duration, count int64) ([]Message, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: "queue.consumer",
	})

	claimed, _, err := c.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   c.cfg.Stream,
		Group:    c.cfg.Group,
		Consumer: c.cfg.Consumer,
		MinIdle:  minIdle,
		Start:    "0-0",
		Count:    count,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []Message{}, nil
		}
		return nil, fmt.Errorf("xautoclaim: %w", err)
	}

	return c.parseAll(ctx, claimed), nil
}

// parseAll drops entries that are not turn events. They are acked so they
// never come back through the pending list.
func (c *RedisConsumer) parseAll(ctx context.Context, raw []redis.XMessage) []Message {
	messages := make([]Message, 0, len(raw))
	for _, msg := range raw {
		parsed, err := ParseMessage(msg)
		if err != nil {
			slog.ErrorContext(ctx, "failed to parse message",
				"error", err,
				"raw_message_id", msg.ID,
				"stream", c.cfg.Stream)
			_ = c.Ack(ctx, Message{ID: msg.ID, Raw: msg})
			continue
		}
		messages = append(messages, parsed)
	}
	return messages
}

func (c *RedisConsumer) Ack(ctx context.Context, msg Message) error {
	if err := c.client.XAck(ctx, c.cfg.Stream, c.cfg.Group, msg.ID).Err(); err != nil {
		return fmt.Errorf("xack (stream=%s): %w", c.cfg.Stream, err)
	}
	return nil
}

// Requeue acks msg and appends a copy with the next attempt number.
func (c *RedisConsumer) Requeue(ctx context.Context, msg Message, errMsg string) error {
	if err := c.Ack(ctx, msg); err != nil {
		return fmt.Errorf("acking failed message for requeue: %w", err)
	}

	event := msg.Event
	event.Attempt++
	values := eventValues(event)
	if errMsg != "" {
		values["last_error"] = errMsg
	}

	if c.cfg.RequeueDelay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.cfg.RequeueDelay):
		}
	}

	if err := c.client.XAdd(ctx, &redis.XAddArgs{
		Stream: c.cfg.Stream,
		Values: values,
	}).Err(); err != nil {
		return fmt.Errorf("xadd requeue: %w", err)
	}

	slog.InfoContext(ctx, "message requeued for retry",
		"next_attempt", event.Attempt,
		"reason", errMsg)
	return nil
}

func (c *RedisConsumer) SendDLQ(ctx context.Context, msg Message, errMsg string) error {
	if err := c.Ack(ctx, msg); err != nil {
		return fmt.Errorf("acking failed message for dlq: %w", err)
	}

	values := eventValues(msg.Event)
	values["error"] = errMsg

	if err := c.client.XAdd(ctx, &redis.XAddArgs{
		Stream: c.cfg.DLQStream,
		Values: values,
	}).Err(); err != nil {
		return fmt.Errorf("xadd dlq (stream=%s): %w", c.cfg.DLQStream, err)
	}

	slog.ErrorContext(ctx, "message sent to DLQ",
		"final_error", errMsg,
		"dlq_stream", c.cfg.DLQStream)
	return nil
}

func ParseMessage(msg redis.XMessage) (Message, error) {
	eventType := EventType(stringValue(msg.Values, "event_type"))
	if eventType != EventTypeTurnCompleted {
		return Message{}, fmt.Errorf("unknown event_type %q", eventType)
	}

	conversationID, err := parseInt64(msg.Values, "conversation_id")
	if err != nil {
		return Message{}, err
	}
	userMessageID, err := parseInt64(msg.Values, "user_message_id")
	if err != nil {
		return Message{}, err
	}
	assistantMessageID, err := parseInt64(msg.Values, "assistant_message_id")
	if err != nil {
		return Message{}, err
	}
	turnCount, err := parseOptionalInt(msg.Values, "turn_count")
	if err != nil {
		return Message{}, err
	}
	attempt, err := parseOptionalInt(msg.Values, "attempt")
	if err != nil {
		return Message{}, err
	}
	if attempt == 0 {
		attempt = 1
	}

	hasFeedback := false
	if raw := stringValue(msg.Values, "has_feedback"); raw != "" {
		hasFeedback, err = strconv.ParseBool(raw)
		if err != nil {
			return Message{}, fmt.Errorf("parsing has_feedback: %w", err)
		}
	}

	return Message{
		ID:   msg.ID,
		Type: eventType,
		Event: TurnEvent{
			ConversationID:     conversationID,
			UserMessageID:      userMessageID,
			AssistantMessageID: assistantMessageID,
			TurnCount:          turnCount,
			HasFeedback:        hasFeedback,
			TraceID:            stringValue(msg.Values, "trace_id"),
			Attempt:            attempt,
		},
		Raw: msg,
	}, nil
}

func eventValues(event TurnEvent) map[string]any {
	values := map[string]any{
		"event_type":           string(EventTypeTurnCompleted),
		"conversation_id":      event.ConversationID,
		"user_message_id":      event.UserMessageID,
		"assistant_message_id": event.AssistantMessageID,
		"turn_count":           event.TurnCount,
		"has_feedback":         strconv.FormatBool(event.HasFeedback),
		"attempt":              event.Attempt,
	}
	if event.TraceID != "" {
		values["trace_id"] = event.TraceID
	}
	return values
}

func parseInt64(values map[string]any, key string) (int64, error) {
	raw, ok := values[key]
	if !ok {
		return 0, fmt.Errorf("missing %s", key)
	}
	num, err := strconv.ParseInt(fmt.Sprint(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", key, err)
	}
	return num, nil
}

func parseOptionalInt(values map[string]any, key string) (int, error) {
	raw, ok := values[key]
	if !ok {
		return 0, nil
	}
	num, err := strconv.Atoi(fmt.Sprint(raw))
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", key, err)
	}
	return num, nil
}

func stringValue(values map[string]any, key string) string {
	raw, ok := values[key]
	if !ok {
		return ""
	}
	return fmt.Sprint(raw)
}
