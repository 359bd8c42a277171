package queue

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

type Publisher interface {
	Publish(ctx context.Context, event TurnEvent) error
	Close() error
}

type redisPublisher struct {
	client *redis.Client
	stream string
	logger *slog.Logger
}

func NewRedisPublisher(client *redis.Client, stream string, logger *slog.Logger) Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &redisPublisher{
		client: client,
		stream: stream,
		logger: logger,
	}
}

func (p *redisPublisher) Publish(ctx context.Context, event TurnEvent) error {
	if event.Attempt <= 0 {
		event.Attempt = 1
	}

	if err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: eventValues(event),
	}).Err(); err != nil {
		return fmt.Errorf("publish turn event: %w", err)
	}

	p.logger.DebugContext(ctx, "published turn event",
		"conversation_id", event.ConversationID,
		"user_message_id", event.UserMessageID,
		"has_feedback", event.HasFeedback,
		"attempt", event.Attempt)
	return nil
}

func (p *redisPublisher) Close() error {
	return p.client.Close()
}

type noopPublisher struct{}

// NewNoopPublisher is used when no Redis is configured.
func NewNoopPublisher() Publisher {
	return noopPublisher{}
}

func (noopPublisher) Publish(context.Context, TurnEvent) error { return nil }

func (noopPublisher) Close() error { return nil }
