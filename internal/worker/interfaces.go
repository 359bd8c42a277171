package worker

import (
	"context"
	"time"

	"github.com/Hyun-Jun-Lee/MoreThanHuman/internal/model"
	"github.com/Hyun-Jun-Lee/MoreThanHuman/internal/queue"
)

// Consumer abstracts the message queue for testability.
type Consumer interface {
	Read(ctx context.Context) ([]queue.Message, error)
	Ack(ctx context.Context, msg queue.Message) error
	Requeue(ctx context.Context, msg queue.Message, errMsg string) error
	SendDLQ(ctx context.Context, msg queue.Message, errMsg string) error
}

type StaleClaimer interface {
	ClaimStale(ctx context.Context, minIdle time.Duration, count int64) ([]queue.Message, error)
}

// Backfiller produces grammar feedback for a user message that finished its
// turn without one. Implemented by service.GrammarService.
type Backfiller interface {
	Backfill(ctx context.Context, messageID int64) (*model.GrammarFeedback, bool, error)
}
