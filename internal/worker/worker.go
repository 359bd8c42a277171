package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/Hyun-Jun-Lee/MoreThanHuman/common/logger"
	"github.com/Hyun-Jun-Lee/MoreThanHuman/internal/queue"
)

type Config struct {
	MaxAttempts int
	// ErrorBackoff is the pause after a failed stream read.
	ErrorBackoff time.Duration
}

// Worker consumes turn events and backfills grammar feedback for turns
// whose critic call did not produce any.
type Worker struct {
	consumer   Consumer
	backfiller Backfiller
	cfg        Config

	stopCh    chan struct{}
	stoppedCh chan struct{}
}

func New(consumer Consumer, backfiller Backfiller, cfg Config) *Worker {
	if cfg.ErrorBackoff <= 0 {
		cfg.ErrorBackoff = time.Second
	}
	return &Worker{
		consumer:   consumer,
		backfiller: backfiller,
		cfg:        cfg,
		stopCh:     make(chan struct{}),
		stoppedCh:  make(chan struct{}),
	}
}

func (w *Worker) Run(ctx context.Context) error {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: "mth.worker",
	})

	defer close(w.stoppedCh)

	slog.InfoContext(ctx, "worker started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stopCh:
			slog.InfoContext(ctx, "worker stopping")
			return nil
		default:
			if err := w.processOneBatch(ctx); err != nil {
				slog.ErrorContext(ctx, "batch processing error", "error", err)
				select {
				case <-ctx.Done():
				case <-w.stopCh:
				case <-time.After(w.cfg.ErrorBackoff):
				}
			}
		}
	}
}

func (w *Worker) Stop() {
	close(w.stopCh)
	<-w.stoppedCh
}

func (w *Worker) processOneBatch(ctx context.Context) error {
	messages, err := w.consumer.Read(ctx)
	if err != nil {
		return fmt.Errorf("reading from stream: %w", err)
	}

	for _, msg := range messages {
		_ = w.Handle(ctx, msg)
	}

	return nil
}

// Handle processes msg and routes a failure to retry or the dead letter
// stream. Exported so it can be reused by the reclaimer.
func (w *Worker) Handle(ctx context.Context, msg queue.Message) error {
	if err := w.processMessageSafe(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "message processing failed",
			"error", err,
			"stream_id", msg.ID,
			"message_id", msg.Event.UserMessageID)
		w.handleFailedMessage(ctx, msg, err)
		return err
	}
	return nil
}

func (w *Worker) processMessageSafe(ctx context.Context, msg queue.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "panic recovered in message processing",
				"panic", r,
				"stream_id", msg.ID)
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return w.ProcessMessage(ctx, msg)
}

// ProcessMessage backfills feedback for one turn event and acks it. A
// failed backfill is returned unacked.
func (w *Worker) ProcessMessage(ctx context.Context, msg queue.Message) error {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		ConversationID: &msg.Event.ConversationID,
		MessageID:      &msg.Event.UserMessageID,
	})

	if msg.Type != queue.EventTypeTurnCompleted || msg.Event.HasFeedback {
		w.ack(ctx, msg)
		return nil
	}

	slog.InfoContext(ctx, "backfilling grammar feedback",
		"stream_id", msg.ID,
		"attempt", msg.Event.Attempt)

	sc := logger.StartLinkedSpan(ctx, msg.Event.TraceID, "worker.grammar_backfill",
		attribute.Int64("conversation.id", msg.Event.ConversationID),
		attribute.Int64("message.id", msg.Event.UserMessageID),
		attribute.Int("attempt", msg.Event.Attempt))
	defer sc.End()
	ctx = sc.Context()

	start := time.Now()
	fb, created, err := w.backfiller.Backfill(ctx, msg.Event.UserMessageID)
	if err != nil {
		sc.RecordError(err)
		return fmt.Errorf("backfilling grammar feedback: %w", err)
	}
	sc.SetAttributes(attribute.Bool("feedback.created", created))

	if created {
		slog.InfoContext(ctx, "grammar feedback backfilled",
			"has_errors", fb.HasErrors,
			"error_count", len(fb.Errors),
			"duration_ms", time.Since(start).Milliseconds())
	} else {
		slog.DebugContext(ctx, "nothing to backfill")
	}

	w.ack(ctx, msg)
	return nil
}

func (w *Worker) ack(ctx context.Context, msg queue.Message) {
	if err := w.consumer.Ack(ctx, msg); err != nil {
		// redelivery is safe: a second backfill finds the saved feedback
		slog.WarnContext(ctx, "failed to ACK message",
			"error", err,
			"stream_id", msg.ID)
	}
}

func (w *Worker) handleFailedMessage(ctx context.Context, msg queue.Message, err error) {
	if msg.Event.Attempt >= w.cfg.MaxAttempts {
		slog.ErrorContext(ctx, "max attempts reached, sending to DLQ",
			"stream_id", msg.ID,
			"message_id", msg.Event.UserMessageID,
			"attempts", msg.Event.Attempt)
		if dlqErr := w.consumer.SendDLQ(ctx, msg, err.Error()); dlqErr != nil {
			slog.ErrorContext(ctx, "failed to send to DLQ", "error", dlqErr)
		}
		return
	}

	slog.WarnContext(ctx, "requeuing failed message",
		"stream_id", msg.ID,
		"message_id", msg.Event.UserMessageID,
		"attempt", msg.Event.Attempt)
	if requeueErr := w.consumer.Requeue(ctx, msg, err.Error()); requeueErr != nil {
		slog.ErrorContext(ctx, "failed to requeue message", "error", requeueErr)
	}
}
