package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Hyun-Jun-Lee/MoreThanHuman/common/logger"
	"github.com/Hyun-Jun-Lee/MoreThanHuman/internal/queue"
)

type ReclaimerConfig struct {
	// MinIdle is how long an event may sit unacked before another worker
	// takes it over.
	MinIdle   time.Duration
	Interval  time.Duration
	BatchSize int64
}

// Reclaimer periodically takes over turn events that a crashed or stuck
// worker read but never acked, and hands them to the same handler the
// worker uses so retries and dead-lettering stay in one place.
type Reclaimer struct {
	claimer StaleClaimer
	handle  queue.MessageProcessor
	cfg     ReclaimerConfig

	stopCh    chan struct{}
	stoppedCh chan struct{}
}

func NewReclaimer(claimer StaleClaimer, handle queue.MessageProcessor, cfg ReclaimerConfig) *Reclaimer {
	if cfg.MinIdle <= 0 {
		cfg.MinIdle = 5 * time.Minute
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	return &Reclaimer{
		claimer:   claimer,
		handle:    handle,
		cfg:       cfg,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

// Run blocks until Stop is called or ctx is done.
func (r *Reclaimer) Run(ctx context.Context) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: "mth.worker.reclaimer",
	})

	defer close(r.stoppedCh)

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	slog.InfoContext(ctx, "reclaimer started",
		"interval", r.cfg.Interval,
		"min_idle", r.cfg.MinIdle)

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopCh:
			slog.InfoContext(ctx, "reclaimer stopping")
			return
		case <-ticker.C:
			if _, err := r.ReclaimOnce(ctx); err != nil {
				slog.ErrorContext(ctx, "reclaim cycle error", "error", err)
			}
		}
	}
}

func (r *Reclaimer) Stop() {
	close(r.stopCh)
	<-r.stoppedCh
}

// ReclaimOnce claims one batch of stale events and handles each of them.
// It returns how many events were claimed. Handler failures are logged,
// not returned.
func (r *Reclaimer) ReclaimOnce(ctx context.Context) (int, error) {
	messages, err := r.claimer.ClaimStale(ctx, r.cfg.MinIdle, r.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("claiming stale events: %w", err)
	}
	if len(messages) == 0 {
		return 0, nil
	}

	slog.InfoContext(ctx, "claimed stale turn events", "count", len(messages))

	for _, msg := range messages {
		msgCtx := logger.WithLogFields(ctx, logger.LogFields{
			ConversationID: &msg.Event.ConversationID,
			MessageID:      &msg.Event.UserMessageID,
		})

		start := time.Now()
		if err := r.handle(msgCtx, msg); err != nil {
			slog.WarnContext(msgCtx, "reclaimed event failed",
				"error", err,
				"stream_id", msg.ID,
				"attempt", msg.Event.Attempt)
			continue
		}
		slog.InfoContext(msgCtx, "reclaimed event processed",
			"stream_id", msg.ID,
			"duration_ms", time.Since(start).Milliseconds())
	}

	return len(messages), nil
}
