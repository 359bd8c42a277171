package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Hyun-Jun-Lee/MoreThanHuman/internal/model"
	"github.com/Hyun-Jun-Lee/MoreThanHuman/internal/store"
)

type FeedbackEventKind string

const (
	FeedbackEventFeedback FeedbackEventKind = "feedback"
	FeedbackEventTimeout  FeedbackEventKind = "timeout"
	FeedbackEventError    FeedbackEventKind = "error"
)

// FeedbackEvent is the single terminal event of a watch.
type FeedbackEvent struct {
	Kind     FeedbackEventKind
	Feedback *model.GrammarFeedback
	Err      error
}

type FeedbackWatcher interface {
	// Watch polls for the feedback of messageID. The returned channel yields
	// at most one event and is then closed. Cancelling ctx closes it without
	// an event.
	Watch(ctx context.Context, messageID int64) <-chan FeedbackEvent
}

type WatchSettings struct {
	PollInterval time.Duration
	MaxWait      time.Duration
}

type feedbackWatcher struct {
	feedback store.GrammarFeedbackStore
	settings WatchSettings
}

func NewFeedbackWatcher(feedback store.GrammarFeedbackStore, settings WatchSettings) FeedbackWatcher {
	if settings.PollInterval <= 0 {
		settings.PollInterval = time.Second
	}
	if settings.MaxWait <= 0 {
		settings.MaxWait = 20 * time.Second
	}
	return &feedbackWatcher{feedback: feedback, settings: settings}
}

func (w *feedbackWatcher) Watch(ctx context.Context, messageID int64) <-chan FeedbackEvent {
	// Buffered so the poller never blocks on a reader that went away.
	events := make(chan FeedbackEvent, 1)

	go func() {
		defer close(events)

		deadline := time.NewTimer(w.settings.MaxWait)
		defer deadline.Stop()
		ticker := time.NewTicker(w.settings.PollInterval)
		defer ticker.Stop()

		for {
			fb, err := w.feedback.GetByMessageID(ctx, messageID)
			switch {
			case err == nil:
				events <- FeedbackEvent{Kind: FeedbackEventFeedback, Feedback: fb}
				return
			case ctx.Err() != nil:
				return
			case !errors.Is(err, store.ErrNotFound):
				slog.WarnContext(ctx, "feedback lookup failed",
					"error", err,
					"message_id", messageID)
				events <- FeedbackEvent{Kind: FeedbackEventError, Err: err}
				return
			}

			select {
			case <-ctx.Done():
				return
			case <-deadline.C:
				events <- FeedbackEvent{Kind: FeedbackEventTimeout}
				return
			case <-ticker.C:
			}
		}
	}()

	return events
}
