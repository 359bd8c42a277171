package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Hyun-Jun-Lee/MoreThanHuman/common/logger"
	"github.com/Hyun-Jun-Lee/MoreThanHuman/internal/http/dto"
	"github.com/Hyun-Jun-Lee/MoreThanHuman/internal/model"
	"github.com/Hyun-Jun-Lee/MoreThanHuman/internal/service"
)

// FeedbackStreamHandler pushes the grammar feedback of one user message
// over server-sent events once it is stored.
type FeedbackStreamHandler struct {
	conversationService service.ConversationService
	watcher             service.FeedbackWatcher
}

func NewFeedbackStreamHandler(conversationService service.ConversationService, watcher service.FeedbackWatcher) *FeedbackStreamHandler {
	return &FeedbackStreamHandler{
		conversationService: conversationService,
		watcher:             watcher,
	}
}

// Stream emits exactly one data event (the feedback, a timeout marker or an
// error marker) and ends the response.
func (h *FeedbackStreamHandler) Stream(c *gin.Context) {
	messageID, ok := parseID(c, "message_id")
	if !ok {
		return
	}

	ctx := logger.WithLogFields(c.Request.Context(), logger.LogFields{
		MessageID: &messageID,
		Component: "http.feedback_stream",
	})

	msg, err := h.conversationService.Message(ctx, messageID)
	if err != nil {
		respondError(c, err, "failed to open feedback stream")
		return
	}
	if msg.Role != model.MessageRoleUser {
		c.JSON(http.StatusBadRequest, gin.H{"error": "grammar feedback exists only for user messages"})
		return
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming not supported"})
		return
	}

	setSSEHeaders(c.Writer)
	c.Status(http.StatusOK)
	c.Writer.WriteHeaderNow()
	flusher.Flush()

	for ev := range h.watcher.Watch(ctx, messageID) {
		switch ev.Kind {
		case service.FeedbackEventFeedback:
			sseWrite(c.Writer, "", ev.Feedback)
		case service.FeedbackEventTimeout:
			slog.InfoContext(ctx, "grammar feedback not ready before deadline")
			sseWrite(c.Writer, "", dto.FeedbackStreamTimeout{Timeout: true})
		case service.FeedbackEventError:
			slog.ErrorContext(ctx, "grammar feedback lookup failed", "error", ev.Err)
			sseWrite(c.Writer, "", dto.FeedbackStreamError{Error: "failed to load grammar feedback"})
		}
		flusher.Flush()
	}
}
