package handler

import (
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Hyun-Jun-Lee/MoreThanHuman/common/llm"
	"github.com/Hyun-Jun-Lee/MoreThanHuman/internal/search"
	"github.com/Hyun-Jun-Lee/MoreThanHuman/internal/service"
)

// respondError maps err to a status code. Unclassified errors are logged and
// reported as fallback so internals never reach the client.
func respondError(c *gin.Context, err error, fallback string) {
	ctx := c.Request.Context()

	switch {
	case errors.Is(err, service.ErrConversationNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": service.ErrConversationNotFound.Error()})
	case errors.Is(err, service.ErrMessageNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": service.ErrMessageNotFound.Error()})
	case errors.Is(err, service.ErrFeedbackNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": service.ErrFeedbackNotFound.Error()})
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		if rl, ok := llm.IsRateLimited(err); ok {
			seconds := retryAfterSeconds(rl)
			slog.WarnContext(ctx, "provider rate limited", "provider", rl.Provider, "retry_after", seconds)
			c.Header("Retry-After", strconv.Itoa(seconds))
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "the language model is rate limited, please retry later",
				"retry_after": seconds,
			})
			return
		}

		if errors.Is(err, llm.ErrProviderUnavailable) || errors.Is(err, llm.ErrMalformedResponse) {
			slog.ErrorContext(ctx, "llm provider failure", "error", err)
			c.JSON(http.StatusBadGateway, gin.H{"error": "the language model is unavailable"})
			return
		}

		if errors.Is(err, search.ErrUnavailable) {
			slog.ErrorContext(ctx, "search provider failure", "error", err)
			c.JSON(http.StatusBadGateway, gin.H{"error": "search is unavailable"})
			return
		}

		slog.ErrorContext(ctx, fallback, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}

// retryAfterSeconds rounds up and never advertises less than one second.
func retryAfterSeconds(rl *llm.RateLimitError) int {
	seconds := int(math.Ceil(rl.RetryAfter.Seconds()))
	if seconds < 1 {
		return 1
	}
	return seconds
}

func parseID(c *gin.Context, param string) (int64, bool) {
	raw := c.Param(param)
	parsed, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || parsed <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + param})
		return 0, false
	}
	return parsed, true
}
