package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Hyun-Jun-Lee/MoreThanHuman/common/logger"
)

const RequestIDHeader = "X-Request-ID"

// RequestID propagates the caller's X-Request-ID or assigns a new one, and
// attaches it to the request's log fields.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if _, err := uuid.Parse(requestID); err != nil {
			requestID = uuid.NewString()
		}

		c.Header(RequestIDHeader, requestID)
		c.Set("request_id", requestID)

		ctx := logger.WithLogFields(c.Request.Context(), logger.LogFields{
			RequestID: &requestID,
		})
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}
