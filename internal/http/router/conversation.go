package router

import (
	"github.com/gin-gonic/gin"

	"github.com/Hyun-Jun-Lee/MoreThanHuman/internal/http/handler"
)

func ConversationRouter(rg *gin.RouterGroup, h *handler.ConversationHandler, stream *handler.FeedbackStreamHandler) {
	rg.GET("/", h.List)
	rg.POST("/start/", h.Start)
	rg.GET("/messages/:message_id/grammar-feedback/stream", stream.Stream)

	rg.GET("/:id/", h.Get)
	rg.PATCH("/:id/", h.Rename)
	rg.DELETE("/:id/", h.Delete)
	rg.POST("/:id/message/", h.SendMessage)
	rg.GET("/:id/messages/", h.Messages)
	rg.PUT("/:id/end/", h.End)
}
