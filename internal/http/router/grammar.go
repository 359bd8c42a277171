package router

import (
	"github.com/gin-gonic/gin"

	"github.com/Hyun-Jun-Lee/MoreThanHuman/internal/http/handler"
)

func GrammarRouter(rg *gin.RouterGroup, h *handler.GrammarHandler) {
	rg.POST("/check/", h.Check)
	rg.GET("/message/:message_id/", h.GetByMessage)
	rg.GET("/stats/", h.Stats)
}
