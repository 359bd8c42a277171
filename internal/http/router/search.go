package router

import (
	"github.com/gin-gonic/gin"

	"github.com/Hyun-Jun-Lee/MoreThanHuman/internal/http/handler"
)

func SearchRouter(rg *gin.RouterGroup, h *handler.SearchHandler) {
	rg.POST("/", h.Search)
}
