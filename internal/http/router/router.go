package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Hyun-Jun-Lee/MoreThanHuman/internal/http/handler"
	"github.com/Hyun-Jun-Lee/MoreThanHuman/internal/service"
)

func SetupRoutes(router *gin.Engine, services *service.Services) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	{
		conversations := services.Conversations()

		ConversationRouter(api.Group("/conversations"),
			handler.NewConversationHandler(conversations),
			handler.NewFeedbackStreamHandler(conversations, services.FeedbackWatcher()),
		)

		GrammarRouter(api.Group("/grammar"), handler.NewGrammarHandler(services.Grammar()))

		SearchRouter(api.Group("/search"), handler.NewSearchHandler(services.Search()))
	}
}
