package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Hyun-Jun-Lee/MoreThanHuman/internal/http/dto"
	"github.com/Hyun-Jun-Lee/MoreThanHuman/internal/service"
)

type SearchHandler struct {
	searchService service.SearchService
}

func NewSearchHandler(searchService service.SearchService) *SearchHandler {
	return &SearchHandler{searchService: searchService}
}

func (h *SearchHandler) Search(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.WarnContext(ctx, "invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.searchService.Search(ctx, req.Query)
	if err != nil {
		respondError(c, err, "search failed")
		return
	}

	c.JSON(http.StatusOK, resp)
}
