package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Hyun-Jun-Lee/MoreThanHuman/internal/http/dto"
	"github.com/Hyun-Jun-Lee/MoreThanHuman/internal/service"
)

type GrammarHandler struct {
	grammarService service.GrammarService
}

func NewGrammarHandler(grammarService service.GrammarService) *GrammarHandler {
	return &GrammarHandler{grammarService: grammarService}
}

func (h *GrammarHandler) Check(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.CheckGrammarRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.WarnContext(ctx, "invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	analysis, err := h.grammarService.Check(ctx, req.Text)
	if err != nil {
		respondError(c, err, "failed to check grammar")
		return
	}

	c.JSON(http.StatusOK, dto.ToGrammarCheckResponse(req.Text, analysis))
}

func (h *GrammarHandler) GetByMessage(c *gin.Context) {
	messageID, ok := parseID(c, "message_id")
	if !ok {
		return
	}

	fb, err := h.grammarService.GetFeedback(c.Request.Context(), messageID)
	if err != nil {
		respondError(c, err, "failed to get grammar feedback")
		return
	}

	c.JSON(http.StatusOK, fb)
}

func (h *GrammarHandler) Stats(c *gin.Context) {
	var query dto.StatsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	stats, err := h.grammarService.Stats(c.Request.Context(), query.TimeRange)
	if err != nil {
		respondError(c, err, "failed to compute grammar stats")
		return
	}

	c.JSON(http.StatusOK, stats)
}
