package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Hyun-Jun-Lee/MoreThanHuman/internal/http/dto"
	"github.com/Hyun-Jun-Lee/MoreThanHuman/internal/service"
)

type ConversationHandler struct {
	conversationService service.ConversationService
}

func NewConversationHandler(conversationService service.ConversationService) *ConversationHandler {
	return &ConversationHandler{conversationService: conversationService}
}

func (h *ConversationHandler) Start(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.StartConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.WarnContext(ctx, "invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.conversationService.Start(ctx, service.StartParams{
		FirstMessage:  req.FirstMessage,
		SearchContext: req.SearchContext,
		Mode:          req.ConversationType,
		RoleCharacter: req.RoleCharacter,
	})
	if err != nil {
		respondError(c, err, "failed to start conversation")
		return
	}

	c.JSON(http.StatusCreated, dto.ToStartConversationResponse(result))
}

func (h *ConversationHandler) SendMessage(c *gin.Context) {
	ctx := c.Request.Context()

	conversationID, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req dto.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.WarnContext(ctx, "invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.conversationService.Continue(ctx, conversationID, req.Message)
	if err != nil {
		respondError(c, err, "failed to send message")
		return
	}

	c.JSON(http.StatusOK, dto.ToSendMessageResponse(result))
}

func (h *ConversationHandler) List(c *gin.Context) {
	var page dto.PageQuery
	if err := c.ShouldBindQuery(&page); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	convs, err := h.conversationService.List(c.Request.Context(), page.Limit, page.Offset)
	if err != nil {
		respondError(c, err, "failed to list conversations")
		return
	}

	c.JSON(http.StatusOK, dto.ToConversationList(convs))
}

func (h *ConversationHandler) Get(c *gin.Context) {
	conversationID, ok := parseID(c, "id")
	if !ok {
		return
	}

	conv, err := h.conversationService.Get(c.Request.Context(), conversationID)
	if err != nil {
		respondError(c, err, "failed to get conversation")
		return
	}

	c.JSON(http.StatusOK, dto.ToConversationResponse(conv))
}

func (h *ConversationHandler) Messages(c *gin.Context) {
	conversationID, ok := parseID(c, "id")
	if !ok {
		return
	}

	var page dto.PageQuery
	if err := c.ShouldBindQuery(&page); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msgs, err := h.conversationService.Messages(c.Request.Context(), conversationID, page.Limit, page.Offset)
	if err != nil {
		respondError(c, err, "failed to list messages")
		return
	}

	c.JSON(http.StatusOK, dto.ToMessageList(msgs))
}

func (h *ConversationHandler) End(c *gin.Context) {
	conversationID, ok := parseID(c, "id")
	if !ok {
		return
	}

	conv, err := h.conversationService.End(c.Request.Context(), conversationID)
	if err != nil {
		respondError(c, err, "failed to end conversation")
		return
	}

	c.JSON(http.StatusOK, dto.ToConversationResponse(conv))
}

func (h *ConversationHandler) Rename(c *gin.Context) {
	ctx := c.Request.Context()

	conversationID, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req dto.RenameConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.WarnContext(ctx, "invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	conv, err := h.conversationService.Rename(ctx, conversationID, req.Title)
	if err != nil {
		respondError(c, err, "failed to rename conversation")
		return
	}

	c.JSON(http.StatusOK, dto.ToConversationResponse(conv))
}

func (h *ConversationHandler) Delete(c *gin.Context) {
	conversationID, ok := parseID(c, "id")
	if !ok {
		return
	}

	if err := h.conversationService.Delete(c.Request.Context(), conversationID); err != nil {
		respondError(c, err, "failed to delete conversation")
		return
	}

	c.Status(http.StatusNoContent)
}
