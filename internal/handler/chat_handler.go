package handler

import (
	"net/http"
	"strconv"

	"workbridge/internal/middleware"
	"workbridge/internal/model"
	"workbridge/internal/service"

	"github.com/gin-gonic/gin"
)

type ChatHandler interface {
	StartConversation(c *gin.Context)
	GetInbox(c *gin.Context)
	GetConversation(c *gin.Context)
	MarkConversationRead(c *gin.Context)
	SetMuted(c *gin.Context)
	SetPinned(c *gin.Context)
	SendMessage(c *gin.Context)
	EditMessage(c *gin.Context)
	DeleteMessage(c *gin.Context)
	MarkMessageRead(c *gin.Context)
	ReactToMessage(c *gin.Context)
	SearchMessages(c *gin.Context)
}

type chatHandler struct {
	service service.ChatService
}

func NewChatHandler(service service.ChatService) ChatHandler {
	return &chatHandler{service: service}
}

type startConversationRequest struct {
	RecipientID string `json:"recipientId" binding:"required"`
	TaskID      string `json:"taskId"`
	ProposalID  string `json:"proposalId"`
}

func (h *chatHandler) StartConversation(c *gin.Context) {
	var req startConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "recipientId is required"})
		return
	}

	var convCtx *model.ConversationContext
	if req.TaskID != "" || req.ProposalID != "" {
		convCtx = &model.ConversationContext{TaskID: req.TaskID, ProposalID: req.ProposalID}
	}

	result, err := h.service.StartOrGetConversation(c.Request.Context(), middleware.UserID(c), req.RecipientID, convCtx)
	if err != nil {
		respondError(c, err)
		return
	}

	status := http.StatusOK
	if result.IsNew {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{
		"conversation":       result.Conversation,
		"isNew":              result.IsNew,
		"isDifferentContext": result.IsDifferentContext,
	})
}

func (h *chatHandler) GetInbox(c *gin.Context) {
	page, ok := pageParam(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid page number"})
		return
	}
	limit, err := strconv.ParseInt(c.DefaultQuery("limit", "20"), 10, 64)
	if err != nil || limit < 1 || limit > 100 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
		return
	}

	entries, err := h.service.ListInbox(c.Request.Context(), middleware.UserID(c), page, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": entries})
}

func (h *chatHandler) GetConversation(c *gin.Context) {
	page, ok := pageParam(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid page number"})
		return
	}

	conv, msgs, err := h.service.GetConversation(c.Request.Context(), c.Param("conversationId"), middleware.UserID(c), page)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"conversation": conv,
		"messages":     msgs,
	})
}

func (h *chatHandler) MarkConversationRead(c *gin.Context) {
	count, err := h.service.MarkConversationRead(c.Request.Context(), c.Param("conversationId"), middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"markedRead": count})
}

type flagRequest struct {
	On *bool `json:"on" binding:"required"`
}

func (h *chatHandler) SetMuted(c *gin.Context) {
	var req flagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "on is required"})
		return
	}
	if err := h.service.SetMuted(c.Request.Context(), c.Param("conversationId"), middleware.UserID(c), *req.On); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"muted": *req.On})
}

func (h *chatHandler) SetPinned(c *gin.Context) {
	var req flagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "on is required"})
		return
	}
	if err := h.service.SetPinned(c.Request.Context(), c.Param("conversationId"), middleware.UserID(c), *req.On); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"pinned": *req.On})
}

type sendMessageRequest struct {
	Text        string             `json:"text"`
	Attachments []model.Attachment `json:"attachments"`
	ReplyTo     string             `json:"replyTo"`
}

func (h *chatHandler) SendMessage(c *gin.Context) {
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	msg, err := h.service.SendMessage(c.Request.Context(), service.SendMessageInput{
		ConversationID: c.Param("conversationId"),
		SenderID:       middleware.UserID(c),
		Text:           req.Text,
		Attachments:    req.Attachments,
		ReplyTo:        req.ReplyTo,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": msg})
}

type editMessageRequest struct {
	Text           string             `json:"text"`
	RemovedURLs    []string           `json:"removedUrls"`
	NewAttachments []model.Attachment `json:"newAttachments"`
}

func (h *chatHandler) EditMessage(c *gin.Context) {
	var req editMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	msg, err := h.service.EditMessage(c.Request.Context(), service.EditMessageInput{
		MessageID:      c.Param("messageId"),
		CallerID:       middleware.UserID(c),
		NewText:        req.Text,
		RemovedURLs:    req.RemovedURLs,
		NewAttachments: req.NewAttachments,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": msg})
}

func (h *chatHandler) DeleteMessage(c *gin.Context) {
	if err := h.service.DeleteMessage(c.Request.Context(), c.Param("messageId"), middleware.UserID(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

func (h *chatHandler) MarkMessageRead(c *gin.Context) {
	if err := h.service.MarkRead(c.Request.Context(), c.Param("messageId"), middleware.UserID(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"read": true})
}

type reactionRequest struct {
	Emoji string `json:"emoji" binding:"required"`
}

func (h *chatHandler) ReactToMessage(c *gin.Context) {
	var req reactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "emoji is required"})
		return
	}

	added, err := h.service.React(c.Request.Context(), c.Param("messageId"), middleware.UserID(c), req.Emoji)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"added": added})
}

func (h *chatHandler) SearchMessages(c *gin.Context) {
	page, ok := pageParam(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid page number"})
		return
	}

	result, err := h.service.SearchOwnMessages(c.Request.Context(), middleware.UserID(c), c.Query("q"), page)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": result})
}
