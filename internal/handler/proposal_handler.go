package handler

import (
	"net/http"

	"workbridge/internal/middleware"
	"workbridge/internal/model"
	"workbridge/internal/service"

	"github.com/gin-gonic/gin"
)

type ProposalHandler interface {
	Create(c *gin.Context)
	Accept(c *gin.Context)
	Reject(c *gin.Context)
	Withdraw(c *gin.Context)
	Resubmit(c *gin.Context)
	ListForTask(c *gin.Context)
	ListMine(c *gin.Context)
}

type proposalHandler struct {
	service service.ProposalService
}

func NewProposalHandler(service service.ProposalService) ProposalHandler {
	return &proposalHandler{service: service}
}

type createProposalRequest struct {
	TaskID           string             `json:"taskId" binding:"required"`
	Message          string             `json:"message" binding:"required"`
	Attachments      []model.Attachment `json:"attachments"`
	ProposedBudget   *float64           `json:"proposedBudget"`
	ProposedDuration string             `json:"proposedDuration"`
}

func (h *proposalHandler) Create(c *gin.Context) {
	var req createProposalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "taskId and message are required"})
		return
	}

	p, err := h.service.Create(c.Request.Context(), service.CreateProposalInput{
		TaskID:           req.TaskID,
		FromUser:         middleware.UserID(c),
		Message:          req.Message,
		Attachments:      req.Attachments,
		ProposedBudget:   req.ProposedBudget,
		ProposedDuration: req.ProposedDuration,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"proposal": p})
}

func (h *proposalHandler) Accept(c *gin.Context) {
	p, err := h.service.Accept(c.Request.Context(), c.Param("proposalId"), middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"proposal": p})
}

func (h *proposalHandler) Reject(c *gin.Context) {
	if err := h.service.Reject(c.Request.Context(), c.Param("proposalId"), middleware.UserID(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rejected": true})
}

func (h *proposalHandler) Withdraw(c *gin.Context) {
	if err := h.service.Withdraw(c.Request.Context(), c.Param("proposalId"), middleware.UserID(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"withdrawn": true})
}

type resubmitRequest struct {
	Message          string   `json:"message" binding:"required"`
	ProposedBudget   *float64 `json:"proposedBudget"`
	ProposedDuration string   `json:"proposedDuration"`
}

func (h *proposalHandler) Resubmit(c *gin.Context) {
	var req resubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message is required"})
		return
	}

	p, err := h.service.Resubmit(c.Request.Context(), c.Param("proposalId"), middleware.UserID(c), req.Message, req.ProposedBudget, req.ProposedDuration)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"proposal": p})
}

func (h *proposalHandler) ListForTask(c *gin.Context) {
	proposals, err := h.service.ListForTask(c.Request.Context(), c.Param("taskId"), middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"proposals": proposals})
}

func (h *proposalHandler) ListMine(c *gin.Context) {
	page, ok := pageParam(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid page number"})
		return
	}

	result, err := h.service.ListMine(c.Request.Context(), middleware.UserID(c), page)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"proposals": result})
}
