package handler

import (
	"net/http"

	"workbridge/internal/middleware"
	"workbridge/internal/service"

	"github.com/gin-gonic/gin"
)

type NotificationHandler interface {
	List(c *gin.Context)
	CountUnread(c *gin.Context)
	MarkRead(c *gin.Context)
	MarkAllRead(c *gin.Context)
	Delete(c *gin.Context)
}

type notificationHandler struct {
	box service.NotificationBox
}

func NewNotificationHandler(box service.NotificationBox) NotificationHandler {
	return &notificationHandler{box: box}
}

func (h *notificationHandler) List(c *gin.Context) {
	page, ok := pageParam(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid page number"})
		return
	}

	result, err := h.box.List(c.Request.Context(), middleware.UserID(c), page)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": result})
}

func (h *notificationHandler) CountUnread(c *gin.Context) {
	count, err := h.box.CountUnread(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread": count})
}

func (h *notificationHandler) MarkRead(c *gin.Context) {
	if err := h.box.MarkRead(c.Request.Context(), c.Param("notificationId"), middleware.UserID(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"read": true})
}

func (h *notificationHandler) MarkAllRead(c *gin.Context) {
	count, err := h.box.MarkAllRead(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"markedRead": count})
}

func (h *notificationHandler) Delete(c *gin.Context) {
	if err := h.box.Delete(c.Request.Context(), c.Param("notificationId"), middleware.UserID(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}
