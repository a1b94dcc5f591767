package approuters

import (
	"workbridge/internal/configuration"

	"github.com/gin-gonic/gin"
)

func NotificationRouters(router *gin.Engine, container *configuration.Container) {
	h := container.NotificationHandler

	notificationRoute := router.Group("/wb/api/notifications", container.Auth.RequireAuth())
	{
		notificationRoute.GET("", h.List)
		notificationRoute.GET("/unread-count", h.CountUnread)
		notificationRoute.POST("/read-all", h.MarkAllRead)
		notificationRoute.POST("/:notificationId/read", h.MarkRead)
		notificationRoute.DELETE("/:notificationId", h.Delete)
	}
}
