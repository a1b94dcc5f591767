package approuters

import (
	"workbridge/internal/configuration"

	"github.com/gin-gonic/gin"
)

func ChatRouters(router *gin.Engine, container *configuration.Container) {
	h := container.ChatHandler

	chatRoute := router.Group("/wb/api/chat", container.Auth.RequireAuth())
	{
		chatRoute.POST("/conversations", h.StartConversation)
		chatRoute.GET("/conversations", h.GetInbox)
		chatRoute.GET("/conversations/:conversationId", h.GetConversation)
		chatRoute.POST("/conversations/:conversationId/read", h.MarkConversationRead)
		chatRoute.PUT("/conversations/:conversationId/mute", h.SetMuted)
		chatRoute.PUT("/conversations/:conversationId/pin", h.SetPinned)
		chatRoute.POST("/conversations/:conversationId/messages", h.SendMessage)

		chatRoute.PATCH("/messages/:messageId", h.EditMessage)
		chatRoute.DELETE("/messages/:messageId", h.DeleteMessage)
		chatRoute.POST("/messages/:messageId/read", h.MarkMessageRead)
		chatRoute.POST("/messages/:messageId/reactions", h.ReactToMessage)
		chatRoute.GET("/messages/search", h.SearchMessages)
	}
}
