package approuters

import (
	"workbridge/internal/configuration"

	"github.com/gin-gonic/gin"
)

func ProposalRouters(router *gin.Engine, container *configuration.Container) {
	h := container.ProposalHandler

	proposalRoute := router.Group("/wb/api/proposals", container.Auth.RequireAuth())
	{
		proposalRoute.POST("", h.Create)
		proposalRoute.GET("/mine", h.ListMine)
		proposalRoute.POST("/:proposalId/accept", h.Accept)
		proposalRoute.POST("/:proposalId/reject", h.Reject)
		proposalRoute.POST("/:proposalId/withdraw", h.Withdraw)
		proposalRoute.POST("/:proposalId/resubmit", h.Resubmit)
	}

	taskRoute := router.Group("/wb/api/tasks", container.Auth.RequireAuth())
	{
		taskRoute.GET("/:taskId/proposals", h.ListForTask)
	}
}
