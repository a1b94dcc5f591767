package approuters

import (
	"workbridge/internal/configuration"

	"github.com/gin-gonic/gin"
)

// MonitorRouters sets up monitoring API routes
func MonitorRouters(router *gin.Engine, container *configuration.Container) {
	monitorGroup := router.Group("/wb/api/monitor")
	{
		// GET /wb/api/monitor/stats - Get delivery-router statistics
		monitorGroup.GET("/stats", container.MonitorHandler.GetRouterStats)
	}
}
