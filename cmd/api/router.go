package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	taskDelivery "tasktimer/internal/task/delivery"
	"tasktimer/pkg/assetcache"
	"tasktimer/pkg/sse"
)

// SetupRoutes mounts every route. assets may be nil when no asset origin is configured.
func SetupRoutes(r *gin.Engine, sseManager *sse.Manager, taskHandler *taskDelivery.TaskHandler, assets *assetcache.Cache) {
	api := r.Group("/api")
	{
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		// SSE endpoint
		api.GET("/events", sseManager.ServeHTTP)

		taskHandler.RegisterRoutes(api)

		// Settings routes - Runtime configuration
		settings := api.Group("/settings")
		{
			settings.GET("/sort", GetSortSettings)
			settings.PUT("/sort", UpdateSortSettings)
			settings.GET("/sort/modes", GetSortModes)
		}
	}

	if assets != nil {
		r.GET("/assets/*path", assets.Handler)
	}
}
