package api

import (
	"log"

	"github.com/gin-gonic/gin"

	taskDelivery "tasktimer/internal/task/delivery"
	"tasktimer/internal/task/dto"
	taskUsecasePkg "tasktimer/internal/task/usecase"
	"tasktimer/pkg/assetcache"
	"tasktimer/pkg/config"
	"tasktimer/pkg/sse"
)

// SSE event names
const (
	EventRefresh = "refresh"
	EventTimer   = "timer"
)

type Handler struct {
	taskUsecase taskUsecasePkg.TaskUsecase
	sseManager  *sse.Manager
	config      *config.Config
	taskHandler *taskDelivery.TaskHandler
	assets      *assetcache.Cache
	unsubscribe func()
}

// TickBroadcaster forwards live timer ticks to SSE clients.
type TickBroadcaster struct {
	sseManager *sse.Manager
}

func NewTickBroadcaster(sseManager *sse.Manager) *TickBroadcaster {
	return &TickBroadcaster{sseManager: sseManager}
}

func (b *TickBroadcaster) PushTicks(ticks []dto.TimerTick) {
	b.sseManager.Broadcast(EventTimer, ticks)
}

func NewHandler(taskUc taskUsecasePkg.TaskUsecase, views *dto.Builder, sseManager *sse.Manager, cfg *config.Config, assets *assetcache.Cache) *Handler {
	// Initialize runtime settings for settings API
	InitRuntimeSettings(cfg.DefaultSortMode)

	// Every store change re-renders connected views
	unsubscribe := taskUc.Subscribe(func(ev taskUsecasePkg.RefreshEvent) {
		sseManager.Broadcast(EventRefresh, ev)
	})

	taskHandler := taskDelivery.NewTaskHandler(taskUc, views, GetRuntimeSortMode)
	log.Println("Task handler initialized")

	return &Handler{
		taskUsecase: taskUc,
		sseManager:  sseManager,
		config:      cfg,
		taskHandler: taskHandler,
		assets:      assets,
		unsubscribe: unsubscribe,
	}
}

// Router builds the gin engine with CORS and every route.
func (h *Handler) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.Default()

	// CORS middleware
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		} else {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		}

		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	SetupRoutes(r, h.sseManager, h.taskHandler, h.assets)
	return r
}

// Close stops forwarding store events.
func (h *Handler) Close() {
	h.unsubscribe()
}
