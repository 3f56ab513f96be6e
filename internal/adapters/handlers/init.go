package handlers

import (
	"net/http"

	"github.com/iwtcode/icomService/internal/config"
	"github.com/iwtcode/icomService/internal/interfaces"
	"github.com/iwtcode/icomService/internal/middleware/logging"
	"github.com/iwtcode/icomService/internal/middleware/swagger"

	"github.com/gin-gonic/gin"
)

// Handler - структура для обработчиков HTTP-запросов
type Handler struct {
	usecase interfaces.Usecases
	logger  *logging.Logger
}

// NewHandler создает новый экземпляр Handler
func NewHandler(usecase interfaces.Usecases, logger *logging.Logger) *Handler {
	return &Handler{
		usecase: usecase,
		logger:  logger.WithPrefix("HANDLER"),
	}
}

// ProvideRouter настраивает и возвращает HTTP-роутер
func ProvideRouter(h *Handler, cfg *config.AppConfig, swagCfg *swagger.Config) http.Handler {
	gin.SetMode(cfg.GinMode)

	router := gin.Default()

	// Swagger
	swagger.Setup(router, swagCfg)

	// Logger Middleware
	router.Use(LoggingMiddleware(h.logger))

	// Группа API v1
	v1 := router.Group("/api/v1")
	{
		connections := v1.Group("/connect")
		{
			connections.POST("", h.CreateConnection)
			connections.GET("", h.GetConnections)
			connections.DELETE("", h.DeleteConnection)
			connections.GET("/:session_id", h.GetConnection)
		}

		playlist := v1.Group("/playlist")
		{
			playlist.GET("/:session_id", h.GetPlaylist)
			playlist.POST("/files", h.EnqueueFiles)
			playlist.POST("/sequence", h.StartSequence)
			playlist.POST("/control/:action", h.ControlPlaylist)
		}

		v1.GET("/sequences", h.GetSequences)
		v1.POST("/plans/convert", h.ConvertPlan)
		v1.GET("/deliveries/:session_id", h.GetDeliveries)
	}

	return router
}
