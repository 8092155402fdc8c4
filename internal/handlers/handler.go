package handlers

import (
	"github.com/gin-gonic/gin"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"sunssactor/internal/logger"
	"sunssactor/internal/service"
)

// Handler wires HTTP layer to services and logging.
type Handler struct {
	services *service.Service
	log      *logger.Logger
}

// NewHandler constructs a new HTTP handler with dependencies.
func NewHandler(services *service.Service, log *logger.Logger) *Handler {
	return &Handler{services: services, log: log}
}

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health endpoint
	router.GET("/health", h.health)

	// Auth endpoints
	h.registerAuthRoutes(router)

	// Versioned API endpoints (protected)
	h.registerAPIRoutes(router)

	// Live actor state over WebSocket on the same port
	router.GET("/ws", h.wsConnect)

	return router
}

func (h *Handler) registerAuthRoutes(r *gin.Engine) {
	auth := r.Group("/auth")
	{
		auth.POST("/sign-up", h.signUp)
		auth.POST("/sign-in", h.signIn)
	}
}

func (h *Handler) registerAPIRoutes(r *gin.Engine) {
	api := r.Group("/api/v1", h.userIdMiddleware)
	{
		h.registerSunssRoutes(api)
		h.registerLogRoutes(api)
	}
}

func (h *Handler) registerSunssRoutes(api *gin.RouterGroup) {
	sunss := api.Group("/sunss")
	{
		// Body example: {"strategy":"guiding"}
		sunss.POST("/enable", h.enableSunss)
		sunss.POST("/disable", h.disableSunss)
		sunss.GET("/state", h.getState)
		sunss.GET("/status", h.getDeviceStatus)
		sunss.GET("/strategies", h.getStrategies)

		// Manual overrides for engineering use
		sunss.POST("/stop", h.stopSunss)
		sunss.POST("/track", h.trackSunss)
		sunss.POST("/exposures/start", h.startExposures)
		sunss.POST("/raw", h.rawCommand)
	}
}

func (h *Handler) registerLogRoutes(api *gin.RouterGroup) {
	logs := api.Group("/logs")
	{
		logs.GET("/", h.getLogs)
	}
}
