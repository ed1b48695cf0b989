package handlers

import (
	"net/http"

	"pid_tuner/internal/logger"
	"pid_tuner/internal/service"

	"github.com/gin-gonic/gin"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Handler wires HTTP layer to services and logging.
type Handler struct {
	services *service.Service
	log      *logger.Logger
	metrics  http.Handler
}

// NewHandler constructs a new HTTP handler with dependencies. metrics may
// be nil, in which case /metrics is not served.
func NewHandler(services *service.Service, log *logger.Logger, metrics http.Handler) *Handler {
	return &Handler{services: services, log: log, metrics: metrics}
}

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	router.GET("/health", h.health)
	if h.metrics != nil {
		router.GET("/metrics", gin.WrapH(h.metrics))
	}

	h.registerAuthRoutes(router)
	h.registerAPIRoutes(router)

	// live telemetry and parameter discovery, same port
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
	api := r.Group("/api/v1", h.operatorMiddleware)
	{
		api.GET("/me", h.me)
		api.GET("/ports", h.listPorts)
		h.registerLinkRoutes(api)
		h.registerTelemetryRoutes(api)
		h.registerParameterRoutes(api)
		h.registerLogRoutes(api)
	}
}

func (h *Handler) registerLinkRoutes(api *gin.RouterGroup) {
	link := api.Group("/link")
	{
		link.GET("", h.getLink)
		// Body example: {"port":"/dev/ttyUSB0","baud_rate":9600}
		link.POST("/connect", h.connectLink)
		link.POST("/disconnect", h.disconnectLink)
	}
}

func (h *Handler) registerTelemetryRoutes(api *gin.RouterGroup) {
	api.GET("/telemetry", h.getTelemetry)
	api.PUT("/telemetry/capacity", h.setCapacity)
	api.GET("/diagnostics", h.getDiagnostics)
}

func (h *Handler) registerParameterRoutes(api *gin.RouterGroup) {
	params := api.Group("/parameters")
	{
		params.GET("", h.listParameters)
		params.GET("/stored", h.listStoredParameters)
		params.PUT("/:key/pending", h.stageParameter)
		params.POST("/:key", h.sendParameter)
	}
}

func (h *Handler) registerLogRoutes(api *gin.RouterGroup) {
	api.GET("/logs", h.getLogs)
}
