package handlers

import (
	"context"

	"searchgateway"
	"searchgateway/internal/logger"

	"github.com/gin-gonic/gin"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// SearchService is the gateway surface the HTTP layer calls into.
type SearchService interface {
	RunQueries(ctx context.Context, specs []searchgateway.QuerySpec, rng searchgateway.TimeRange) ([]searchgateway.QueryResult, error)
	ListSavedSearchIDs(ctx context.Context) ([]string, error)
	TestConnection(ctx context.Context) searchgateway.ConnectionStatus
}

// Handler wires HTTP layer to the search gateway and logging.
type Handler struct {
	search SearchService
	log    *logger.Logger
}

// NewHandler constructs a new HTTP handler with dependencies.
func NewHandler(search SearchService, log *logger.Logger) *Handler {
	return &Handler{search: search, log: log}
}

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health endpoint
	router.GET("/health", h.health)

	// Versioned API endpoints
	api := router.Group("/api/v1")
	{
		api.POST("/query", h.runQueries)
		api.GET("/saved-searches", h.savedSearches)
		api.GET("/test-connection", h.testConnection)
	}

	// WebSocket result streaming (HTTP upgrade) on the same port
	router.GET("/ws/query", h.wsQuery)

	return router
}

// @Summary      Health check
// @Tags         health
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(200, gin.H{"status": "ok"})
}
