package api

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"assetmigration/pkg/metrics"
)

// SetupRouter creates and configures the Gin router.
func SetupRouter(server *Server, collector *metrics.Collector, allowedOrigins []string) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	config := cors.DefaultConfig()
	if len(allowedOrigins) == 0 {
		config.AllowOrigins = []string{"*"}
	} else {
		config.AllowOrigins = allowedOrigins
	}
	config.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	config.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	router.Use(cors.New(config))

	router.GET("/health", server.HealthCheck)
	if collector != nil {
		router.GET("/metrics", gin.WrapH(collector.Handler()))
	}

	api := router.Group("/api")
	{
		api.POST("/validate", server.ValidateCredentials)
		api.POST("/migrate", server.StartMigration)
		api.POST("/cancel", server.CancelMigration)
		api.POST("/continue", server.ContinueMigration)
		api.GET("/progress", server.GetProgress)
		api.GET("/config", server.GetConfig)
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})

	return router
}
