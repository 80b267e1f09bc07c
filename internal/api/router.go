package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/timmy/stylematch/internal/api/handler"
	"github.com/timmy/stylematch/internal/api/middleware"
	"github.com/timmy/stylematch/internal/config"
	"github.com/timmy/stylematch/internal/logger"
)

// RouterDeps are the collaborators the HTTP routes need.
type RouterDeps struct {
	Matcher  handler.Matcher
	Files    handler.FileResolver
	Sources  []handler.BreakerSource
	Sidecars handler.SidecarLoader // optional, enables the results route
	Logger   *logger.Logger
	Server   config.ServerConfig
	Metrics  config.MetricsConfig
}

// SetupRouter configures the Gin router with all routes
func SetupRouter(deps RouterDeps) *gin.Engine {
	// Set Gin mode
	switch deps.Server.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()
	r.MaxMultipartMemory = 8 << 20

	// Add middleware
	r.Use(gin.Recovery())
	r.Use(middleware.LoggerMiddleware(deps.Logger))
	r.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins:  deps.Server.CORS.AllowedOrigins,
		AllowAllOrigins: deps.Server.CORS.AllowAllOrigins,
	}))

	// Create handlers
	healthHandler := handler.NewHealthHandler(deps.Sources...)
	matchHandler := handler.NewMatchHandler(deps.Matcher, deps.Server.MaxUploadMB)
	fetchedHandler := handler.NewFetchedHandler(deps.Files)

	// Health check
	r.GET("/health", healthHandler.Health)

	// Upload route kept from the first web client
	r.POST("/process/", matchHandler.Match)

	// Fetched candidate images
	r.GET("/fetched/:match_id/:file", fetchedHandler.Get)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		v1.POST("/match", matchHandler.Match)
		if deps.Sidecars != nil {
			v1.GET("/matches/:match_id/sources/:source", handler.NewSidecarHandler(deps.Sidecars).Get)
		}
	}

	if deps.Metrics.Enabled {
		path := deps.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		r.GET(path, gin.WrapH(promhttp.Handler()))
	}

	return r
}
