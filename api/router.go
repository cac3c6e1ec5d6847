package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/slotwatch/api/handler"
	"github.com/use-agent/slotwatch/api/middleware"
	"github.com/use-agent/slotwatch/config"
)

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	API:     Auth (if enabled) → RateLimit
//
// Health stays outside auth so probes always work.
func NewRouter(svc handler.RunService, cfg *config.Config, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	v1 := r.Group("/api/v1")

	v1.GET("/health", handler.Health(svc, startTime))

	protected := v1.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	protected.Use(middleware.RateLimit(cfg.RateLimit))

	protected.GET("/runs", handler.ListRuns(svc))
	protected.GET("/runs/latest", handler.LatestRun(svc))
	protected.GET("/runs/:id", handler.GetRun(svc))
	protected.POST("/runs", handler.TriggerRun(svc))

	return r
}
