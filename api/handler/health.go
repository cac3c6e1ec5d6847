package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/slotwatch/models"
)

// Version is reported by the health endpoint.
const Version = "0.1.0"

// Health returns a handler for GET /api/v1/health.
//
// Reports scheduler state and degrades status when the latest run did not
// succeed.
func Health(svc RunService, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats := svc.Stats()

		status := "healthy"
		if stats.LastStatus != "" && stats.LastStatus != models.StatusSuccess {
			status = "degraded"
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status:   status,
			Uptime:   time.Since(startTime).Round(time.Second).String(),
			RunStats: stats,
			Version:  Version,
		})
	}
}
