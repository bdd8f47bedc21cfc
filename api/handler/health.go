package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/trawlkit/trawl/models"
)

// BrowserInfo is the slice of the browser the health endpoint reports.
// *surface.Browser satisfies it.
type BrowserInfo interface {
	Stats() models.BrowserStats
}

// Health returns a handler for GET /api/v1/health. It stays outside
// auth so monitoring probes always work.
func Health(b BrowserInfo, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats := b.Stats()

		status := "healthy"
		if !stats.Alive {
			status = "degraded"
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status:  status,
			Uptime:  time.Since(startTime).Round(time.Second).String(),
			Browser: stats,
			Version: "0.1.0",
		})
	}
}
