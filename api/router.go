// Package api serves the operator-facing status surface of a running
// scrape: browser health, live traversal progress, and the last
// published run summary. It is diagnostic only; no endpoint mutates
// the run.
package api

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/trawlkit/trawl/api/handler"
	"github.com/trawlkit/trawl/api/middleware"
	"github.com/trawlkit/trawl/config"
)

// NewRouter creates a configured Gin engine.
//
// Health stays outside auth so monitoring probes always work; status
// and summary sit behind the API key when keys are configured.
func NewRouter(b handler.BrowserInfo, tracker *handler.Tracker, st handler.SummaryReader, cfg *config.Config, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.API.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	v1 := r.Group("/api/v1")

	v1.GET("/health", handler.Health(b, startTime))

	protected := v1.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	protected.GET("/status", handler.Status(tracker))
	protected.GET("/summary", handler.Summary(st))

	return r
}
