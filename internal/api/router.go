package api

import (
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/d60-Lab/trust-engine/config"
	"github.com/d60-Lab/trust-engine/internal/api/handler"
	"github.com/d60-Lab/trust-engine/internal/api/middleware"
)

// NewRouter assembles the HTTP surface.
func NewRouter(cfg *config.Config, h *handler.Handler) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(
		gin.Logger(),
		middleware.Recovery(),
		gzip.Gzip(gzip.DefaultCompression),
		middleware.RateLimit(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst),
	)
	if cfg.Tracing.Enabled {
		r.Use(otelgin.Middleware(cfg.Tracing.ServiceName))
	}

	r.GET("/healthz", func(c *gin.Context) { c.String(200, "ok") })

	v1 := r.Group("/api/v1")
	{
		v1.POST("/users", h.UpsertUser)
		v1.POST("/users/sync", h.UpsertUserAndWait)
		v1.GET("/users/:user_id/score", h.GetTrustScore)
		v1.GET("/users/:user_id/audits", h.GetAuditHistory)
		v1.GET("/queue/stats", h.QueueStats)
	}
	return r
}
