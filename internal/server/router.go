package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/joseph-ayodele/network-extractor/internal/entity"
	"github.com/joseph-ayodele/network-extractor/internal/jobs"
)

// JobService is what the HTTP boundary needs from the jobs package.
type JobService interface {
	Submit(ctx context.Context, sub jobs.Submission) (*entity.Job, error)
	GetStatus(ctx context.Context, jobID, owner string) (*entity.Job, error)
	ListJobs(ctx context.Context, owner string, limit int) ([]entity.Job, error)
	GetDownload(ctx context.Context, jobID, owner string) (string, error)
	GetResult(ctx context.Context, jobID, owner, format string) (*jobs.Result, error)
}

// RouterConfig holds the HTTP boundary settings.
type RouterConfig struct {
	MaxUploadBytes int64
	RequireOwner   bool
	// RateLimit is applied to /api routes when non-nil.
	RateLimit gin.HandlerFunc
	// Ready reports dependency health for /health. Nil means always ready.
	Ready func(ctx context.Context) error
}

// NewRouter wires the job API onto a gin engine.
func NewRouter(svc JobService, cfg RouterConfig, logger *slog.Logger) *gin.Engine {
	if logger == nil {
		logger = slog.Default()
	}

	r := gin.New()
	r.Use(gin.Recovery(), RequestID(), AccessLog(logger))
	r.MaxMultipartMemory = 32 << 20

	r.GET("/health", healthHandler(cfg.Ready))

	api := r.Group("/api/v1")
	if cfg.RateLimit != nil {
		api.Use(cfg.RateLimit)
	}
	api.Use(Owner(cfg.RequireOwner))

	h := NewJobHandler(svc, cfg.MaxUploadBytes, logger)
	api.POST("/jobs", h.CreateJob)
	api.GET("/jobs", h.ListJobs)
	api.GET("/jobs/:job_id", h.GetJob)
	api.GET("/jobs/:job_id/download", h.GetDownload)
	api.GET("/jobs/:job_id/result", h.GetResult)

	return r
}

func healthHandler(ready func(ctx context.Context) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		if ready != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
			defer cancel()
			if err := ready(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
