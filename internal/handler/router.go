package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/andrew-quintana/insurance-navigator-sub019/internal/config"
	"github.com/andrew-quintana/insurance-navigator-sub019/internal/service"
)

// Deps carries the constructed services into the router. Construction happens
// in main so the worker pool and the HTTP surface share one set of
// dependencies.
type Deps struct {
	Uploads   *service.UploadService
	Documents *service.DocumentService
	Retrieval *service.RetrievalService
	Registry  *prometheus.Registry
}

func SetupRouter(cfg *config.Config, deps Deps) *gin.Engine {
	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Logger())
	r.Use(gin.Recovery())

	// Health check endpoints
	r.GET("/health", healthCheck)
	r.GET("/ready", readinessCheck)
	r.GET("/live", livenessCheck)

	if deps.Registry != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{})))
	}

	// Root endpoint
	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"service":      "Insurance Navigator Document Service",
			"version":      "1.0.0",
			"status":       "running",
			"health_check": "/health",
		})
	})

	uploadHandler := NewUploadHandler(deps.Uploads)
	documentHandler := NewDocumentHandler(deps.Documents)
	retrieveHandler := NewRetrieveHandler(deps.Retrieval)

	// API v1
	v1 := r.Group("/v1")
	{
		uploads := v1.Group("/uploads")
		{
			uploads.POST("", uploadHandler.Submit)
		}

		jobs := v1.Group("/jobs")
		{
			jobs.GET("/:id", uploadHandler.Status)
		}

		documents := v1.Group("/documents")
		{
			documents.GET("", documentHandler.List)
			documents.GET("/:id", documentHandler.Get)
			documents.GET("/:id/chunks", documentHandler.ListChunks)
		}
	}

	// RAG retrieve endpoint (for AI agent tool calls)
	r.POST("/retrieve", retrieveHandler.Retrieve)

	return r
}

func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "document-pipeline",
	})
}

func readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
	})
}

func livenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "alive",
	})
}
