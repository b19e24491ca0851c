// Package server configures the HTTP server and routes.
package server

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/harshauii/medscan/internal/config"
	"github.com/harshauii/medscan/internal/handler"
	"github.com/harshauii/medscan/internal/middleware"
	"github.com/harshauii/medscan/internal/service"
	"github.com/harshauii/medscan/internal/storage"
)

// Deps groups the collaborators the route handlers need. Built once in main
// and passed down — no DI container, no magic.
type Deps struct {
	Analysis     *service.AnalysisService
	AnalysisRepo storage.AnalysisRepository
	APICallRepo  storage.APICallRepository
}

// RegisterRoutes sets up all HTTP routes on the Gin engine.
// Each handler gets exactly the dependencies it needs.
func RegisterRoutes(r *gin.Engine, cfg *config.Config, deps Deps, logger *zap.Logger) {
	healthHandler := handler.NewHealthHandler()
	pageHandler := handler.NewPageHandler()
	analyzeHandler := handler.NewAnalyzeHandler(deps.Analysis, logger)
	adminHandler := handler.NewAdminHandler(deps.AnalysisRepo, deps.APICallRepo, logger)

	// CORS applies to everything a browser frontend may call.
	r.Use(middleware.CORS(cfg.CORS.AllowedOrigins))

	// Public endpoints
	r.GET("/healthz", healthHandler.Healthz)
	r.GET("/", pageHandler.Index)

	// The analyze endpoint is public but rate limited per client IP —
	// every request costs real LLM tokens upstream.
	r.POST("/upload_and_query",
		middleware.RateLimit(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst),
		analyzeHandler.UploadAndQuery,
	)

	// Admin endpoints (separate auth with admin keys)
	admin := r.Group("/api/v1/admin")
	admin.Use(middleware.AdminKeyAuth(cfg.Auth.AdminKeys))
	{
		admin.GET("/stats", adminHandler.Stats)
	}
}
