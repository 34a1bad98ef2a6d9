package routes

import (
	"github.com/h-mizumoto/Dynamic-Data-Upload/services/manage/api/handlers"
	"github.com/h-mizumoto/Dynamic-Data-Upload/services/manage/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// SetupRoutes sets up all the routes for the server
func SetupRoutes(r *gin.Engine, svc service.Service, log *logrus.Logger) {
	// Health check and metrics
	r.GET("/health", handlers.HealthCheck)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API routes
	api := r.Group("/api/v1")

	// Entry status routes
	statusHandler := handlers.NewStatusHandler(svc, log)
	api.POST("/status", statusHandler.PostStatus)
	api.GET("/status", statusHandler.GetStatus)

	// Report routes
	reportHandler := handlers.NewReportHandler(svc, log)
	api.POST("/report", reportHandler.PostReport)
	api.GET("/report/:filename", reportHandler.GetReport)
}
