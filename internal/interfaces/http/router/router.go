// Package router assembles the gin engine: middleware stack and routes.
package router

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/inzighted/report-service/internal/infrastructure/config"
	"github.com/inzighted/report-service/internal/infrastructure/logger"
	"github.com/inzighted/report-service/internal/interfaces/http/handler"
	"github.com/inzighted/report-service/internal/interfaces/http/middleware"
)

// Deps is everything the router wires together.
type Deps struct {
	Config  *config.Config
	Logger  *zap.Logger
	Reports *handler.ReportHandler
	Health  *handler.HealthHandler
}

// New builds the engine with the full middleware stack and routes.
func New(d Deps) *gin.Engine {
	if d.Config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	r := gin.New()
	if len(d.Config.HTTP.TrustedProxies) > 0 {
		_ = r.SetTrustedProxies(d.Config.HTTP.TrustedProxies)
	}

	r.Use(
		middleware.RequestID(),
		logger.GinMiddleware(d.Logger),
		logger.Recovery(d.Logger),
		middleware.Secure(),
		middleware.CORS(middleware.CORSConfig{
			AllowOrigins: d.Config.HTTP.CORSAllowOrigins,
			AllowMethods: d.Config.HTTP.CORSAllowMethods,
			AllowHeaders: d.Config.HTTP.CORSAllowHeaders,
		}),
		middleware.BodyLimit(d.Config.HTTP.MaxBodySize),
	)
	if d.Config.HTTP.RateLimitEnabled {
		limiter := middleware.NewRateLimiter(
			d.Config.HTTP.RateLimitRequests,
			d.Config.HTTP.RateLimitWindow,
		)
		r.Use(middleware.RateLimit(limiter))
	}

	r.GET("/health", d.Health.Health)
	r.GET("/generate-pdf", d.Reports.GeneratePDF)
	r.POST("/generate-bulk-pdf", d.Reports.GenerateBulkPDF)
	r.GET("/generate-student-pdf", d.Reports.GenerateStudentPDF)
	r.GET("/generate-teacher-pdf", d.Reports.GenerateTeacherPDF)

	internal := r.Group("/internal", middleware.InternalAuth(d.Config.Internal.AuthToken))
	internal.POST("/trigger-generate-pdf", d.Reports.TriggerGeneratePDF)

	return r
}
