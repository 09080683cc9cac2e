package router

import (
	"course-enrollment/internal/api/handlers"
	"course-enrollment/internal/api/middleware"
	serviceInterfaces "course-enrollment/internal/interfaces/service"
	"course-enrollment/internal/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Dependencies are the services the HTTP API is built on.
type Dependencies struct {
	EnrollmentService  serviceInterfaces.EnrollmentService
	SettingService     serviceInterfaces.SettingService
	IdempotencyService *service.IdempotencyService
	Tokens             *service.TokenService
	Metrics            *service.MetricsService
	HealthChecks       map[string]handlers.HealthCheckFunc
}

func NewRouter(deps Dependencies) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AddAllowHeaders("Authorization", middleware.IdempotencyKeyHeader, middleware.RequestIDHeader)
	corsConfig.ExposeHeaders = []string{middleware.RequestIDHeader}

	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(cors.New(corsConfig))
	r.Use(middleware.Metrics(deps.Metrics))
	r.Use(gin.Recovery())

	healthHandler := handlers.NewHealthHandler(deps.HealthChecks)

	r.GET("/health", healthHandler.HealthCheck)
	r.GET("/ready", healthHandler.ReadinessCheck)
	r.GET("/live", healthHandler.LivenessCheck)
	if deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	v1 := r.Group("/api/v1")
	v1.Use(middleware.Auth(deps.Tokens))
	registerEnrollmentRoutes(v1, deps)

	return r
}
