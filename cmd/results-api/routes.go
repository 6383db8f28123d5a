package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/exam-results-api/internal/handler"
	"github.com/noah-isme/exam-results-api/internal/middleware"
	"github.com/noah-isme/exam-results-api/internal/models"
	"github.com/noah-isme/exam-results-api/internal/repository"
	"github.com/noah-isme/exam-results-api/internal/service"
	"github.com/noah-isme/exam-results-api/pkg/config"
	"github.com/noah-isme/exam-results-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/exam-results-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/exam-results-api/pkg/middleware/requestid"
)

type routeHandlers struct {
	results   *handler.ResultsHandler
	analytics *handler.AnalyticsHandler
	exports   *handler.ExportHandler
	metrics   *handler.MetricsHandler
	audit     *repository.AuditRepository
}

func newRouter(cfg *config.Config, logr *zap.Logger, metrics *service.MetricsService, auth *service.AuthService, h routeHandlers) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr, "/health", "/metrics"))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	r.GET("/health", h.metrics.Health)
	r.GET("/ready", h.metrics.Ready)
	r.GET("/metrics", h.metrics.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.WithResponseMeta())

	if h.exports != nil {
		api.GET("/exports/download", h.exports.Download)
	}

	secured := api.Group("")
	secured.Use(middleware.JWT(auth))

	admins := middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin)
	analysts := middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin, models.RoleAnalyst)
	readers := middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin, models.RoleAnalyst, models.RoleViewer)

	exams := secured.Group("/exams/:id")
	exams.POST("/process", admins, middleware.Audit(h.audit, logr, models.AuditActionProcess, "exam"), h.results.Process)
	exams.POST("/unprocess", admins, middleware.Audit(h.audit, logr, models.AuditActionUnprocess, "exam"), h.results.Unprocess)
	exams.GET("/students/:studentId/result", readers, h.analytics.StudentResult)
	exams.GET("/schools/:schoolId/analysis", readers, h.analytics.SchoolAnalysis)
	exams.GET("/rankings/schools", readers, h.analytics.SchoolRanking)
	exams.GET("/rankings/subjects/:code", readers, h.analytics.SubjectRanking)
	exams.GET("/regions/:regionId/summary", readers, h.analytics.RegionSummary)
	exams.GET("/locations", readers, h.analytics.Locations)
	if h.exports != nil {
		exams.POST("/exports", analysts, middleware.Audit(h.audit, logr, models.AuditActionExport, "exam"), h.exports.Create)
	}

	secured.GET("/processing-runs/:id", readers, h.results.RunStatus)
	secured.GET("/analytics/system", admins, h.analytics.System)

	return r
}
