// Package router assembles the gin engine and the gradebook API routes.
package router

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/gradebook-sync-api/internal/handler"
	"github.com/noah-isme/gradebook-sync-api/internal/middleware"
	"github.com/noah-isme/gradebook-sync-api/internal/service"
	"github.com/noah-isme/gradebook-sync-api/pkg/config"
	"github.com/noah-isme/gradebook-sync-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/gradebook-sync-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/gradebook-sync-api/pkg/middleware/requestid"
)

// Handlers groups the HTTP handlers mounted by New.
type Handlers struct {
	Assignments *handler.AssignmentHandler
	Gradebook   *handler.GradebookHandler
	Mappings    *handler.MappingHandler
	Sync        *handler.SyncHandler
	Export      *handler.ExportHandler
	Metrics     *handler.MetricsHandler
}

// Options configures the engine.
type Options struct {
	Env            string
	APIPrefix      string
	AllowedOrigins []string
	Verifier       *middleware.TokenVerifier
	Metrics        *service.MetricsService
	Logger         *zap.Logger
}

// New builds the engine. Reads need any valid token; writes need the teacher or admin role.
func New(opts Options, h Handlers) *gin.Engine {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.APIPrefix == "" {
		opts.APIPrefix = "/api/v1"
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(opts.Logger))
	r.Use(corsmiddleware.New(opts.AllowedOrigins))
	r.Use(middleware.Metrics(opts.Metrics))

	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Ready)
	r.GET("/metrics", h.Metrics.Prometheus)

	if opts.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(opts.APIPrefix)
	api.Use(middleware.JWT(opts.Verifier))
	write := middleware.RequireRoles(middleware.RoleTeacher, middleware.RoleAdmin)
	audit := func(action string) gin.HandlerFunc { return middleware.Audit(opts.Logger, action) }

	api.GET("/metrics/summary", h.Metrics.Snapshot)

	assignments := api.Group("/assignments")
	assignments.GET("", h.Assignments.List)
	assignments.POST("", write, audit("assignment.create"), h.Assignments.Create)
	assignments.GET("/:id", h.Assignments.Get)
	assignments.PATCH("/:id/status", write, audit("assignment.status"), h.Assignments.UpdateStatus)
	assignments.PUT("/:id/link", write, audit("assignment.link"), h.Assignments.Link)
	assignments.DELETE("/:id", write, audit("assignment.delete"), h.Assignments.Delete)
	assignments.POST("/:id/save", write, h.Gradebook.Save)

	period := assignments.Group("/:id/periods/:period")
	period.GET("/grades", h.Gradebook.View)
	period.POST("/import", write, audit("grades.import"), h.Gradebook.Import)
	period.POST("/sync", write, audit("grades.sync"), h.Sync.Sync)
	period.GET("/export", h.Export.Export)

	student := period.Group("/students/:studentId")
	student.PUT("/grade", write, h.Gradebook.EditGrade)
	student.PUT("/extra", write, h.Gradebook.EditExtraPoints)
	student.DELETE("/draft", write, h.Gradebook.DiscardDraft)
	student.PUT("/tags/:kind", write, h.Gradebook.SetTag)
	student.DELETE("/tags/:kind", write, h.Gradebook.RemoveTag)
	student.GET("/submission", h.Sync.PullSubmission)

	api.POST("/gradebook/save", write, h.Gradebook.SaveAll)
	api.GET("/sync-jobs/:jobId", h.Sync.JobStatus)

	students := api.Group("/students")
	students.GET("/:studentId/average", h.Gradebook.StudentAverage)
	students.DELETE("/:studentId", write, audit("student.deactivate"), h.Gradebook.DeactivateStudent)

	mappings := api.Group("/mappings")
	mappings.POST("/auto", write, audit("mapping.auto"), h.Mappings.AutoMatch)
	mappings.POST("/manual", write, audit("mapping.manual"), h.Mappings.ManualMatch)
	mappings.GET("/:period", h.Mappings.List)

	return r
}
