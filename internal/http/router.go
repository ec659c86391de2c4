package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/vocabdrill-backend/internal/http/handlers"
	httpMW "github.com/yungbote/vocabdrill-backend/internal/http/middleware"
	"github.com/yungbote/vocabdrill-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log         *logger.Logger
	ServiceName string

	HealthHandler   *httpH.HealthHandler
	ProgressHandler *httpH.ProgressHandler
	DrillHandler    *httpH.DrillHandler
	JobHandler      *httpH.JobHandler
	InspectHandler  *httpH.InspectHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "vocabdrill"
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(cfg.ServiceName))
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.AttachRequestUser())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.CORS())

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}

	api := r.Group("/api")

	// Inspection tooling reads the shared stream and needs no user.
	if cfg.InspectHandler != nil {
		api.GET("/inspect/history", cfg.InspectHandler.History)
	}

	protected := api.Group("/")
	protected.Use(httpMW.RequireUser())
	{
		if cfg.ProgressHandler != nil {
			protected.POST("/progress/outcome", cfg.ProgressHandler.RecordOutcome)
			protected.GET("/selection/daily", cfg.ProgressHandler.SelectDaily)
		}

		if cfg.DrillHandler != nil {
			protected.POST("/drills/jobs", cfg.DrillHandler.EnqueueJob)
			protected.GET("/drills/:mode/next", cfg.DrillHandler.NextDrill)
			protected.GET("/drills/:mode/inventory", cfg.DrillHandler.InventoryStatus)
			protected.DELETE("/drills/:mode/inventory", cfg.DrillHandler.ClearInventory)
		}

		if cfg.JobHandler != nil {
			protected.GET("/jobs", cfg.JobHandler.ListJobs)
			protected.GET("/jobs/:id", cfg.JobHandler.GetJob)
			protected.POST("/jobs/:id/cancel", cfg.JobHandler.CancelJob)
		}
	}

	return r
}
