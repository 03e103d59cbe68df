package httpserver

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"gridworks/internal/handler"
)

type Handlers struct {
	Auth         *handler.AuthHandler
	Submission   *handler.SubmissionHandler
	Project      *handler.ProjectHandler
	Notification *handler.NotificationHandler
	Admin        *handler.AdminHandler
}

func NewRouter(h Handlers, jwtSecret string, logger *zap.Logger, db *pgxpool.Pool) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(TraceMiddleware())
	r.Use(MetricsMiddleware())
	r.Use(RequestLogMiddleware(logger))

	// Health endpoints (放在最前面)
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.HEAD("/healthz", func(c *gin.Context) {
		c.Status(200)
	})
	r.GET("/readyz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c, 1*time.Second)
		defer cancel()

		if err := db.Ping(ctx); err != nil {
			c.JSON(500, gin.H{"status": "db_not_ready", "error": err.Error()})
			return
		}
		c.JSON(200, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.POST("/auth/register", h.Auth.Register)
	r.POST("/auth/login", h.Auth.Login)

	authed := r.Group("/", AuthMiddleware(jwtSecret, logger))

	authed.POST("/submissions", h.Submission.Create)
	authed.GET("/submissions", h.Submission.List)
	authed.GET("/submissions/:id", h.Submission.Get)
	authed.POST("/submissions/:id/review", h.Submission.Review)
	authed.POST("/submissions/:id/resubmit", h.Submission.Resubmit)
	authed.DELETE("/submissions/:id", h.Submission.Withdraw)

	authed.GET("/projects", h.Project.List)
	authed.GET("/projects/:id", h.Project.Get)
	authed.GET("/projects/:id/progress", h.Project.Progress)
	authed.PUT("/projects/:id/progress", h.Project.OverrideProgress)
	authed.GET("/projects/:id/submissions", h.Submission.ListByProject)

	authed.GET("/notifications", h.Notification.List)
	authed.POST("/notifications/:id/read", h.Notification.MarkRead)

	authed.GET("/admin/outbox/failed", h.Admin.ListFailedEvents)
	authed.POST("/admin/outbox/:id/replay", h.Admin.ReplayEvent)

	return r
}
