package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/thesis-progress-api/internal/middleware"
	"github.com/noah-isme/thesis-progress-api/internal/models"
)

// Handlers groups the HTTP handlers mounted by RegisterRoutes.
type Handlers struct {
	Submissions   *SubmissionHandler
	Grades        *GradeHandler
	Sweeps        *SweepHandler
	Deadlines     *DeadlineHandler
	Notifications *NotificationHandler
	Progress      *ProgressHandler
}

// RegisterRoutes mounts the authenticated API under group. Route guards only
// narrow access; services still enforce their own role rules.
func RegisterRoutes(group *gin.RouterGroup, tokens middleware.TokenValidator, h Handlers) {
	api := group.Group("")
	api.Use(middleware.JWT(tokens))

	student := api.Group("/students/:studentID")
	student.Use(middleware.RBAC(
		middleware.SelfParam,
		string(models.RoleSupervisor),
		string(models.RoleCommittee),
		string(models.RoleAdmin),
	))
	reviewers := middleware.RequireRoles(models.ReviewerRoles...)
	if h.Submissions != nil {
		student.GET("/submissions", h.Submissions.List)
		student.GET("/submissions/:documentType", h.Submissions.Get)
		student.GET("/submissions/:documentType/history", h.Submissions.History)
		student.POST("/submissions/:documentType", middleware.RBAC(middleware.SelfParam), h.Submissions.Submit)
		student.POST("/submissions/:documentType/approve", reviewers, h.Submissions.Approve)
		student.POST("/submissions/:documentType/revision", reviewers, h.Submissions.RequestRevision)
		student.POST("/submissions/:documentType/reopen", reviewers, h.Submissions.Reopen)
	}
	if h.Grades != nil {
		student.GET("/grade", h.Grades.Get)
		student.GET("/grade/history", h.Grades.History)
		student.POST("/grade", reviewers, h.Grades.Grade)
		api.GET("/grades/export", middleware.RequireRoles(models.RoleCommittee, models.RoleAdmin), h.Grades.Export)
	}

	if h.Sweeps != nil {
		sweeps := api.Group("/sweeps", middleware.RequireRoles(models.RoleCommittee, models.RoleAdmin))
		sweeps.POST("", h.Sweeps.Run)
		sweeps.GET("/last", h.Sweeps.Last)
	}

	if h.Deadlines != nil {
		api.GET("/deadlines", h.Deadlines.List)
		api.PUT("/deadlines/:documentType", middleware.RequireRoles(models.RoleAdmin), h.Deadlines.Set)
	}

	if h.Notifications != nil {
		notifications := api.Group("/notifications")
		notifications.GET("", h.Notifications.List)
		notifications.GET("/unread-count", h.Notifications.UnreadCount)
		notifications.POST("/read-all", h.Notifications.MarkAllRead)
		notifications.POST("/:id/read", h.Notifications.MarkRead)
	}

	if h.Progress != nil {
		api.GET("/progress", middleware.RequireRoles(models.RoleSupervisor, models.RoleCommittee, models.RoleAdmin), h.Progress.Board)
	}
}

// RegisterOps mounts health, readiness and metrics endpoints outside the API prefix.
func RegisterOps(r gin.IRouter, metrics *MetricsHandler) {
	r.GET("/health", metrics.Health)
	r.GET("/ready", metrics.Ready)
	r.GET("/metrics", metrics.Prometheus)
	r.GET("/metrics/summary", metrics.Summary)
}
