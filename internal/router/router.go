package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/talentgate/exam-backend/internal/config"
	"github.com/talentgate/exam-backend/internal/handler"
	"github.com/talentgate/exam-backend/internal/middleware"
	"github.com/talentgate/exam-backend/internal/model"
	"github.com/talentgate/exam-backend/internal/response"
	"github.com/talentgate/exam-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth         *handler.AuthHandler
	Candidate    *handler.CandidateHandler
	Exam         *handler.ExamHandler
	WS           *handler.WSHandler
	Admin        *handler.AdminHandler
	Notification *handler.NotificationHandler
	System       *handler.SystemHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	candidateLimiter *middleware.RateLimiter,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID", "Retry-After"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())
	router.Use(middleware.Brotli())

	router.GET("/health", handlers.System.Health)

	// ─── 1. Auth Group ─────────────────────────────────────────────────
	auth := router.Group("/api/v1/auth")
	{
		auth.POST("/admin/login", candidateLimiter.Middleware(), handlers.Auth.AdminLogin)
		auth.GET("/admin/me", middleware.RequireAdminJWT(authService), handlers.Auth.GetAdminProfile)
		auth.POST("/admin/logout", middleware.RequireAdminJWT(authService), handlers.Auth.AdminLogout)
	}

	// ─── 2. Candidate Group (Token, Rate Limited) ──────────────────────
	candidateAPI := router.Group("/api/v1")
	candidateAPI.Use(candidateLimiter.Middleware(), middleware.NoStore())
	{
		candidateAPI.POST("/candidate/verify-token", handlers.Candidate.VerifyToken)
		candidateAPI.POST("/candidate/start-exam", handlers.Candidate.StartExam)
		candidateAPI.GET("/exam/start-ui", handlers.Exam.StartUI)
		candidateAPI.POST("/exam/submit-exam", handlers.Exam.SubmitExam)
	}

	// ─── 3. WebSocket Group ────────────────────────────────────────────
	ws := router.Group("/ws/v1")
	{
		ws.GET("/exam/session", candidateLimiter.Middleware(), handlers.WS.ExamSession)
		ws.GET("/admin/notifications",
			middleware.RequireAdminWSAuth(authService),
			middleware.RequirePermission(model.PermissionNotifyRead),
			handlers.Notification.Stream,
		)
	}

	// ─── 4. Admin Group (JWT + RBAC) ───────────────────────────────────
	adminAPI := router.Group("/api/v1/admin")
	adminAPI.Use(middleware.RequireAdminJWT(authService))
	{
		adminAPI.GET("/menu", handlers.Admin.GetMenu)

		adminAPI.POST("/exams/:exam_id/refresh-cache",
			middleware.RequirePermission(model.PermissionExamsWrite),
			handlers.Exam.RefreshExamCache,
		)
		adminAPI.GET("/assignments/:assignment_id/integrity-events",
			middleware.RequirePermission(model.PermissionIntegrityRead),
			handlers.Admin.ListIntegrityEvents,
		)

		notifications := adminAPI.Group("/notifications", middleware.RequirePermission(model.PermissionNotifyRead))
		{
			notifications.GET("", handlers.Notification.List)
			notifications.GET("/unread-count", handlers.Notification.UnreadCount)
			notifications.POST("/:id/read", handlers.Notification.MarkRead)
		}

		adminAPI.GET("/system/metrics",
			middleware.RequirePermission(model.PermissionSettingsRead),
			handlers.System.SystemMetricsSSE,
		)
	}

	return router
}
