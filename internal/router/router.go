package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/quiz-overview/internal/config"
	"github.com/stemsi/quiz-overview/internal/handler"
	"github.com/stemsi/quiz-overview/internal/metrics"
	"github.com/stemsi/quiz-overview/internal/middleware"
	"github.com/stemsi/quiz-overview/internal/model"
	"github.com/stemsi/quiz-overview/internal/response"
	"github.com/stemsi/quiz-overview/internal/service"
)

// overviewMaxAge is how long a teacher's browser may reuse an overview response.
const overviewMaxAge = 15

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Overview *handler.OverviewHandler
	Regrade  *handler.RegradeHandler
	WS       *handler.WSHandler
	Health   *handler.HealthHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
// regradeLimiter throttles batch starts per teacher.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	regradeLimiter *middleware.RateLimiter,
	cfg *config.Config,
	log zerolog.Logger,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())

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
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "Accept-Language", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Request IDs and the request logger come first so every later layer can log.
	router.Use(response.RequestIDMiddleware(log))
	router.Use(metrics.Middleware())
	router.Use(middleware.Brotli(cfg.BrotliQuality))

	router.GET("/health", handlers.Health.Health)
	router.GET("/metrics", metrics.Handler())

	// ─── 1. Teacher Group (JWT + RBAC) ─────────────────────────────────
	teacherAPI := router.Group("/api/v1/teacher")
	teacherAPI.Use(middleware.RequireTeacherJWT(authService))
	{
		teacherAPI.GET("/quizzes/:id/overview",
			middleware.RequirePermission(string(model.PermissionQuizViewReports)),
			middleware.PrivateCache(overviewMaxAge),
			handlers.Overview.GetOverview,
		)
		teacherAPI.GET("/quizzes/:id/regrades",
			middleware.RequireAnyPermission(string(model.PermissionQuizViewReports), string(model.PermissionQuizRegrade)),
			middleware.NoStore(),
			handlers.Regrade.ListRegrades,
		)
		teacherAPI.POST("/quizzes/:id/regrade",
			middleware.RequirePermission(string(model.PermissionQuizRegrade)),
			regradeLimiter.Middleware(),
			handlers.Regrade.StartRegrade,
		)
		teacherAPI.GET("/quizzes/:id/regrade/latest",
			middleware.RequirePermission(string(model.PermissionQuizRegrade)),
			middleware.NoStore(),
			handlers.Regrade.LatestRun,
		)
		teacherAPI.GET("/regrade-runs/:run_id",
			middleware.RequirePermission(string(model.PermissionQuizRegrade)),
			middleware.NoStore(),
			handlers.Regrade.GetRun,
		)
		teacherAPI.POST("/quizzes/:id/close-attempts",
			middleware.RequirePermission(string(model.PermissionQuizManage)),
			handlers.Regrade.CloseAttempts,
		)
	}

	// ─── 2. WebSocket Group (Teacher WS Auth) ──────────────────────────
	ws := router.Group("/ws/v1/teacher")
	ws.Use(middleware.RequireTeacherWSAuth(authService))
	{
		ws.GET("/quizzes/:id/regrade/progress",
			middleware.RequirePermission(string(model.PermissionQuizRegrade)),
			handlers.WS.RegradeProgressStream,
		)
	}

	return router
}
