package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/stemsi/exampin-backend/internal/config"
	"github.com/stemsi/exampin-backend/internal/handler"
	"github.com/stemsi/exampin-backend/internal/metrics"
	"github.com/stemsi/exampin-backend/internal/middleware"
	"github.com/stemsi/exampin-backend/internal/response"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Exam      *handler.ExamHandler
	Pin       *handler.PinHandler
	Result    *handler.ResultHandler
	Student   *handler.StudentHandler
	WS        *handler.WSHandler
	Dashboard *handler.DashboardHandler
	Monitor   *handler.MonitorHandler
	System    *handler.SystemHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	tokens middleware.TokenValidator,
	redeemLimiter *middleware.RateLimiter,
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
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID", middleware.AdminKeyHeader}
	corsConfig.ExposeHeaders = []string{"X-Request-ID", "Content-Disposition"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	router.Use(response.RequestIDMiddleware())
	router.Use(metrics.Middleware())
	router.Use(middleware.BrotliWithConfig(middleware.BrotliConfig{
		Quality:   middleware.DefaultBrotliConfig.Quality,
		MinLength: middleware.DefaultBrotliConfig.MinLength,
		Skipper:   middleware.SkipExports,
	}))

	router.GET("/health", handlers.System.Health)
	router.GET("/metrics", metrics.Handler())

	// ─── 1. Student Group ──────────────────────────────────────────────
	studentAPI := router.Group("/api/v1/student")
	studentAPI.Use(middleware.NoStore())
	{
		studentAPI.POST("/redeem", redeemLimiter.Middleware(), handlers.Student.Redeem)

		session := studentAPI.Group("/session")
		session.Use(middleware.RequireSessionToken(tokens))
		{
			session.GET("", handlers.Student.GetSession)
			session.GET("/paper", middleware.PrivateCache(300), handlers.Student.GetPaper)
		}
	}

	// Results view the student is redirected to after submitting.
	router.GET("/api/v1/results/:id", handlers.Result.GetResult)

	// ─── 2. Admin Group ────────────────────────────────────────────────
	adminAPI := router.Group("/api/v1/admin")
	adminAPI.Use(middleware.RequireAdminKey(cfg.AdminAPIKey))
	{
		adminAPI.GET("/dashboard", handlers.Dashboard.GetDashboardData)

		adminAPI.GET("/exams", handlers.Exam.ListExams)
		adminAPI.POST("/exams", handlers.Exam.CreateExam)
		adminAPI.GET("/exams/:id", handlers.Exam.GetExam)
		adminAPI.POST("/exams/:id/pins", handlers.Pin.GeneratePins)
		adminAPI.GET("/exams/:id/monitor", handlers.Monitor.MonitorExamSSE)

		adminAPI.GET("/pins", handlers.Pin.ListPins)
		adminAPI.GET("/pins/export", handlers.Pin.ExportPins)

		adminAPI.GET("/results", handlers.Result.ListResults)
		adminAPI.GET("/results/export", handlers.Result.ExportResults)
	}

	// ─── 3. WebSocket Group (session token via ?token=) ────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireSessionToken(tokens))
	{
		ws.GET("/student/session/stream", handlers.WS.SessionStream)
	}

	return router
}
