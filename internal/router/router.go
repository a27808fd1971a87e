package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/testply/guestexam-backend/internal/config"
	"github.com/testply/guestexam-backend/internal/handler"
	"github.com/testply/guestexam-backend/internal/middleware"
	"github.com/testply/guestexam-backend/internal/response"
	"github.com/testply/guestexam-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Guest   *handler.GuestHandler
	Attempt *handler.AttemptHandler
	WS      *handler.WSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
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
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// Rate limiter for the identity and access-request routes (30
	// requests per minute per IP). These are the only routes reachable
	// without a prior identity, or that write rows from free-form input.
	identifyLimiter := middleware.NewRateLimiter(30, time.Minute)

	// ─── 1. Identity (Public, Rate Limited) ────────────────────────────
	guestPublic := router.Group("/api/v1/guest")
	{
		guestPublic.POST("/identify", identifyLimiter.Middleware(), handlers.Guest.Identify)
	}

	// ─── 2. Guest Attempt Group (Guest JWT) ────────────────────────────
	guestAPI := router.Group("/api/v1/guest")
	guestAPI.Use(middleware.RequireGuest(authService))
	{
		guestAPI.GET("/exams", handlers.Guest.GetLobby)
		guestAPI.POST("/reset", handlers.Guest.Reset)
		guestAPI.POST("/exams/:exam_id/enter", handlers.Attempt.Enter)
		guestAPI.GET("/exams/:exam_id/paper", handlers.Attempt.GetPaper)
		guestAPI.GET("/exams/:exam_id/state", handlers.Attempt.GetState)
		guestAPI.POST("/exams/:exam_id/answers", handlers.Attempt.SaveAnswer)
		guestAPI.POST("/exams/:exam_id/violations", handlers.Attempt.ReportViolation)
		guestAPI.POST("/exams/:exam_id/submit", handlers.Attempt.Submit)
		guestAPI.POST("/exams/:exam_id/abort", handlers.Attempt.Abort)
		guestAPI.POST("/exams/:exam_id/request-access",
			identifyLimiter.Middleware(),
			handlers.Guest.RequestAccess,
		)
	}

	// ─── 3. WebSocket Group (Guest WS Auth) ────────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireGuestWSAuth(authService))
	{
		ws.GET("/guest/exams/:exam_id/stream", handlers.WS.AttemptStream)
	}

	return router
}
