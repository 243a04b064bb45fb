package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/stemsi/courseware-backend/internal/config"
	"github.com/stemsi/courseware-backend/internal/handler"
	"github.com/stemsi/courseware-backend/internal/middleware"
	"github.com/stemsi/courseware-backend/internal/model"
	"github.com/stemsi/courseware-backend/internal/response"
	"github.com/stemsi/courseware-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth       *handler.AuthHandler
	Course     *handler.CourseHandler
	Authoring  *handler.AuthoringHandler
	Submission *handler.SubmissionHandler
	WS         *handler.WSHandler
	System     *handler.SystemHandler
}

// Limiters are the rate limiters applied to login and submissions. A
// nil limiter disables limiting for that group.
type Limiters struct {
	Login  *middleware.RateLimiter
	Submit *middleware.RateLimiter
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	limiters Limiters,
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
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", response.HeaderRequestID}
	corsConfig.ExposeHeaders = []string{response.HeaderRequestID}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())
	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.Brotli())

	// Locally stored videos are immutable; keys embed a timestamp.
	if cfg.BlobBackend == config.BlobLocal {
		uploadsGroup := router.Group("/uploads")
		uploadsGroup.Use(middleware.CacheControl(31536000))
		{
			uploadsGroup.Static("/", cfg.UploadDir)
		}
	}

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// ─── 1. Auth Group (Public, Rate Limited) ──────────────────────────
	auth := router.Group("/api/v1/auth")
	{
		auth.POST("/login", limit(limiters.Login), handlers.Auth.Login)
		auth.GET("/me", middleware.RequireAuth(authService), handlers.Auth.Me)
	}

	// ─── 2. Reader Group (any role) ────────────────────────────────────
	api := router.Group("/api/v1")
	api.Use(middleware.RequireAuth(authService), middleware.NoStore())
	{
		api.GET("/workspace", handlers.Course.Workspace)
		api.GET("/navigation", handlers.Course.Navigate)
		api.GET("/courses", handlers.Course.ListCourses)
		api.GET("/courses/:id/sections", handlers.Course.ListSections)
		api.GET("/sections/:id/pages", handlers.Course.ListPages)
		api.GET("/pages/:id/blocks", handlers.Course.PageBlocks)

		api.GET("/blocks/:id/submission", handlers.Submission.GetSubmission)
		api.POST("/blocks/:id/submission", limit(limiters.Submit), handlers.Submission.Submit)
		api.POST("/blocks/:id/video", limit(limiters.Submit), handlers.Submission.SubmitVideo)
	}

	// ─── 3. Editor Group (teacher, admin) ──────────────────────────────
	editor := router.Group("/api/v1")
	editor.Use(middleware.RequireAuth(authService), middleware.RequireEditor())
	{
		editor.POST("/sections/:id/pages", handlers.Authoring.CreatePage)
		editor.POST("/sections/:id/pages/reorder", handlers.Authoring.ReorderPages)
		editor.POST("/pages/:id/blocks", handlers.Authoring.AddBlock)
		editor.POST("/pages/:id/blocks/reorder", handlers.Authoring.ReorderBlocks)
		editor.PUT("/blocks/:id", handlers.Authoring.UpdateBlock)
	}

	// ─── 4. Admin Group ────────────────────────────────────────────────
	admin := router.Group("/api/v1/admin")
	admin.Use(middleware.RequireAuth(authService), middleware.RequireRole(model.RoleAdmin), middleware.NoStore())
	{
		admin.GET("/system/status", handlers.System.Status)
	}

	// ─── 5. WebSocket Group (query token) ──────────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireWSAuth(authService))
	{
		ws.GET("/pages/:id/stream", handlers.WS.PageStream)
	}

	return router
}

func limit(rl *middleware.RateLimiter) gin.HandlerFunc {
	if rl == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return rl.Middleware()
}
