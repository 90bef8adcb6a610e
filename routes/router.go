package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/cppla/bookclub/config"
	"github.com/cppla/bookclub/controllers"
	"github.com/cppla/bookclub/middleware"
	"github.com/cppla/bookclub/services"
	"github.com/cppla/bookclub/storage"
	"github.com/cppla/bookclub/utils"
)

// SetupRouter wires routes, middlewares, and controllers. st may be nil, which disables uploads.
func SetupRouter(db *gorm.DB, svc *services.Services, st storage.Storage) *gin.Engine {
	// Load config and set Gin mode from configuration
	cfg := config.Get()
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(middleware.RequestID())

	// Access log goes to its own rolling file when GinPath is set
	gl := utils.Logger
	if cfg.GinPath != "" {
		fl, err := utils.NewRollingFileLogger(cfg.GinPath, cfg.LogLevel, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays, cfg.LogCompress)
		if err != nil {
			utils.Logger.Warn("gin access log unavailable, using app logger", zap.Error(err))
		} else {
			gl = fl
		}
	}
	r.Use(utils.Ginzap(gl, time.RFC3339, true))
	r.Use(utils.RecoveryWithZap(gl, false))

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 0 || (len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*") {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	// Record PV after each request
	r.Use(middleware.PageViewRecorder(db, cfg.Location()))

	r.Static("/static", "./static")

	r.GET("/", func(c *gin.Context) {
		c.File("./static/index.html")
	})

	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})

	authController := controllers.NewAuthController(db, st)
	planController := controllers.NewPlanController(db, svc, st)
	progressController := controllers.NewProgressController(svc)
	communityController := controllers.NewCommunityController(db)
	journalController := controllers.NewJournalController(db)
	leaderboardController := controllers.NewLeaderboardController(svc.Leaderboard)
	statsController := controllers.NewStatsController(db, svc)
	configController := controllers.NewConfigController()

	api := r.Group("/api/v1")

	authGroup := api.Group("/auth")
	authGroup.Use(middleware.RateLimitMiddleware())
	authGroup.POST("/register", authController.Register)
	authGroup.POST("/login", authController.Login)
	authGroup.GET("/oauth/:provider/login", authController.OAuthRedirect)
	authGroup.GET("/oauth/:provider/callback", authController.OAuthCallback)
	authGroup.POST("/logout", middleware.AuthRequired(), authController.Logout)
	authGroup.GET("/me", middleware.AuthRequired(), authController.Me)
	authGroup.PATCH("/profile", middleware.AuthRequired(), authController.UpdateProfile)
	authGroup.POST("/avatar", middleware.AuthRequired(), authController.UploadAvatar)

	// Public config endpoints
	api.GET("/config/notice", configController.GetNotice)
	api.GET("/config/badges", configController.GetBadges)
	api.GET("/config/categories", configController.GetCategories)

	// Public listings, merged with the caller's state when a token is sent
	public := api.Group("")
	public.Use(middleware.OptionalAuth())
	public.GET("/plans", planController.ListPlans)
	public.GET("/plans/:id", planController.GetPlan)
	public.GET("/community/prompts", communityController.Feed)
	public.GET("/community/sessions", communityController.UpcomingSessions)
	public.GET("/leaderboard", leaderboardController.Get)
	public.GET("/leaderboard/winner", leaderboardController.PreviousWinner)

	protected := api.Group("")
	protected.Use(middleware.AuthRequired(), middleware.RateLimitMiddleware())
	protected.POST("/plans/:id/advance", progressController.Advance)
	protected.PUT("/plans/:id/position", progressController.SavePosition)
	protected.GET("/progress", progressController.ListProgress)
	protected.GET("/dashboard", progressController.Dashboard)

	protected.GET("/community/status", communityController.Status)
	protected.POST("/community/prompts/:id/comments", communityController.CreateComment)
	protected.POST("/community/prompts/:id/like", communityController.ToggleLike)
	protected.DELETE("/community/comments/:commentId", communityController.DeleteComment)

	protected.GET("/journal", journalController.List)
	protected.POST("/journal", journalController.Create)
	protected.GET("/journal/:id", journalController.Get)
	protected.PUT("/journal/:id", journalController.Update)
	protected.DELETE("/journal/:id", journalController.Delete)

	admin := protected.Group("/admin")
	admin.Use(controllers.AdminRequired())
	admin.GET("/stats", statsController.GetStats)
	admin.GET("/export/xp", statsController.ExportXP)
	admin.GET("/users", authController.ListUsers)
	admin.POST("/plans", planController.CreatePlan)
	admin.POST("/uploads", planController.UploadAsset)
	admin.POST("/prompts", communityController.CreatePrompt)
	admin.POST("/sessions", communityController.CreateSession)

	r.NoRoute(func(ctx *gin.Context) {
		path := ctx.Request.URL.Path
		if strings.HasPrefix(path, "/api/") {
			utils.Error(ctx, http.StatusNotFound, 40400, "api route not found")
			return
		}
		if strings.HasPrefix(path, "/static/") {
			ctx.JSON(http.StatusNotFound, gin.H{"message": "static asset not found"})
			return
		}
		// Other paths (/dashboard, /journal, ...) fall back to the SPA entry
		ctx.Status(http.StatusOK)
		ctx.File("./static/index.html")
	})

	return r
}
