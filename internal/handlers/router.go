package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/releasedesk/backend/internal/config"
	"github.com/releasedesk/backend/internal/middleware"
	"github.com/releasedesk/backend/internal/models"
	"github.com/releasedesk/backend/internal/pkg/logger"
	"github.com/releasedesk/backend/internal/services"
	"gorm.io/gorm"
)

// Services bundles what the HTTP layer calls into.
type Services struct {
	Auth         *services.AuthService
	Users        *services.UserService
	Releases     *services.ReleaseService
	Tasks        *services.TaskService
	Files        *services.FileService
	Profiles     *services.ProfileService
	Campaigns    *services.CampaignService
	Reports      *services.ReportService
	Subscription *services.SubscriptionService
}

// NewRouter wires every route under /api/v1. redisClient may be nil, which disables
// rate limiting.
func NewRouter(cfg *config.Config, log *logger.Logger, db *gorm.DB, redisClient *redis.Client, svc Services) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(log), middleware.CORS(cfg))

	healthHandler := NewHealthHandler(db, redisClient)
	authHandler := NewAuthHandler(svc.Auth)
	userHandler := NewUserHandler(svc.Users, svc.Subscription)
	releaseHandler := NewReleaseHandler(svc.Releases)
	taskHandler := NewTaskHandler(svc.Tasks, svc.Releases)
	fileHandler := NewFileHandler(svc.Files, svc.Releases, cfg)
	profileHandler := NewProfileHandler(svc.Profiles, svc.Releases)
	campaignHandler := NewCampaignHandler(svc.Campaigns, svc.Reports, svc.Releases)
	paymentHandler := NewPaymentHandler(svc.Subscription, cfg, log)

	router.GET("/health", healthHandler.Health)

	api := router.Group("/api/v1")
	api.Use(middleware.RateLimiter(redisClient, cfg, log))
	{
		auth := api.Group("/auth")
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
			auth.POST("/refresh", authHandler.RefreshToken)
			auth.POST("/logout", middleware.Auth(svc.Auth), authHandler.Logout)
		}

		// Gateway notifications carry no bearer token
		api.GET("/payments/webhook", paymentHandler.Webhook)
		api.POST("/payments/webhook", paymentHandler.Webhook)

		protected := api.Group("")
		protected.Use(middleware.Auth(svc.Auth))
		{
			protected.GET("/me", userHandler.GetProfile)
			protected.PUT("/me", userHandler.UpdateProfile)
			protected.GET("/me/payments", userHandler.GetPayments)
			protected.GET("/payments/verify", paymentHandler.Verify)

			protected.GET("/artist-profile", profileHandler.GetArtistProfile)
			protected.PUT("/artist-profile", profileHandler.UpsertArtistProfile)

			protected.GET("/releases", releaseHandler.List)
			protected.POST("/releases", releaseHandler.Create)
			protected.GET("/releases/:id", releaseHandler.Get)
			protected.PUT("/releases/:id", releaseHandler.Update)
			protected.DELETE("/releases/:id", releaseHandler.Delete)

			protected.GET("/releases/:id/tasks", taskHandler.List)
			protected.POST("/releases/:id/tasks", taskHandler.Add)
			protected.POST("/releases/:id/tasks/defaults", taskHandler.AddDefaults)
			protected.GET("/releases/:id/tasks/stats", taskHandler.Stats)
			protected.PUT("/tasks/:taskId", taskHandler.Update)
			protected.POST("/tasks/:taskId/toggle", taskHandler.Toggle)
			protected.DELETE("/tasks/:taskId", taskHandler.Delete)

			protected.GET("/releases/:id/files", fileHandler.List)
			protected.POST("/releases/:id/files", middleware.UploadRateLimit(redisClient, cfg, log), fileHandler.Upload)
			protected.GET("/releases/:id/files/audio-check", fileHandler.AudioCheck)
			protected.GET("/files/:fileId/download", fileHandler.Download)
			protected.DELETE("/files/:fileId", fileHandler.Delete)

			protected.POST("/releases/:id/profile", profileHandler.CreateDraft)
			protected.GET("/releases/:id/profile", profileHandler.Get)
			protected.PUT("/releases/:id/profile/song-intake", profileHandler.SetSongIntake)
			protected.PUT("/releases/:id/profile/target-audience", profileHandler.SetTargetAudience)
			protected.PUT("/releases/:id/profile/budget-timeline", profileHandler.SetBudgetTimeline)
			protected.PUT("/releases/:id/profile/goals", profileHandler.SetGoals)
			protected.PUT("/releases/:id/profile/narrative", profileHandler.SetNarrative)
			protected.POST("/releases/:id/profile/complete", profileHandler.Complete)

			// generation can call the model, so it is limited per user
			generate := middleware.ActionRateLimit(redisClient, log, "generate", 30, 10*time.Minute)
			campaign := protected.Group("/releases/:id/campaign")
			{
				campaign.GET("", campaignHandler.Get)
				campaign.POST("/start", generate, campaignHandler.Start)
				campaign.POST("/tasks/:taskId/complete", generate, campaignHandler.Complete)
				campaign.POST("/tasks/:taskId/skip", generate, campaignHandler.Skip)
				campaign.POST("/tasks/:taskId/swap", generate, campaignHandler.Swap)
				campaign.POST("/tasks/:taskId/requeue", campaignHandler.Requeue)
				campaign.GET("/report.pdf", campaignHandler.Report)
			}
		}

		admin := api.Group("/admin")
		admin.Use(middleware.Auth(svc.Auth), middleware.RequireRole(models.RoleAdmin))
		{
			admin.GET("/users", userHandler.ListUsers)
			admin.PUT("/users/:id/active", userHandler.SetUserActive)
		}
	}

	return router
}
